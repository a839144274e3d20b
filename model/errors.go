package model

import (
	"errors"
	"fmt"
)

// Kind is the stage-level category of a failure.
//
// Callers should branch on Kind/Reason rather than matching error strings.
type Kind string

const (
	KindSourceUnavailable  Kind = "SourceUnavailable"
	KindTransformFailure   Kind = "TransformFailure"
	KindEnrichmentFailure  Kind = "EnrichmentFailure"
	KindDeliveryFailure    Kind = "DeliveryFailure"
	KindConfigurationError Kind = "ConfigurationError"
)

// Reason narrows a Kind to the concrete cause.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnreadable      Reason = "Unreadable"
	ReasonInvalidKey      Reason = "InvalidKey"
	ReasonMalformed       Reason = "Malformed"
	ReasonAuthFailure     Reason = "AuthFailure"
	ReasonUnauthorized    Reason = "Unauthorized"
	ReasonRateLimited     Reason = "RateLimited"
	ReasonNetworkError    Reason = "NetworkError"
	ReasonTimeout         Reason = "Timeout"
	ReasonPayloadTooLarge Reason = "PayloadTooLarge"
	ReasonPlaceholder     Reason = "Placeholder"
)

// Error is the structured error type shared by all stages.
//
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Reason == ReasonNone {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s(%s): %s", e.Kind, e.Reason, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NewError(kind Kind, reason Reason, msg string) error {
	return &Error{Kind: kind, Reason: reason, Message: msg}
}

func WrapError(kind Kind, reason Reason, msg string, cause error) error {
	if cause == nil {
		return NewError(kind, reason, msg)
	}
	return &Error{Kind: kind, Reason: reason, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// ReasonOf returns the Reason of a structured error, or ReasonNone.
func ReasonOf(err error) Reason {
	var e *Error
	if !errors.As(err, &e) {
		return ReasonNone
	}
	return e.Reason
}
