package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"xdao.co/sealsweep/keys"
	"xdao.co/sealsweep/model"
)

// Placeholder is the unconfigured webhook URL. Delivery to it is a no-op.
const Placeholder = "WEBHOOK_URL_PLACEHOLDER"

// DefaultTimeout bounds each delivery when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// SignatureHeader carries the payload signature when a Signer is set.
const SignatureHeader = "X-Sealsweep-Signature"

// Configured reports whether url names a real endpoint.
func Configured(url string) bool {
	return url != "" && url != Placeholder
}

// Webhook delivers reports as JSON, or multipart when an attachment is present.
type Webhook struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
	Signer  *keys.Signer
	Logger  *slog.Logger
}

// Status is the outcome of a successful Deliver.
type Status int

const (
	Sent Status = iota
	// Skipped means the URL was unconfigured and nothing was sent.
	Skipped
)

// Deliver sends one report. With an unconfigured URL it returns (Skipped, nil)
// without touching the network and logs a ConfigurationError.
func (w *Webhook) Deliver(ctx context.Context, r model.Report, extra ...Embed) (Status, error) {
	if !Configured(w.URL) {
		w.logger().Warn("delivery skipped", "kind", model.KindConfigurationError, "err", ErrNotConfigured)
		return Skipped, nil
	}
	return Sent, w.send(ctx, r, extra)
}

func (w *Webhook) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return w.Logger
}

func (w *Webhook) send(ctx context.Context, r model.Report, extra []Embed) error {
	payload, err := Build(r, extra...)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	var reqBody []byte
	contentType := "application/json"
	if r.Attachment != nil {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		if err := mw.WriteField("payload_json", string(body)); err != nil {
			return err
		}
		fw, err := mw.CreateFormFile("files[0]", r.Attachment.Name)
		if err != nil {
			return err
		}
		if _, err := fw.Write(r.Attachment.Bytes); err != nil {
			return err
		}
		if err := mw.Close(); err != nil {
			return err
		}
		reqBody = buf.Bytes()
		contentType = mw.FormDataContentType()
	} else {
		reqBody = body
	}

	timeout := w.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(reqBody))
	if err != nil {
		return model.WrapError(model.KindDeliveryFailure, model.ReasonNetworkError, "build request", err)
	}
	req.Header.Set("Content-Type", contentType)
	if w.Signer != nil {
		sig, err := w.Signer.Sign(body)
		if err != nil {
			return fmt.Errorf("sign payload: %w", err)
		}
		req.Header.Set(SignatureHeader, sig)
	}

	hc := w.Client
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return model.WrapError(model.KindDeliveryFailure, model.ReasonNetworkError, "post webhook", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return model.NewError(model.KindDeliveryFailure, model.ReasonPayloadTooLarge, resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return model.NewError(model.KindDeliveryFailure, model.ReasonNetworkError, fmt.Sprintf("unexpected status %s", resp.Status))
	}
	return nil
}
