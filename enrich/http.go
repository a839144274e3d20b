package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"xdao.co/sealsweep/model"
)

// maxProfileBytes caps how much of a response body is decoded.
const maxProfileBytes = 1 << 20

// HTTPClient POSTs {"value": ...} to Endpoint and decodes a profile.
type HTTPClient struct {
	Endpoint string
	Timeout  time.Duration
	Client   *http.Client
}

type lookupRequest struct {
	Value string `json:"value"`
}

type lookupResponse struct {
	Subject      string            `json:"subject"`
	DisplayName  string            `json:"display_name"`
	Flags        []string          `json:"flags"`
	Entitlements []string          `json:"entitlements"`
	Attributes   map[string]string `json:"attributes"`
}

func (r lookupResponse) profile() model.Profile {
	return model.Profile{
		Subject:      r.Subject,
		DisplayName:  r.DisplayName,
		Flags:        r.Flags,
		Entitlements: r.Entitlements,
		Attributes:   r.Attributes,
	}
}

func decodeProfile(b []byte) (model.Profile, error) {
	var resp lookupResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return model.Profile{}, model.WrapError(model.KindEnrichmentFailure, model.ReasonNetworkError, "decode profile", err)
	}
	if resp.Subject == "" {
		return model.Profile{}, model.NewError(model.KindEnrichmentFailure, model.ReasonNetworkError, "profile has no subject")
	}
	return resp.profile(), nil
}

func (c *HTTPClient) Lookup(ctx context.Context, v model.Plaintext) (model.Profile, error) {
	ctx, cancel := withTimeout(ctx, c.Timeout)
	defer cancel()

	body, err := json.Marshal(lookupRequest{Value: string(v)})
	if err != nil {
		return model.Profile{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return model.Profile{}, model.WrapError(model.KindEnrichmentFailure, model.ReasonNetworkError, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	hc := c.Client
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return model.Profile{}, classify(ctx, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return model.Profile{}, model.NewError(model.KindEnrichmentFailure, model.ReasonUnauthorized, resp.Status)
	case resp.StatusCode == http.StatusTooManyRequests:
		return model.Profile{}, model.NewError(model.KindEnrichmentFailure, model.ReasonRateLimited, resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return model.Profile{}, model.NewError(model.KindEnrichmentFailure, model.ReasonNetworkError, fmt.Sprintf("unexpected status %s", resp.Status))
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBytes))
	if err != nil {
		return model.Profile{}, classify(ctx, err)
	}
	return decodeProfile(b)
}
