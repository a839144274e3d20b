package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"xdao.co/sealsweep/model"
)

func TestHTTPClient_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req lookupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch req.Value {
		case "good":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"subject":      "svc-build",
				"display_name": "Build Bot",
				"flags":        []string{"verified"},
				"entitlements": []string{"deploy"},
			})
		case "denied":
			w.WriteHeader(http.StatusUnauthorized)
		case "forbidden":
			w.WriteHeader(http.StatusForbidden)
		case "busy":
			w.WriteHeader(http.StatusTooManyRequests)
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		case "nosubject":
			_, _ = w.Write([]byte(`{"display_name":"x"}`))
		case "slow":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`{"subject":"late"}`))
		}
	}))
	defer srv.Close()

	c := &HTTPClient{Endpoint: srv.URL, Timeout: 50 * time.Millisecond, Client: srv.Client()}

	p, err := c.Lookup(context.Background(), "good")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if p.Subject != "svc-build" || p.DisplayName != "Build Bot" || len(p.Flags) != 1 || p.Entitlements[0] != "deploy" {
		t.Fatalf("unexpected profile %+v", p)
	}

	cases := map[model.Plaintext]model.Reason{
		"denied":    model.ReasonUnauthorized,
		"forbidden": model.ReasonUnauthorized,
		"busy":      model.ReasonRateLimited,
		"broken":    model.ReasonNetworkError,
		"nosubject": model.ReasonNetworkError,
		"slow":      model.ReasonTimeout,
	}
	for v, want := range cases {
		_, err := c.Lookup(context.Background(), v)
		if !model.IsKind(err, model.KindEnrichmentFailure) {
			t.Fatalf("%s: expected EnrichmentFailure, got %v", v, err)
		}
		if got := model.ReasonOf(err); got != want {
			t.Fatalf("%s: got reason %s want %s", v, got, want)
		}
	}
}

func TestHTTPClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := &HTTPClient{Endpoint: url, Timeout: time.Second}
	_, err := c.Lookup(context.Background(), "x")
	if model.ReasonOf(err) != model.ReasonNetworkError {
		t.Fatalf("got %v want NetworkError", err)
	}
}
