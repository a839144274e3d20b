// Package config loads the run configuration file.
//
// Example:
//
//	{
//	  "roots": ["/srv/app-a/sealed", "/srv/app-b/sealed"],
//	  "pattern": "*.sealed",
//	  "lookup": {"transport": "http", "endpoint": "https://introspect.internal/v1/profile", "timeout": "5s"},
//	  "webhook": {"url": "WEBHOOK_URL_PLACEHOLDER", "timeout": "10s",
//	              "signing_alg": "ed25519", "signing_seed_hex": "<64 hex>"},
//	  "output_dir": "/var/lib/sealsweep/out",
//	  "concurrency": 4
//	}
//
// Roots are scanned in the order listed.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"xdao.co/sealsweep/enrich"
	"xdao.co/sealsweep/keys"
	"xdao.co/sealsweep/report"
	"xdao.co/sealsweep/source"
)

const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"

	DefaultConcurrency = 4
)

type Config struct {
	Roots       []string `json:"roots"`
	Pattern     string   `json:"pattern,omitempty"`
	Lookup      Lookup   `json:"lookup"`
	Webhook     Webhook  `json:"webhook"`
	OutputDir   string   `json:"output_dir,omitempty"`
	Concurrency int      `json:"concurrency,omitempty"`
}

type Lookup struct {
	// Transport is "http" (default) or "grpc".
	Transport string   `json:"transport,omitempty"`
	Endpoint  string   `json:"endpoint"`
	Timeout   Duration `json:"timeout,omitempty"`
}

type Webhook struct {
	URL            string   `json:"url"`
	Timeout        Duration `json:"timeout,omitempty"`
	SigningAlg     string   `json:"signing_alg,omitempty"`
	SigningSeedHex string   `json:"signing_seed_hex,omitempty"`
}

// Duration is a time.Duration that decodes from a Go duration string.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func LoadFile(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("config: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg = cfg.WithDefaults()
	return cfg, cfg.Validate()
}

// WithDefaults fills in unset optional fields.
func (c Config) WithDefaults() Config {
	if c.Pattern == "" {
		c.Pattern = source.DefaultPattern
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Lookup.Transport == "" {
		c.Lookup.Transport = TransportHTTP
	}
	if c.Lookup.Timeout <= 0 {
		c.Lookup.Timeout = Duration(enrich.DefaultTimeout)
	}
	if c.Webhook.Timeout <= 0 {
		c.Webhook.Timeout = Duration(report.DefaultTimeout)
	}
	if c.Webhook.URL == "" {
		c.Webhook.URL = report.Placeholder
	}
	return c
}

func (c Config) Validate() error {
	if len(c.Roots) == 0 {
		return errors.New("config: at least one root is required")
	}
	seen := make(map[string]struct{}, len(c.Roots))
	for _, r := range c.Roots {
		if r == "" {
			return errors.New("config: empty root")
		}
		if _, ok := seen[r]; ok {
			return fmt.Errorf("config: duplicate root %q", r)
		}
		seen[r] = struct{}{}
	}
	switch c.Lookup.Transport {
	case "", TransportHTTP:
		u, err := url.Parse(c.Lookup.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config: invalid lookup endpoint %q", c.Lookup.Endpoint)
		}
	case TransportGRPC:
		if c.Lookup.Endpoint == "" {
			return errors.New("config: lookup endpoint is required")
		}
	default:
		return fmt.Errorf("config: invalid lookup transport %q", c.Lookup.Transport)
	}
	if report.Configured(c.Webhook.URL) {
		u, err := url.Parse(c.Webhook.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config: invalid webhook url %q", c.Webhook.URL)
		}
	}
	if c.Webhook.SigningSeedHex != "" {
		if _, err := c.Signer(); err != nil {
			return err
		}
	}
	return nil
}

// Signer returns the webhook payload signer, or nil when signing is off.
func (c Config) Signer() (*keys.Signer, error) {
	if c.Webhook.SigningSeedHex == "" {
		return nil, nil
	}
	seed, err := keys.ParseKeyHex(c.Webhook.SigningSeedHex)
	if err != nil {
		return nil, fmt.Errorf("config: signing seed: %w", err)
	}
	s := &keys.Signer{Alg: c.Webhook.SigningAlg, Seed: seed}
	switch s.Alg {
	case "", keys.AlgEd25519, keys.AlgDilithium3:
	default:
		return nil, fmt.Errorf("config: invalid signing_alg %q", s.Alg)
	}
	return s, nil
}

// OpenLookup opens the configured lookup transport. The returned close
// function must be called once the run is finished.
func (c Config) OpenLookup() (enrich.Lookuper, func() error, error) {
	timeout := time.Duration(c.Lookup.Timeout)
	switch c.Lookup.Transport {
	case "", TransportHTTP:
		l := &enrich.HTTPClient{
			Endpoint: c.Lookup.Endpoint,
			Timeout:  timeout,
			Client:   &http.Client{},
		}
		return l, func() error { return nil }, nil
	case TransportGRPC:
		cl, err := enrich.Dial(c.Lookup.Endpoint, enrich.DialOptions{Timeout: timeout})
		if err != nil {
			return nil, nil, err
		}
		cl.Timeout = timeout
		return cl, cl.Close, nil
	default:
		return nil, nil, fmt.Errorf("config: invalid lookup transport %q", c.Lookup.Transport)
	}
}
