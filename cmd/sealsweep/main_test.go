package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"xdao.co/sealsweep/cidutil"
	"xdao.co/sealsweep/report"
)

func TestRun_UsageAndUnknown(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run(nil, &out, &errOut); code != 2 {
		t.Fatalf("no args: got %d want 2", code)
	}
	if code := run([]string{"nope"}, &out, &errOut); code != 2 {
		t.Fatalf("unknown: got %d want 2", code)
	}
	out.Reset()
	if code := run([]string{"help"}, &out, &errOut); code != 0 || !strings.Contains(out.String(), "Usage:") {
		t.Fatalf("help: code %d out %q", code, out.String())
	}
}

func TestKeygenSealRun_EndToEnd(t *testing.T) {
	root := t.TempDir()
	var out, errOut bytes.Buffer

	if code := run([]string{"keygen", "--id", "primary", "--root", root}, &out, &errOut); code != 0 {
		t.Fatalf("keygen: %d %s", code, errOut.String())
	}
	if code := run([]string{"keygen", "--id", "primary", "--root", root}, &out, &errOut); code != 1 {
		t.Fatalf("duplicate keygen should fail, got %d", code)
	}

	in := filepath.Join(t.TempDir(), "value.txt")
	if err := os.WriteFile(in, []byte("svc-value"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	out.Reset()
	envPath := filepath.Join(root, "svc.sealed")
	if code := run([]string{"seal", "--root", root, "--key-id", "primary", "--in", in, "--out", envPath}, &out, &errOut); code != 0 {
		t.Fatalf("seal: %d %s", code, errOut.String())
	}
	if got := strings.TrimSpace(out.String()); got != cidutil.Fingerprint([]byte("svc-value")) {
		t.Fatalf("seal printed %q", got)
	}

	lookup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"subject":"svc","display_name":"Service"}`))
	}))
	defer lookup.Close()
	var hookHits atomic.Int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hookHits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	outDir := filepath.Join(t.TempDir(), "out")
	cfg := map[string]any{
		"roots":      []string{root},
		"lookup":     map[string]string{"endpoint": lookup.URL},
		"webhook":    map[string]string{"url": hook.URL},
		"output_dir": outDir,
	}
	b, _ := json.Marshal(cfg)
	cfgPath := filepath.Join(t.TempDir(), "cfg.json")
	if err := os.WriteFile(cfgPath, b, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	out.Reset()
	errOut.Reset()
	if code := run([]string{"run", "--config", cfgPath}, &out, &errOut); code != 0 {
		t.Fatalf("run: %d\nstdout:\n%s\nstderr:\n%s", code, out.String(), errOut.String())
	}
	if hookHits.Load() != 1 {
		t.Fatalf("expected one webhook delivery, got %d", hookHits.Load())
	}
	for _, want := range []string{"state: Done", "profiles:  1", "delivery:  1 message(s)"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("summary missing %q:\n%s", want, out.String())
		}
	}
}

func TestRun_PlaceholderWebhook(t *testing.T) {
	root := t.TempDir()
	var out, errOut bytes.Buffer
	if code := run([]string{"keygen", "--id", "k", "--root", root}, &out, &errOut); code != 0 {
		t.Fatalf("keygen: %s", errOut.String())
	}
	cfgPath := filepath.Join(t.TempDir(), "cfg.json")
	body := fmt.Sprintf(`{"roots":[%q],"lookup":{"endpoint":"http://127.0.0.1:1/x"},"webhook":{"url":%q}}`, root, report.Placeholder)
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	out.Reset()
	if code := run([]string{"run", "--config", cfgPath}, &out, &errOut); code != 0 {
		t.Fatalf("run: %d %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "state: Done") {
		t.Fatalf("unexpected summary:\n%s", out.String())
	}
}

func TestFingerprint(t *testing.T) {
	p := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(p, []byte("abc"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	var out, errOut bytes.Buffer
	if code := run([]string{"fingerprint", p}, &out, &errOut); code != 0 {
		t.Fatalf("fingerprint: %d", code)
	}
	if strings.TrimSpace(out.String()) != cidutil.Fingerprint([]byte("abc")) {
		t.Fatalf("unexpected fingerprint %q", out.String())
	}
}
