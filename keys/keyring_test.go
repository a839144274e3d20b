package keys

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"xdao.co/sealsweep/model"
)

type deterministicReader struct{ b byte }

func (r *deterministicReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b
		r.b++
	}
	return len(p), nil
}

func TestKeyring_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	k1, err := Generate(&deterministicReader{}, "primary")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	k2, err := Generate(&deterministicReader{b: 0x40}, "backup")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := Save(path, []model.Key{k1, k2}, false); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("unexpected perm %o", perm)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 || got[0].ID != "backup" || got[1].ID != "primary" {
		t.Fatalf("unexpected keys: %+v", got)
	}
	if !bytes.Equal(got[1].Bytes, k1.Bytes) {
		t.Fatalf("key bytes mismatch")
	}

	if err := Save(path, []model.Key{k1}, false); err == nil {
		t.Fatalf("expected Save without overwrite to fail on existing file")
	}
	if err := Save(path, []model.Key{k1}, true); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
}

func TestKeyring_ParseRejects(t *testing.T) {
	cases := map[string]string{
		"empty":     `{"keys":[]}`,
		"badHex":    `{"keys":[{"id":"a","key_hex":"zz"}]}`,
		"shortKey":  `{"keys":[{"id":"a","key_hex":"0011"}]}`,
		"badID":     `{"keys":[{"id":"a b","key_hex":"00"}]}`,
		"notJSON":   `keys`,
		"duplicate": `{"keys":[{"id":"a","key_hex":"` + hex64() + `"},{"id":"a","key_hex":"` + hex64() + `"}]}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(in)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	_, err := Parse([]byte(`{"keys":[]}`))
	if !errors.Is(err, ErrEmptyKeyring) {
		t.Fatalf("got %v want ErrEmptyKeyring", err)
	}
}

func TestLookup(t *testing.T) {
	ks := []model.Key{{ID: "a"}, {ID: "b"}}
	if k, ok := Lookup(ks, "b"); !ok || k.ID != "b" {
		t.Fatalf("Lookup(b) failed")
	}
	if _, ok := Lookup(ks, "c"); ok {
		t.Fatalf("Lookup(c) should miss")
	}
}

func hex64() string {
	return "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
}
