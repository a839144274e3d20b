package seal

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"testing"

	"xdao.co/sealsweep/model"
)

func testKey(id string, fill byte) model.Key {
	b := make([]byte, 32)
	for i := range b {
		b[i] = fill + byte(i)
	}
	return model.Key{ID: id, Bytes: b}
}

func mustSeal(t *testing.T, plain string, key model.Key) []byte {
	t.Helper()
	b, err := Seal([]byte(plain), key, rand.Reader)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	return b
}

func TestOpen_RoundTrip(t *testing.T) {
	key := testKey("primary", 1)
	sealed := mustSeal(t, "svc-token-123", key)

	got, err := Open(model.Record{Location: "a.sealed", Sealed: sealed}, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != "svc-token-123" {
		t.Fatalf("Open: got %q", got)
	}

	id, err := KeyID(sealed)
	if err != nil || id != "primary" {
		t.Fatalf("KeyID: got %q, %v", id, err)
	}
}

func TestOpen_TamperedAlwaysAuthFailure(t *testing.T) {
	key := testKey("primary", 1)
	sealed := mustSeal(t, "value", key)

	var env envelope
	if err := json.Unmarshal(sealed, &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	ct, _ := base64.StdEncoding.DecodeString(env.CT)
	nonce, _ := base64.StdEncoding.DecodeString(env.Nonce)

	check := func(t *testing.T, e envelope) {
		t.Helper()
		b, err := json.Marshal(e)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		got, err := Open(model.Record{Sealed: b}, key)
		if model.ReasonOf(err) != model.ReasonAuthFailure {
			t.Fatalf("got err %v, want AuthFailure", err)
		}
		if got != "" {
			t.Fatalf("partial output returned: %q", got)
		}
	}

	for i := range ct {
		mut := bytes.Clone(ct)
		mut[i] ^= 0x01
		e := env
		e.CT = base64.StdEncoding.EncodeToString(mut)
		check(t, e)
	}
	for i := range nonce {
		mut := bytes.Clone(nonce)
		mut[i] ^= 0x80
		e := env
		e.Nonce = base64.StdEncoding.EncodeToString(mut)
		check(t, e)
	}
}

func TestOpen_WrongKeyBytesIsAuthFailure(t *testing.T) {
	sealed := mustSeal(t, "value", testKey("primary", 1))
	_, err := Open(model.Record{Sealed: sealed}, testKey("primary", 9))
	if model.ReasonOf(err) != model.ReasonAuthFailure {
		t.Fatalf("got %v, want AuthFailure", err)
	}
	if !model.IsKind(err, model.KindTransformFailure) {
		t.Fatalf("expected TransformFailure kind")
	}
}

func TestOpen_RelabelledKeyIDFails(t *testing.T) {
	a := testKey("a", 1)
	sealed := mustSeal(t, "value", a)

	var env envelope
	_ = json.Unmarshal(sealed, &env)
	env.KeyID = "b"
	relabelled, _ := json.Marshal(env)

	// Same key bytes under another id: the bound id no longer matches.
	b := model.Key{ID: "b", Bytes: a.Bytes}
	_, err := Open(model.Record{Sealed: relabelled}, b)
	if model.ReasonOf(err) != model.ReasonAuthFailure {
		t.Fatalf("got %v, want AuthFailure", err)
	}

	_, err = Open(model.Record{Sealed: sealed}, b)
	if model.ReasonOf(err) != model.ReasonInvalidKey {
		t.Fatalf("got %v, want InvalidKey", err)
	}
}

func TestOpen_Malformed(t *testing.T) {
	key := testKey("primary", 1)
	cases := map[string]string{
		"notJSON":      `not json`,
		"badVersion":   `{"v":2,"key_id":"primary","nonce":"","ct":""}`,
		"noKeyID":      `{"v":1,"nonce":"","ct":""}`,
		"badNonceB64":  `{"v":1,"key_id":"primary","nonce":"!!","ct":""}`,
		"shortNonce":   `{"v":1,"key_id":"primary","nonce":"AAAA","ct":""}`,
		"shortCTExact": `{"v":1,"key_id":"primary","nonce":"` + base64.StdEncoding.EncodeToString(make([]byte, 24)) + `","ct":"AAAA"}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := Open(model.Record{Sealed: []byte(in)}, key)
			if model.ReasonOf(err) != model.ReasonMalformed {
				t.Fatalf("got %v, want Malformed", err)
			}
			if got != "" {
				t.Fatalf("partial output returned")
			}
		})
	}
}

func TestOpen_InvalidKeyLength(t *testing.T) {
	sealed := mustSeal(t, "value", testKey("primary", 1))
	_, err := Open(model.Record{Sealed: sealed}, model.Key{ID: "primary", Bytes: []byte("short")})
	if model.ReasonOf(err) != model.ReasonInvalidKey {
		t.Fatalf("got %v, want InvalidKey", err)
	}
}
