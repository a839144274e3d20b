package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"
)

func testSeed() []byte {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	return seed
}

func TestSigner_Ed25519Verifies(t *testing.T) {
	s := Signer{Alg: AlgEd25519, Seed: testSeed()}
	msg := []byte(`{"content":"hello"}`)

	out, err := s.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	sigB64, ok := strings.CutPrefix(out, "ed25519:")
	if !ok {
		t.Fatalf("missing alg prefix: %q", out)
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	pub := ed25519.NewKeyFromSeed(testSeed()).Public().(ed25519.PublicKey)
	digest := sha256.Sum256(msg)
	if !ed25519.Verify(pub, digest[:], sig) {
		t.Fatalf("signature did not verify")
	}
}

func TestSigner_Dilithium3Verifies(t *testing.T) {
	s := Signer{Alg: AlgDilithium3, Seed: testSeed()}
	msg := []byte("payload")

	out, err := s.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	sig, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(out, "dilithium3:"))
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	if len(sig) != mode3.SignatureSize {
		t.Fatalf("unexpected signature size: got %d want %d", len(sig), mode3.SignatureSize)
	}

	var seed [mode3.SeedSize]byte
	copy(seed[:], testSeed())
	pub, _ := mode3.NewKeyFromSeed(&seed)
	digest := sha3.Sum256(msg)
	if !mode3.Verify(pub, digest[:], sig) {
		t.Fatalf("signature did not verify")
	}
}

func TestSigner_RejectsBadInput(t *testing.T) {
	if _, err := (Signer{Seed: []byte("short")}).Sign([]byte("x")); err == nil {
		t.Fatalf("expected error for short seed")
	}
	if _, err := (Signer{Alg: "rsa", Seed: testSeed()}).Sign([]byte("x")); err == nil {
		t.Fatalf("expected error for unknown alg")
	}
}
