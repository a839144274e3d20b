package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"
)

const (
	AlgEd25519    = "ed25519"
	AlgDilithium3 = "dilithium3"
)

func digestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case "sha256":
		s := sha256.Sum256(message)
		return s[:], nil
	case "sha512":
		s := sha512.Sum512(message)
		return s[:], nil
	case "sha3-256":
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", hashAlg)
	}
}

// Signer signs outgoing report payloads so receivers can authenticate them.
type Signer struct {
	Alg  string
	Seed []byte
}

// Sign returns "<alg>:<base64 signature>" over the payload digest.
// ed25519 signs sha256(payload); dilithium3 signs sha3-256(payload).
func (s Signer) Sign(payload []byte) (string, error) {
	if len(s.Seed) != ed25519.SeedSize {
		return "", fmt.Errorf("signing seed must be %d bytes", ed25519.SeedSize)
	}
	switch s.Alg {
	case AlgEd25519, "":
		priv := ed25519.NewKeyFromSeed(s.Seed)
		digest, _ := digestFor("sha256", payload)
		return AlgEd25519 + ":" + base64.StdEncoding.EncodeToString(ed25519.Sign(priv, digest)), nil
	case AlgDilithium3:
		var seed [mode3.SeedSize]byte
		copy(seed[:], s.Seed)
		_, priv := mode3.NewKeyFromSeed(&seed)
		digest, err := digestFor("sha3-256", payload)
		if err != nil {
			return "", err
		}
		sig := make([]byte, mode3.SignatureSize)
		mode3.SignTo(priv, digest, sig)
		return AlgDilithium3 + ":" + base64.StdEncoding.EncodeToString(sig), nil
	default:
		return "", fmt.Errorf("unsupported signing algorithm: %q", s.Alg)
	}
}

// PublicKey returns the base64 public key matching Sign, for publishing to receivers.
func (s Signer) PublicKey() (string, error) {
	if len(s.Seed) != ed25519.SeedSize {
		return "", fmt.Errorf("signing seed must be %d bytes", ed25519.SeedSize)
	}
	switch s.Alg {
	case AlgEd25519, "":
		pub := ed25519.NewKeyFromSeed(s.Seed).Public().(ed25519.PublicKey)
		return AlgEd25519 + ":" + base64.StdEncoding.EncodeToString(pub), nil
	case AlgDilithium3:
		var seed [mode3.SeedSize]byte
		copy(seed[:], s.Seed)
		pub, _ := mode3.NewKeyFromSeed(&seed)
		b, err := pub.MarshalBinary()
		if err != nil {
			return "", err
		}
		return AlgDilithium3 + ":" + base64.StdEncoding.EncodeToString(b), nil
	default:
		return "", fmt.Errorf("unsupported signing algorithm: %q", s.Alg)
	}
}
