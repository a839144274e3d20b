// Package seal opens and produces sealed record envelopes.
//
// An envelope is a small JSON document:
//
//	{"v":1,"key_id":"primary","nonce":"<base64>","ct":"<base64>"}
//
// The payload is XChaCha20-Poly1305 ciphertext. The version and key id are
// bound as additional data, so an envelope cannot be relabelled to another key.
//
// Open fails closed: on any error it returns an empty Plaintext.
package seal

import (
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/crypto/chacha20poly1305"

	"xdao.co/sealsweep/keys"
	"xdao.co/sealsweep/model"
)

// Version is the only envelope version this package understands.
const Version = 1

type envelope struct {
	V     int    `json:"v"`
	KeyID string `json:"key_id"`
	Nonce string `json:"nonce"`
	CT    string `json:"ct"`
}

func additionalData(v int, keyID string) []byte {
	return []byte(fmt.Sprintf("sealsweep/v%d/%s", v, keyID))
}

func newAEAD(key model.Key) (cipher.AEAD, error) {
	if len(key.Bytes) != chacha20poly1305.KeySize {
		return nil, model.NewError(model.KindTransformFailure, model.ReasonInvalidKey,
			fmt.Sprintf("key %q has length %d, want %d", key.ID, len(key.Bytes), chacha20poly1305.KeySize))
	}
	aead, err := chacha20poly1305.NewX(key.Bytes)
	if err != nil {
		return nil, model.WrapError(model.KindTransformFailure, model.ReasonInvalidKey, "init cipher", err)
	}
	return aead, nil
}

// Seal encrypts plain under key and returns envelope bytes.
func Seal(plain []byte, key model.Key, rand io.Reader) ([]byte, error) {
	if err := keys.CheckKeyID(key.ID); err != nil {
		return nil, model.WrapError(model.KindTransformFailure, model.ReasonInvalidKey, "seal", err)
	}
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand, nonce); err != nil {
		return nil, fmt.Errorf("seal: read nonce: %w", err)
	}
	ct := aead.Seal(nil, nonce, plain, additionalData(Version, key.ID))
	return json.Marshal(envelope{
		V:     Version,
		KeyID: key.ID,
		Nonce: base64.StdEncoding.EncodeToString(nonce),
		CT:    base64.StdEncoding.EncodeToString(ct),
	})
}

// KeyID returns the key id named by an envelope without opening it.
func KeyID(sealed []byte) (string, error) {
	env, err := parse(sealed)
	if err != nil {
		return "", err
	}
	return env.KeyID, nil
}

func parse(sealed []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(sealed, &env); err != nil {
		return envelope{}, model.WrapError(model.KindTransformFailure, model.ReasonMalformed, "decode envelope", err)
	}
	if env.V != Version {
		return envelope{}, model.NewError(model.KindTransformFailure, model.ReasonMalformed,
			fmt.Sprintf("unsupported envelope version %d", env.V))
	}
	if err := keys.CheckKeyID(env.KeyID); err != nil {
		return envelope{}, model.WrapError(model.KindTransformFailure, model.ReasonMalformed, "envelope key id", err)
	}
	return env, nil
}

// Open decrypts rec with key.
//
// Errors are *model.Error of KindTransformFailure with reason InvalidKey,
// Malformed or AuthFailure.
func Open(rec model.Record, key model.Key) (model.Plaintext, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}
	env, err := parse(rec.Sealed)
	if err != nil {
		return "", err
	}
	if env.KeyID != key.ID {
		return "", model.NewError(model.KindTransformFailure, model.ReasonInvalidKey,
			fmt.Sprintf("envelope sealed for key %q, got key %q", env.KeyID, key.ID))
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return "", model.WrapError(model.KindTransformFailure, model.ReasonMalformed, "decode nonce", err)
	}
	if len(nonce) != aead.NonceSize() {
		return "", model.NewError(model.KindTransformFailure, model.ReasonMalformed,
			fmt.Sprintf("nonce length %d, want %d", len(nonce), aead.NonceSize()))
	}
	ct, err := base64.StdEncoding.DecodeString(env.CT)
	if err != nil {
		return "", model.WrapError(model.KindTransformFailure, model.ReasonMalformed, "decode ciphertext", err)
	}
	if len(ct) < aead.Overhead() {
		return "", model.NewError(model.KindTransformFailure, model.ReasonMalformed, "ciphertext shorter than tag")
	}
	plain, err := aead.Open(nil, nonce, ct, additionalData(env.V, env.KeyID))
	if err != nil {
		return "", model.WrapError(model.KindTransformFailure, model.ReasonAuthFailure, "authentication failed", err)
	}
	if !utf8.Valid(plain) {
		return "", model.NewError(model.KindTransformFailure, model.ReasonMalformed, "plaintext is not valid UTF-8")
	}
	return model.Plaintext(plain), nil
}
