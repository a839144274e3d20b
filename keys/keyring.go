package keys

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"xdao.co/sealsweep/model"
)

// FileName is the keyring file looked up in each installation root.
const FileName = "keyring.json"

// KeySize is the length of every sealing key.
const KeySize = chacha20poly1305.KeySize

var (
	ErrEmptyKeyring = errors.New("keys: keyring has no keys")
	ErrDuplicateID  = errors.New("keys: duplicate key id")
)

type File struct {
	Keys []Entry `json:"keys"`
}

type Entry struct {
	ID     string `json:"id"`
	KeyHex string `json:"key_hex"`
}

// CheckKeyID reports whether id is usable as a key identifier.
func CheckKeyID(id string) error {
	if id == "" {
		return errors.New("key id cannot be empty")
	}
	for _, char := range id {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in key id", char)
	}
	return nil
}

func ParseKeyHex(keyHex string) ([]byte, error) {
	keyHex = strings.TrimSpace(keyHex)
	keyHex = strings.TrimPrefix(keyHex, "0x")
	data, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, err
	}
	if len(data) != KeySize {
		return nil, fmt.Errorf("expected key length of %d bytes, got %d", KeySize, len(data))
	}
	return data, nil
}

// Generate returns a fresh random key.
func Generate(rand io.Reader, id string) (model.Key, error) {
	if err := CheckKeyID(id); err != nil {
		return model.Key{}, err
	}
	b := make([]byte, KeySize)
	if _, err := io.ReadFull(rand, b); err != nil {
		return model.Key{}, err
	}
	return model.Key{ID: id, Bytes: b}, nil
}

// Parse decodes keyring JSON. Keys are returned sorted by id.
func Parse(data []byte) ([]model.Key, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if len(f.Keys) == 0 {
		return nil, ErrEmptyKeyring
	}
	seen := make(map[string]struct{}, len(f.Keys))
	out := make([]model.Key, 0, len(f.Keys))
	for _, e := range f.Keys {
		if err := CheckKeyID(e.ID); err != nil {
			return nil, err
		}
		if _, ok := seen[e.ID]; ok {
			return nil, fmt.Errorf("%w %q", ErrDuplicateID, e.ID)
		}
		seen[e.ID] = struct{}{}
		b, err := ParseKeyHex(e.KeyHex)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", e.ID, err)
		}
		out = append(out, model.Key{ID: e.ID, Bytes: b})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func Load(path string) ([]model.Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Save writes keys to path with 0600 permissions.
// Without overwrite an existing file is never replaced.
func Save(path string, ks []model.Key, overwrite bool) error {
	if len(ks) == 0 {
		return ErrEmptyKeyring
	}
	f := File{Keys: make([]Entry, 0, len(ks))}
	for _, k := range ks {
		if len(k.Bytes) != KeySize {
			return fmt.Errorf("key %q: expected key length of %d bytes", k.ID, KeySize)
		}
		f.Keys = append(f.Keys, Entry{ID: k.ID, KeyHex: hex.EncodeToString(k.Bytes)})
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.Write(append(data, '\n')); err != nil {
		return err
	}
	return file.Close()
}

// Lookup returns the key with the given id.
func Lookup(ks []model.Key, id string) (model.Key, bool) {
	for _, k := range ks {
		if k.ID == id {
			return k, true
		}
	}
	return model.Key{}, false
}
