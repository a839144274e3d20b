// Package output writes the per-identity output tree.
//
// Layout:
//
//	<root>/<folder>/value.txt     raw plaintext value (0600)
//	<root>/<folder>/profile.json  profile metadata
//	<root>/REPORT.txt             fallback summary, only when no profile survived
//
// Files are written create-exclusive. Rewriting an identical file is a no-op;
// writing different bytes over an existing file fails with ErrImmutable.
package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"xdao.co/sealsweep/cidutil"
	"xdao.co/sealsweep/model"
)

const (
	ValueFile    = "value.txt"
	ProfileFile  = "profile.json"
	FallbackFile = "REPORT.txt"

	// MaxFolderRunes caps the display part of a folder name.
	MaxFolderRunes = 48
	truncMarker    = "~"
	fpTail         = 8
)

var ErrImmutable = errors.New("output: immutable file mismatch")

// Tree is a filesystem output tree rooted at Root.
type Tree struct {
	root string
}

// New constructs a Tree rooted at root. The directory will be created if needed.
func New(root string) (*Tree, error) {
	if root == "" {
		return nil, errors.New("output: root directory is required")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, err
	}
	return &Tree{root: root}, nil
}

func (t *Tree) Root() string { return t.root }

// Sanitize replaces characters unsafe in file names with '_' and caps the
// result at MaxFolderRunes, marking truncation with '~'.
func Sanitize(display string) string {
	var b strings.Builder
	for _, r := range display {
		switch {
		case r == utf8.RuneError, unicode.IsControl(r), strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	s := strings.TrimSpace(b.String())
	s = strings.TrimLeft(s, ".")
	if s == "" {
		s = "unnamed"
	}
	if utf8.RuneCountInString(s) > MaxFolderRunes {
		r := []rune(s)
		s = string(r[:MaxFolderRunes-utf8.RuneCountInString(truncMarker)]) + truncMarker
	}
	return s
}

// FolderName derives the per-identity folder from a display name and fingerprint.
func FolderName(display, fingerprint string) string {
	return Sanitize(display) + "_" + cidutil.Short(fingerprint, fpTail)
}

// WriteProfile writes both artifacts for p and returns the folder path.
func (t *Tree) WriteProfile(p model.Profile, value model.Plaintext) (string, error) {
	dir := filepath.Join(t.root, FolderName(p.DisplayName, p.Fingerprint))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	if err := writeOnce(filepath.Join(dir, ValueFile), []byte(value)); err != nil {
		return "", err
	}
	meta, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", err
	}
	if err := writeOnce(filepath.Join(dir, ProfileFile), append(meta, '\n')); err != nil {
		return "", err
	}
	return dir, nil
}

// WriteFallback writes the fallback summary and returns its path and bytes.
func (t *Tree) WriteFallback(s Summary) (string, []byte, error) {
	b := s.Render()
	path := filepath.Join(t.root, FallbackFile)
	if err := writeOnce(path, b); err != nil {
		return "", nil, err
	}
	return path, b, nil
}

func writeOnce(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			existing, rerr := os.ReadFile(path)
			if rerr != nil || !bytes.Equal(existing, data) {
				return ErrImmutable
			}
			return nil
		}
		return err
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}
