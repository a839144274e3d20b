// Package source collects sealed records from operator-listed roots.
//
// Each root is one installation: a directory holding a keyring file and any
// number of envelope files (matched by Pattern) anywhere beneath it.
package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"xdao.co/sealsweep/keys"
	"xdao.co/sealsweep/model"
	"xdao.co/sealsweep/seal"
)

// DefaultPattern matches envelope file names.
const DefaultPattern = "*.sealed"

// Source enumerates roots in the fixed order given.
type Source struct {
	Roots   []string
	Pattern string
}

// Installation is the result of scanning one root.
type Installation struct {
	Root    string
	Keys    []model.Key
	Records []model.Record
	Errs    []error
}

// Enumerate scans every root concurrently and joins before returning.
//
// Per-root failures are returned as KindSourceUnavailable errors and never
// abort other roots. Installations come back in Roots order.
func (s Source) Enumerate(ctx context.Context) []Installation {
	out := make([]Installation, len(s.Roots))
	var wg sync.WaitGroup
	for i, root := range s.Roots {
		wg.Add(1)
		go func(i int, root string) {
			defer wg.Done()
			out[i] = s.scan(ctx, root)
		}(i, root)
	}
	wg.Wait()
	return out
}

func (s Source) pattern() string {
	if s.Pattern == "" {
		return DefaultPattern
	}
	return s.Pattern
}

func unavailable(loc, msg string, cause error) error {
	return model.WrapError(model.KindSourceUnavailable, model.ReasonUnreadable, fmt.Sprintf("%s: %s", loc, msg), cause)
}

func (s Source) scan(ctx context.Context, root string) Installation {
	inst := Installation{Root: root}
	info, err := os.Stat(root)
	if err != nil {
		inst.Errs = append(inst.Errs, unavailable(root, "stat root", err))
		return inst
	}
	if !info.IsDir() {
		inst.Errs = append(inst.Errs, unavailable(root, "not a directory", nil))
		return inst
	}

	ks, err := keys.Load(filepath.Join(root, keys.FileName))
	if err != nil {
		inst.Errs = append(inst.Errs, unavailable(root, "load keyring", err))
		// Records are still collected so they are counted; none can be opened.
	}
	inst.Keys = ks

	pattern := s.pattern()
	var paths []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			inst.Errs = append(inst.Errs, unavailable(path, "walk", err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ok, merr := filepath.Match(pattern, d.Name())
		if merr != nil {
			return merr
		}
		if ok {
			paths = append(paths, path)
		}
		return nil
	})
	if walkErr != nil {
		inst.Errs = append(inst.Errs, unavailable(root, "walk", walkErr))
	}

	sort.Strings(paths)
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			inst.Errs = append(inst.Errs, unavailable(p, "read record", err))
			continue
		}
		// A malformed envelope is still a record; Open reports it.
		id, _ := seal.KeyID(b)
		inst.Records = append(inst.Records, model.Record{Root: root, Location: p, KeyID: id, Sealed: b})
	}
	return inst
}

// Records flattens installations into one record slice, preserving order.
func Records(insts []Installation) []model.Record {
	var out []model.Record
	for _, inst := range insts {
		out = append(out, inst.Records...)
	}
	return out
}

// Errors flattens per-installation errors.
func Errors(insts []Installation) []error {
	var out []error
	for _, inst := range insts {
		out = append(out, inst.Errs...)
	}
	return out
}

// ErrExhausted is returned by Iter.Next once every record has been yielded.
var ErrExhausted = errors.New("source: iterator exhausted")

// Iter is a finite, non-restartable cursor over enumerated records.
type Iter struct {
	mu   sync.Mutex
	recs []model.Record
	pos  int
}

func NewIter(insts []Installation) *Iter {
	return &Iter{recs: Records(insts)}
}

// Next yields the next record, or ErrExhausted. It never rewinds.
func (it *Iter) Next() (model.Record, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.pos >= len(it.recs) {
		return model.Record{}, ErrExhausted
	}
	rec := it.recs[it.pos]
	it.pos++
	return rec, nil
}
