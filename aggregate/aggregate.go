// Package aggregate accumulates run-scoped counters and collections.
package aggregate

import "sync"

// Category names one ordered collection. The set is closed.
type Category int

const (
	// Locations holds roots that yielded at least one record.
	Locations Category = iota
	Records
	// Keys holds "<root>#<key id>" for each key that opened a record.
	Keys
	Decrypted
	// Unique holds fingerprints of distinct plaintext values.
	Unique
	// Profiles holds fingerprints of values that produced a profile.
	Profiles
	numCategories
)

var categoryNames = [numCategories]string{
	Locations: "locations",
	Records:   "records",
	Keys:      "keys",
	Decrypted: "decrypted",
	Unique:    "unique",
	Profiles:  "profiles",
}

func (c Category) String() string {
	if c < 0 || c >= numCategories {
		return "unknown"
	}
	return categoryNames[c]
}

// Categories lists every category in display order.
func Categories() []Category {
	out := make([]Category, numCategories)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// Counters are plain additive tallies that have no collection.
type Counters struct {
	SourceErrors    int
	TransformErrors int
	EnrichErrors    int
	Deliveries      int
}

func (c *Counters) add(o Counters) {
	c.SourceErrors += o.SourceErrors
	c.TransformErrors += o.TransformErrors
	c.EnrichErrors += o.EnrichErrors
	c.Deliveries += o.Deliveries
}

// Partial is one stage's contribution. Items are appended per category.
type Partial struct {
	Items    map[Category][]string
	Counters Counters
}

// Snapshot is an immutable copy of the aggregate.
type Snapshot struct {
	Collections [numCategories][]string
	Counters    Counters
}

func (s Snapshot) Count(c Category) int {
	if c < 0 || c >= numCategories {
		return 0
	}
	return len(s.Collections[c])
}

func (s Snapshot) Items(c Category) []string {
	if c < 0 || c >= numCategories {
		return nil
	}
	return append([]string(nil), s.Collections[c]...)
}

// Zero reports whether nothing has been merged.
func (s Snapshot) Zero() bool {
	for _, c := range s.Collections {
		if len(c) != 0 {
			return false
		}
	}
	return s.Counters == (Counters{})
}

// Aggregate is owned by one run and safe for concurrent Merge.
type Aggregate struct {
	mu          sync.Mutex
	collections [numCategories][]string
	counters    Counters
}

func New() *Aggregate { return &Aggregate{} }

// Merge adds p. Unknown categories are ignored.
func (a *Aggregate) Merge(p Partial) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for c, items := range p.Items {
		if c < 0 || c >= numCategories {
			continue
		}
		a.collections[c] = append(a.collections[c], items...)
	}
	a.counters.add(p.Counters)
}

// Add is shorthand for merging items into a single category.
func (a *Aggregate) Add(c Category, items ...string) {
	a.Merge(Partial{Items: map[Category][]string{c: items}})
}

// Count is shorthand for merging counters only.
func (a *Aggregate) Count(c Counters) {
	a.Merge(Partial{Counters: c})
}

func (a *Aggregate) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	var s Snapshot
	for i, c := range a.collections {
		if len(c) > 0 {
			s.Collections[i] = append([]string(nil), c...)
		}
	}
	s.Counters = a.counters
	return s
}

func (a *Aggregate) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.collections = [numCategories][]string{}
	a.counters = Counters{}
}
