package dedup

import (
	"fmt"
	"sync"
	"testing"

	"xdao.co/sealsweep/model"
)

func TestSet_SizeEqualsDistinctCount(t *testing.T) {
	in := []model.Plaintext{"a", "b", "a", "c", "b", "a", ""}
	s := New()
	added := 0
	for _, v := range in {
		if s.Add(v) {
			added++
		}
	}
	if s.Len() != 4 || added != 4 {
		t.Fatalf("got len %d added %d, want 4", s.Len(), added)
	}
	got := s.Values()
	want := []model.Plaintext{"a", "b", "c", ""}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order: got %v want %v", got, want)
		}
	}
}

func TestSet_ConcurrentProducers(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Add(model.Plaintext(fmt.Sprintf("v%d", i)))
			}
		}()
	}
	wg.Wait()
	if s.Len() != 100 {
		t.Fatalf("got %d distinct values, want 100", s.Len())
	}
}

func TestSet_ValuesIsCopy(t *testing.T) {
	s := New()
	s.Add("x")
	vs := s.Values()
	vs[0] = "mutated"
	if s.Values()[0] != "x" {
		t.Fatalf("Values must not alias internal state")
	}
}
