// Package enrich looks up a profile for each plaintext value against an
// operator-configured introspection service.
package enrich

import (
	"context"
	"errors"
	"sync"
	"time"

	"xdao.co/sealsweep/cidutil"
	"xdao.co/sealsweep/model"
)

// DefaultTimeout bounds each lookup when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Lookuper resolves one plaintext value to a profile.
//
// Errors are *model.Error of KindEnrichmentFailure with reason
// Unauthorized, RateLimited, NetworkError or Timeout.
type Lookuper interface {
	Lookup(ctx context.Context, v model.Plaintext) (model.Profile, error)
}

// Result is the outcome of one lookup: exactly one of Profile or Err is meaningful.
type Result struct {
	Value   model.Plaintext
	Profile model.Profile
	Err     error
}

func (r Result) OK() bool { return r.Err == nil }

// All looks up every value with at most limit lookups in flight.
// Results are returned in input order regardless of completion order.
// onDone, when non-nil, is called as each lookup completes.
func All(ctx context.Context, l Lookuper, values []model.Plaintext, limit int, onDone func(Result)) []Result {
	if limit <= 0 {
		limit = 1
	}
	out := make([]Result, len(values))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i, v := range values {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, v model.Plaintext) {
			defer wg.Done()
			defer func() { <-sem }()
			p, err := l.Lookup(ctx, v)
			if err == nil {
				p = finish(p, v)
			}
			r := Result{Value: v, Profile: p, Err: err}
			out[i] = r
			if onDone != nil {
				onDone(r)
			}
		}(i, v)
	}
	wg.Wait()
	return out
}

// finish fills fields derived locally from the value.
func finish(p model.Profile, v model.Plaintext) model.Profile {
	p.Fingerprint = cidutil.Fingerprint([]byte(v))
	if p.DisplayName == "" {
		p.DisplayName = p.Subject
	}
	return p
}

func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var me *model.Error
	if errors.As(err, &me) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return model.WrapError(model.KindEnrichmentFailure, model.ReasonTimeout, "lookup timed out", err)
	}
	return model.WrapError(model.KindEnrichmentFailure, model.ReasonNetworkError, "lookup failed", err)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
