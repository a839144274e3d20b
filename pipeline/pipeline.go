// Package pipeline runs one collect → open → dedup → lookup → report pass.
//
// A Run is single-use. Per-item failures (unreadable locations, records that
// fail to open, failed lookups) are logged, counted and skipped. Only a
// delivery failure or a cancelled context fails the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"xdao.co/sealsweep/aggregate"
	"xdao.co/sealsweep/cidutil"
	"xdao.co/sealsweep/dedup"
	"xdao.co/sealsweep/enrich"
	"xdao.co/sealsweep/keys"
	"xdao.co/sealsweep/model"
	"xdao.co/sealsweep/output"
	"xdao.co/sealsweep/report"
	"xdao.co/sealsweep/seal"
	"xdao.co/sealsweep/source"
)

var ErrAlreadyRun = errors.New("pipeline: run already executed")

// Enumerator yields installations. source.Source implements it.
type Enumerator interface {
	Enumerate(ctx context.Context) []source.Installation
}

// Run wires the stages together. Tree may be nil, in which case nothing is
// written to disk and the fallback report is only attached to the delivery.
type Run struct {
	Source   Enumerator
	Lookup   enrich.Lookuper
	Reporter report.Deliverer
	Tree     *output.Tree
	Agg      *aggregate.Aggregate
	Limit    int
	Logger   *slog.Logger

	mu    sync.Mutex
	state State
	used  bool
}

// Summary is always produced, even when no profile survived.
type Summary struct {
	State        State
	Aggregate    aggregate.Snapshot
	Profiles     []model.Profile
	Delivery     report.Outcome
	FallbackPath string
}

func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Run) advance(next State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() || next <= r.state {
		return
	}
	r.state = next
}

func (r *Run) log() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r.Logger
}

type opened struct {
	value    model.Plaintext
	location string
}

// Execute performs the run. It may be called once.
func (r *Run) Execute(ctx context.Context) (Summary, error) {
	r.mu.Lock()
	if r.used {
		r.mu.Unlock()
		return Summary{}, ErrAlreadyRun
	}
	r.used = true
	r.mu.Unlock()

	if r.Agg == nil {
		r.Agg = aggregate.New()
	}
	r.Agg.Reset()
	log := r.log()

	sum, err := r.execute(ctx, log)
	if err != nil {
		r.advance(Failed)
		log.Error("run failed", "err", err)
	} else {
		r.advance(Done)
	}
	sum.State = r.State()
	sum.Aggregate = r.Agg.Snapshot()
	return sum, err
}

func (r *Run) execute(ctx context.Context, log *slog.Logger) (Summary, error) {
	var sum Summary

	r.advance(Collecting)
	insts := r.Source.Enumerate(ctx)
	var searched []string
	for _, inst := range insts {
		searched = append(searched, inst.Root)
		for _, err := range inst.Errs {
			log.Warn("location skipped", "kind", model.KindSourceUnavailable, "err", err)
		}
		r.Agg.Count(aggregate.Counters{SourceErrors: len(inst.Errs)})
		if len(inst.Records) == 0 {
			continue
		}
		r.Agg.Add(aggregate.Locations, inst.Root)
		for _, rec := range inst.Records {
			r.Agg.Add(aggregate.Records, rec.Location)
		}
	}
	if err := ctx.Err(); err != nil {
		return sum, err
	}

	r.advance(Decrypting)
	keyrings := make(map[string][]model.Key, len(insts))
	for _, inst := range insts {
		keyrings[inst.Root] = inst.Keys
	}
	usedKeys := make(map[string]bool)
	var plain []opened
	it := source.NewIter(insts)
	for {
		rec, err := it.Next()
		if errors.Is(err, source.ErrExhausted) {
			break
		}
		v, err := openRecord(keyrings[rec.Root], rec)
		if err != nil {
			log.Warn("record skipped", "location", rec.Location, "kind", model.KindTransformFailure, "reason", model.ReasonOf(err), "err", err)
			r.Agg.Count(aggregate.Counters{TransformErrors: 1})
			continue
		}
		if ref := rec.Root + "#" + rec.KeyID; !usedKeys[ref] {
			usedKeys[ref] = true
			r.Agg.Add(aggregate.Keys, ref)
		}
		r.Agg.Add(aggregate.Decrypted, rec.Location)
		plain = append(plain, opened{value: v, location: rec.Location})
	}

	r.advance(Deduplicating)
	set := dedup.New()
	firstSeen := make(map[model.Plaintext]string)
	for _, o := range plain {
		if set.Add(o.value) {
			firstSeen[o.value] = o.location
			r.Agg.Add(aggregate.Unique, cidutil.Fingerprint([]byte(o.value)))
		}
	}
	if err := ctx.Err(); err != nil {
		return sum, err
	}

	r.advance(Enriching)
	results := enrich.All(ctx, r.Lookup, set.Values(), r.Limit, func(res enrich.Result) {
		if !res.OK() {
			r.Agg.Count(aggregate.Counters{EnrichErrors: 1})
		}
	})
	var written int
	for _, res := range results {
		if !res.OK() {
			log.Warn("lookup dropped", "kind", model.KindEnrichmentFailure, "reason", model.ReasonOf(res.Err), "err", res.Err)
			continue
		}
		p := res.Profile
		p.Location = firstSeen[res.Value]
		if r.Tree != nil {
			if _, err := r.Tree.WriteProfile(p, res.Value); err != nil {
				log.Warn("write profile", "subject", p.Subject, "err", err)
			} else {
				written += 2
			}
		}
		r.Agg.Add(aggregate.Profiles, p.Fingerprint)
		sum.Profiles = append(sum.Profiles, p)
	}
	if err := ctx.Err(); err != nil {
		return sum, err
	}

	r.advance(Reporting)
	snap := r.Agg.Snapshot()
	rep := model.Report{Profiles: sum.Profiles}
	var extra []report.Embed
	switch {
	case len(sum.Profiles) > 0:
		rep.Note = fmt.Sprintf("%d profile(s) from %d record(s)", len(sum.Profiles), snap.Count(aggregate.Records))
		if r.Tree != nil && written > 0 {
			extra = append(extra, report.ArtifactEmbed(report.Artifact{Path: r.Tree.Root(), Files: written, Mode: "0600"}))
		}
	case snap.Count(aggregate.Records) > 0:
		fb := output.Summary{
			Locations:       searched,
			Records:         snap.Count(aggregate.Records),
			Decrypted:       snap.Count(aggregate.Decrypted),
			Unique:          snap.Count(aggregate.Unique),
			SourceErrors:    snap.Counters.SourceErrors,
			TransformErrors: snap.Counters.TransformErrors,
			EnrichErrors:    snap.Counters.EnrichErrors,
		}
		b := fb.Render()
		if r.Tree != nil {
			path, onDisk, err := r.Tree.WriteFallback(fb)
			if err != nil {
				log.Warn("write fallback report", "err", err)
			} else {
				sum.FallbackPath, b = path, onDisk
			}
		}
		rep.Note = "no profiles produced; see attached report"
		rep.Attachment = &model.Attachment{Name: output.FallbackFile, Bytes: b}
	}

	if r.Reporter == nil {
		log.Warn("delivery skipped", "kind", model.KindConfigurationError, "err", "no reporter")
		sum.Delivery.Skipped = true
		return sum, nil
	}
	out, err := report.DeliverAll(ctx, r.Reporter, rep, extra...)
	sum.Delivery = out
	r.Agg.Count(aggregate.Counters{Deliveries: out.Sent})
	if err != nil {
		return sum, fmt.Errorf("deliver report: %w", err)
	}
	return sum, nil
}

func openRecord(keyring []model.Key, rec model.Record) (model.Plaintext, error) {
	key, ok := keys.Lookup(keyring, rec.KeyID)
	if !ok {
		if _, err := seal.KeyID(rec.Sealed); err != nil {
			return "", err
		}
		return "", model.NewError(model.KindTransformFailure, model.ReasonInvalidKey,
			fmt.Sprintf("no key %q in %s", rec.KeyID, rec.Root))
	}
	return seal.Open(rec, key)
}
