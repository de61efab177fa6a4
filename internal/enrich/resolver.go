package enrich

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"authindex/internal/authority"
	"authindex/internal/config"
	"authindex/internal/logging"
	"authindex/internal/marc"
	"authindex/internal/metrics"
)

// Store is the read side of the identity index.
type Store interface {
	ByHeadings(ctx context.Context, terms []string) ([]*authority.Entry, error)
	Entries(ctx context.Context, ids []string) ([]*authority.Entry, error)
	ExternalIDs(ctx context.Context, translatedIDs []string) ([]map[string]string, error)
}

// Fetcher retrieves upstream bibliographic pages.
type Fetcher interface {
	BaseURL() string
	FetchPage(ctx context.Context, rawURL string) (marc.Page, error)
}

// Result is a resolved batch: the untouched input records plus the plan of
// subfields to inject on output.
type Result struct {
	Records  []*marc.Record
	Plan     marc.Injections
	Terms    int
	Resolved int
	Partial  bool
}

// Injected returns the number of planned subfields.
func (r Result) Injected() int { return r.Plan.Count() }

// Option customizes a Resolver.
type Option func(*Resolver)

// WithRules replaces the default access point rules.
func WithRules(rules []Rule) Option {
	return func(r *Resolver) {
		if len(rules) > 0 {
			r.rules = newRuleSet(rules)
		}
	}
}

// Resolver looks up batch terms and plans identifier injections.
type Resolver struct {
	store      Store
	fetcher    Fetcher
	rules      ruleSet
	workers    int
	chunk      int
	publicBase string
	logger     *slog.Logger

	descriptorBase string
}

// New builds a resolver. fetcher may be nil when only ResolveBatch is used.
func New(cfg *config.Config, store Store, fetcher Fetcher, logger *slog.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Resolver{
		store:      store,
		fetcher:    fetcher,
		rules:      newRuleSet(DefaultRules),
		workers:    max(cfg.Enrich.Workers, 1),
		chunk:      max(cfg.Enrich.LookupChunk, 1),
		publicBase: cfg.Enrich.PublicBaseURL,
		logger:     logging.NewComponentLogger(logger, "enrich"),

		descriptorBase: DefaultDescriptorLinkBase,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Extract collects term occurrences for records in parallel. The merged map
// follows record order regardless of completion order.
func (r *Resolver) Extract(ctx context.Context, records []*marc.Record) (TermOccurrences, error) {
	slots := make([][]hit, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, rec := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = r.rules.extract(rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return TermOccurrences{}, err
	}
	return merge(slots), nil
}

// ResolveBatch plans identifier injections for records. Lookup failures
// degrade to a partial result; only cancellation is returned as an error.
func (r *Resolver) ResolveBatch(ctx context.Context, records []*marc.Record, mode Mode) (Result, error) {
	started := time.Now()
	if _, err := ParseMode(string(mode)); err != nil {
		return Result{}, err
	}
	result := Result{Records: records, Plan: make(marc.Injections)}

	occ, err := r.Extract(ctx, records)
	if err != nil {
		return Result{}, err
	}
	result.Terms = len(occ.Terms)

	entries, err := r.lookupHeadings(ctx, occ.Terms)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		result.Partial = true
		logging.WarnWithContext(r.logger, "identity lookup failed; records pass through unenriched", "enrich_lookup_failed",
			logging.Int("terms", len(occ.Terms)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the index store"),
			logging.String(logging.FieldImpact, "batch returned without identifiers"),
		)
		r.finish(mode, &result, started)
		return result, nil
	}

	var external map[string]map[string]string
	if mode == ModeAll {
		external, err = r.lookupExternal(ctx, entries)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			result.Partial = true
			logging.WarnWithContext(r.logger, "external id lookup failed; injecting internal ids only", "enrich_external_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the extid family of the index"),
				logging.String(logging.FieldImpact, "external identifiers missing from this batch"),
			)
		}
	}

	for i, term := range occ.Terms {
		e := entries[i]
		if e == nil {
			continue
		}
		result.Resolved++
		subs := identifiers(mode, e, external[e.TranslatedID()])
		for _, o := range occ.ByTerm[term] {
			result.Plan.Add(o.Record, o.Field, subs...)
		}
	}
	r.finish(mode, &result, started)
	return result, nil
}

func (r *Resolver) finish(mode Mode, result *Result, started time.Time) {
	elapsed := time.Since(started)
	metrics.RecordEnrichBatch(string(mode), len(result.Records), result.Injected(), result.Partial, elapsed.Seconds())
	r.logger.Debug("batch resolved",
		logging.String("mode", string(mode)),
		logging.Int("records", len(result.Records)),
		logging.Int("terms", result.Terms),
		logging.Int("resolved", result.Resolved),
		logging.Int("injected", result.Injected()),
		logging.Bool("partial", result.Partial),
		logging.Duration("duration", elapsed),
	)
}

// LookupEntries returns the stored entries for native ids, nil for a miss.
func (r *Resolver) LookupEntries(ctx context.Context, ids []string) ([]*authority.Entry, error) {
	out := make([]*authority.Entry, len(ids))
	err := r.chunked(ctx, len(ids), func(ctx context.Context, lo, hi int) error {
		got, err := r.store.Entries(ctx, ids[lo:hi])
		if err != nil {
			return err
		}
		copy(out[lo:hi], got)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) lookupHeadings(ctx context.Context, terms []string) ([]*authority.Entry, error) {
	out := make([]*authority.Entry, len(terms))
	err := r.chunked(ctx, len(terms), func(ctx context.Context, lo, hi int) error {
		got, err := r.store.ByHeadings(ctx, terms[lo:hi])
		if err != nil {
			return err
		}
		copy(out[lo:hi], got)
		return nil
	})
	return out, err
}

func (r *Resolver) lookupExternal(ctx context.Context, entries []*authority.Entry) (map[string]map[string]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, e := range entries {
		if e == nil {
			continue
		}
		id := e.TranslatedID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	found := make([]map[string]string, len(ids))
	err := r.chunked(ctx, len(ids), func(ctx context.Context, lo, hi int) error {
		got, err := r.store.ExternalIDs(ctx, ids[lo:hi])
		if err != nil {
			return err
		}
		copy(found[lo:hi], got)
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]string, len(ids))
	for i, id := range ids {
		if found[i] != nil {
			out[id] = found[i]
		}
	}
	return out, nil
}

// chunked runs fn over [0,n) in slices of r.chunk, at most r.workers at a time.
func (r *Resolver) chunked(ctx context.Context, n int, fn func(ctx context.Context, lo, hi int) error) error {
	if n == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for lo := 0; lo < n; lo += r.chunk {
		hi := min(lo+r.chunk, n)
		g.Go(func() error { return fn(gctx, lo, hi) })
	}
	return g.Wait()
}

// identifiers renders the $0 values injected for an entry.
func identifiers(mode Mode, e *authority.Entry, external map[string]string) []marc.Subfield {
	type pair struct{ kind, value string }
	var pairs []pair
	switch mode {
	case ModeNative:
		pairs = []pair{{"native_id", e.NativeID}}
	case ModeAlt:
		pairs = []pair{{"alt_id", e.AltID}}
	case ModeAll:
		pairs = []pair{
			{"native_id", e.NativeID},
			{"alt_id", e.AltID},
			{"viaf_uri", e.ViafURI},
			{"coords", e.Coords},
		}
		keys := make([]string, 0, len(external))
		for k := range external {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			pairs = append(pairs, pair{k, external[k]})
		}
	}
	subs := make([]marc.Subfield, 0, len(pairs))
	for _, p := range pairs {
		if p.value == "" {
			continue
		}
		subs = append(subs, marc.Subfield{Code: "0", Value: "(" + p.kind + ")" + p.value})
	}
	return subs
}
