// Package orchestrator walks the ordered list of eligible sources for
// each fetch: cache first, then one shared upstream execution per key,
// retrying transient failures with exponential backoff and falling
// back source by source until one answers or all are exhausted.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"financeprovider/internal/cache"
	"financeprovider/internal/health"
	"financeprovider/internal/normalize"
	"financeprovider/internal/source"
)

//go:generate mockgen -package=orchestrator_test -destination=mock_adapter_test.go financeprovider/internal/source Adapter

// Config bounds retries and timeouts. Zero values fall back to
// defaults suitable for interactive quote serving.
type Config struct {
	// MaxRetries is how many extra attempts the same source gets
	// after a transient failure, before falling back.
	MaxRetries int
	// BackoffInitial and BackoffMax bound the exponential delay
	// between same-source retries.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// AttemptTimeout bounds a single upstream call, independent of
	// the caller's own deadline.
	AttemptTimeout time.Duration
	// FetchTimeout bounds one whole shared execution across all
	// candidates and retries.
	FetchTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = 500 * time.Millisecond
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 5 * time.Second
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 10 * time.Second
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 45 * time.Second
	}
	return c
}

// Orchestrator is the sole entry point for fetches. All collaborators
// are injected at construction and owned by the process lifecycle.
type Orchestrator struct {
	cfg     Config
	sources []source.Adapter // sorted by priority, rank 0 first
	mon     *health.Monitor
	store   cache.Store
	ttl     cache.TTLPolicy
	flight  *cache.Flight
	norm    *normalize.Normalizer
	log     *slog.Logger

	failMu sync.Mutex
	forced map[string]int // remaining simulated failures per source
}

func New(cfg Config, adapters []source.Adapter, mon *health.Monitor, store cache.Store, ttl cache.TTLPolicy, log *slog.Logger) (*Orchestrator, error) {
	if len(adapters) == 0 {
		return nil, fmt.Errorf("orchestrator: no sources configured")
	}
	if log == nil {
		log = slog.Default()
	}
	sorted := make([]source.Adapter, len(adapters))
	copy(sorted, adapters)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Identity().Priority < sorted[j].Identity().Priority
	})
	seen := make(map[int]string, len(sorted))
	for _, a := range sorted {
		id := a.Identity()
		if other, dup := seen[id.Priority]; dup {
			return nil, fmt.Errorf("orchestrator: sources %q and %q share priority %d", other, id.Name, id.Priority)
		}
		seen[id.Priority] = id.Name
	}
	return &Orchestrator{
		cfg:     cfg.withDefaults(),
		sources: sorted,
		mon:     mon,
		store:   store,
		ttl:     ttl,
		flight:  cache.NewFlight(),
		norm:    normalize.New(),
		log:     log,
		forced:  make(map[string]int),
	}, nil
}

// Fetch resolves one request: fresh cache entry, else attach to the
// in-flight execution for the key, else run a new attempt sequence and
// write the winner through to the cache.
func (o *Orchestrator) Fetch(ctx context.Context, req source.Request) (*normalize.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key := req.CacheKey()
	if res, ok := o.store.Get(key); ok {
		return res.CacheCopy(), nil
	}

	res, shared, err := o.flight.Do(key, func() (*normalize.Result, error) {
		// The execution is shared by every coalesced caller, so it
		// must not die with whichever caller happened to start it.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.FetchTimeout)
		defer cancel()
		return o.fetchUpstream(fctx, req, key)
	})
	if shared && err == nil {
		o.log.Debug("coalesced into in-flight fetch", "key", key)
	}
	return res, err
}

// candidate pairs an adapter with whether this attempt is the one
// half-open trial permitted for an Unavailable source.
type candidate struct {
	adapter source.Adapter
	trial   bool
}

func (o *Orchestrator) fetchUpstream(ctx context.Context, req source.Request, key string) (*normalize.Result, error) {
	cands := o.candidates()
	if len(cands) == 0 {
		o.log.Warn("no eligible sources", "kind", req.Kind, "symbol", req.Symbol)
		return nil, &source.ExhaustedError{}
	}

	// Trials claimed above but never reached (an earlier source
	// answered, or the fetch aborted) must release their slot.
	attempted := 0
	defer func() {
		for _, c := range cands[attempted:] {
			if c.trial {
				o.mon.AbortTrial(c.adapter.Identity().Name)
			}
		}
	}()

	topName := o.sources[0].Identity().Name
	var attempts []source.Attempt

	for _, cand := range cands {
		attempted++
		name := cand.adapter.Identity().Name

		payload, err := o.attempt(ctx, cand, req)
		if err == nil {
			o.mon.RecordSuccess(name)
			res, nerr := o.norm.Normalize(req, name, payload)
			if nerr != nil {
				// Malformed provider response; classified like a bad
				// request, so it aborts rather than retries.
				o.log.Error("normalization failed", "source", name, "kind", req.Kind, "error", nerr)
				return nil, nerr
			}
			res.IsFallback = name != topName
			if res.IsFallback {
				o.log.Info("served by fallback source", "source", name, "kind", req.Kind, "symbol", req.Symbol)
			}
			o.store.Set(key, res, o.ttl.For(req.Kind))
			return res, nil
		}

		kind := source.KindOf(err)
		switch kind {
		case source.ErrorInvalidRequest:
			// Defect is in the request; no fallback can fix it.
			if cand.trial {
				o.mon.AbortTrial(name)
			}
			return nil, err
		case source.ErrorNotFound:
			// Says nothing about the source's health; the symbol may
			// exist at another provider.
			if cand.trial {
				o.mon.AbortTrial(name)
			}
			attempts = append(attempts, source.Attempt{Source: name, Err: err})
		default:
			o.mon.RecordFailure(name, kind)
			o.log.Warn("source failed, falling back", "source", name, "kind", req.Kind, "symbol", req.Symbol, "error", err)
			attempts = append(attempts, source.Attempt{Source: name, Err: err})
		}
	}

	ex := &source.ExhaustedError{Attempts: attempts}
	if ex.AllNotFound() {
		return nil, source.NewNotFound("", req.Symbol)
	}
	return nil, ex
}

// candidates builds the ordered attempt list: sources in priority
// order, keeping Healthy and Degraded ones, plus at most one half-open
// trial per Unavailable source whose cool-down has elapsed. Degraded
// state does not alter priority order; it is informational only.
func (o *Orchestrator) candidates() []candidate {
	cands := make([]candidate, 0, len(o.sources))
	for _, a := range o.sources {
		name := a.Identity().Name
		if o.mon.Eligible(name, false) {
			cands = append(cands, candidate{adapter: a})
			continue
		}
		if o.mon.BeginTrial(name) {
			cands = append(cands, candidate{adapter: a, trial: true})
		}
	}
	return cands
}

// attempt runs one source's attempts: transient failures are
// retried with capped exponential backoff, anything else returns
// immediately. A half-open trial gets a health probe plus a single
// attempt, never retries.
func (o *Orchestrator) attempt(ctx context.Context, cand candidate, req source.Request) (*source.Payload, error) {
	name := cand.adapter.Identity().Name

	maxTries := 1 + o.cfg.MaxRetries
	if cand.trial {
		if !cand.adapter.HealthProbe(ctx) {
			return nil, source.NewTransient(name, "health probe failed during half-open trial", nil)
		}
		maxTries = 1
	}

	op := func() (*source.Payload, error) {
		if o.consumeForcedFailure(name) {
			return nil, source.NewTransient(name, "simulated failure", nil)
		}
		payload, err := cand.adapter.Fetch(ctx, req, o.cfg.AttemptTimeout)
		if err != nil {
			if se, ok := err.(*source.Error); ok && !se.Retryable() {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return payload, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.cfg.BackoffInitial
	b.MaxInterval = o.cfg.BackoffMax

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(maxTries)),
	)
}

// HealthSnapshot exposes the monitor's records for status endpoints.
func (o *Orchestrator) HealthSnapshot() []health.Record {
	return o.mon.Snapshot()
}

// ForceReset administratively restores a source to Healthy and clears
// any simulated failures still pending against it.
func (o *Orchestrator) ForceReset(name string) {
	o.failMu.Lock()
	delete(o.forced, name)
	o.failMu.Unlock()
	o.mon.ForceReset(name)
	o.log.Info("source force-reset", "source", name)
}

// SimulateFailure forces the next count attempts against a source to
// report a transient failure. Test hook for exercising fallback
// without a real upstream outage.
func (o *Orchestrator) SimulateFailure(name string, count int) {
	o.failMu.Lock()
	o.forced[name] = count
	o.failMu.Unlock()
	o.log.Info("simulating failures", "source", name, "count", count)
}

func (o *Orchestrator) consumeForcedFailure(name string) bool {
	o.failMu.Lock()
	defer o.failMu.Unlock()
	if o.forced[name] > 0 {
		o.forced[name]--
		return true
	}
	return false
}

// Sources lists configured source identities in priority order.
func (o *Orchestrator) Sources() []source.Identity {
	out := make([]source.Identity, 0, len(o.sources))
	for _, a := range o.sources {
		out = append(out, a.Identity())
	}
	return out
}
