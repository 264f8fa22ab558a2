// Package ratelimit gates upstream calls per source so fallback storms
// cannot blow through a provider's request quota.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"financeprovider/internal/source"
)

// Adapter wraps a source adapter and makes Fetch wait for a token
// before each upstream call. Health probes pass through unmetered;
// they are cheap and must stay responsive during recovery.
type Adapter struct {
	A source.Adapter
	L *rate.Limiter
}

// Wrap applies a requests-per-second limit to a. A non-positive rps
// returns a unchanged.
func Wrap(a source.Adapter, rps float64, burst int) source.Adapter {
	if rps <= 0 {
		return a
	}
	if burst <= 0 {
		burst = 1
	}
	return &Adapter{A: a, L: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *Adapter) Identity() source.Identity { return r.A.Identity() }

func (r *Adapter) Fetch(ctx context.Context, req source.Request, timeout time.Duration) (*source.Payload, error) {
	if err := r.L.Wait(ctx); err != nil {
		return nil, source.NewTransient(r.A.Identity().Name, "rate limiter wait interrupted", err)
	}
	return r.A.Fetch(ctx, req, timeout)
}

func (r *Adapter) HealthProbe(ctx context.Context) bool {
	return r.A.HealthProbe(ctx)
}
