package source

import (
	"context"
	"time"
)

// DataKind selects which canonical schema a request resolves to.
type DataKind string

const (
	KindQuote     DataKind = "quote"
	KindCompany   DataKind = "company"
	KindHistory   DataKind = "history"
	KindStatement DataKind = "statement"
)

// Known reports whether k is one of the supported data kinds.
func (k DataKind) Known() bool {
	switch k {
	case KindQuote, KindCompany, KindHistory, KindStatement:
		return true
	}
	return false
}

// Identity names a source and fixes its place in the fallback order.
// Lower Priority wins; ranks must be unique across configured sources.
type Identity struct {
	Name     string
	Priority int
}

// Payload is the raw, provider-shaped result of one upstream call.
// Fields holds scalar values keyed by the provider's own field names;
// Rows holds repeated records (history bars, statement periods) in the
// provider's field naming. The normalizer owns the translation to the
// canonical schema.
type Payload struct {
	Kind   DataKind
	Fields map[string]any
	Rows   []map[string]any
}

// Adapter is implemented once per upstream provider. Fetch performs a
// single upstream call for one request and returns either a raw payload
// or a classified *Error. The timeout bounds this one attempt only,
// independent of the caller's own deadline.
type Adapter interface {
	Identity() Identity
	Fetch(ctx context.Context, req Request, timeout time.Duration) (*Payload, error)
	// HealthProbe is a cheap liveness check, usable for half-open
	// trials without spending a real data request.
	HealthProbe(ctx context.Context) bool
}
