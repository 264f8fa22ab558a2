package source

import (
	"crypto/md5"
	"fmt"
	"sort"
	"strings"
)

// Request describes one fetch: what kind of data, for which symbol,
// with normalized query parameters. It is immutable once built and is
// used verbatim to derive the cache key.
type Request struct {
	Kind   DataKind
	Symbol string
	Params map[string]string
}

// NewRequest normalizes symbol casing and drops empty parameters so
// that equivalent requests collapse onto the same cache key.
func NewRequest(kind DataKind, symbol string, params map[string]string) Request {
	r := Request{Kind: kind, Symbol: strings.ToUpper(strings.TrimSpace(symbol))}
	if len(params) > 0 {
		r.Params = make(map[string]string, len(params))
		for k, v := range params {
			v = strings.TrimSpace(v)
			if v != "" {
				r.Params[strings.ToLower(k)] = v
			}
		}
	}
	return r
}

// Validate reports a classified invalid-request error for requests the
// orchestrator must reject before touching any source.
func (r Request) Validate() error {
	if !r.Kind.Known() {
		return NewInvalidRequest("", fmt.Sprintf("unknown data kind %q", string(r.Kind)))
	}
	if r.Symbol == "" {
		return NewInvalidRequest("", "symbol cannot be empty")
	}
	if len(r.Symbol) > 12 {
		return NewInvalidRequest("", fmt.Sprintf("symbol %q too long", r.Symbol))
	}
	for _, c := range r.Symbol {
		switch {
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '-', c == '^':
		default:
			return NewInvalidRequest("", fmt.Sprintf("symbol %q contains invalid character %q", r.Symbol, c))
		}
	}
	return nil
}

// CacheKey joins kind, symbol and sorted params into a stable key.
// Long keys are hashed so backends with key-length limits stay usable.
func (r Request) CacheKey() string {
	parts := make([]string, 0, 2+len(r.Params))
	parts = append(parts, string(r.Kind), r.Symbol)
	if len(r.Params) > 0 {
		keys := make([]string, 0, len(r.Params))
		for k := range r.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, k+"="+r.Params[k])
		}
	}
	key := strings.Join(parts, "|")
	if len(key) > 200 {
		return fmt.Sprintf("%s|%s|hash:%x", r.Kind, r.Symbol, md5.Sum([]byte(key)))
	}
	return key
}

// Param returns the named parameter or def when absent.
func (r Request) Param(name, def string) string {
	if v, ok := r.Params[name]; ok {
		return v
	}
	return def
}
