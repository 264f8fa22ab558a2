package source

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the failure taxonomy every adapter must classify into.
// The orchestrator's retry, fallback and health decisions key off it.
type ErrorKind string

const (
	// ErrorTransient covers timeouts, network failures, 5xx and
	// rate limiting. Retried on the same source, counts toward the
	// source's failure threshold.
	ErrorTransient ErrorKind = "transient"
	// ErrorNotFound means this source has no data for the symbol.
	// Not the source's fault; another source may still have it.
	ErrorNotFound ErrorKind = "not_found"
	// ErrorInvalidRequest means the request itself is defective.
	// Never retried, never falls back, never touches health state.
	ErrorInvalidRequest ErrorKind = "invalid_request"
	// ErrorUpstreamAuth covers bad credentials and exhausted quota.
	// Falls back immediately and parks the source for a long cool-down.
	ErrorUpstreamAuth ErrorKind = "upstream_auth"
)

// Error is a classified failure from one source attempt.
type Error struct {
	Kind       ErrorKind
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Source != "" {
		b.WriteString(e.Source)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the same source is worth another attempt.
func (e *Error) Retryable() bool { return e.Kind == ErrorTransient }

func NewTransient(source, message string, cause error) *Error {
	return &Error{Kind: ErrorTransient, Source: source, Message: message, Cause: cause}
}

func NewNotFound(source, symbol string) *Error {
	return &Error{Kind: ErrorNotFound, Source: source, Message: fmt.Sprintf("no data for symbol %q", symbol)}
}

func NewInvalidRequest(source, message string) *Error {
	return &Error{Kind: ErrorInvalidRequest, Source: source, Message: message}
}

func NewUpstreamAuth(source string, statusCode int) *Error {
	return &Error{Kind: ErrorUpstreamAuth, Source: source, StatusCode: statusCode, Message: "credentials rejected or quota exhausted"}
}

// ClassifyStatus maps an upstream HTTP status to the taxonomy.
func ClassifyStatus(source string, statusCode int) *Error {
	switch {
	case statusCode == 404:
		return &Error{Kind: ErrorNotFound, Source: source, StatusCode: statusCode, Message: "resource not found"}
	case statusCode == 401 || statusCode == 402 || statusCode == 403:
		return NewUpstreamAuth(source, statusCode)
	case statusCode == 408 || statusCode == 429 || statusCode >= 500:
		return &Error{Kind: ErrorTransient, Source: source, StatusCode: statusCode, Message: "upstream unavailable"}
	case statusCode >= 400:
		return &Error{Kind: ErrorInvalidRequest, Source: source, StatusCode: statusCode, Message: "upstream rejected request"}
	default:
		return &Error{Kind: ErrorTransient, Source: source, StatusCode: statusCode, Message: "unexpected status"}
	}
}

// KindOf extracts the classification from any error. Unclassified
// errors (raw network failures, context deadlines) count as transient:
// the conservative choice, since they are retryable and should weigh
// on the source's health.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ErrorTransient
}

// Attempt records one source's final failure inside an exhausted fetch.
type Attempt struct {
	Source string
	Err    error
}

// ExhaustedError is returned when every eligible candidate failed for
// non-InvalidRequest reasons. Attempts preserves priority order.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return "no eligible sources"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Source, a.Err))
	}
	return "all sources exhausted: " + strings.Join(parts, "; ")
}

// AllNotFound reports whether every attempt failed with NotFound, in
// which case the caller should see a single NotFound instead.
func (e *ExhaustedError) AllNotFound() bool {
	if len(e.Attempts) == 0 {
		return false
	}
	for _, a := range e.Attempts {
		if KindOf(a.Err) != ErrorNotFound {
			return false
		}
	}
	return true
}
