// Package api exposes the fetch orchestrator over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"financeprovider/internal/health"
	"financeprovider/internal/normalize"
	"financeprovider/internal/source"
)

// Fetcher is the slice of the orchestrator the handlers need.
type Fetcher interface {
	Fetch(ctx context.Context, req source.Request) (*normalize.Result, error)
	HealthSnapshot() []health.Record
	Sources() []source.Identity
	ForceReset(name string)
	SimulateFailure(name string, count int)
}

type Config struct {
	RequestTimeout time.Duration
	// AdminEndpoints enables the reset and fail-injection routes.
	AdminEndpoints bool
}

type Handler struct {
	cfg     Config
	fetcher Fetcher
	log     *slog.Logger
}

func NewRouter(cfg Config, f Fetcher, log *slog.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{cfg: cfg, fetcher: f, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/healthz", h.healthz)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/quote/{symbol}", h.quote)
		r.Get("/quotes", h.quotes)
		r.Get("/company/{symbol}", h.company)
		r.Get("/history/{symbol}", h.history)
		r.Get("/statement/{symbol}", h.statement)
		r.Get("/sources", h.sources)
		if cfg.AdminEndpoints {
			r.Post("/sources/{name}/reset", h.resetSource)
			r.Post("/sources/{name}/fail", h.failSource)
		}
	})
	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeError maps the fetch error taxonomy onto HTTP statuses: a defect
// in the request is the caller's fault, a missing symbol is 404, an
// exhausted chain is an upstream problem, and an empty chain means the
// service cannot currently answer at all.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var ex *source.ExhaustedError
	if errors.As(err, &ex) {
		if len(ex.Attempts) == 0 {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no_eligible_sources", Detail: "all sources are unavailable"})
			return
		}
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "sources_exhausted", Detail: ex.Error()})
		return
	}
	switch source.KindOf(err) {
	case source.ErrorInvalidRequest:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Detail: err.Error()})
	case source.ErrorNotFound:
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Detail: err.Error()})
	default:
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "upstream_error", Detail: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) fetchOne(w http.ResponseWriter, r *http.Request, kind source.DataKind, params map[string]string) {
	req := source.NewRequest(kind, chi.URLParam(r, "symbol"), params)
	res, err := h.fetcher.Fetch(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	h.fetchOne(w, r, source.KindQuote, nil)
}

func (h *Handler) company(w http.ResponseWriter, r *http.Request) {
	h.fetchOne(w, r, source.KindCompany, nil)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	h.fetchOne(w, r, source.KindHistory, map[string]string{
		"range":    r.URL.Query().Get("range"),
		"interval": r.URL.Query().Get("interval"),
	})
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	h.fetchOne(w, r, source.KindStatement, map[string]string{
		"form": r.URL.Query().Get("form"),
	})
}

const maxBatchSymbols = 50

type batchEntry struct {
	Symbol string            `json:"symbol"`
	Result *normalize.Result `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// quotes serves a batch of symbols concurrently. Failures are reported
// per symbol; the batch itself succeeds as long as the request was
// well-formed.
func (h *Handler) quotes(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("symbols")
	symbols := splitCSV(raw)
	if len(symbols) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Detail: "missing symbols query param"})
		return
	}
	if len(symbols) > maxBatchSymbols {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Detail: "too many symbols (max 50)"})
		return
	}

	entries := make([]batchEntry, len(symbols))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(8)
	for i, sym := range symbols {
		g.Go(func() error {
			entries[i].Symbol = strings.ToUpper(sym)
			res, err := h.fetcher.Fetch(ctx, source.NewRequest(source.KindQuote, sym, nil))
			if err != nil {
				entries[i].Error = err.Error()
				return nil
			}
			entries[i].Result = res
			return nil
		})
	}
	_ = g.Wait()
	writeJSON(w, http.StatusOK, map[string]any{"quotes": entries})
}

func (h *Handler) sources(w http.ResponseWriter, r *http.Request) {
	type sourceView struct {
		Name     string `json:"name"`
		Priority int    `json:"priority"`
		health.Record
	}
	records := make(map[string]health.Record)
	for _, rec := range h.fetcher.HealthSnapshot() {
		records[rec.Source] = rec
	}
	out := make([]sourceView, 0)
	for _, id := range h.fetcher.Sources() {
		out = append(out, sourceView{Name: id.Name, Priority: id.Priority, Record: records[id.Name]})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": out})
}

func (h *Handler) knownSource(name string) bool {
	for _, id := range h.fetcher.Sources() {
		if id.Name == name {
			return true
		}
	}
	return false
}

func (h *Handler) resetSource(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !h.knownSource(name) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Detail: "unknown source " + name})
		return
	}
	h.fetcher.ForceReset(name)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "source": name})
}

func (h *Handler) failSource(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !h.knownSource(name) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Detail: "unknown source " + name})
		return
	}
	count := 1
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Detail: "count must be a positive integer"})
			return
		}
		count = n
	}
	h.fetcher.SimulateFailure(name, count)
	writeJSON(w, http.StatusOK, map[string]any{"status": "failing", "source": name, "count": count})
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
