package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"financeprovider/internal/api"
	"financeprovider/internal/cache"
	"financeprovider/internal/config"
	"financeprovider/internal/health"
	"financeprovider/internal/httpx"
	"financeprovider/internal/orchestrator"
	"financeprovider/internal/source"
	"financeprovider/internal/source/polygon"
	"financeprovider/internal/source/ratelimit"
	"financeprovider/internal/source/secdata"
	"financeprovider/internal/source/yahoo"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", os.Getenv("CONFIG_FILE"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)

	adapters, names := buildAdapters(cfg, log)
	if len(adapters) == 0 {
		log.Error("no sources enabled")
		os.Exit(1)
	}

	mon := health.NewMonitor(health.Config{
		DegradedThreshold:    cfg.Health.DegradedThreshold,
		UnavailableThreshold: cfg.Health.UnavailableThreshold,
		CoolDown:             cfg.Health.CoolDown,
		AuthCoolDown:         cfg.Health.AuthCoolDown,
	}, names...)

	store := cache.NewMemory(cfg.Cache.MaxItems)
	ttl := cache.TTLPolicy{
		source.KindQuote:     cfg.Cache.QuoteTTL,
		source.KindCompany:   cfg.Cache.CompanyTTL,
		source.KindHistory:   cfg.Cache.HistoryTTL,
		source.KindStatement: cfg.Cache.StatementTTL,
	}

	orch, err := orchestrator.New(orchestrator.Config{
		MaxRetries:     cfg.Fetch.MaxRetries,
		BackoffInitial: cfg.Fetch.BackoffInitial,
		BackoffMax:     cfg.Fetch.BackoffMax,
		AttemptTimeout: cfg.Fetch.AttemptTimeout,
		FetchTimeout:   cfg.Fetch.FetchTimeout,
	}, adapters, mon, store, ttl, log)
	if err != nil {
		log.Error("orchestrator init failed", "error", err)
		os.Exit(1)
	}

	handler := api.NewRouter(api.Config{
		RequestTimeout: cfg.Server.RequestTimeout,
		AdminEndpoints: cfg.Server.AdminEndpoints,
	}, orch, log)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server listening", "addr", cfg.Server.Addr, "sources", names)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown incomplete", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// buildAdapters constructs the enabled source adapters, each wrapped
// with its configured rate limit, and returns them with their names.
func buildAdapters(cfg *config.Config, log *slog.Logger) ([]source.Adapter, []string) {
	hc := httpx.New(20 * time.Second)

	var adapters []source.Adapter
	var names []string

	if sc, ok := cfg.Sources["yahoo"]; ok && sc.Enabled {
		a := yahoo.New(yahoo.Config{Priority: sc.Priority, BaseURL: sc.BaseURL}, hc)
		adapters = append(adapters, ratelimit.Wrap(a, sc.RPS, sc.Burst))
		names = append(names, a.Identity().Name)
	}
	if sc, ok := cfg.Sources["polygon"]; ok && sc.Enabled {
		if sc.APIKey == "" {
			log.Warn("polygon enabled without api key; its fetches will fail with an auth error")
		}
		a := polygon.New(polygon.Config{Priority: sc.Priority, APIKey: sc.APIKey, BaseURL: sc.BaseURL})
		adapters = append(adapters, ratelimit.Wrap(a, sc.RPS, sc.Burst))
		names = append(names, a.Identity().Name)
	}
	if sc, ok := cfg.Sources["secdata"]; ok && sc.Enabled {
		a := secdata.New(secdata.Config{Priority: sc.Priority, BaseURL: sc.BaseURL, UserAgent: sc.UserAgent}, hc)
		adapters = append(adapters, ratelimit.Wrap(a, sc.RPS, sc.Burst))
		names = append(names, a.Identity().Name)
	}
	return adapters, names
}
