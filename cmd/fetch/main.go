// Command fetch runs one request through the full fetch pipeline and
// prints the normalized result as JSON. Useful for smoke-testing source
// configuration without standing up the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

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
	var (
		kind     string
		symbol   string
		rng      string
		interval string
		form     string
		timeout  time.Duration
		cfgPath  string
	)
	flag.StringVar(&kind, "kind", "quote", "data kind: quote, company, history or statement")
	flag.StringVar(&symbol, "symbol", "", "ticker symbol (required)")
	flag.StringVar(&rng, "range", "", "history range, e.g. 1mo, 1y")
	flag.StringVar(&interval, "interval", "", "history interval, e.g. 1d, 1wk")
	flag.StringVar(&form, "form", "", "statement form filter, e.g. 10-K")
	flag.DurationVar(&timeout, "timeout", 60*time.Second, "overall timeout")
	flag.StringVar(&cfgPath, "config", os.Getenv("CONFIG_FILE"), "path to config file")
	flag.Parse()

	if symbol == "" {
		fmt.Fprintln(os.Stderr, "usage: fetch -symbol AAPL [-kind quote|company|history|statement]")
		os.Exit(2)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}

	orch, err := build(cfg, log)
	if err != nil {
		log.Error("setup failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req := source.NewRequest(source.DataKind(kind), symbol, map[string]string{
		"range": rng, "interval": interval, "form": form,
	})
	res, err := orch.Fetch(ctx, req)
	if err != nil {
		log.Error("fetch failed", "error", err)
		os.Exit(1)
	}

	b, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(b))
}

func build(cfg *config.Config, log *slog.Logger) (*orchestrator.Orchestrator, error) {
	hc := httpx.New(20 * time.Second)

	var adapters []source.Adapter
	var names []string
	if sc, ok := cfg.Sources["yahoo"]; ok && sc.Enabled {
		a := yahoo.New(yahoo.Config{Priority: sc.Priority, BaseURL: sc.BaseURL}, hc)
		adapters = append(adapters, ratelimit.Wrap(a, sc.RPS, sc.Burst))
		names = append(names, a.Identity().Name)
	}
	if sc, ok := cfg.Sources["polygon"]; ok && sc.Enabled {
		a := polygon.New(polygon.Config{Priority: sc.Priority, APIKey: sc.APIKey, BaseURL: sc.BaseURL})
		adapters = append(adapters, ratelimit.Wrap(a, sc.RPS, sc.Burst))
		names = append(names, a.Identity().Name)
	}
	if sc, ok := cfg.Sources["secdata"]; ok && sc.Enabled {
		a := secdata.New(secdata.Config{Priority: sc.Priority, BaseURL: sc.BaseURL, UserAgent: sc.UserAgent}, hc)
		adapters = append(adapters, ratelimit.Wrap(a, sc.RPS, sc.Burst))
		names = append(names, a.Identity().Name)
	}

	mon := health.NewMonitor(health.Config{
		DegradedThreshold:    cfg.Health.DegradedThreshold,
		UnavailableThreshold: cfg.Health.UnavailableThreshold,
		CoolDown:             cfg.Health.CoolDown,
		AuthCoolDown:         cfg.Health.AuthCoolDown,
	}, names...)

	ttl := cache.TTLPolicy{
		source.KindQuote:     cfg.Cache.QuoteTTL,
		source.KindCompany:   cfg.Cache.CompanyTTL,
		source.KindHistory:   cfg.Cache.HistoryTTL,
		source.KindStatement: cfg.Cache.StatementTTL,
	}

	return orchestrator.New(orchestrator.Config{
		MaxRetries:     cfg.Fetch.MaxRetries,
		BackoffInitial: cfg.Fetch.BackoffInitial,
		BackoffMax:     cfg.Fetch.BackoffMax,
		AttemptTimeout: cfg.Fetch.AttemptTimeout,
		FetchTimeout:   cfg.Fetch.FetchTimeout,
	}, adapters, mon, cache.NewMemory(cfg.Cache.MaxItems), ttl, log)
}
