// Package secdata implements the SEC EDGAR source adapter. It is the
// last fallback in the chain: authoritative for filed financial
// statements, useless for live prices.
package secdata

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"financeprovider/internal/httpx"
	"financeprovider/internal/source"
)

type Config struct {
	Name     string // default: secdata
	Priority int
	BaseURL  string // default: https://data.sec.gov
	// TickerURL serves the ticker-to-CIK index. Defaults to the SEC's
	// published company_tickers.json.
	TickerURL string
	// UserAgent is required by SEC fair-access policy; requests without
	// a contact identifier get blocked.
	UserAgent string
}

type Adapter struct {
	cfg    Config
	client *httpx.Client

	cikMu      sync.RWMutex
	cikBySym   map[string]string
	cikFetched time.Time
	cikTTL     time.Duration
	cikFlight  singleflight.Group
}

func New(cfg Config, hc *httpx.Client) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "secdata"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://data.sec.gov"
	}
	if cfg.TickerURL == "" {
		cfg.TickerURL = "https://www.sec.gov/files/company_tickers.json"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "finance-provider admin@finance-provider.local"
	}
	return &Adapter{cfg: cfg, client: hc, cikTTL: 24 * time.Hour}
}

func (a *Adapter) Identity() source.Identity {
	return source.Identity{Name: a.cfg.Name, Priority: a.cfg.Priority}
}

func (a *Adapter) Fetch(ctx context.Context, req source.Request, timeout time.Duration) (*source.Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch req.Kind {
	case source.KindStatement:
		return a.statement(ctx, req)
	case source.KindCompany:
		return a.company(ctx, req)
	default:
		return nil, &source.Error{Kind: source.ErrorNotFound, Source: a.cfg.Name,
			Message: fmt.Sprintf("%s data not offered by this source", req.Kind)}
	}
}

func (a *Adapter) headers() map[string]string {
	return map[string]string{"User-Agent": a.cfg.UserAgent}
}

// cik resolves a ticker to its zero-padded 10-digit CIK. The index file
// is large and changes rarely, so it is cached for a day and refreshed
// through singleflight so concurrent misses trigger one download.
func (a *Adapter) cik(ctx context.Context, symbol string) (string, error) {
	a.cikMu.RLock()
	fresh := time.Since(a.cikFetched) < a.cikTTL && a.cikBySym != nil
	if fresh {
		cik, ok := a.cikBySym[symbol]
		a.cikMu.RUnlock()
		if !ok {
			return "", source.NewNotFound(a.cfg.Name, symbol)
		}
		return cik, nil
	}
	a.cikMu.RUnlock()

	_, err, _ := a.cikFlight.Do("tickers", func() (any, error) {
		var index map[string]struct {
			CIK    int64  `json:"cik_str"`
			Ticker string `json:"ticker"`
			Title  string `json:"title"`
		}
		status, err := a.client.GetJSON(ctx, a.cfg.TickerURL, a.headers(), &index)
		if err != nil {
			return nil, source.NewTransient(a.cfg.Name, "ticker index download failed", err)
		}
		if status < 200 || status >= 300 {
			return nil, source.ClassifyStatus(a.cfg.Name, status)
		}
		byTicker := make(map[string]string, len(index))
		for _, entry := range index {
			byTicker[strings.ToUpper(entry.Ticker)] = fmt.Sprintf("%010d", entry.CIK)
		}
		a.cikMu.Lock()
		a.cikBySym = byTicker
		a.cikFetched = time.Now()
		a.cikMu.Unlock()
		return nil, nil
	})
	if err != nil {
		return "", err
	}

	a.cikMu.RLock()
	cik, ok := a.cikBySym[symbol]
	a.cikMu.RUnlock()
	if !ok {
		return "", source.NewNotFound(a.cfg.Name, symbol)
	}
	return cik, nil
}

// factsResponse is the subset of the companyfacts document we read.
type factsResponse struct {
	EntityName string `json:"entityName"`
	Facts      struct {
		GAAP map[string]struct {
			Units map[string][]factPoint `json:"units"`
		} `json:"us-gaap"`
	} `json:"facts"`
}

type factPoint struct {
	End  string  `json:"end"`
	Val  float64 `json:"val"`
	FY   int     `json:"fy"`
	FP   string  `json:"fp"`
	Form string  `json:"form"`
}

// gaapTags lists the XBRL concepts aggregated into statement rows,
// keyed by the row field the normalizer reads.
var gaapTags = []string{
	"Revenues",
	"NetIncomeLoss",
	"EarningsPerShareDiluted",
	"Assets",
	"Liabilities",
	"StockholdersEquity",
}

func (a *Adapter) facts(ctx context.Context, symbol string) (*factsResponse, error) {
	cik, err := a.cik(ctx, symbol)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", a.cfg.BaseURL, cik)

	var body factsResponse
	status, err := a.client.GetJSON(ctx, u, a.headers(), &body)
	if err != nil {
		return nil, source.NewTransient(a.cfg.Name, "companyfacts request failed", err)
	}
	if status < 200 || status >= 300 {
		return nil, source.ClassifyStatus(a.cfg.Name, status)
	}
	return &body, nil
}

func (a *Adapter) statement(ctx context.Context, req source.Request) (*source.Payload, error) {
	body, err := a.facts(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	wantForm := strings.ToUpper(req.Param("form", ""))

	// Group fact points by reporting period so each row carries every
	// concept filed for that (fy, fp, end, form).
	type periodKey struct {
		fy   int
		fp   string
		end  string
		form string
	}
	rows := make(map[periodKey]map[string]any)
	for _, tag := range gaapTags {
		concept, ok := body.Facts.GAAP[tag]
		if !ok {
			continue
		}
		for _, points := range concept.Units {
			for _, p := range points {
				if p.FY == 0 || p.End == "" {
					continue
				}
				if wantForm != "" && !strings.EqualFold(p.Form, wantForm) {
					continue
				}
				k := periodKey{fy: p.FY, fp: p.FP, end: p.End, form: p.Form}
				row, ok := rows[k]
				if !ok {
					row = map[string]any{"fy": p.FY, "fp": p.FP, "end": p.End, "form": p.Form}
					rows[k] = row
				}
				if _, dup := row[tag]; !dup {
					row[tag] = p.Val
				}
			}
		}
	}
	if len(rows) == 0 {
		return nil, source.NewNotFound(a.cfg.Name, req.Symbol)
	}

	ordered := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		ordered = append(ordered, row)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i]["end"].(string) > ordered[j]["end"].(string)
	})
	if len(ordered) > 8 {
		ordered = ordered[:8]
	}
	return &source.Payload{Kind: req.Kind, Rows: ordered}, nil
}

func (a *Adapter) company(ctx context.Context, req source.Request) (*source.Payload, error) {
	body, err := a.facts(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	if body.EntityName == "" {
		return nil, source.NewNotFound(a.cfg.Name, req.Symbol)
	}
	return &source.Payload{Kind: req.Kind, Fields: map[string]any{"entityName": body.EntityName}}, nil
}

// HealthProbe downloads the ticker index headers; a 2xx means EDGAR is
// answering.
func (a *Adapter) HealthProbe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	status, err := a.client.GetJSON(ctx, a.cfg.TickerURL, a.headers(), nil)
	return err == nil && status >= 200 && status < 300
}
