// Package polygon implements the Polygon.io source adapter. It serves
// every data kind, which makes it the broadest fallback in the chain.
package polygon

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"financeprovider/internal/source"
)

type Config struct {
	Name     string // default: polygon
	Priority int
	APIKey   string
	BaseURL  string // default: https://api.polygon.io
}

type Adapter struct {
	cfg    Config
	client *resty.Client
}

func New(cfg Config) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "polygon"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.polygon.io"
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json").
		SetAuthToken(cfg.APIKey)
	return &Adapter{cfg: cfg, client: client}
}

func (a *Adapter) Identity() source.Identity {
	return source.Identity{Name: a.cfg.Name, Priority: a.cfg.Priority}
}

func (a *Adapter) Fetch(ctx context.Context, req source.Request, timeout time.Duration) (*source.Payload, error) {
	if a.cfg.APIKey == "" {
		return nil, source.NewUpstreamAuth(a.cfg.Name, 0)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch req.Kind {
	case source.KindQuote:
		return a.quote(ctx, req)
	case source.KindHistory:
		return a.history(ctx, req)
	case source.KindStatement:
		return a.statement(ctx, req)
	case source.KindCompany:
		return a.company(ctx, req)
	default:
		return nil, &source.Error{Kind: source.ErrorNotFound, Source: a.cfg.Name,
			Message: fmt.Sprintf("%s data not offered by this source", req.Kind)}
	}
}

func (a *Adapter) quote(ctx context.Context, req source.Request) (*source.Payload, error) {
	var body struct {
		Status string         `json:"status"`
		Ticker map[string]any `json:"ticker"`
	}
	resp, err := a.client.R().
		SetContext(ctx).
		SetResult(&body).
		Get("/v2/snapshot/locale/us/markets/stocks/tickers/" + req.Symbol)
	if err != nil {
		return nil, source.NewTransient(a.cfg.Name, "snapshot request failed", err)
	}
	if !resp.IsSuccess() {
		return nil, source.ClassifyStatus(a.cfg.Name, resp.StatusCode())
	}
	if len(body.Ticker) == 0 {
		return nil, source.NewNotFound(a.cfg.Name, req.Symbol)
	}
	return &source.Payload{Kind: req.Kind, Fields: body.Ticker}, nil
}

// rangeDays maps the request's range parameter onto a lookback window.
var rangeDays = map[string]int{
	"1d": 1, "5d": 5, "1mo": 30, "3mo": 90, "6mo": 180,
	"1y": 365, "2y": 730, "5y": 1825, "max": 3650,
}

// timespans maps canonical intervals onto Polygon aggregate timespans.
var timespans = map[string]string{
	"1h": "hour", "1d": "day", "1wk": "week", "1mo": "month",
}

func (a *Adapter) history(ctx context.Context, req source.Request) (*source.Payload, error) {
	days, ok := rangeDays[req.Param("range", "1y")]
	if !ok {
		return nil, source.NewInvalidRequest(a.cfg.Name, fmt.Sprintf("unsupported range %q", req.Param("range", "")))
	}
	timespan, ok := timespans[req.Param("interval", "1d")]
	if !ok {
		return nil, source.NewInvalidRequest(a.cfg.Name, fmt.Sprintf("unsupported interval %q", req.Param("interval", "")))
	}
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	var body struct {
		Status       string           `json:"status"`
		ResultsCount int              `json:"resultsCount"`
		Results      []map[string]any `json:"results"`
	}
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"adjusted": "true", "sort": "asc", "limit": "5000"}).
		SetResult(&body).
		Get(fmt.Sprintf("/v2/aggs/ticker/%s/range/1/%s/%s/%s",
			req.Symbol, timespan, from.Format("2006-01-02"), to.Format("2006-01-02")))
	if err != nil {
		return nil, source.NewTransient(a.cfg.Name, "aggregates request failed", err)
	}
	if !resp.IsSuccess() {
		return nil, source.ClassifyStatus(a.cfg.Name, resp.StatusCode())
	}
	if body.ResultsCount == 0 || len(body.Results) == 0 {
		return nil, source.NewNotFound(a.cfg.Name, req.Symbol)
	}
	return &source.Payload{Kind: req.Kind, Rows: body.Results}, nil
}

func (a *Adapter) statement(ctx context.Context, req source.Request) (*source.Payload, error) {
	var body struct {
		Status  string           `json:"status"`
		Results []map[string]any `json:"results"`
	}
	r := a.client.R().
		SetContext(ctx).
		SetQueryParam("ticker", req.Symbol).
		SetQueryParam("limit", "8").
		SetResult(&body)
	if tf := req.Param("timeframe", ""); tf != "" {
		r.SetQueryParam("timeframe", tf)
	}
	resp, err := r.Get("/vX/reference/financials")
	if err != nil {
		return nil, source.NewTransient(a.cfg.Name, "financials request failed", err)
	}
	if !resp.IsSuccess() {
		return nil, source.ClassifyStatus(a.cfg.Name, resp.StatusCode())
	}
	if len(body.Results) == 0 {
		return nil, source.NewNotFound(a.cfg.Name, req.Symbol)
	}
	return &source.Payload{Kind: req.Kind, Rows: body.Results}, nil
}

func (a *Adapter) company(ctx context.Context, req source.Request) (*source.Payload, error) {
	var body struct {
		Status  string         `json:"status"`
		Results map[string]any `json:"results"`
	}
	resp, err := a.client.R().
		SetContext(ctx).
		SetResult(&body).
		Get("/v3/reference/tickers/" + req.Symbol)
	if err != nil {
		return nil, source.NewTransient(a.cfg.Name, "ticker details request failed", err)
	}
	if !resp.IsSuccess() {
		return nil, source.ClassifyStatus(a.cfg.Name, resp.StatusCode())
	}
	if len(body.Results) == 0 {
		return nil, source.NewNotFound(a.cfg.Name, req.Symbol)
	}
	return &source.Payload{Kind: req.Kind, Fields: body.Results}, nil
}

// HealthProbe hits the market status endpoint, the cheapest
// authenticated call Polygon offers.
func (a *Adapter) HealthProbe(ctx context.Context) bool {
	if a.cfg.APIKey == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	resp, err := a.client.R().SetContext(ctx).Get("/v1/marketstatus/now")
	return err == nil && resp.IsSuccess()
}
