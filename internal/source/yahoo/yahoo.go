// Package yahoo implements the highest-priority source adapter on the
// public Yahoo Finance chart and quoteSummary endpoints.
package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"financeprovider/internal/httpx"
	"financeprovider/internal/source"
)

type Config struct {
	Name     string // default: yahoo
	Priority int
	BaseURL  string // default: https://query1.finance.yahoo.com
}

type Adapter struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "yahoo"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://query1.finance.yahoo.com"
	}
	return &Adapter{cfg: cfg, client: hc}
}

func (a *Adapter) Identity() source.Identity {
	return source.Identity{Name: a.cfg.Name, Priority: a.cfg.Priority}
}

func (a *Adapter) Fetch(ctx context.Context, req source.Request, timeout time.Duration) (*source.Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch req.Kind {
	case source.KindQuote:
		return a.chart(ctx, req, "1d", "1d", false)
	case source.KindHistory:
		return a.chart(ctx, req, req.Param("range", "1y"), req.Param("interval", "1d"), true)
	case source.KindCompany:
		return a.company(ctx, req)
	default:
		return nil, &source.Error{Kind: source.ErrorNotFound, Source: a.cfg.Name,
			Message: fmt.Sprintf("%s data not offered by this source", req.Kind)}
	}
}

// chartResponse is the subset of the chart API we read. Meta stays a
// raw map; the normalizer owns field naming.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta       map[string]any `json:"meta"`
			Timestamp  []int64        `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (a *Adapter) chart(ctx context.Context, req source.Request, rng, interval string, withBars bool) (*source.Payload, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s",
		a.cfg.BaseURL, url.PathEscape(req.Symbol), url.QueryEscape(rng), url.QueryEscape(interval))

	var body chartResponse
	status, err := a.client.GetJSON(ctx, u, nil, &body)
	if err != nil {
		return nil, source.NewTransient(a.cfg.Name, "chart request failed", err)
	}
	if status < 200 || status >= 300 {
		return nil, source.ClassifyStatus(a.cfg.Name, status)
	}
	if e := body.Chart.Error; e != nil {
		if strings.EqualFold(e.Code, "Not Found") {
			return nil, source.NewNotFound(a.cfg.Name, req.Symbol)
		}
		if strings.Contains(strings.ToLower(e.Code), "argument") {
			return nil, source.NewInvalidRequest(a.cfg.Name, e.Description)
		}
		return nil, source.NewTransient(a.cfg.Name, fmt.Sprintf("chart error %s: %s", e.Code, e.Description), nil)
	}
	if len(body.Chart.Result) == 0 {
		return nil, source.NewNotFound(a.cfg.Name, req.Symbol)
	}
	result := body.Chart.Result[0]

	p := &source.Payload{Kind: req.Kind, Fields: result.Meta}
	if !withBars {
		return p, nil
	}
	if len(result.Indicators.Quote) == 0 {
		return nil, source.NewNotFound(a.cfg.Name, req.Symbol)
	}
	q := result.Indicators.Quote[0]
	p.Rows = make([]map[string]any, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		row := map[string]any{"timestamp": ts}
		if i < len(q.Open) && q.Open[i] != nil {
			row["open"] = *q.Open[i]
		}
		if i < len(q.High) && q.High[i] != nil {
			row["high"] = *q.High[i]
		}
		if i < len(q.Low) && q.Low[i] != nil {
			row["low"] = *q.Low[i]
		}
		if i < len(q.Close) && q.Close[i] != nil {
			row["close"] = *q.Close[i]
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			row["volume"] = *q.Volume[i]
		}
		p.Rows = append(p.Rows, row)
	}
	return p, nil
}

type summaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			AssetProfile map[string]any `json:"assetProfile"`
			Price        map[string]any `json:"price"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

func (a *Adapter) company(ctx context.Context, req source.Request) (*source.Payload, error) {
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=assetProfile,price",
		a.cfg.BaseURL, url.PathEscape(req.Symbol))

	var body summaryResponse
	status, err := a.client.GetJSON(ctx, u, nil, &body)
	if err != nil {
		return nil, source.NewTransient(a.cfg.Name, "quoteSummary request failed", err)
	}
	if status < 200 || status >= 300 {
		return nil, source.ClassifyStatus(a.cfg.Name, status)
	}
	if e := body.QuoteSummary.Error; e != nil {
		if strings.EqualFold(e.Code, "Not Found") {
			return nil, source.NewNotFound(a.cfg.Name, req.Symbol)
		}
		return nil, source.NewTransient(a.cfg.Name, fmt.Sprintf("quoteSummary error %s: %s", e.Code, e.Description), nil)
	}
	if len(body.QuoteSummary.Result) == 0 {
		return nil, source.NewNotFound(a.cfg.Name, req.Symbol)
	}
	result := body.QuoteSummary.Result[0]

	fields := make(map[string]any, len(result.AssetProfile)+1)
	for k, v := range result.AssetProfile {
		fields[k] = v
	}
	// The display name lives in the price module, not the profile.
	if name, ok := result.Price["longName"]; ok {
		fields["longName"] = name
	}
	return &source.Payload{Kind: req.Kind, Fields: fields}, nil
}

// HealthProbe checks the chart endpoint with a liquid symbol; a fast
// 2xx means the source is answering.
func (a *Adapter) HealthProbe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	status, err := a.client.GetJSON(ctx, a.cfg.BaseURL+"/v8/finance/chart/AAPL?range=1d&interval=1d", nil, nil)
	return err == nil && status >= 200 && status < 300
}
