package normalize

import (
	"time"

	"financeprovider/internal/source"
)

// Result is the single canonical shape returned to callers regardless
// of which provider answered. Immutable once constructed; exactly one
// of the per-kind fields is populated.
type Result struct {
	Kind        source.DataKind `json:"kind"`
	Symbol      string          `json:"symbol"`
	Source      string          `json:"source"`
	IsFallback  bool            `json:"is_fallback"`
	FromCache   bool            `json:"from_cache"`
	RetrievedAt time.Time       `json:"retrieved_at"`

	Quote     *Quote     `json:"quote,omitempty"`
	Company   *Company   `json:"company,omitempty"`
	History   *History   `json:"history,omitempty"`
	Statement *Statement `json:"statement,omitempty"`
}

// CacheCopy returns a copy of r tagged as served from cache. The
// original stays untouched so cached values are never mutated.
func (r *Result) CacheCopy() *Result {
	cp := *r
	cp.FromCache = true
	return &cp
}

// Quote is the canonical fast snapshot. Optional numerics are pointers;
// nil is the explicit absent marker, never zero.
type Quote struct {
	LastPrice     *float64 `json:"last_price,omitempty"`
	PreviousClose *float64 `json:"previous_close,omitempty"`
	Open          *float64 `json:"open,omitempty"`
	DayHigh       *float64 `json:"day_high,omitempty"`
	DayLow        *float64 `json:"day_low,omitempty"`
	Volume        *int64   `json:"volume,omitempty"`
	MarketCap     *int64   `json:"market_cap,omitempty"`
	Change        *float64 `json:"change,omitempty"`
	ChangePercent *float64 `json:"change_percent,omitempty"`
	Currency      string   `json:"currency"`
}

// Company is the canonical profile.
type Company struct {
	Name      string `json:"name"`
	Sector    string `json:"sector,omitempty"`
	Industry  string `json:"industry,omitempty"`
	Country   string `json:"country,omitempty"`
	Website   string `json:"website,omitempty"`
	Summary   string `json:"summary,omitempty"`
	Employees *int64 `json:"employees,omitempty"`
}

// Bar is one canonical OHLCV sample, timestamped in UTC.
type Bar struct {
	Ts     time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// History is the canonical time series for one symbol.
type History struct {
	Interval string `json:"interval"`
	Currency string `json:"currency,omitempty"`
	Bars     []Bar  `json:"bars"`
}

// StatementPeriod is one reported fiscal period of the canonical
// financial statement.
type StatementPeriod struct {
	FiscalYear   int       `json:"fiscal_year"`
	FiscalPeriod string    `json:"fiscal_period,omitempty"`
	EndDate      time.Time `json:"end_date,omitzero"`
	Form         string    `json:"form,omitempty"`
	Revenue      *float64  `json:"revenue,omitempty"`
	NetIncome    *float64  `json:"net_income,omitempty"`
	EPS          *float64  `json:"eps,omitempty"`
	Assets       *float64  `json:"assets,omitempty"`
	Liabilities  *float64  `json:"liabilities,omitempty"`
	Equity       *float64  `json:"equity,omitempty"`
}

// Statement is the canonical financial statement view, newest first.
type Statement struct {
	Periods []StatementPeriod `json:"periods"`
}
