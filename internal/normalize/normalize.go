// Package normalize reconciles heterogeneous provider payloads into
// one canonical schema per data kind. Field renaming is table-driven
// per source; unit differences (epoch seconds vs milliseconds vs ISO
// dates) are declared per source rather than guessed; optional fields
// that a provider does not supply stay nil instead of failing the
// whole result.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"financeprovider/internal/source"
)

// Per-source field mapping tables: canonical name -> source field path.
// A canonical field missing from a source's table is simply absent in
// that source's results.
var quoteFields = map[string]map[string]string{
	"yahoo": {
		"last_price":     "regularMarketPrice",
		"previous_close": "chartPreviousClose",
		"day_high":       "regularMarketDayHigh",
		"day_low":        "regularMarketDayLow",
		"volume":         "regularMarketVolume",
		"currency":       "currency",
	},
	"polygon": {
		"last_price":     "lastTrade.p",
		"previous_close": "prevDay.c",
		"open":           "day.o",
		"day_high":       "day.h",
		"day_low":        "day.l",
		"volume":         "day.v",
		"change":         "todaysChange",
		"change_percent": "todaysChangePerc",
	},
}

var companyFields = map[string]map[string]string{
	"yahoo": {
		"name":      "longName",
		"sector":    "sector",
		"industry":  "industry",
		"country":   "country",
		"website":   "website",
		"summary":   "longBusinessSummary",
		"employees": "fullTimeEmployees",
	},
	"polygon": {
		"name":      "name",
		"industry":  "sic_description",
		"country":   "locale",
		"website":   "homepage_url",
		"summary":   "description",
		"employees": "total_employees",
	},
	"secdata": {
		"name": "entityName",
	},
}

var barFields = map[string]map[string]string{
	"yahoo":   {"ts": "timestamp", "open": "open", "high": "high", "low": "low", "close": "close", "volume": "volume"},
	"polygon": {"ts": "t", "open": "o", "high": "h", "low": "l", "close": "c", "volume": "v"},
}

var statementFields = map[string]map[string]string{
	"secdata": {
		"fiscal_year":   "fy",
		"fiscal_period": "fp",
		"end_date":      "end",
		"form":          "form",
		"revenue":       "Revenues",
		"net_income":    "NetIncomeLoss",
		"eps":           "EarningsPerShareDiluted",
		"assets":        "Assets",
		"liabilities":   "Liabilities",
		"equity":        "StockholdersEquity",
	},
	"polygon": {
		"fiscal_year":   "fiscal_year",
		"fiscal_period": "fiscal_period",
		"end_date":      "end_date",
		"form":          "timeframe",
		"revenue":       "financials.income_statement.revenues.value",
		"net_income":    "financials.income_statement.net_income_loss.value",
		"eps":           "financials.income_statement.diluted_earnings_per_share.value",
		"assets":        "financials.balance_sheet.assets.value",
		"liabilities":   "financials.balance_sheet.liabilities.value",
		"equity":        "financials.balance_sheet.equity.value",
	},
}

// tsUnit declares how each source encodes timestamps. Yahoo reports
// epoch seconds, Polygon epoch milliseconds, SEC ISO calendar dates.
var tsUnit = map[string]string{
	"yahoo":   "s",
	"polygon": "ms",
	"secdata": "date",
}

var sectorAliases = map[string]string{
	"tech":           "Technology",
	"technology":     "Technology",
	"healthcare":     "Healthcare",
	"health care":    "Healthcare",
	"financial":      "Financial Services",
	"finance":        "Financial Services",
	"energy":         "Energy",
	"consumer":       "Consumer Cyclical",
	"utilities":      "Utilities",
	"real estate":    "Real Estate",
	"industrials":    "Industrials",
	"materials":      "Basic Materials",
	"communication":  "Communication Services",
}

var countryAliases = map[string]string{
	"us":             "United States",
	"usa":            "United States",
	"united states":  "United States",
	"cn":             "China",
	"china":          "China",
	"jp":             "Japan",
	"japan":          "Japan",
	"uk":             "United Kingdom",
	"gb":             "United Kingdom",
	"united kingdom": "United Kingdom",
}

type Normalizer struct{}

func New() *Normalizer { return &Normalizer{} }

// Normalize maps a provider-shaped payload into the canonical result
// for the request's data kind. It never fails on partially populated
// payloads; it fails only when a required canonical field is
// structurally absent, and that failure is classified as
// invalid-request (not retryable, no health impact).
func (n *Normalizer) Normalize(req source.Request, src string, p *source.Payload) (*Result, error) {
	res := &Result{
		Kind:        req.Kind,
		Symbol:      req.Symbol,
		Source:      src,
		RetrievedAt: time.Now().UTC(),
	}
	var err error
	switch req.Kind {
	case source.KindQuote:
		res.Quote, err = n.quote(src, p)
	case source.KindCompany:
		res.Company, err = n.company(src, p)
	case source.KindHistory:
		res.History, err = n.history(req, src, p)
	case source.KindStatement:
		res.Statement, err = n.statement(src, p)
	default:
		err = malformed(src, fmt.Sprintf("no canonical schema for kind %q", req.Kind))
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (n *Normalizer) quote(src string, p *source.Payload) (*Quote, error) {
	fm, ok := quoteFields[src]
	if !ok {
		return nil, malformed(src, "no quote field mapping for source")
	}
	get := func(canonical string) *float64 {
		path, ok := fm[canonical]
		if !ok {
			return nil
		}
		return getFloat(p.Fields, path)
	}

	q := &Quote{
		LastPrice:     roundPtr(get("last_price"), 4),
		PreviousClose: roundPtr(get("previous_close"), 4),
		Open:          roundPtr(get("open"), 4),
		DayHigh:       roundPtr(get("day_high"), 4),
		DayLow:        roundPtr(get("day_low"), 4),
		Change:        roundPtr(get("change"), 4),
		ChangePercent: roundPtr(get("change_percent"), 2),
		Currency:      "USD",
	}
	if path, ok := fm["volume"]; ok {
		q.Volume = getInt(p.Fields, path)
	}
	if path, ok := fm["market_cap"]; ok {
		q.MarketCap = getInt(p.Fields, path)
	}
	if path, ok := fm["currency"]; ok {
		if c := getString(p.Fields, path); c != "" {
			q.Currency = strings.ToUpper(c)
		}
	}

	if q.LastPrice == nil {
		return nil, malformed(src, "quote payload missing last price")
	}

	// Recompute change fields from the prices we actually serve so
	// the result is internally consistent across sources.
	if q.PreviousClose != nil && *q.PreviousClose != 0 {
		change := round(*q.LastPrice-*q.PreviousClose, 4)
		pct := round(change / *q.PreviousClose*100, 2)
		q.Change = &change
		q.ChangePercent = &pct
	}
	return q, nil
}

func (n *Normalizer) company(src string, p *source.Payload) (*Company, error) {
	fm, ok := companyFields[src]
	if !ok {
		return nil, malformed(src, "no company field mapping for source")
	}
	get := func(canonical string) string {
		path, ok := fm[canonical]
		if !ok {
			return ""
		}
		return getString(p.Fields, path)
	}

	c := &Company{
		Name:     cleanString(get("name")),
		Sector:   canonicalAlias(get("sector"), sectorAliases),
		Industry: cleanString(get("industry")),
		Country:  canonicalAlias(get("country"), countryAliases),
		Website:  normalizeWebsite(get("website")),
		Summary:  cleanString(get("summary")),
	}
	if path, ok := fm["employees"]; ok {
		c.Employees = getInt(p.Fields, path)
	}
	if c.Name == "" {
		return nil, malformed(src, "company payload missing name")
	}
	return c, nil
}

func (n *Normalizer) history(req source.Request, src string, p *source.Payload) (*History, error) {
	fm, ok := barFields[src]
	if !ok {
		return nil, malformed(src, "no history field mapping for source")
	}
	unit := tsUnit[src]

	h := &History{Interval: req.Param("interval", "1d")}
	if c := getString(p.Fields, "currency"); c != "" {
		h.Currency = strings.ToUpper(c)
	}
	h.Bars = make([]Bar, 0, len(p.Rows))
	for _, row := range p.Rows {
		c := getFloat(row, fm["close"])
		if c == nil {
			// Providers emit null rows for halted sessions; skip.
			continue
		}
		bar := Bar{Ts: getTime(row, fm["ts"], unit), Close: *c}
		if v := getFloat(row, fm["open"]); v != nil {
			bar.Open = *v
		}
		if v := getFloat(row, fm["high"]); v != nil {
			bar.High = *v
		}
		if v := getFloat(row, fm["low"]); v != nil {
			bar.Low = *v
		}
		if v := getInt(row, fm["volume"]); v != nil {
			bar.Volume = *v
		}
		h.Bars = append(h.Bars, bar)
	}
	if len(h.Bars) == 0 {
		return nil, malformed(src, "history payload has no usable bars")
	}
	return h, nil
}

func (n *Normalizer) statement(src string, p *source.Payload) (*Statement, error) {
	fm, ok := statementFields[src]
	if !ok {
		return nil, malformed(src, "no statement field mapping for source")
	}

	st := &Statement{Periods: make([]StatementPeriod, 0, len(p.Rows))}
	for _, row := range p.Rows {
		sp := StatementPeriod{
			FiscalPeriod: getString(row, fm["fiscal_period"]),
			// Filing period ends are calendar dates at every source,
			// unlike bar timestamps.
			EndDate: getTime(row, fm["end_date"], "date"),
			Form:         getString(row, fm["form"]),
			Revenue:      getFloat(row, fm["revenue"]),
			NetIncome:    getFloat(row, fm["net_income"]),
			EPS:          getFloat(row, fm["eps"]),
			Assets:       getFloat(row, fm["assets"]),
			Liabilities:  getFloat(row, fm["liabilities"]),
			Equity:       getFloat(row, fm["equity"]),
		}
		if fy := getInt(row, fm["fiscal_year"]); fy != nil {
			sp.FiscalYear = int(*fy)
		}
		if sp.Revenue == nil && sp.NetIncome == nil && sp.Assets == nil {
			continue
		}
		st.Periods = append(st.Periods, sp)
	}
	if len(st.Periods) == 0 {
		return nil, malformed(src, "statement payload has no usable periods")
	}
	return st, nil
}

func malformed(src, msg string) error {
	return &source.Error{Kind: source.ErrorInvalidRequest, Source: src, Message: "malformed payload: " + msg}
}

func cleanString(s string) string {
	s = strings.TrimSpace(s)
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return s
}

// canonicalAlias folds known spellings onto one canonical name and
// passes unknown values through cleaned.
func canonicalAlias(s string, aliases map[string]string) string {
	s = cleanString(s)
	if s == "" {
		return ""
	}
	if canonical, ok := aliases[strings.ToLower(s)]; ok {
		return canonical
	}
	return s
}

func normalizeWebsite(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "https://" + s
	}
	return s
}
