package polygon_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"financeprovider/internal/source"
	"financeprovider/internal/source/polygon"
)

func newAdapter(t *testing.T, handler http.HandlerFunc) *polygon.Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return polygon.New(polygon.Config{Priority: 2, APIKey: "test-key", BaseURL: srv.URL})
}

func TestMissingAPIKeyIsAuthError(t *testing.T) {
	t.Parallel()

	a := polygon.New(polygon.Config{Priority: 2})
	_, err := a.Fetch(t.Context(), source.NewRequest(source.KindQuote, "AAPL", nil), time.Second)
	require.Error(t, err)
	require.Equal(t, source.ErrorUpstreamAuth, source.KindOf(err))
}

func TestQuoteSnapshot(t *testing.T) {
	t.Parallel()

	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/snapshot/locale/us/markets/stocks/tickers/MSFT", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "OK",
			"ticker": {
				"ticker": "MSFT",
				"lastTrade": {"p": 415.5},
				"prevDay": {"c": 410.0},
				"day": {"o": 411.0, "h": 416.2, "l": 409.8, "v": 22000000},
				"todaysChange": 5.5,
				"todaysChangePerc": 1.34
			}
		}`))
	})

	p, err := a.Fetch(t.Context(), source.NewRequest(source.KindQuote, "MSFT", nil), 5*time.Second)
	require.NoError(t, err)
	trade := p.Fields["lastTrade"].(map[string]any)
	require.Equal(t, 415.5, trade["p"])
}

func TestQuoteUnknownTicker(t *testing.T) {
	t.Parallel()

	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status":"NOT_FOUND","message":"Ticker not found."}`))
	})

	_, err := a.Fetch(t.Context(), source.NewRequest(source.KindQuote, "ZZZZ", nil), 5*time.Second)
	require.Error(t, err)
	require.Equal(t, source.ErrorNotFound, source.KindOf(err))
}

func TestRejectedKeyIsAuthError(t *testing.T) {
	t.Parallel()

	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"status":"ERROR"}`))
	})

	_, err := a.Fetch(t.Context(), source.NewRequest(source.KindQuote, "AAPL", nil), 5*time.Second)
	require.Error(t, err)
	require.Equal(t, source.ErrorUpstreamAuth, source.KindOf(err))
}

func TestHistoryAggregates(t *testing.T) {
	t.Parallel()

	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.URL.Path, "/v2/aggs/ticker/AAPL/range/1/day/"))
		require.Equal(t, "true", r.URL.Query().Get("adjusted"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "OK",
			"resultsCount": 2,
			"results": [
				{"t": 1767279600000, "o": 230.1, "h": 233.1, "l": 229.2, "c": 231.55, "v": 51234567},
				{"t": 1767366000000, "o": 231.6, "h": 232.0, "l": 230.4, "c": 231.9, "v": 48000000}
			]
		}`))
	})

	req := source.NewRequest(source.KindHistory, "AAPL", map[string]string{"range": "1mo", "interval": "1d"})
	p, err := a.Fetch(t.Context(), req, 5*time.Second)
	require.NoError(t, err)
	require.Len(t, p.Rows, 2)
	require.Equal(t, 231.55, p.Rows[0]["c"])
}

func TestHistoryEmptyResultsIsNotFound(t *testing.T) {
	t.Parallel()

	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"OK","resultsCount":0,"results":[]}`))
	})

	_, err := a.Fetch(t.Context(), source.NewRequest(source.KindHistory, "ZZZZ", nil), 5*time.Second)
	require.Error(t, err)
	require.Equal(t, source.ErrorNotFound, source.KindOf(err))
}

func TestHistoryUnsupportedRange(t *testing.T) {
	t.Parallel()

	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for an invalid range")
	})

	req := source.NewRequest(source.KindHistory, "AAPL", map[string]string{"range": "13mo"})
	_, err := a.Fetch(t.Context(), req, 5*time.Second)
	require.Error(t, err)
	require.Equal(t, source.ErrorInvalidRequest, source.KindOf(err))
}

func TestStatementFinancials(t *testing.T) {
	t.Parallel()

	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/vX/reference/financials", r.URL.Path)
		require.Equal(t, "AAPL", r.URL.Query().Get("ticker"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "OK",
			"results": [{
				"fiscal_year": 2025,
				"fiscal_period": "FY",
				"end_date": "2025-09-27",
				"timeframe": "annual",
				"financials": {
					"income_statement": {"revenues": {"value": 391035000000}}
				}
			}]
		}`))
	})

	p, err := a.Fetch(t.Context(), source.NewRequest(source.KindStatement, "AAPL", nil), 5*time.Second)
	require.NoError(t, err)
	require.Len(t, p.Rows, 1)
	require.Equal(t, "2025-09-27", p.Rows[0]["end_date"])
}

func TestCompanyTickerDetails(t *testing.T) {
	t.Parallel()

	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v3/reference/tickers/AAPL", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "OK",
			"results": {
				"name": "Apple Inc.",
				"sic_description": "Electronic Computers",
				"locale": "us",
				"homepage_url": "https://www.apple.com",
				"total_employees": 161000
			}
		}`))
	})

	p, err := a.Fetch(t.Context(), source.NewRequest(source.KindCompany, "AAPL", nil), 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, "Apple Inc.", p.Fields["name"])
}

func TestHealthProbe(t *testing.T) {
	t.Parallel()

	up := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/marketstatus/now", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"market":"open"}`))
	})
	require.True(t, up.HealthProbe(t.Context()))

	down := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	require.False(t, down.HealthProbe(t.Context()))
}
