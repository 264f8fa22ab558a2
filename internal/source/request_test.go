package source_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"financeprovider/internal/source"
)

func TestNewRequestNormalizes(t *testing.T) {
	t.Parallel()

	req := source.NewRequest(source.KindHistory, "  aapl ", map[string]string{
		"Range":    "1mo",
		"interval": "",
		"FORM":     " 10-K ",
	})

	require.Equal(t, "AAPL", req.Symbol)
	require.Equal(t, "1mo", req.Param("range", ""))
	require.Equal(t, "10-K", req.Param("form", ""))
	// Empty params are dropped entirely so they never affect the key.
	require.Equal(t, "", req.Param("interval", ""))
}

func TestRequestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		req     source.Request
		wantErr bool
	}{
		{name: "ok", req: source.NewRequest(source.KindQuote, "AAPL", nil)},
		{name: "ok with punctuation", req: source.NewRequest(source.KindQuote, "BRK.B", nil)},
		{name: "ok index", req: source.NewRequest(source.KindQuote, "^GSPC", nil)},
		{name: "unknown kind", req: source.NewRequest("prices", "AAPL", nil), wantErr: true},
		{name: "empty symbol", req: source.NewRequest(source.KindQuote, "  ", nil), wantErr: true},
		{name: "too long", req: source.NewRequest(source.KindQuote, strings.Repeat("A", 13), nil), wantErr: true},
		{name: "bad character", req: source.NewRequest(source.KindQuote, "AA PL", nil), wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.req.Validate()
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Equal(t, source.ErrorInvalidRequest, source.KindOf(err))
		})
	}
}

func TestCacheKeyStable(t *testing.T) {
	t.Parallel()

	a := source.NewRequest(source.KindHistory, "aapl", map[string]string{"range": "1y", "interval": "1d"})
	b := source.NewRequest(source.KindHistory, "AAPL", map[string]string{"interval": "1d", "range": "1y"})
	require.Equal(t, a.CacheKey(), b.CacheKey())

	c := source.NewRequest(source.KindHistory, "AAPL", map[string]string{"range": "5y", "interval": "1d"})
	require.NotEqual(t, a.CacheKey(), c.CacheKey())

	d := source.NewRequest(source.KindQuote, "AAPL", nil)
	require.Equal(t, "quote|AAPL", d.CacheKey())
}

func TestCacheKeyLongParamsHashed(t *testing.T) {
	t.Parallel()

	req := source.NewRequest(source.KindQuote, "AAPL", map[string]string{
		"filter": strings.Repeat("x", 300),
	})
	key := req.CacheKey()
	require.LessOrEqual(t, len(key), 200)
	require.Contains(t, key, "hash:")
}
