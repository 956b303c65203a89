package feed

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoinID(t *testing.T) {

	tests := map[string]struct {
		id string
		ok bool
	}{
		"bitcoin":  {id: "bitcoin", ok: true},
		"btc":      {id: "bitcoin", ok: true},
		"BTC":      {id: "bitcoin", ok: true},
		" eth ":    {id: "ethereum", ok: true},
		"dogecoin": {id: "dogecoin", ok: true},
		"unknown":  {ok: false},
		"":         {ok: false},
	}

	for input, want := range tests {
		id, ok := CoinID(input)
		assert.Equal(t, want.ok, ok, "input %q", input)
		if want.ok {
			assert.Equal(t, want.id, id, "input %q", input)
		}
	}
}

func TestCoinGecko_UpdatePrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("ids"), "bitcoin")
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"bitcoin":  {"usd": 50000.12, "usd_24h_change": -1.5, "usd_market_cap": 980000000000},
			"ethereum": {"usd": 3000.5,  "usd_24h_change": 2.1,  "usd_market_cap": 360000000000}
		}`))
	}))
	defer server.Close()

	c := NewCoinGecko(time.Minute)
	c.BaseURL = server.URL

	require.NoError(t, c.UpdatePrices())

	price, ok := c.GetPrice("btc")
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromFloat(50000.12)), "price = %s", price)

	data, ok := c.GetPriceData("ethereum")
	require.True(t, ok)
	assert.True(t, data.Change24h.Equal(decimal.NewFromFloat(2.1)))
	assert.False(t, data.Timestamp.IsZero())

	// unknown symbols report unavailable, not zero prices
	_, ok = c.GetPrice("shibacoin")
	assert.False(t, ok)

	// a second update extends history
	require.NoError(t, c.UpdatePrices())
	points := c.History("bitcoin", time.Now().Add(-time.Hour))
	assert.Len(t, points, 2)
}

func TestCoinGecko_FetchErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewCoinGecko(time.Minute)
	c.BaseURL = server.URL

	require.Error(t, c.UpdatePrices())
	_, ok := c.GetPrice("bitcoin")
	assert.False(t, ok)
}

func TestBinance_HandleTicker(t *testing.T) {
	b := NewBinance("btc", "ethereum", "btc" /* dupe */, "nonsense")
	assert.Equal(t, []string{"bitcoin", "ethereum"}, b.coins)

	require.NoError(t, b.HandleTickerJSON([]byte(
		`{"stream":"btcusdt@miniTicker","data":{"s":"BTCUSDT","c":"50123.45"}}`,
	)))

	price, ok := b.GetPrice("bitcoin")
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromFloat(50123.45)))

	_, ok = b.GetPrice("ethereum")
	assert.False(t, ok)

	assert.False(t, b.IsStale("bitcoin", time.Minute))
	assert.True(t, b.IsStale("ethereum", time.Minute))
}
