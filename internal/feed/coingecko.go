// Package feed provides price sources for the dispatcher: a CoinGecko HTTP
// poller and a Binance WebSocket streamer. Both cache prices behind an
// RWMutex so a lookup never blocks on the network.
package feed

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const maxHistoryPoints = 1000

// PriceData is the cached quote for one coin
type PriceData struct {
	Price     decimal.Decimal
	Change24h decimal.Decimal
	MarketCap decimal.Decimal
	Timestamp time.Time
}

// PricePoint is one history sample
type PricePoint struct {
	Price     decimal.Decimal
	Timestamp time.Time
}

// CoinGecko polls the CoinGecko simple-price API on an interval
type CoinGecko struct {
	// BaseURL is swappable for tests
	BaseURL string

	httpClient *http.Client
	interval   time.Duration

	mu      sync.RWMutex
	prices  map[string]PriceData
	history map[string][]PricePoint

	stopCh chan struct{}
}

// NewCoinGecko creates a poller; call Start to begin updates
func NewCoinGecko(interval time.Duration) *CoinGecko {
	return &CoinGecko{
		BaseURL:    "https://api.coingecko.com/api/v3",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		interval:   interval,
		prices:     make(map[string]PriceData),
		history:    make(map[string][]PricePoint),
		stopCh:     make(chan struct{}),
	}
}

// Start fetches once then polls in the background
func (c *CoinGecko) Start() {
	if err := c.UpdatePrices(); err != nil {
		log.Warn().Err(err).Msg("Initial price fetch failed, will retry")
	}

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := c.UpdatePrices(); err != nil {
					log.Error().Err(err).Msg("Price update failed")
				}
			case <-c.stopCh:
				return
			}
		}
	}()

	log.Info().Dur("interval", c.interval).Msg("📊 CoinGecko poller started")
}

// Stop halts polling
func (c *CoinGecko) Stop() {
	close(c.stopCh)
}

// UpdatePrices fetches quotes for every supported coin in one request
func (c *CoinGecko) UpdatePrices() error {
	ids := SupportedCoins()
	sort.Strings(ids)

	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", "usd")
	params.Set("include_24hr_change", "true")
	params.Set("include_market_cap", "true")

	req, err := http.NewRequest(http.MethodGet, c.BaseURL+"/simple/price?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "spellbot/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coingecko returned %s", resp.Status)
	}

	var data map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return err
	}

	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for coinID, quote := range data {
		price, ok := quote["usd"]
		if !ok {
			continue
		}

		c.prices[coinID] = PriceData{
			Price:     price,
			Change24h: quote["usd_24h_change"],
			MarketCap: quote["usd_market_cap"],
			Timestamp: now,
		}

		points := append(c.history[coinID], PricePoint{Price: price, Timestamp: now})
		if len(points) > maxHistoryPoints {
			points = points[len(points)-maxHistoryPoints:]
		}
		c.history[coinID] = points
	}

	log.Debug().Int("coins", len(data)).Msg("📊 Prices updated")
	return nil
}

// GetPrice returns the cached price for a symbol
func (c *CoinGecko) GetPrice(symbol string) (decimal.Decimal, bool) {
	coinID, ok := CoinID(symbol)
	if !ok {
		log.Warn().Str("symbol", symbol).Msg("Unsupported symbol")
		return decimal.Zero, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	data, ok := c.prices[coinID]
	if !ok {
		return decimal.Zero, false
	}
	return data.Price, true
}

// GetPriceData returns the full cached quote for a symbol
func (c *CoinGecko) GetPriceData(symbol string) (PriceData, bool) {
	coinID, ok := CoinID(symbol)
	if !ok {
		return PriceData{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	data, ok := c.prices[coinID]
	return data, ok
}

// History returns the price points for a symbol since the given time
func (c *CoinGecko) History(symbol string, since time.Time) []PricePoint {
	coinID, ok := CoinID(symbol)
	if !ok {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []PricePoint
	for _, p := range c.history[coinID] {
		if !p.Timestamp.Before(since) {
			out = append(out, p)
		}
	}
	return out
}

// AllPrices returns a copy of the price cache
func (c *CoinGecko) AllPrices() map[string]PriceData {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]PriceData, len(c.prices))
	for k, v := range c.prices {
		out[k] = v
	}
	return out
}
