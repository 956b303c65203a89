package feed

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Binance streams miniTicker prices for a set of coins over WebSocket.
// Drop-in alternative to the CoinGecko poller when sub-second prices matter.
type Binance struct {
	wsURL string
	coins []string // canonical coin ids

	mu         sync.RWMutex
	prices     map[string]decimal.Decimal
	lastUpdate map[string]time.Time

	conn    *websocket.Conn
	running bool
	stopCh  chan struct{}
}

// miniTicker is the payload inside a combined-stream message
type miniTicker struct {
	Symbol string `json:"s"`
	Close  string `json:"c"`
}

type streamMessage struct {
	Stream string     `json:"stream"`
	Data   miniTicker `json:"data"`
}

// NewBinance creates a streamer for the given symbols (any supported alias)
func NewBinance(symbols ...string) *Binance {
	var coins []string
	seen := make(map[string]bool)
	for _, s := range symbols {
		id, ok := CoinID(s)
		if !ok || binancePairs[id] == "" || seen[id] {
			continue
		}
		seen[id] = true
		coins = append(coins, id)
	}

	return &Binance{
		wsURL:      "wss://stream.binance.com:9443/stream",
		coins:      coins,
		prices:     make(map[string]decimal.Decimal),
		lastUpdate: make(map[string]time.Time),
		stopCh:     make(chan struct{}),
	}
}

// Start connects and begins streaming with automatic reconnect
func (b *Binance) Start() error {
	b.running = true
	go b.run()

	log.Info().Strs("coins", b.coins).Msg("📈 Binance streamer started")
	return nil
}

// Stop closes the connection and halts reconnects
func (b *Binance) Stop() {
	b.running = false
	close(b.stopCh)
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *Binance) run() {
	for b.running {
		if err := b.connect(); err != nil {
			log.Error().Err(err).Msg("Binance connection failed")
		}

		select {
		case <-b.stopCh:
			return
		case <-time.After(5 * time.Second):
			// reconnect
		}
	}
}

func (b *Binance) connect() error {
	var streams []string
	for _, id := range b.coins {
		streams = append(streams, binancePairs[id]+"@miniTicker")
	}
	url := b.wsURL + "?streams=" + strings.Join(streams, "/")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return err
	}
	b.conn = conn
	defer conn.Close()

	log.Info().Int("streams", len(streams)).Msg("📈 Binance WebSocket connected")

	for b.running {
		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		b.handleTicker(msg.Data)
	}
	return nil
}

func (b *Binance) handleTicker(t miniTicker) {
	pair := strings.ToLower(t.Symbol)
	var coinID string
	for id, p := range binancePairs {
		if p == pair {
			coinID = id
			break
		}
	}
	if coinID == "" {
		return
	}

	price, err := decimal.NewFromString(t.Close)
	if err != nil {
		log.Debug().Err(err).Str("pair", pair).Msg("Bad ticker price")
		return
	}

	b.mu.Lock()
	b.prices[coinID] = price
	b.lastUpdate[coinID] = time.Now()
	b.mu.Unlock()
}

// HandleTickerJSON feeds one raw combined-stream message into the cache.
// Exposed for tests and replay tooling.
func (b *Binance) HandleTickerJSON(raw []byte) error {
	var msg streamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return err
	}
	b.handleTicker(msg.Data)
	return nil
}

// GetPrice returns the latest streamed price for a symbol
func (b *Binance) GetPrice(symbol string) (decimal.Decimal, bool) {
	coinID, ok := CoinID(symbol)
	if !ok {
		return decimal.Zero, false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	price, ok := b.prices[coinID]
	return price, ok
}

// IsStale reports whether a symbol's price is older than the cutoff
func (b *Binance) IsStale(symbol string, cutoff time.Duration) bool {
	coinID, ok := CoinID(symbol)
	if !ok {
		return true
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	last, ok := b.lastUpdate[coinID]
	return !ok || time.Since(last) > cutoff
}
