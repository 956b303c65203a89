package feed

import "strings"

// coinIDs maps user-facing symbols and tickers to canonical coin ids
var coinIDs = map[string]string{
	"bitcoin":     "bitcoin",
	"btc":         "bitcoin",
	"ethereum":    "ethereum",
	"eth":         "ethereum",
	"cardano":     "cardano",
	"ada":         "cardano",
	"solana":      "solana",
	"sol":         "solana",
	"polkadot":    "polkadot",
	"dot":         "polkadot",
	"binancecoin": "binancecoin",
	"bnb":         "binancecoin",
	"ripple":      "ripple",
	"xrp":         "ripple",
	"dogecoin":    "dogecoin",
	"doge":        "dogecoin",
}

// binancePairs maps coin ids to Binance USDT ticker streams
var binancePairs = map[string]string{
	"bitcoin":     "btcusdt",
	"ethereum":    "ethusdt",
	"cardano":     "adausdt",
	"solana":      "solusdt",
	"polkadot":    "dotusdt",
	"binancecoin": "bnbusdt",
	"ripple":      "xrpusdt",
	"dogecoin":    "dogeusdt",
}

// CoinID normalizes a symbol to its canonical coin id
func CoinID(symbol string) (string, bool) {
	id, ok := coinIDs[strings.ToLower(strings.TrimSpace(symbol))]
	return id, ok
}

// SupportedCoins returns the distinct canonical coin ids
func SupportedCoins() []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range coinIDs {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
