// Spellbot - Crypto Paper Trading Account
//
// A simulated trading account driven by spell-named commands. Longs debit
// cash in full, shorts post 10% margin, and every trade passes a risk gate
// before it touches the ledger. No real funds are ever at risk.
//
// Flow:
// 1. Price feed polls CoinGecko (or streams from Binance)
// 2. Commands arrive from stdin or Telegram
// 3. The dispatcher prices, risk-checks and books each trade
// 4. Positions and the trade journal persist to SQLite/PostgreSQL
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/spellbot/internal/config"
	"github.com/web3guy0/spellbot/internal/engine"
	"github.com/web3guy0/spellbot/internal/feed"
	"github.com/web3guy0/spellbot/internal/ledger"
	"github.com/web3guy0/spellbot/internal/metrics"
	"github.com/web3guy0/spellbot/internal/notify"
	"github.com/web3guy0/spellbot/internal/risk"
	"github.com/web3guy0/spellbot/internal/store"
	"github.com/web3guy0/spellbot/internal/types"
)

const version = "1.0.0"

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("version", version).
		Str("feed", cfg.FeedSource).
		Str("initial_cash", cfg.InitialCash.StringFixed(2)).
		Msg("🪄 Spellbot starting...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := store.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// ====== CORE COMPONENTS ======

	// 1. Price feed
	var priceFeed engine.PriceSource
	var stopFeed func()
	switch cfg.FeedSource {
	case "binance":
		binanceFeed := feed.NewBinance(cfg.TrackedCoins...)
		if err := binanceFeed.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start Binance feed")
		}
		priceFeed = binanceFeed
		stopFeed = binanceFeed.Stop
		log.Info().Msg("📈 Binance WebSocket feed connected")
	default:
		geckoFeed := feed.NewCoinGecko(cfg.PriceInterval)
		geckoFeed.Start()
		priceFeed = geckoFeed
		stopFeed = geckoFeed.Stop
		log.Info().Dur("interval", cfg.PriceInterval).Msg("🦎 CoinGecko feed started")
	}

	// 2. Ledger and risk gate
	book := ledger.New(cfg.InitialCash)
	gate := risk.NewGate(risk.DefaultLimits())
	gate.SetLimits(cfg.RiskOverrides)

	// 3. Engine - rehydrates any open positions from the database
	eng, err := engine.New(book, gate, priceFeed, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize engine")
	}

	// ====== TELEGRAM BOT ======
	var telegramBot *notify.Bot
	if cfg.TelegramToken != "" {
		telegramBot, err = notify.New(cfg.TelegramToken, cfg.TelegramChatID, eng)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
		}
		eng.SetNotifier(telegramBot)
		telegramBot.Start()
	} else {
		log.Info().Msg("⚠️ No TELEGRAM_BOT_TOKEN - Telegram disabled, stdin only")
	}

	// ====== METRICS ======
	if cfg.MetricsEnabled {
		metrics.Serve(cfg.MetricsPort)
	}

	// ====== SNAPSHOT LOOP ======
	go snapshotLoop(ctx, eng, db, cfg.SnapshotInterval)

	// ====== STARTUP COMPLETE ======
	log.Info().Msg("✅ All systems online")
	log.Info().Msg("")
	log.Info().Msg("╔══════════════════════════════════════════╗")
	log.Info().Msg("║        SPELLBOT PAPER TRADING            ║")
	log.Info().Msg("║                                          ║")
	log.Info().Msg("║  cast expecto-long btc 0.01              ║")
	log.Info().Msg("║  cast expecto-short eth 1                ║")
	log.Info().Msg("║  cast finite-incantatem btc              ║")
	log.Info().Msg("║                                          ║")
	log.Info().Msg("║  The engine starts INACTIVE.             ║")
	log.Info().Msg("║  Type 'cast activate' to begin.          ║")
	log.Info().Msg("╚══════════════════════════════════════════╝")
	log.Info().Msg("")
	log.Info().Msg("💡 Type 'help' for commands")

	// Stdin command loop
	go commandLoop(cancel, eng, book, gate, db)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("🛑 Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("🛑 Context cancelled")
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down...")

	if telegramBot != nil {
		telegramBot.Stop()
	}
	stopFeed()
	saveSnapshot(eng, db)
	if err := db.Close(); err != nil {
		log.Warn().Err(err).Msg("Database close failed")
	}

	log.Info().Msg("👋 Goodbye!")
}

// snapshotLoop records portfolio valuations for the equity curve
func snapshotLoop(ctx context.Context, eng *engine.Engine, db *store.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			saveSnapshot(eng, db)
		case <-ctx.Done():
			return
		}
	}
}

func saveSnapshot(eng *engine.Engine, db *store.Store) {
	summary := eng.GetAccountSummary()
	err := db.SaveSnapshot(summary.TotalValue, summary.Cash, summary.TotalPnL, summary.TotalPnLPercent)
	if err != nil {
		log.Warn().Err(err).Msg("Snapshot save failed")
	}
}

// commandLoop reads commands from stdin until EOF or quit
func commandLoop(cancel context.CancelFunc, eng *engine.Engine, book *ledger.Ledger, gate *risk.Gate, db *store.Store) {
	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "cast":
			runCast(eng, fields[1:])
		case "positions":
			printPositions(eng, fields[1:])
		case "summary":
			printSummary(eng, book)
		case "limits":
			printLimits(eng)
		case "stats":
			printStats(eng)
		case "reset":
			book.Reset()
			gate.ResetDaily()
			if err := db.Reset(); err != nil {
				log.Warn().Err(err).Msg("Store reset failed")
			}
		case "help":
			printHelp()
		case "quit", "exit":
			cancel()
			return
		default:
			fmt.Println("❓ Unknown command. Type 'help' for the list.")
		}
	}

	// stdin closed; keep running for Telegram and signals
}

func runCast(eng *engine.Engine, args []string) {
	if len(args) == 0 {
		fmt.Println("⚠️ Usage: cast <spell> [coin] [quantity]")
		return
	}

	cmd := engine.ParseCommand(args[0])

	symbol := ""
	if len(args) >= 2 {
		id, ok := feed.CoinID(args[1])
		if !ok {
			fmt.Printf("❌ Unknown coin %q. Supported: %s\n", args[1], strings.Join(feed.SupportedCoins(), ", "))
			return
		}
		symbol = id
	}

	quantity := decimal.Zero
	if len(args) >= 3 {
		q, err := decimal.NewFromString(args[2])
		if err != nil {
			fmt.Printf("❌ Bad quantity %q\n", args[2])
			return
		}
		quantity = q
	}

	result := eng.Dispatch(cmd, symbol, quantity)
	if result.Success {
		fmt.Println(result.Message)
	} else {
		fmt.Printf("❌ %s\n", result.Message)
	}
}

func printPositions(eng *engine.Engine, args []string) {
	symbol := ""
	if len(args) >= 1 {
		if id, ok := feed.CoinID(args[0]); ok {
			symbol = id
		}
	}

	positions := eng.GetPositions(symbol)
	open := 0
	for _, pos := range positions {
		if pos.Status != types.StatusOpen {
			continue
		}
		open++
		fmt.Printf("  %s %s %s  qty %s  entry $%s  opened %s\n",
			pos.ID[:8], pos.Side, pos.Symbol,
			pos.Quantity.String(), pos.EntryPrice.StringFixed(2),
			pos.EntryTime.Format("Jan 2 15:04"))
	}
	if open == 0 {
		fmt.Println("📊 No open positions.")
	}
}

func printSummary(eng *engine.Engine, book *ledger.Ledger) {
	marked := eng.GetAccountSummary()
	realized := book.Summary()

	status := "INACTIVE"
	if eng.Active() {
		status = "ACTIVE"
	}

	fmt.Printf(`💰 Account Summary
  Engine:          %s
  Cash:            $%s
  Total Value:     $%s
  Realized P&L:    $%s (%s%%)
  Open Positions:  %d
  Trades:          %d (%d won / %d lost)
`,
		status,
		marked.Cash.StringFixed(2),
		marked.TotalValue.StringFixed(2),
		realized.TotalPnL.StringFixed(2),
		realized.TotalPnLPercent.StringFixed(2),
		marked.OpenPositions,
		realized.TotalTrades, realized.WinningTrades, realized.LosingTrades,
	)
}

func printLimits(eng *engine.Engine) {
	limits := eng.GetRiskLimits()
	hundred := decimal.NewFromInt(100)

	fmt.Printf(`🛡️ Risk Limits
  Max Position Size:  %s%% of portfolio
  Max Total Exposure: %s%% of portfolio
  Max Daily Loss:     %s%%
  Max Leverage:       %sx
`,
		limits.MaxPositionSize.Mul(hundred).StringFixed(0),
		limits.MaxTotalExposure.Mul(hundred).StringFixed(0),
		limits.MaxDailyLoss.Mul(hundred).StringFixed(0),
		limits.MaxLeverage.String(),
	)
}

func printStats(eng *engine.Engine) {
	stats := eng.GetSessionStats()
	fmt.Printf(`📈 Session Statistics
  Commands:     %d (%d ok / %d failed, %.1f%%)
  Uptime:       %s
`,
		stats.TotalCommands, stats.Succeeded, stats.Failed, stats.SuccessRatePct,
		stats.Duration.Round(time.Second),
	)
}

func printHelp() {
	fmt.Printf(`🪄 Spellbot commands:
  cast activate                 wake the engine (alias: lumos)
  cast deactivate               halt trading (alias: nox)
  cast expecto-long <coin> <qty>   open a long
  cast expecto-short <coin> <qty>  open a margined short
  cast finite-incantatem <coin>    close all positions in a coin
  positions [coin]              list open positions
  summary                       cash, value and P&L
  stats                         session command counters
  limits                        current risk limits
  reset                         wipe the account back to initial cash
  quit                          exit

Supported coins: %s
`, strings.Join(feed.SupportedCoins(), ", "))
}
