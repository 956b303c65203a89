package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/spellbot/internal/ledger"
	"github.com/web3guy0/spellbot/internal/metrics"
	"github.com/web3guy0/spellbot/internal/risk"
	"github.com/web3guy0/spellbot/internal/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ENGINE - Command dispatcher
// ═══════════════════════════════════════════════════════════════════════════════
//
// Flow:
//   Command → Price feed → Risk gate → Ledger → Store (best-effort) → Result
//
// Every failure path comes back as a Result, never as a panic; the in-memory
// ledger stays authoritative even when persistence fails.
//
// ═══════════════════════════════════════════════════════════════════════════════

// PriceSource supplies a current price for a symbol. Implementations cache
// and must never block the dispatcher indefinitely.
type PriceSource interface {
	GetPrice(symbol string) (decimal.Decimal, bool)
}

// TradeStore records opened/closed positions and trade-log entries.
// Failures here are best-effort durability, never authoritative state.
type TradeStore interface {
	SavePosition(pos *types.Position) error
	ClosePosition(id string, exitPrice decimal.Decimal, exitTime time.Time, pnl decimal.Decimal) error
	LogTrade(entry types.TradeLog) error
	LoadOpenPositions() ([]types.Position, error)
}

// Notifier pushes trade notifications to an external channel
type Notifier interface {
	NotifyTrade(action, symbol string, quantity, price decimal.Decimal)
}

// Result is the uniform outcome of every dispatched command
type Result struct {
	Success bool
	Command string
	Message string
	Data    any
}

// SessionStats counts dispatched commands since engine start
type SessionStats struct {
	TotalCommands  int
	Succeeded      int
	Failed         int
	StartTime      time.Time
	Duration       time.Duration
	SuccessRatePct float64
}

// Engine maps commands to ledger operations, gated by the risk gate
type Engine struct {
	mu sync.Mutex

	ledger   *ledger.Ledger
	gate     *risk.Gate
	feed     PriceSource
	store    TradeStore
	notifier Notifier

	active    bool
	total     int
	succeeded int
	failed    int
	startTime time.Time
}

// New wires the dispatcher and rehydrates open positions from the store.
// The engine starts INACTIVE; cast activate before trading.
func New(l *ledger.Ledger, gate *risk.Gate, feed PriceSource, store TradeStore) (*Engine, error) {
	e := &Engine{
		ledger:    l,
		gate:      gate,
		feed:      feed,
		store:     store,
		startTime: time.Now(),
	}

	positions, err := store.LoadOpenPositions()
	if err != nil {
		return nil, fmt.Errorf("loading open positions: %w", err)
	}
	if len(positions) > 0 {
		l.Restore(positions)
	}

	return e, nil
}

// SetNotifier attaches an optional trade notifier
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// Active reports the engine state
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Dispatch runs one command against the ledger. Symbol is required for
// trading commands; activate/deactivate ignore it.
func (e *Engine) Dispatch(cmd Command, symbol string, quantity decimal.Decimal) Result {
	result := e.dispatch(cmd, symbol, quantity)

	e.mu.Lock()
	e.total++
	if result.Success {
		e.succeeded++
	} else {
		e.failed++
	}
	e.mu.Unlock()

	metrics.CommandDispatched(result.Command, result.Success)
	return result
}

func (e *Engine) dispatch(cmd Command, symbol string, quantity decimal.Decimal) Result {
	switch cmd {
	case CommandActivate:
		return e.activate()
	case CommandDeactivate:
		return e.deactivate()
	}

	if !e.Active() {
		return failure(cmd, "❌ %s; cast activate first", types.ErrEngineInactive)
	}

	if cmd == CommandUnknown {
		return failure(cmd, "❌ %s: check your spell book", types.ErrUnknownCommand)
	}

	if cmd != CommandCloseAll && quantity.LessThanOrEqual(decimal.Zero) {
		return failure(cmd, "quantity must be positive, got %s", quantity)
	}

	price, ok := e.feed.GetPrice(symbol)
	if !ok {
		return failure(cmd, "❌ %s for %s", types.ErrPriceUnavailable, symbol)
	}

	switch cmd {
	case CommandOpenLong:
		return e.open(cmd, symbol, types.SideLong, quantity, price)
	case CommandOpenShort:
		return e.open(cmd, symbol, types.SideShort, quantity, price)
	default: // CommandCloseAll
		return e.closeAll(symbol, price)
	}
}

func (e *Engine) activate() Result {
	e.mu.Lock()
	e.active = true
	e.mu.Unlock()

	log.Info().Msg("✨ Trading engine activated")
	return Result{Success: true, Command: CommandActivate.String(), Message: "✨ Trading engine activated"}
}

func (e *Engine) deactivate() Result {
	e.mu.Lock()
	e.active = false
	e.mu.Unlock()

	log.Info().Msg("🌙 Trading engine deactivated")
	return Result{Success: true, Command: CommandDeactivate.String(), Message: "🌙 Trading engine deactivated"}
}

// open runs the risk checks and, on approval, the ledger open. The gate is
// consulted before the ledger so a denial leaves the book untouched.
func (e *Engine) open(cmd Command, symbol string, side types.Side, quantity, price decimal.Decimal) Result {
	notional := quantity.Mul(price)

	if dec := e.gate.CheckSymbolLimit(symbol, side, quantity, price); !dec.Allowed {
		return failure(cmd, "🛡️ risk management blocked: %s", dec.Reason)
	}

	valuation := e.ledger.MarkToMarket(map[string]decimal.Decimal{symbol: price})
	if dec := e.gate.CheckPortfolioLimit(valuation.TotalValue, notional, e.ledger.Exposure()); !dec.Allowed {
		return failure(cmd, "🛡️ risk management blocked: %s", dec.Reason)
	}

	if dec := e.gate.CheckDailyLoss(decimal.Zero); !dec.Allowed {
		return failure(cmd, "🛡️ risk management blocked: %s", dec.Reason)
	}

	var pos *types.Position
	var err error
	if side == types.SideLong {
		pos, err = e.ledger.OpenLong(symbol, quantity, price)
	} else {
		pos, err = e.ledger.OpenShort(symbol, quantity, price)
	}
	if err != nil {
		return failure(cmd, "❌ %s failed: %s", cmd, err)
	}

	e.persistOpen(pos)
	if e.notifier != nil {
		e.notifier.NotifyTrade(string(side), symbol, quantity, price)
	}

	return Result{
		Success: true,
		Command: cmd.String(),
		Message: fmt.Sprintf("🦌 Opened %s %s %s at $%s", side, quantity, symbol, price.StringFixed(2)),
		Data:    pos,
	}
}

func (e *Engine) closeAll(symbol string, price decimal.Decimal) Result {
	cmd := CommandCloseAll

	result, err := e.ledger.ClosePositions(symbol, types.FilterAll, price)
	if err != nil {
		return failure(cmd, "❌ %s failed: %s", cmd, err)
	}

	e.gate.AddDailyPnL(result.TotalPnL)
	e.persistClose(symbol, price, result)
	if e.notifier != nil {
		e.notifier.NotifyTrade("CLOSE", symbol, result.TotalQuantity, price)
	}

	return Result{
		Success: true,
		Command: cmd.String(),
		Message: fmt.Sprintf("🛡️ Closed %d %s positions, P&L $%s",
			len(result.Closed), symbol, result.TotalPnL.StringFixed(2)),
		Data:    result,
	}
}

// persistOpen writes the position and its journal entry. Failures are logged
// and counted; the committed ledger mutation is never rolled back.
func (e *Engine) persistOpen(pos *types.Position) {
	if err := e.store.SavePosition(pos); err != nil {
		metrics.PersistenceFailed("save_position")
		log.Error().Err(err).Str("id", pos.ID).Msg("💾 Failed to persist position")
	}
	entry := types.TradeLog{
		PositionID: pos.ID,
		Symbol:     pos.Symbol,
		Action:     string(pos.Side),
		Quantity:   pos.Quantity,
		Price:      pos.EntryPrice,
		Timestamp:  pos.EntryTime,
	}
	if err := e.store.LogTrade(entry); err != nil {
		metrics.PersistenceFailed("log_trade")
		log.Error().Err(err).Str("id", pos.ID).Msg("💾 Failed to log trade")
	}
}

func (e *Engine) persistClose(symbol string, price decimal.Decimal, result *ledger.CloseResult) {
	for _, ct := range result.Closed {
		if err := e.store.ClosePosition(ct.ID, ct.ExitPrice, ct.ExitTime, ct.PnL); err != nil {
			metrics.PersistenceFailed("close_position")
			log.Error().Err(err).Str("id", ct.ID).Msg("💾 Failed to persist close")
		}
		entry := types.TradeLog{
			PositionID: ct.ID,
			Symbol:     symbol,
			Action:     "CLOSE_" + string(ct.Side),
			Quantity:   ct.Quantity,
			Price:      price,
			Timestamp:  ct.ExitTime,
		}
		if err := e.store.LogTrade(entry); err != nil {
			metrics.PersistenceFailed("log_trade")
			log.Error().Err(err).Str("id", ct.ID).Msg("💾 Failed to log trade")
		}
	}
}

func failure(cmd Command, format string, args ...any) Result {
	return Result{
		Success: false,
		Command: cmd.String(),
		Message: fmt.Sprintf(format, args...),
	}
}

// GetPositions returns positions, all of them or one symbol's
func (e *Engine) GetPositions(symbol string) []types.Position {
	return e.ledger.Positions(symbol)
}

// AccountSummary values the account at current feed prices
type AccountSummary struct {
	Cash            decimal.Decimal
	TotalValue      decimal.Decimal
	TotalPnL        decimal.Decimal
	TotalPnLPercent decimal.Decimal
	OpenPositions   int
}

// GetAccountSummary marks the book to market using whatever prices the feed
// can supply right now. Symbols with no price contribute nothing.
func (e *Engine) GetAccountSummary() AccountSummary {
	prices := make(map[string]decimal.Decimal)
	for _, pos := range e.ledger.Positions("") {
		if pos.Status != types.StatusOpen {
			continue
		}
		if _, ok := prices[pos.Symbol]; ok {
			continue
		}
		if price, ok := e.feed.GetPrice(pos.Symbol); ok {
			prices[pos.Symbol] = price
		}
	}

	valuation := e.ledger.MarkToMarket(prices)
	summary := e.ledger.Summary()

	return AccountSummary{
		Cash:            valuation.Cash,
		TotalValue:      valuation.TotalValue,
		TotalPnL:        summary.TotalPnL,
		TotalPnLPercent: summary.TotalPnLPercent,
		OpenPositions:   summary.OpenPositions,
	}
}

// GetRiskLimits returns the gate's current configuration
func (e *Engine) GetRiskLimits() risk.Limits {
	return e.gate.Limits()
}

// SetRiskLimits applies partial overrides to the gate
func (e *Engine) SetRiskLimits(o risk.Overrides) {
	e.gate.SetLimits(o)
}

// GetSessionStats reports command counters since engine start
func (e *Engine) GetSessionStats() SessionStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := SessionStats{
		TotalCommands: e.total,
		Succeeded:     e.succeeded,
		Failed:        e.failed,
		StartTime:     e.startTime,
		Duration:      time.Since(e.startTime),
	}
	if e.total > 0 {
		stats.SuccessRatePct = float64(e.succeeded) / float64(e.total) * 100
	}
	return stats
}
