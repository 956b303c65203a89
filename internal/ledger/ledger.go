package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/spellbot/internal/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// LEDGER - Single source of truth for cash and positions
// ═══════════════════════════════════════════════════════════════════════════════
//
// All P&L arithmetic lives here. Callers bring their own prices; the ledger
// never talks to a feed or a store. Every mutating operation runs under one
// lock so an open and a close on the same symbol can never interleave.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Stats aggregates realized results, derived strictly from closed positions
type Stats struct {
	TotalPnL        decimal.Decimal
	TotalPnLPercent decimal.Decimal
	WinningTrades   int
	LosingTrades    int
	TotalTrades     int
}

// ClosedTrade is one position closed by ClosePositions
type ClosedTrade struct {
	ID         string
	Side       types.Side
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
	ExitPrice  decimal.Decimal
	PnL        decimal.Decimal
	ExitTime   time.Time
}

// CloseResult summarizes a ClosePositions call
type CloseResult struct {
	Closed        []ClosedTrade
	TotalQuantity decimal.Decimal
	TotalPnL      decimal.Decimal
}

// Valuation is a mark-to-market snapshot
type Valuation struct {
	TotalValue      decimal.Decimal
	Cash            decimal.Decimal
	PositionValues  map[string]decimal.Decimal
	TotalPnL        decimal.Decimal
	TotalPnLPercent decimal.Decimal
}

// AccountSummary reports cash and aggregate stats
type AccountSummary struct {
	Cash            decimal.Decimal
	InitialCash     decimal.Decimal
	TotalPnL        decimal.Decimal
	TotalPnLPercent decimal.Decimal
	WinningTrades   int
	LosingTrades    int
	TotalTrades     int
	OpenPositions   int
	TotalPositions  int
}

// Ledger owns the cash balance and the position book
type Ledger struct {
	mu sync.Mutex

	cash        decimal.Decimal
	initialCash decimal.Decimal
	positions   map[string][]*types.Position // symbol -> positions
	stats       Stats
}

// New creates a ledger with the given starting cash
func New(initialCash decimal.Decimal) *Ledger {
	return &Ledger{
		cash:        initialCash,
		initialCash: initialCash,
		positions:   make(map[string][]*types.Position),
	}
}

// Restore rehydrates open positions loaded from the store. Cash is not
// re-debited; the store only holds positions that were already paid for.
func (l *Ledger) Restore(positions []types.Position) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, p := range positions {
		if p.Status != types.StatusOpen {
			continue
		}
		pos := p
		l.positions[p.Symbol] = append(l.positions[p.Symbol], &pos)
	}

	log.Info().Int("positions", len(positions)).Msg("📂 Ledger rehydrated from store")
}

// OpenLong opens a LONG position, debiting quantity*price from cash.
// Fails with ErrInsufficientFunds when the full notional is not affordable.
func (l *Ledger) OpenLong(symbol string, quantity, price decimal.Decimal) (*types.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	required := quantity.Mul(price)
	if required.GreaterThan(l.cash) {
		return nil, fmt.Errorf("%w: need $%s, have $%s",
			types.ErrInsufficientFunds, required.StringFixed(2), l.cash.StringFixed(2))
	}

	pos := l.newPosition(symbol, types.SideLong, quantity, price)
	l.cash = l.cash.Sub(required)

	log.Info().
		Str("symbol", symbol).
		Str("quantity", quantity.String()).
		Str("price", price.StringFixed(2)).
		Str("cash", l.cash.StringFixed(2)).
		Msg("🦌 Opened LONG position")

	return pos, nil
}

// OpenShort opens a SHORT position, debiting only the margin
// (quantity*price*MarginRate). Fails with ErrInsufficientMargin.
func (l *Ledger) OpenShort(symbol string, quantity, price decimal.Decimal) (*types.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	margin := quantity.Mul(price).Mul(types.MarginRate)
	if margin.GreaterThan(l.cash) {
		return nil, fmt.Errorf("%w: need $%s, have $%s",
			types.ErrInsufficientMargin, margin.StringFixed(2), l.cash.StringFixed(2))
	}

	pos := l.newPosition(symbol, types.SideShort, quantity, price)
	l.cash = l.cash.Sub(margin)

	log.Info().
		Str("symbol", symbol).
		Str("quantity", quantity.String()).
		Str("price", price.StringFixed(2)).
		Str("margin", margin.StringFixed(2)).
		Msg("🦌 Opened SHORT position")

	return pos, nil
}

// newPosition appends a fresh OPEN position. Caller holds the lock.
func (l *Ledger) newPosition(symbol string, side types.Side, quantity, price decimal.Decimal) *types.Position {
	pos := &types.Position{
		ID:         uuid.New().String(),
		Symbol:     symbol,
		Side:       side,
		Quantity:   quantity,
		EntryPrice: price,
		EntryTime:  time.Now(),
		Status:     types.StatusOpen,
	}
	l.positions[symbol] = append(l.positions[symbol], pos)
	return pos
}

// ClosePositions closes every OPEN position for symbol matching the filter
// at currentPrice.
//
// LONG:  pnl = (price - entry) * qty, cash credited qty*price.
// SHORT: pnl = (entry - price) * qty, cash credited only the original margin.
// Short P&L lives in the aggregate stats, not in cash. Consumers reconciling
// "total value" must keep the two ledgers separate.
func (l *Ledger) ClosePositions(symbol string, filter types.SideFilter, currentPrice decimal.Decimal) (*CloseResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var toClose []*types.Position
	for _, pos := range l.positions[symbol] {
		if pos.Status == types.StatusOpen && filter.Matches(pos.Side) {
			toClose = append(toClose, pos)
		}
	}

	if len(toClose) == 0 {
		return nil, fmt.Errorf("%w: no %s positions for %s", types.ErrNoMatchingPositions, filter, symbol)
	}

	result := &CloseResult{
		TotalQuantity: decimal.Zero,
		TotalPnL:      decimal.Zero,
	}
	now := time.Now()

	for _, pos := range toClose {
		var pnl, cashReturn decimal.Decimal
		if pos.Side == types.SideLong {
			pnl = currentPrice.Sub(pos.EntryPrice).Mul(pos.Quantity)
			cashReturn = pos.Quantity.Mul(currentPrice)
		} else {
			pnl = pos.EntryPrice.Sub(currentPrice).Mul(pos.Quantity)
			cashReturn = pos.Quantity.Mul(pos.EntryPrice).Mul(types.MarginRate) // margin refund
		}

		l.cash = l.cash.Add(cashReturn)

		pos.Status = types.StatusClosed
		pos.ExitPrice = currentPrice
		pos.ExitTime = now
		pos.PnL = pnl

		l.stats.TotalTrades++
		if pnl.IsPositive() {
			l.stats.WinningTrades++
		} else {
			l.stats.LosingTrades++
		}

		result.Closed = append(result.Closed, ClosedTrade{
			ID:         pos.ID,
			Side:       pos.Side,
			Quantity:   pos.Quantity,
			EntryPrice: pos.EntryPrice,
			ExitPrice:  currentPrice,
			PnL:        pnl,
			ExitTime:   now,
		})
		result.TotalQuantity = result.TotalQuantity.Add(pos.Quantity)
		result.TotalPnL = result.TotalPnL.Add(pnl)
	}

	l.stats.TotalPnL = l.stats.TotalPnL.Add(result.TotalPnL)
	l.stats.TotalPnLPercent = l.stats.TotalPnL.Div(l.initialCash).Mul(decimal.NewFromInt(100))

	log.Info().
		Str("symbol", symbol).
		Int("closed", len(result.Closed)).
		Str("pnl", result.TotalPnL.StringFixed(2)).
		Str("cash", l.cash.StringFixed(2)).
		Msg("🛡️ Closed positions")

	return result, nil
}

// MarkToMarket values the account at the given prices. Pure read.
// OPEN LONGs count at quantity*price; OPEN SHORTs contribute their unrealized
// P&L. Symbols without a supplied price are skipped.
func (l *Ledger) MarkToMarket(prices map[string]decimal.Decimal) Valuation {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := l.cash
	values := make(map[string]decimal.Decimal)

	for symbol, positions := range l.positions {
		price, ok := prices[symbol]
		if !ok {
			continue
		}

		symbolValue := decimal.Zero
		for _, pos := range positions {
			if pos.Status != types.StatusOpen {
				continue
			}
			if pos.Side == types.SideLong {
				symbolValue = symbolValue.Add(pos.Quantity.Mul(price))
			} else {
				unrealized := pos.EntryPrice.Sub(price).Mul(pos.Quantity)
				symbolValue = symbolValue.Add(unrealized)
			}
		}

		values[symbol] = symbolValue
		total = total.Add(symbolValue)
	}

	return Valuation{
		TotalValue:      total,
		Cash:            l.cash,
		PositionValues:  values,
		TotalPnL:        l.stats.TotalPnL,
		TotalPnLPercent: l.stats.TotalPnLPercent,
	}
}

// Exposure returns the aggregate entry notional of all OPEN positions
func (l *Ledger) Exposure() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	exposure := decimal.Zero
	for _, positions := range l.positions {
		for _, pos := range positions {
			if pos.Status == types.StatusOpen {
				exposure = exposure.Add(pos.Notional())
			}
		}
	}
	return exposure
}

// Positions returns copies of positions, all of them or one symbol's
func (l *Ledger) Positions(symbol string) []types.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []types.Position
	if symbol != "" {
		for _, pos := range l.positions[symbol] {
			out = append(out, *pos)
		}
		return out
	}
	for _, positions := range l.positions {
		for _, pos := range positions {
			out = append(out, *pos)
		}
	}
	return out
}

// Cash returns the current cash balance
func (l *Ledger) Cash() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

// Summary reports cash and aggregate stats
func (l *Ledger) Summary() AccountSummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	open, total := 0, 0
	for _, positions := range l.positions {
		for _, pos := range positions {
			total++
			if pos.Status == types.StatusOpen {
				open++
			}
		}
	}

	return AccountSummary{
		Cash:            l.cash,
		InitialCash:     l.initialCash,
		TotalPnL:        l.stats.TotalPnL,
		TotalPnLPercent: l.stats.TotalPnLPercent,
		WinningTrades:   l.stats.WinningTrades,
		LosingTrades:    l.stats.LosingTrades,
		TotalTrades:     l.stats.TotalTrades,
		OpenPositions:   open,
		TotalPositions:  total,
	}
}

// Reset wipes all positions, restores cash to the initial value and zeroes
// the aggregate stats. Irreversible; testing and demo use only.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.positions = make(map[string][]*types.Position)
	l.cash = l.initialCash
	l.stats = Stats{}

	log.Info().Str("cash", l.cash.StringFixed(2)).Msg("🔄 Ledger reset to initial state")
}
