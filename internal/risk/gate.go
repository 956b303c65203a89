package risk

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/spellbot/internal/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RISK GATE - Pre-trade admission control
// ═══════════════════════════════════════════════════════════════════════════════
//
// Dispatcher asks → Gate approves/rejects → Ledger mutates
//
// The gate never consults the ledger; the dispatcher supplies every figure.
// The only mutable state here is the daily P&L counter, reset by an external
// day-boundary trigger.
//
// ═══════════════════════════════════════════════════════════════════════════════

// SymbolLimit caps a single symbol's quantity and notional per trade
type SymbolLimit struct {
	MaxQuantity decimal.Decimal
	MaxNotional decimal.Decimal
}

// Limits is the full gate configuration
type Limits struct {
	MaxPositionSize  decimal.Decimal // fraction of account value per position
	MaxTotalExposure decimal.Decimal // fraction of account value across positions
	MaxDailyLoss     decimal.Decimal // daily loss fraction
	MaxLeverage      decimal.Decimal // leverage cap for shorts
	SymbolLimits     map[string]SymbolLimit
	DefaultLimit     SymbolLimit
}

// Overrides is a partial Limits update; nil fields keep the current value
type Overrides struct {
	MaxPositionSize  *decimal.Decimal
	MaxTotalExposure *decimal.Decimal
	MaxDailyLoss     *decimal.Decimal
	MaxLeverage      *decimal.Decimal
	SymbolLimits     map[string]SymbolLimit
}

// DefaultLimits returns the stock limit table
func DefaultLimits() Limits {
	return Limits{
		MaxPositionSize:  decimal.NewFromFloat(0.2),
		MaxTotalExposure: decimal.NewFromFloat(0.8),
		MaxDailyLoss:     decimal.NewFromFloat(0.1),
		MaxLeverage:      decimal.NewFromFloat(3.0),
		SymbolLimits: map[string]SymbolLimit{
			"bitcoin":  {MaxQuantity: decimal.NewFromFloat(1.0), MaxNotional: decimal.NewFromInt(50000)},
			"ethereum": {MaxQuantity: decimal.NewFromFloat(10.0), MaxNotional: decimal.NewFromInt(30000)},
			"cardano":  {MaxQuantity: decimal.NewFromInt(1000), MaxNotional: decimal.NewFromInt(20000)},
			"solana":   {MaxQuantity: decimal.NewFromInt(100), MaxNotional: decimal.NewFromInt(25000)},
			"polkadot": {MaxQuantity: decimal.NewFromInt(500), MaxNotional: decimal.NewFromInt(15000)},
		},
		DefaultLimit: SymbolLimit{
			MaxQuantity: decimal.NewFromInt(100),
			MaxNotional: decimal.NewFromInt(10000),
		},
	}
}

// Decision is the result of one check
type Decision struct {
	Allowed bool
	Reason  string
}

// Err converts a denial into a RiskError, nil when allowed
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &types.RiskError{Reason: d.Reason}
}

func deny(format string, args ...any) Decision {
	reason := fmt.Sprintf(format, args...)
	log.Debug().Str("reason", reason).Msg("🚫 Risk check denied")
	return Decision{Allowed: false, Reason: reason}
}

func allow(reason string) Decision {
	return Decision{Allowed: true, Reason: reason}
}

// Gate evaluates pre-trade limits
type Gate struct {
	mu       sync.RWMutex
	limits   Limits
	dailyPnL decimal.Decimal
}

// NewGate creates a gate with the given limits
func NewGate(limits Limits) *Gate {
	log.Info().
		Str("max_position", limits.MaxPositionSize.String()).
		Str("max_exposure", limits.MaxTotalExposure.String()).
		Str("max_daily_loss", limits.MaxDailyLoss.String()).
		Str("max_leverage", limits.MaxLeverage.String()).
		Msg("🛡️ Risk gate initialized")

	return &Gate{limits: limits}
}

// CheckSymbolLimit enforces the per-symbol quantity and notional caps.
// Unknown symbols fall back to the default limit tuple.
//
// For SHORT the leverage check uses notional / (notional * margin rate),
// which collapses to the constant 1/MarginRate under the flat margin model.
// With default limits every short trips it; raise MaxLeverage to enable shorts.
func (g *Gate) CheckSymbolLimit(symbol string, side types.Side, quantity, price decimal.Decimal) Decision {
	g.mu.RLock()
	defer g.mu.RUnlock()

	limit, ok := g.limits.SymbolLimits[symbol]
	if !ok {
		limit = g.limits.DefaultLimit
	}

	if quantity.GreaterThan(limit.MaxQuantity) {
		return deny("quantity %s exceeds limit of %s for %s", quantity, limit.MaxQuantity, symbol)
	}

	notional := quantity.Mul(price)
	if notional.GreaterThan(limit.MaxNotional) {
		return deny("position value $%s exceeds limit of $%s for %s",
			notional.StringFixed(2), limit.MaxNotional.StringFixed(2), symbol)
	}

	if side == types.SideShort {
		leverage := notional.Div(notional.Mul(types.MarginRate))
		if leverage.GreaterThan(g.limits.MaxLeverage) {
			return deny("leverage %sx exceeds maximum of %sx", leverage.StringFixed(1), g.limits.MaxLeverage)
		}
	}

	return allow("position meets risk limits")
}

// CheckPortfolioLimit enforces the single-position-size and aggregate-exposure
// fractions against the supplied account value
func (g *Gate) CheckPortfolioLimit(totalValue, newNotional, currentExposure decimal.Decimal) Decision {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if totalValue.LessThanOrEqual(decimal.Zero) {
		return deny("account value $%s is not positive", totalValue.StringFixed(2))
	}

	positionRatio := newNotional.Div(totalValue)
	if positionRatio.GreaterThan(g.limits.MaxPositionSize) {
		return deny("position size %s%% exceeds limit of %s%%",
			positionRatio.Mul(decimal.NewFromInt(100)).StringFixed(1),
			g.limits.MaxPositionSize.Mul(decimal.NewFromInt(100)).StringFixed(1))
	}

	exposureRatio := currentExposure.Add(newNotional).Div(totalValue)
	if exposureRatio.GreaterThan(g.limits.MaxTotalExposure) {
		return deny("total exposure %s%% exceeds limit of %s%%",
			exposureRatio.Mul(decimal.NewFromInt(100)).StringFixed(1),
			g.limits.MaxTotalExposure.Mul(decimal.NewFromInt(100)).StringFixed(1))
	}

	return allow("portfolio risk checks passed")
}

// CheckDailyLoss denies when the updated daily P&L would fall below the loss
// threshold relative to the running daily P&L baseline:
//
//	daily + incoming < -(daily * MaxDailyLoss)
//
// The baseline-relative threshold is preserved verbatim from the account
// model this ports; with a zero baseline any negative daily total denies.
func (g *Gate) CheckDailyLoss(incoming decimal.Decimal) Decision {
	g.mu.RLock()
	defer g.mu.RUnlock()

	updated := g.dailyPnL.Add(incoming)
	threshold := g.dailyPnL.Mul(g.limits.MaxDailyLoss).Neg()
	if updated.LessThan(threshold) {
		return deny("daily loss limit would be exceeded: current $%s, new $%s",
			g.dailyPnL.StringFixed(2), updated.StringFixed(2))
	}

	return allow("daily loss check passed")
}

// AddDailyPnL folds a realized P&L into the daily tracker
func (g *Gate) AddDailyPnL(pnl decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dailyPnL = g.dailyPnL.Add(pnl)
	log.Info().Str("daily_pnl", g.dailyPnL.StringFixed(2)).Msg("📅 Daily P&L updated")
}

// DailyPnL returns the running daily P&L
func (g *Gate) DailyPnL() decimal.Decimal {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dailyPnL
}

// ResetDaily zeroes the daily tracker. Called by an external day-boundary
// trigger, not by the gate itself.
func (g *Gate) ResetDaily() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dailyPnL = decimal.Zero
	log.Info().Msg("📅 Daily risk tracking reset")
}

// Limits returns a copy of the current configuration
func (g *Gate) Limits() Limits {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := g.limits
	out.SymbolLimits = make(map[string]SymbolLimit, len(g.limits.SymbolLimits))
	for k, v := range g.limits.SymbolLimits {
		out.SymbolLimits[k] = v
	}
	return out
}

// SetLimits applies a partial override; unset fields are untouched and
// symbol entries merge into the existing table
func (g *Gate) SetLimits(o Overrides) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if o.MaxPositionSize != nil {
		g.limits.MaxPositionSize = *o.MaxPositionSize
	}
	if o.MaxTotalExposure != nil {
		g.limits.MaxTotalExposure = *o.MaxTotalExposure
	}
	if o.MaxDailyLoss != nil {
		g.limits.MaxDailyLoss = *o.MaxDailyLoss
	}
	if o.MaxLeverage != nil {
		g.limits.MaxLeverage = *o.MaxLeverage
	}
	for symbol, limit := range o.SymbolLimits {
		g.limits.SymbolLimits[symbol] = limit
	}

	log.Info().Msg("⚙️ Risk limits updated")
}
