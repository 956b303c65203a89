package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SHARED TYPES - Avoid import cycles
// ═══════════════════════════════════════════════════════════════════════════════

// MarginRate is the flat collateral fraction for SHORT positions (10%)
var MarginRate = decimal.NewFromFloat(0.10)

// Side is the direction of a position
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Status of a position. Transitions OPEN → CLOSED, never back.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// SideFilter selects which positions a close touches
type SideFilter string

const (
	FilterAll   SideFilter = "ALL"
	FilterLong  SideFilter = "LONG"
	FilterShort SideFilter = "SHORT"
)

// Matches reports whether a side passes the filter
func (f SideFilter) Matches(side Side) bool {
	return f == FilterAll || string(f) == string(side)
}

// Position represents one directional bet on a symbol.
// Quantity and EntryPrice are immutable after creation; exit fields are set
// together exactly once, when the position closes.
type Position struct {
	ID         string
	Symbol     string
	Side       Side
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
	EntryTime  time.Time
	Status     Status

	// Set on close, never partially
	ExitPrice decimal.Decimal
	ExitTime  time.Time
	PnL       decimal.Decimal
}

// Notional is quantity × entry price
func (p Position) Notional() decimal.Decimal {
	return p.Quantity.Mul(p.EntryPrice)
}

// TradeLog is one append-only trade journal entry
type TradeLog struct {
	PositionID string
	Symbol     string
	Action     string // LONG, SHORT, CLOSE_LONG, CLOSE_SHORT
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Timestamp  time.Time
}
