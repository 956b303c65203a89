package types

import "errors"

// Failure taxonomy. Ledger and gate failures are terminal for the current
// command and travel back to the caller as data, never as panics.
var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientMargin  = errors.New("insufficient margin")
	ErrNoMatchingPositions = errors.New("no matching open positions")
	ErrPriceUnavailable    = errors.New("price unavailable")
	ErrEngineInactive      = errors.New("trading engine is not active")
	ErrUnknownCommand      = errors.New("unknown command")
	ErrPersistenceFailure  = errors.New("persistence failure")
)

// RiskError carries the gate's denial reason
type RiskError struct {
	Reason string
}

func (e *RiskError) Error() string {
	return "risk limit exceeded: " + e.Reason
}

// IsRiskDenial reports whether err is a gate denial and returns its reason
func IsRiskDenial(err error) (string, bool) {
	var re *RiskError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return "", false
}
