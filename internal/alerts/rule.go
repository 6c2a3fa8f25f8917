// Package alerts evaluates price alert rules against published watch
// snapshots. Delivery beyond logging stays behind the Notifier seam.
package alerts

import (
	"github.com/shopspring/decimal"
)

// Rule is one price alert. Direction is inferred from the price at
// creation time: a threshold above the current price arms an UP alert,
// below arms a DOWN alert.
type Rule struct {
	Symbol     string          `json:"symbol"`
	Threshold  decimal.Decimal `json:"threshold"`
	Direction  string          `json:"direction"` // "UP" or "DOWN"
	Persistent bool            `json:"persistent"`

	active bool
	fired  bool
}

// NewRule creates an armed rule for symbol.
func NewRule(symbol string, threshold, currentPrice decimal.Decimal, persistent bool) *Rule {
	direction := "UP"
	if threshold.LessThan(currentPrice) {
		direction = "DOWN"
	}
	return &Rule{
		Symbol:     symbol,
		Threshold:  threshold,
		Direction:  direction,
		Persistent: persistent,
		active:     true,
	}
}

// Active returns whether the rule is still armed.
func (r *Rule) Active() bool {
	return r.active
}

// SetActive arms or disarms the rule.
func (r *Rule) SetActive(active bool) {
	r.active = active
}

// Check reports whether price satisfies the trigger condition.
func (r *Rule) Check(price decimal.Decimal) bool {
	if !r.active {
		return false
	}
	switch r.Direction {
	case "UP":
		return price.GreaterThanOrEqual(r.Threshold)
	case "DOWN":
		return price.LessThanOrEqual(r.Threshold)
	default:
		return false
	}
}
