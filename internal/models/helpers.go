package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	PayoutMultiplier = decimal.RequireFromString("9.9")
	ZeroPayout       = decimal.Zero.Round(2)
)

func (b Bet) Validate() error {
	if strings.TrimSpace(b.Identity) == "" {
		return fmt.Errorf("nickname required")
	}
	if b.Number < MinNumber || b.Number > MaxNumber {
		return fmt.Errorf("number must be %d..%d", MinNumber, MaxNumber)
	}
	if !b.Amount.IsPositive() {
		return fmt.Errorf("amount must be > 0")
	}
	return nil
}

// CalculatePayout returns amount × 9.9 rounded half-up to 2 places when the
// bet hit the winning number, 0.00 otherwise.
func CalculatePayout(bet Bet, winningNumber int) decimal.Decimal {
	if bet.Number != winningNumber {
		return ZeroPayout
	}
	return bet.Amount.Mul(PayoutMultiplier).Round(2)
}

// FormatAmount renders a money value with exactly two decimals.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
