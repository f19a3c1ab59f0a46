package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	MinNumber = 1
	MaxNumber = 10
)

type Bet struct {
	Identity string          `json:"nickname" redis:"nickname"`
	Number   int             `json:"number" redis:"number"`
	Amount   decimal.Decimal `json:"amount" redis:"amount"`
}

// PlaceBetResult is the outcome of a bet submission. It is never an error:
// transports map each kind to their own response.
type PlaceBetResult string

const (
	PlaceBetAccepted  PlaceBetResult = "ACCEPTED"
	PlaceBetDuplicate PlaceBetResult = "DUPLICATE"
	PlaceBetClosed    PlaceBetResult = "CLOSED"
	PlaceBetInvalid   PlaceBetResult = "INVALID"
)

func NewBet(identity string, number int, amount decimal.Decimal) Bet {
	return Bet{
		Identity: strings.TrimSpace(identity),
		Number:   number,
		Amount:   amount,
	}
}
