package models

import (
	"slices"

	"github.com/shopspring/decimal"
)

type WinnerInfo struct {
	Identity string          `json:"nickname"`
	Winnings decimal.Decimal `json:"winnings"`
}

type Settlement struct {
	RoundID       int64        `json:"round_id"`
	WinningNumber int          `json:"winning_number"`
	Winners       []WinnerInfo `json:"winners"`
}

// Clone returns a copy that does not share the winners slice.
func (s Settlement) Clone() Settlement {
	s.Winners = slices.Clone(s.Winners)
	if s.Winners == nil {
		s.Winners = []WinnerInfo{}
	}
	return s
}
