package models

import (
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type BetRequest struct {
	Nickname string           `json:"nickname" binding:"required"`
	Number   int              `json:"number" binding:"required,min=1,max=10"`
	Amount   *decimal.Decimal `json:"amount" binding:"required,dmin=0.01"`
}

// ValidateDecimalMin implements the "dmin" tag: the field is a decimal no
// smaller than the tag parameter.
func ValidateDecimalMin(fl validator.FieldLevel) bool {
	limit, err := decimal.NewFromString(fl.Param())
	if err != nil {
		return false
	}

	switch v := fl.Field().Interface().(type) {
	case decimal.Decimal:
		return v.GreaterThanOrEqual(limit)
	case *decimal.Decimal:
		return v != nil && v.GreaterThanOrEqual(limit)
	default:
		return false
	}
}

func (br *BetRequest) ToBet() Bet {
	var amount decimal.Decimal
	if br.Amount != nil {
		amount = *br.Amount
	}
	return NewBet(br.Nickname, br.Number, amount)
}

type RoundResponse struct {
	RoundID       int64      `json:"round_id"`
	State         RoundState `json:"state"`
	OpenedAtMs    int64      `json:"opened_at_ms"`
	ClosesAtMs    int64      `json:"closes_at_ms"`
	WinningNumber *int       `json:"winning_number"`
}

func NewRoundResponse(r Round) RoundResponse {
	resp := RoundResponse{
		RoundID:    r.ID,
		State:      r.State,
		OpenedAtMs: r.OpenedAt.UnixMilli(),
		ClosesAtMs: r.ClosesAt.UnixMilli(),
	}
	if r.State == RoundStateClosed {
		n := r.WinningNumber
		resp.WinningNumber = &n
	}
	return resp
}

type WinnerResponse struct {
	Nickname string `json:"nickname"`
	Winnings string `json:"winnings"`
}

type SettlementResponse struct {
	RoundID       int64            `json:"round_id"`
	WinningNumber int              `json:"winning_number"`
	Winners       []WinnerResponse `json:"winners"`
}

func NewWinnerResponses(winners []WinnerInfo) []WinnerResponse {
	out := make([]WinnerResponse, 0, len(winners))
	for _, w := range winners {
		out = append(out, WinnerResponse{
			Nickname: w.Identity,
			Winnings: FormatAmount(w.Winnings),
		})
	}
	return out
}

func NewSettlementResponse(s Settlement) SettlementResponse {
	return SettlementResponse{
		RoundID:       s.RoundID,
		WinningNumber: s.WinningNumber,
		Winners:       NewWinnerResponses(s.Winners),
	}
}

type ErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}
