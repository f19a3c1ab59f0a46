package services

import (
	"time"

	"github.com/shopspring/decimal"

	"numbers-game-backend/internal/models"
)

// EventSink receives round notifications from the GameEngine. Calls are made
// synchronously from the settlement critical section, so implementations
// must enqueue and return rather than block on I/O.
type EventSink interface {
	OnRoundOpened(roundID int64, closesAt time.Time)
	OnRoundSettled(roundID int64, winningNumber int)
	OnWinnersAnnounced(roundID int64, winners []models.WinnerInfo)
	OnPlayerResult(roundID int64, identity string, payout decimal.Decimal)
}
