package services

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"

	"numbers-game-backend/internal/metrics"
	"numbers-game-backend/internal/models"
)

type GameConfig struct {
	BettingWindow time.Duration
	AutoRepeat    bool
	RepeatDelay   time.Duration
}

// GameEngine runs one round at a time: open, accept bets until the window
// closes, draw, settle, notify sinks.
//
// StartNewRound and closeAndSettle serialize on mu. Readers and PlaceBet
// never take mu; they see the current round, ledger and settlement through
// single-slot atomic publications.
type GameEngine struct {
	cfg    GameConfig
	rng    NumberGenerator
	clock  quartz.Clock
	logger *zap.Logger

	mu          sync.Mutex
	roundSeq    int64
	closeTimer  *quartz.Timer
	repeatTimer *quartz.Timer
	closed      bool

	round      atomic.Pointer[models.Round]
	ledger     atomic.Pointer[BetLedger]
	settlement atomic.Pointer[models.Settlement]

	sinksMu sync.Mutex
	sinks   atomic.Pointer[[]EventSink]
}

func NewGameEngine(cfg GameConfig, rng NumberGenerator, clock quartz.Clock, logger *zap.Logger) *GameEngine {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GameEngine{
		cfg:    cfg,
		rng:    rng,
		clock:  clock,
		logger: logger.Named("engine"),
	}
}

// RegisterListener adds a sink. A sink registered while an event is being
// dispatched may or may not receive that event.
func (ge *GameEngine) RegisterListener(sink EventSink) {
	if sink == nil {
		return
	}

	ge.sinksMu.Lock()
	defer ge.sinksMu.Unlock()

	next := append(slices.Clone(ge.listeners()), sink)
	ge.sinks.Store(&next)
}

func (ge *GameEngine) listeners() []EventSink {
	if p := ge.sinks.Load(); p != nil {
		return *p
	}
	return nil
}

// StartNewRound opens the next round, replacing the current one even if it
// is still open. The abandoned round's timer fires later as a no-op.
func (ge *GameEngine) StartNewRound() models.Round {
	ge.mu.Lock()
	defer ge.mu.Unlock()

	return ge.startRoundLocked()
}

func (ge *GameEngine) startRoundLocked() models.Round {
	ge.roundSeq++
	id := ge.roundSeq

	round := models.NewRound(id, ge.clock.Now(), ge.cfg.BettingWindow)

	// ledger first: a reader that sees the new round must also see its ledger
	ge.ledger.Store(NewBetLedger(id))
	ge.round.Store(&round)
	ge.settlement.Store(nil)

	metrics.RecordRoundOpened()
	ge.logger.Info("round opened",
		zap.Int64("round_id", id),
		zap.Time("closes_at", round.ClosesAt),
	)

	for _, sink := range ge.listeners() {
		sink.OnRoundOpened(id, round.ClosesAt)
	}

	ge.closeTimer = ge.clock.AfterFunc(ge.cfg.BettingWindow, func() {
		ge.closeAndSettle(id)
	}, "GameEngine", "close")

	return round
}

func (ge *GameEngine) CurrentRound() (models.Round, bool) {
	r := ge.round.Load()
	if r == nil {
		return models.Round{}, false
	}
	return *r, true
}

func (ge *GameEngine) LastSettlement() (models.Settlement, bool) {
	s := ge.settlement.Load()
	if s == nil {
		return models.Settlement{}, false
	}
	return s.Clone(), true
}

func (ge *GameEngine) PlaceBet(bet models.Bet) models.PlaceBetResult {
	result := ge.placeBet(bet)
	metrics.RecordBet(string(result))
	return result
}

func (ge *GameEngine) placeBet(bet models.Bet) models.PlaceBetResult {
	bet = models.NewBet(bet.Identity, bet.Number, bet.Amount)
	if err := bet.Validate(); err != nil {
		return models.PlaceBetInvalid
	}

	round := ge.round.Load()
	if round == nil || !round.AcceptsBetsAt(ge.clock.Now()) {
		return models.PlaceBetClosed
	}

	ledger := ge.ledger.Load()
	if ledger == nil || ledger.RoundID() != round.ID {
		return models.PlaceBetClosed
	}

	prev, err := ledger.PutIfAbsent(bet)
	if err != nil {
		// settlement sealed the ledger after our state check
		return models.PlaceBetClosed
	}
	if prev != nil {
		return models.PlaceBetDuplicate
	}

	ge.logger.Debug("bet accepted",
		zap.Int64("round_id", round.ID),
		zap.String("nickname", bet.Identity),
		zap.Int("number", bet.Number),
		zap.String("amount", bet.Amount.String()),
	)
	return models.PlaceBetAccepted
}

// closeAndSettle is the timer callback for roundID. It does nothing unless
// roundID is still the published round and still open.
func (ge *GameEngine) closeAndSettle(roundID int64) {
	ge.mu.Lock()
	defer ge.mu.Unlock()

	if ge.closed {
		return
	}

	current := ge.round.Load()
	if current == nil || current.ID != roundID || !current.IsOpen() {
		ge.logger.Debug("stale close timer ignored", zap.Int64("round_id", roundID))
		return
	}

	started := time.Now()
	winning := ge.rng.Next()

	closed := current.Closed(winning)
	ge.round.Store(&closed)

	var bets []models.Bet
	if ledger := ge.ledger.Load(); ledger != nil {
		if ledger.RoundID() != current.ID {
			ge.logger.DPanic("ledger does not belong to the closing round",
				zap.Int64("round_id", current.ID),
				zap.Int64("ledger_round_id", ledger.RoundID()),
			)
		} else {
			bets = ledger.Seal()
		}
	}

	sinks := ge.listeners()
	winners := make([]models.WinnerInfo, 0)
	for _, bet := range bets {
		payout := models.CalculatePayout(bet, winning)

		for _, sink := range sinks {
			sink.OnPlayerResult(roundID, bet.Identity, payout)
		}

		if payout.IsPositive() {
			winners = append(winners, models.WinnerInfo{
				Identity: bet.Identity,
				Winnings: payout,
			})
		}
	}

	ge.settlement.Store(&models.Settlement{
		RoundID:       roundID,
		WinningNumber: winning,
		Winners:       winners,
	})

	for _, sink := range sinks {
		sink.OnWinnersAnnounced(roundID, slices.Clone(winners))
	}
	for _, sink := range sinks {
		sink.OnRoundSettled(roundID, winning)
	}

	metrics.RecordSettlement(len(winners), started)
	ge.logger.Info("round settled",
		zap.Int64("round_id", roundID),
		zap.Int("winning_number", winning),
		zap.Int("bets", len(bets)),
		zap.Int("winners", len(winners)),
	)

	if ge.cfg.AutoRepeat {
		ge.repeatTimer = ge.clock.AfterFunc(ge.cfg.RepeatDelay, func() {
			ge.repeatAfter(roundID)
		}, "GameEngine", "repeat")
	}
}

// repeatAfter opens the next round unless something else already replaced
// settledID in the meantime (e.g. a manual start).
func (ge *GameEngine) repeatAfter(settledID int64) {
	ge.mu.Lock()
	defer ge.mu.Unlock()

	if ge.closed {
		return
	}
	if current := ge.round.Load(); current == nil || current.ID != settledID {
		ge.logger.Debug("auto-repeat skipped, round already replaced", zap.Int64("round_id", settledID))
		return
	}

	ge.startRoundLocked()
}

// Close stops pending timers. Callbacks already in flight become no-ops.
func (ge *GameEngine) Close() {
	ge.mu.Lock()
	defer ge.mu.Unlock()

	ge.closed = true
	if ge.closeTimer != nil {
		ge.closeTimer.Stop()
	}
	if ge.repeatTimer != nil {
		ge.repeatTimer.Stop()
	}
}
