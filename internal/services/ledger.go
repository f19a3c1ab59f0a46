package services

import (
	"cmp"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"numbers-game-backend/internal/models"
)

var ErrLedgerSealed = errors.New("ledger sealed")

type ledgerEntry struct {
	seq uint64
	bet models.Bet
}

// BetLedger holds the accepted bets of exactly one round, keyed by identity.
// Inserts are per-entry atomic and never block one another; Seal excludes
// in-flight inserts only for the instant it takes to flip the flag.
type BetLedger struct {
	roundID int64

	sealMu sync.RWMutex
	sealed bool

	seq     atomic.Uint64
	count   atomic.Int64
	entries sync.Map // identity -> *ledgerEntry
}

func NewBetLedger(roundID int64) *BetLedger {
	return &BetLedger{roundID: roundID}
}

func (l *BetLedger) RoundID() int64 {
	return l.roundID
}

// PutIfAbsent stores bet under its identity unless one is already present.
// It returns nil on insertion and the stored bet otherwise. After Seal every
// call fails with ErrLedgerSealed.
func (l *BetLedger) PutIfAbsent(bet models.Bet) (*models.Bet, error) {
	l.sealMu.RLock()
	defer l.sealMu.RUnlock()

	if l.sealed {
		return nil, ErrLedgerSealed
	}

	entry := &ledgerEntry{seq: l.seq.Add(1), bet: bet}
	actual, loaded := l.entries.LoadOrStore(bet.Identity, entry)
	if loaded {
		existing := actual.(*ledgerEntry).bet
		return &existing, nil
	}
	l.count.Add(1)
	return nil, nil
}

func (l *BetLedger) Get(identity string) (models.Bet, bool) {
	v, ok := l.entries.Load(identity)
	if !ok {
		return models.Bet{}, false
	}
	return v.(*ledgerEntry).bet, true
}

func (l *BetLedger) Len() int {
	return int(l.count.Load())
}

func (l *BetLedger) Sealed() bool {
	l.sealMu.RLock()
	defer l.sealMu.RUnlock()
	return l.sealed
}

// Seal freezes the ledger and returns its bets in acceptance order.
// Sealing twice returns the same frozen set.
func (l *BetLedger) Seal() []models.Bet {
	l.sealMu.Lock()
	l.sealed = true
	l.sealMu.Unlock()

	return l.snapshot()
}

func (l *BetLedger) snapshot() []models.Bet {
	var entries []*ledgerEntry
	l.entries.Range(func(_, v any) bool {
		entries = append(entries, v.(*ledgerEntry))
		return true
	})

	slices.SortFunc(entries, func(a, b *ledgerEntry) int {
		return cmp.Compare(a.seq, b.seq)
	})

	bets := make([]models.Bet, 0, len(entries))
	for _, e := range entries {
		bets = append(bets, e.bet)
	}
	return bets
}
