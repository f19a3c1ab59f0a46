package services_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"numbers-game-backend/internal/models"
	"numbers-game-backend/internal/services"
)

func TestBetLedgerPutIfAbsent(t *testing.T) {
	ledger := services.NewBetLedger(3)
	assert.Equal(t, int64(3), ledger.RoundID())

	first := models.NewBet("John", 7, decimal.NewFromInt(10))
	prev, err := ledger.PutIfAbsent(first)
	require.NoError(t, err)
	assert.Nil(t, prev)

	prev, err = ledger.PutIfAbsent(models.NewBet("John", 2, decimal.NewFromInt(5)))
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, 7, prev.Number)

	stored, ok := ledger.Get("John")
	require.True(t, ok)
	assert.Equal(t, 7, stored.Number)
	assert.True(t, stored.Amount.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 1, ledger.Len())
}

func TestBetLedgerSealKeepsAcceptanceOrder(t *testing.T) {
	ledger := services.NewBetLedger(1)
	for _, name := range []string{"Neo", "Trinity", "Morpheus", "Tank"} {
		_, err := ledger.PutIfAbsent(models.NewBet(name, 1, decimal.NewFromInt(1)))
		require.NoError(t, err)
	}

	bets := ledger.Seal()
	require.Len(t, bets, 4)
	assert.Equal(t, "Neo", bets[0].Identity)
	assert.Equal(t, "Trinity", bets[1].Identity)
	assert.Equal(t, "Morpheus", bets[2].Identity)
	assert.Equal(t, "Tank", bets[3].Identity)

	assert.True(t, ledger.Sealed())

	_, err := ledger.PutIfAbsent(models.NewBet("Oracle", 1, decimal.NewFromInt(1)))
	assert.ErrorIs(t, err, services.ErrLedgerSealed)
	assert.Equal(t, 4, ledger.Len())

	assert.Len(t, ledger.Seal(), 4)
}

func TestBetLedgerConcurrentWriters(t *testing.T) {
	ledger := services.NewBetLedger(1)

	var wg sync.WaitGroup
	var inserted atomic.Int64
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				// every goroutine races on the same 100 identities
				prev, err := ledger.PutIfAbsent(models.NewBet(fmt.Sprintf("player-%d", i), 1+g%10, decimal.NewFromInt(1)))
				if err == nil && prev == nil {
					inserted.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), inserted.Load())
	assert.Equal(t, 100, ledger.Len())
	assert.Len(t, ledger.Seal(), 100)
}
