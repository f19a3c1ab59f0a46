package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	betsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "game_bets_total",
			Help: "Bet submissions by result",
		},
		[]string{"result"},
	)

	roundsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_rounds_opened_total",
		Help: "Rounds opened",
	})

	settlementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_settlements_total",
		Help: "Rounds settled",
	})

	winnersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_winners_total",
		Help: "Winning bets paid out",
	})

	settlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_settlement_duration_ms",
		Help:    "Time spent settling a round in milliseconds",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)

// RecordBet counts a bet by its result: ACCEPTED | DUPLICATE | CLOSED | INVALID.
func RecordBet(result string) {
	betsTotal.WithLabelValues(result).Inc()
}

func RecordRoundOpened() {
	roundsOpened.Inc()
}

func RecordSettlement(winners int, started time.Time) {
	settlementsTotal.Inc()
	winnersTotal.Add(float64(winners))
	settlementDuration.Observe(float64(time.Since(started).Microseconds()) / 1000)
}
