package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections",
		Help: "Live websocket connections",
	})

	wsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_deliveries_dropped_total",
			Help: "Outbound messages that could not be delivered, by reason",
		},
		[]string{"reason"},
	)

	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Events republished to redis, by outcome",
		},
		[]string{"outcome"},
	)
)

func ConnectionOpened() { wsConnections.Inc() }

func ConnectionClosed() { wsConnections.Dec() }

// RecordDropped: reason is "buffer_full" | "closed" | "write_error" | "encode_error".
func RecordDropped(reason string) {
	wsDropped.WithLabelValues(reason).Inc()
}

func RecordPublished(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "fail"
	}
	eventsPublished.WithLabelValues(outcome).Inc()
}
