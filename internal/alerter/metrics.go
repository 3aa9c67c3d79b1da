package alerter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	alertsReported = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "alertbatch",
		Name:      "alerts_reported_total",
		Help:      "Alerts accepted by Report.",
	})

	alertsRepeated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "alertbatch",
		Name:      "alerts_repeated_total",
		Help:      "Reported alerts folded into an already pending alert with the same key.",
	})

	alertsRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "alertbatch",
		Name:      "alerts_recovered_total",
		Help:      "Pending alerts dropped at flush time because they had recovered.",
	})

	flushCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alertbatch",
		Name:      "flush_cycles_total",
		Help:      "Flush cycles by result (empty, done, failed).",
	}, []string{"result"})

	flushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "alertbatch",
		Name:      "flush_cycle_duration_seconds",
		Help:      "Wall time of non-empty flush cycles.",
		Buckets:   prometheus.DefBuckets,
	})

	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alertbatch",
		Name:      "messages_total",
		Help:      "Aggregated messages handed to the sender, by result (sent, failed).",
	}, []string{"result"})
)
