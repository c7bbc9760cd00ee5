package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SignalsTotal counts login-trigger signals by channel
	SignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capture_agent_signals_total",
		Help: "Total number of login-trigger signals published, by channel",
	}, []string{"kind"})

	// SignalsSuppressedTotal counts signals de-duplicated within the debounce window
	SignalsSuppressedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capture_agent_signals_suppressed_total",
		Help: "Total number of duplicate signals suppressed by the bus",
	})

	// SignalsDroppedTotal counts signals dropped on a full bus buffer
	SignalsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capture_agent_signals_dropped_total",
		Help: "Total number of signals dropped because the bus buffer was full",
	})

	// AttemptsCapturedTotal counts attempts that reached the pending cache
	AttemptsCapturedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capture_agent_attempts_captured_total",
		Help: "Total number of credential attempts captured",
	})

	// AttemptsDiscardedTotal counts signals with no usable password field
	AttemptsDiscardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capture_agent_attempts_discarded_total",
		Help: "Total number of trigger signals discarded for lacking a password value",
	})

	// AttemptsExpiredTotal counts pending attempts dropped by TTL expiry
	AttemptsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capture_agent_attempts_expired_total",
		Help: "Total number of pending attempts expired before confirmation",
	})

	// ConfirmationsTotal counts confirmed logins by trigger type
	ConfirmationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capture_agent_confirmations_total",
		Help: "Total number of confirmed login attempts, by confirming trigger",
	}, []string{"trigger"})

	// UpsertsTotal counts record store commits by outcome
	UpsertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capture_agent_upserts_total",
		Help: "Total number of record upserts, by outcome (insert, update, error)",
	}, []string{"outcome"})

	// RecordsStored tracks the size of the record collection
	RecordsStored = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "capture_agent_records_stored",
		Help: "Current number of persisted login records",
	})

	// NotifyDroppedTotal counts relay messages that found no listener
	NotifyDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capture_agent_notify_dropped_total",
		Help: "Total number of relay messages dropped for lack of a listener",
	})

	// ConfirmDuration tracks capture-to-confirmation latency
	ConfirmDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "capture_agent_confirm_duration_seconds",
		Help:    "Time between capturing an attempt and confirming it",
		Buckets: prometheus.DefBuckets,
	})

	// IngestEventsTotal counts ingest API events by type
	IngestEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capture_agent_ingest_events_total",
		Help: "Total number of ingest events accepted, by type",
	}, []string{"type"})
)

// RecordSignal records a published signal
func RecordSignal(kind string) {
	SignalsTotal.WithLabelValues(kind).Inc()
}

// RecordConfirmation records a confirmed login
func RecordConfirmation(trigger string) {
	ConfirmationsTotal.WithLabelValues(trigger).Inc()
}

// RecordUpsert records an upsert outcome and the new collection size
func RecordUpsert(outcome string, total int) {
	UpsertsTotal.WithLabelValues(outcome).Inc()
	if outcome != "error" {
		RecordsStored.Set(float64(total))
	}
}
