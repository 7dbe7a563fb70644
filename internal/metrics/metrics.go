package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cage_events_ingested_total",
		Help: "Total number of events accepted and appended, labelled by event type.",
	}, []string{"event_type"})

	ValidationRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cage_validation_rejected_total",
		Help: "Total number of ingestion requests rejected for invalid shape.",
	})

	StorageErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cage_storage_errors_total",
		Help: "Total number of partition append failures (still acknowledged to the sender).",
	})

	AppendDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cage_append_duration_ms",
		Help:    "Partition append latency in milliseconds.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
	})

	StreamSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cage_stream_subscribers",
		Help: "Number of currently connected live-stream subscribers.",
	})

	StreamDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cage_stream_dropped_total",
		Help: "Total number of events dropped for slow live-stream subscribers.",
	})

	RulesMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cage_rules_matched_total",
		Help: "Total number of guard-rule matches, labelled by rule ID and action.",
	}, []string{"rule_id", "action"})
)
