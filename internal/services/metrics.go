package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RemindersGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_generated_total",
		Help: "Reminder candidates submitted to dedup/upsert, by type and outcome (created, updated, unchanged, skipped, failed).",
	}, []string{"type", "outcome"})

	RemindersDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_dispatched_total",
		Help: "Reminders transitioned to sent, by delivery outcome.",
	}, []string{"delivery"})

	PushSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_push_sends_total",
		Help: "Per-subscription push attempts, by result (ok, failed, gone).",
	}, []string{"result"})

	InteractionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_interactions_total",
		Help: "Interactions appended to the reminder audit log, by action.",
	}, []string{"action"})

	RemindersSwept = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_swept_total",
		Help: "Reminders closed by the retention sweep, by reason.",
	}, []string{"reason"})

	AnalyticsFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminder_analytics_update_failures_total",
		Help: "Analytics updates that failed and were rolled back without affecting the interaction.",
	})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reminder_tick_duration_seconds",
		Help:    "Duration of a full scheduler tick.",
		Buckets: prometheus.DefBuckets,
	})

	TicksSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminder_ticks_skipped_total",
		Help: "Ticks skipped because another instance held the tick lock.",
	})
)
