package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline counters, exposed on the health server's /metrics endpoint
var (
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_decisions_total",
		Help: "Triage decisions by chosen action",
	}, []string{"action"})

	FallbackActivations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triage_classifier_fallbacks_total",
		Help: "Times the rule-based classifier served in place of the reasoning engine",
	})

	EscalationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_sla_escalations_total",
		Help: "SLA escalations fired, by level",
	}, []string{"level"})

	ReconciledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_reconciled_decisions_total",
		Help: "Decisions settled by the feedback reconciler, by outcome",
	}, []string{"outcome"})

	PublishRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triage_publish_retries_total",
		Help: "Event bus publish retries due to broker unavailability",
	})

	DuplicateDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triage_duplicate_deliveries_total",
		Help: "Ingest redeliveries skipped by the idempotency check",
	})

	OpenSLARecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triage_open_sla_records",
		Help: "Open SLA records seen by the last sweep",
	})
)
