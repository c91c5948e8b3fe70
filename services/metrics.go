package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Record outcomes counted by Metrics.
const (
	OutcomeCreated = "created"
	OutcomeUpdated = "updated"
	OutcomeFailed  = "failed"
)

// Metrics counts ingested records per platform, resource and outcome.
type Metrics struct {
	records *prometheus.CounterVec
	runs    *prometheus.CounterVec
}

// NewMetrics creates the ingestion counters and registers them with reg. A nil reg leaves the
// counters unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_ingested_records_total",
				Help: "Total number of records ingested from connectors, by outcome.",
			},
			[]string{"platform", "resource", "outcome"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_sync_runs_total",
				Help: "Total number of connector synchronisation runs.",
			},
			[]string{"platform", "resource"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.records, m.runs)
	}
	return m
}

func (m *Metrics) record(platform, resource, outcome string) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(platform, resource, outcome).Inc()
}

func (m *Metrics) run(platform, resource string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(platform, resource).Inc()
}
