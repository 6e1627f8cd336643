package core

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts import activity with Prometheus collectors. It is a Reporter,
// so it can be combined with a LogReporter through Reporters.
type Metrics struct {
	records        *prometheus.CounterVec
	propertyWrites prometheus.Counter
	runs           *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
}

// NewMetrics creates the import collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assayimport",
			Name:      "records_total",
			Help:      "Records processed, by reconciliation mode and action.",
		}, []string{"mode", "action"}),
		propertyWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assayimport",
			Name:      "property_writes_total",
			Help:      "Generic assay properties committed.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assayimport",
			Name:      "runs_total",
			Help:      "Import runs, by mode and status.",
		}, []string{"mode", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "assayimport",
			Name:      "run_duration_seconds",
			Help:      "Wall time of import runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 4, 8),
		}, []string{"mode"}),
	}
	if reg != nil {
		reg.MustRegister(m.records, m.propertyWrites, m.runs, m.runDuration)
	}
	return m
}

// Report implements Reporter.
func (m *Metrics) Report(_ context.Context, ev Event) {
	mode := string(ev.Mode)
	switch ev.Kind {
	case EventAdding:
		m.records.WithLabelValues(mode, string(ActionCreated)).Inc()
		m.propertyWrites.Add(float64(ev.Properties))
	case EventUpdating:
		m.records.WithLabelValues(mode, string(ActionUpdated)).Inc()
		m.propertyWrites.Add(float64(ev.Properties))
	case EventFailed:
		m.records.WithLabelValues(mode, string(ActionFailed)).Inc()
	case EventRunFinished:
		if ev.Result == nil {
			return
		}
		status := "ok"
		switch {
		case ev.Result.Error != "":
			status = "aborted"
		case len(ev.Result.Failed) > 0:
			status = "partial"
		}
		m.runs.WithLabelValues(mode, status).Inc()
		m.runDuration.WithLabelValues(mode).Observe(ev.Result.Duration.Seconds())
	}
}
