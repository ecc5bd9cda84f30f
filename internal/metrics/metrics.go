// Package metrics defines the Prometheus instruments of the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stormdex"

// Metrics groups every collector so components take a single dependency.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ListingCycles     *prometheus.CounterVec
	ListingDuration   prometheus.Histogram
	PoolsPublished    prometheus.Gauge
	EligiblePools     prometheus.Gauge
	EnrichmentBatches *prometheus.CounterVec
	EnrichmentCursor  prometheus.Gauge
	AuditRecords      prometheus.Gauge
	SessionSelections *prometheus.CounterVec
	Deposits          *prometheus.CounterVec
	WebsocketClients  prometheus.Gauge
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ListingCycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listing",
			Name:      "cycles_total",
			Help:      "Listing poll cycles by result.",
		}, []string{"result"}),
		ListingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "listing",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a listing poll cycle including both page requests.",
			Buckets:   prometheus.DefBuckets,
		}),
		PoolsPublished: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "listing",
			Name:      "pools_published",
			Help:      "Number of pool records in the currently published snapshot.",
		}),
		EligiblePools: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "listing",
			Name:      "audit_eligible_pools",
			Help:      "Number of published pools eligible for audit enrichment.",
		}),
		EnrichmentBatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "batches_total",
			Help:      "Enrichment batches by result.",
		}, []string{"result"}),
		EnrichmentCursor: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "cursor",
			Help:      "Current offset into the eligible token queue.",
		}),
		AuditRecords: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "audit_records",
			Help:      "Number of tokens with an audit record.",
		}),
		SessionSelections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "activations_total",
			Help:      "Session cache activations by outcome (hit, selected, empty, error).",
		}, []string{"outcome"}),
		Deposits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "deposits_total",
			Help:      "Submitted deposit transactions by settlement.",
		}, []string{"result"}),
		WebsocketClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "websocket_clients",
			Help:      "Currently connected websocket clients.",
		}),
	}
}

func (m *Metrics) ObserveCycle(result string, seconds float64) {
	if m == nil {
		return
	}
	m.ListingCycles.WithLabelValues(result).Inc()
	m.ListingDuration.Observe(seconds)
}

func (m *Metrics) SetPublished(pools, eligible int) {
	if m == nil {
		return
	}
	m.PoolsPublished.Set(float64(pools))
	m.EligiblePools.Set(float64(eligible))
}

func (m *Metrics) ObserveBatch(result string, cursor, audits int) {
	if m == nil {
		return
	}
	m.EnrichmentBatches.WithLabelValues(result).Inc()
	m.EnrichmentCursor.Set(float64(cursor))
	m.AuditRecords.Set(float64(audits))
}

func (m *Metrics) ObserveSession(outcome string) {
	if m == nil {
		return
	}
	m.SessionSelections.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveDeposit(result string) {
	if m == nil {
		return
	}
	m.Deposits.WithLabelValues(result).Inc()
}

func (m *Metrics) AddWebsocketClients(delta int) {
	if m == nil {
		return
	}
	m.WebsocketClients.Add(float64(delta))
}
