// Package metrics exposes Prometheus instruments for campaign runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sms_campaign"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	messagesSent   *prometheus.CounterVec
	segmentsSent   *prometheus.CounterVec
	estimatedCost  *prometheus.CounterVec
	eligible       *prometheus.GaugeVec
	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
	sendDuration   prometheus.Histogram
	optOutsApplied *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		messagesSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Send attempts by campaign kind and outcome.",
		}, []string{"kind", "outcome"}),
		segmentsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_sent_total",
			Help:      "Billable segments of successfully sent messages.",
		}, []string{"kind", "encoding"}),
		estimatedCost: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimated_cost_dollars_total",
			Help:      "Estimated spend of successfully sent messages.",
		}, []string{"kind"}),
		eligible: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "eligible_customers",
			Help:      "Eligible recipients found for a campaign in the latest run.",
		}, []string{"campaign_row", "kind"}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed run loops by result.",
		}, []string{"result"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full run loop.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}),
		sendDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Duration of one provider send including status refresh.",
			Buckets:   prometheus.DefBuckets,
		}),
		optOutsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consent_changes_total",
			Help:      "Consent changes applied from inbound replies.",
		}, []string{"action"}),
	}
}

func (m *Metrics) ObserveSend(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(kind, outcome).Inc()
	m.sendDuration.Observe(d.Seconds())
}

func (m *Metrics) AddSegments(kind, encoding string, segments int, cost float64) {
	if m == nil {
		return
	}
	m.segmentsSent.WithLabelValues(kind, encoding).Add(float64(segments))
	m.estimatedCost.WithLabelValues(kind).Add(cost)
}

func (m *Metrics) SetEligible(campaignRow, kind string, n int) {
	if m == nil {
		return
	}
	m.eligible.WithLabelValues(campaignRow, kind).Set(float64(n))
}

func (m *Metrics) ObserveRun(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result).Inc()
	m.runDuration.Observe(d.Seconds())
}

func (m *Metrics) AddConsentChanges(optedOut, optedIn int) {
	if m == nil {
		return
	}
	m.optOutsApplied.WithLabelValues("opt_out").Add(float64(optedOut))
	m.optOutsApplied.WithLabelValues("opt_in").Add(float64(optedIn))
}
