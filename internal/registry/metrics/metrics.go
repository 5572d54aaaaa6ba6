package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Submissions     *prometheus.CounterVec
	Decisions       *prometheus.CounterVec
	Expirations     *prometheus.CounterVec
	Admissions      *prometheus.CounterVec
	ApprovalLatency prometheus.Histogram
}

// New registers the registry metrics with reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration panics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qochi_request_submissions_total",
			Help: "Request submissions by kind and outcome",
		}, []string{"kind", "outcome"}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qochi_request_decisions_total",
			Help: "Administrative request decisions by kind and resulting status",
		}, []string{"kind", "status"}),
		Expirations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qochi_request_expirations_total",
			Help: "Approved requests moved to EXPIRED, by kind and trigger",
		}, []string{"kind", "trigger"}),
		Admissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qochi_member_admissions_total",
			Help: "Member admission decisions by status",
		}, []string{"status"}),
		ApprovalLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "qochi_request_approval_duration_seconds",
			Help:    "Time spent applying an approval, including its side effect",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementSubmission(kind, outcome string) {
	m.Submissions.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) IncrementDecision(kind, status string) {
	m.Decisions.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) IncrementExpiration(kind, trigger string) {
	m.Expirations.WithLabelValues(kind, trigger).Inc()
}

func (m *Metrics) IncrementAdmission(status string) {
	m.Admissions.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveApproval(d time.Duration) {
	m.ApprovalLatency.Observe(d.Seconds())
}
