package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the verification pipeline collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Submissions accepted or rejected at the queue boundary, by result.
	Submissions *prometheus.CounterVec

	// Decisions produced by the coordinator, by kind.
	Decisions *prometheus.CounterVec

	// Wall-clock duration of one analysis, fetch included.
	AnalysisDuration prometheus.Histogram

	QueueDepth      prometheus.Gauge
	QueueETAAverage prometheus.Gauge

	// Lockouts by reason: strike_lock or identity_mismatch.
	Lockouts *prometheus.CounterVec

	// Gateway calls that failed, by action.
	GatewayFailures *prometheus.CounterVec
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_submissions_total",
			Help: "Submissions seen at the queue boundary by result",
		}, []string{"result"}), // result: "accepted", "already_queued", "locked", "not_configured"

		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_decisions_total",
			Help: "Verification decisions by kind",
		}, []string{"kind"}),

		AnalysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "warden_analysis_duration_seconds",
			Help:    "Duration of one submission from dequeue to decision",
			Buckets: []float64{1, 2.5, 5, 10, 15, 30, 45, 60, 90, 120},
		}),

		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "warden_queue_depth",
			Help: "Submissions queued or in flight",
		}),

		QueueETAAverage: factory.NewGauge(prometheus.GaugeOpts{
			Name: "warden_queue_eta_average_seconds",
			Help: "Clamped moving average of per-job duration used for ETAs",
		}),

		Lockouts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_lockouts_total",
			Help: "Members locked out by reason",
		}, []string{"reason"}),

		GatewayFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_gateway_failures_total",
			Help: "Membership gateway calls that failed by action",
		}, []string{"action"}),
	}
}

func (m *Metrics) IncrementSubmission(result string) {
	if m != nil {
		m.Submissions.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncrementDecision(kind string) {
	if m != nil {
		m.Decisions.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) ObserveAnalysis(d time.Duration) {
	if m != nil {
		m.AnalysisDuration.Observe(d.Seconds())
	}
}

// SetQueue records the current depth and the ETA average.
func (m *Metrics) SetQueue(depth int, average time.Duration) {
	if m != nil {
		m.QueueDepth.Set(float64(depth))
		m.QueueETAAverage.Set(average.Seconds())
	}
}

func (m *Metrics) IncrementLockout(reason string) {
	if m != nil {
		m.Lockouts.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncrementGatewayFailure(action string) {
	if m != nil {
		m.GatewayFailures.WithLabelValues(action).Inc()
	}
}
