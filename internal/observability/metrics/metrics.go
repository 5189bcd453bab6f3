package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics captures lifecycle, capture and reconciliation health signals.
type EngineMetrics struct {
	jobRuns          *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	jobErrors        *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	paymentEvents    *prometheus.CounterVec
	eventReplays     prometheus.Counter
	discrepancies    *prometheus.CounterVec
	notificationsOut prometheus.Counter
}

var (
	engineOnce sync.Once
	engine     *EngineMetrics
)

// Engine returns the process-wide engine metrics, registering them on first use.
func Engine() *EngineMetrics {
	engineOnce.Do(func() {
		engine = newEngineMetrics(prometheus.DefaultRegisterer)
	})
	return engine
}

func newEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	factory := promauto.With(reg)
	return &EngineMetrics{
		jobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "namevault_engine_job_runs_total",
			Help: "Engine job invocations by job name.",
		}, []string{"job"}),
		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "namevault_engine_job_duration_seconds",
			Help:    "Engine job duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		jobErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "namevault_engine_job_errors_total",
			Help: "Engine job errors by job name.",
		}, []string{"job"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "namevault_domain_transitions_total",
			Help: "Domain lifecycle transitions by old and new status.",
		}, []string{"from", "to"}),
		paymentEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "namevault_payment_events_total",
			Help: "Processed payment events by provider and type.",
		}, []string{"provider", "type"}),
		eventReplays: factory.NewCounter(prometheus.CounterOpts{
			Name: "namevault_payment_event_replays_total",
			Help: "Webhook deliveries skipped as already-processed replays.",
		}),
		discrepancies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "namevault_reconciliation_discrepancies_total",
			Help: "Reconciliation discrepancies by type.",
		}, []string{"type"}),
		notificationsOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "namevault_notifications_dispatched_total",
			Help: "Milestone notifications handed to the dispatcher.",
		}),
	}
}

func (m *EngineMetrics) IncJobRun(job string) {
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *EngineMetrics) ObserveJobDuration(job string, d time.Duration) {
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *EngineMetrics) IncJobError(job string) {
	m.jobErrors.WithLabelValues(job).Inc()
}

func (m *EngineMetrics) IncTransition(from, to string) {
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *EngineMetrics) IncPaymentEvent(provider, eventType string) {
	m.paymentEvents.WithLabelValues(provider, eventType).Inc()
}

func (m *EngineMetrics) IncEventReplay() {
	m.eventReplays.Inc()
}

func (m *EngineMetrics) IncDiscrepancy(kind string) {
	m.discrepancies.WithLabelValues(kind).Inc()
}

func (m *EngineMetrics) IncNotificationDispatched() {
	m.notificationsOut.Inc()
}
