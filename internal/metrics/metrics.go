// Package metrics holds the Prometheus instruments for the consistency machinery: compensations
// on the create path, work items on the delete path and what the reconciler does with them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "snippets"

// Reconciler outcomes, used as the "outcome" label.
const (
	OutcomeAcked        = "acked"
	OutcomeRetried      = "retried"
	OutcomeDeadLettered = "dead_lettered"
)

type Metrics struct {
	Compensations           *prometheus.CounterVec // label: result (ok, failed)
	CriticalInconsistencies prometheus.Counter
	WorkItemsEnqueued       *prometheus.CounterVec // label: operation
	EnqueueFailures         *prometheus.CounterVec // label: operation
	WorkItemsProcessed      *prometheus.CounterVec // labels: operation, outcome
	QueueDepth              prometheus.Gauge
}

// New registers all instruments on reg. Tests pass prometheus.NewRegistry() so repeated
// construction does not collide on the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Compensations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compensations_total",
			Help:      "Primary-store rollbacks after a failed index write.",
		}, []string{"result"}),
		CriticalInconsistencies: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "critical_inconsistencies_total",
			Help:      "Snippets left in the primary store after both the index write and the rollback failed.",
		}),
		WorkItemsEnqueued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "enqueued_total",
			Help:      "Work items handed to the reconciliation queue.",
		}, []string{"operation"}),
		EnqueueFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "enqueue_failures_total",
			Help:      "Work items that could not be recorded; the index may hold stale documents.",
		}, []string{"operation"}),
		WorkItemsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "processed_total",
			Help:      "Work items processed by the reconciler.",
		}, []string{"operation", "outcome"}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "pending",
			Help:      "Work items waiting in the reconciliation queue.",
		}),
	}
}

// Nop returns instruments registered nowhere.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
