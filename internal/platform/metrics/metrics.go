// Package metrics registers the Prometheus instruments for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	AuditRecords *prometheus.CounterVec
	BatchRows    *prometheus.CounterVec
	Restores     prometheus.Counter
	HardDeletes  prometheus.Counter
}

// New creates and registers all metrics against the given registerer. A nil
// registerer falls back to the default one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		AuditRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ams_audit_records_total",
			Help: "Audit records appended, by action and status",
		}, []string{"action", "status"}),
		BatchRows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ams_batch_rows_total",
			Help: "Batch update rows processed, by outcome",
		}, []string{"outcome"}),
		Restores: factory.NewCounter(prometheus.CounterOpts{
			Name: "ams_restores_total",
			Help: "Applicants restored from the audit log",
		}),
		HardDeletes: factory.NewCounter(prometheus.CounterOpts{
			Name: "ams_hard_deletes_total",
			Help: "Applicants irreversibly removed",
		}),
	}
}

// AuditRecordWritten satisfies the audit writer's observer hook.
func (m *Metrics) AuditRecordWritten(action, status string) {
	if m == nil {
		return
	}
	m.AuditRecords.WithLabelValues(action, status).Inc()
}

// ObserveBatchRow counts one processed batch row by its outcome status.
func (m *Metrics) ObserveBatchRow(outcome string) {
	if m == nil {
		return
	}
	m.BatchRows.WithLabelValues(outcome).Inc()
}

// ObserveRestore counts one completed restore.
func (m *Metrics) ObserveRestore() {
	if m == nil {
		return
	}
	m.Restores.Inc()
}

// ObserveHardDelete counts one completed hard delete.
func (m *Metrics) ObserveHardDelete() {
	if m == nil {
		return
	}
	m.HardDeletes.Inc()
}
