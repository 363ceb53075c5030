package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "paystream_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	streamOps       *prometheus.CounterVec
	streamOpLatency *prometheus.HistogramVec

	ledgerMovements *prometheus.CounterVec

	statementExportTotal   *prometheus.CounterVec
	statementExportLatency *prometheus.HistogramVec

	runwayAlertsTotal *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		streamOps = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "stream_ops_total",
				Help: "Total stream lifecycle operations by operation and result",
			},
			[]string{"op", "result"},
		)
		streamOpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "stream_op_latency_seconds",
				Help:    "Stream lifecycle operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "result"},
		)

		ledgerMovements = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_movements_total",
				Help: "Total balance ledger movements by entry type and result",
			},
			[]string{"entry_type", "result"},
		)

		statementExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_export_total",
				Help: "Total stream statement exports by format and result",
			},
			[]string{"format", "result"},
		)
		statementExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "statement_export_latency_seconds",
				Help:    "Stream statement export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		runwayAlertsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "runway_alerts_total",
				Help: "Total runway alert notifications by health",
			},
			[]string{"health"},
		)

		prometheus.MustRegister(
			streamOps,
			streamOpLatency,
			ledgerMovements,
			statementExportTotal,
			statementExportLatency,
			runwayAlertsTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncStreamOp increments the stream operation counter.
func IncStreamOp(op, result string) {
	if result == "" {
		result = resultSuccess
	}
	if streamOps != nil {
		streamOps.WithLabelValues(op, result).Inc()
	}
}

// ObserveStreamOp records a stream operation duration and result.
func ObserveStreamOp(op, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if streamOps != nil {
		streamOps.WithLabelValues(op, result).Inc()
	}
	if streamOpLatency != nil {
		streamOpLatency.WithLabelValues(op, result).Observe(duration.Seconds())
	}
}

// IncLedgerMovement increments the ledger movement counter.
func IncLedgerMovement(entryType string, err error) {
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	if ledgerMovements != nil {
		ledgerMovements.WithLabelValues(entryType, result).Inc()
	}
}

// ObserveStatementExport records a statement export.
func ObserveStatementExport(format, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if statementExportTotal != nil {
		statementExportTotal.WithLabelValues(format, result).Inc()
	}
	if statementExportLatency != nil {
		statementExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncRunwayAlert counts a runway alert notification.
func IncRunwayAlert(health string) {
	if health == "" {
		health = "unknown"
	}
	if runwayAlertsTotal != nil {
		runwayAlertsTotal.WithLabelValues(health).Inc()
	}
}
