package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "fuelsync_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	readingsIngested  *prometheus.CounterVec
	salesDerived      prometheus.Counter
	derivationFaults  *prometheus.CounterVec
	derivationTotal   *prometheus.CounterVec
	derivationLatency *prometheus.HistogramVec

	closureSaveTotal       *prometheus.CounterVec
	closureSaveLatency     *prometheus.HistogramVec
	closureTransitionTotal *prometheus.CounterVec
	closureExportTotal     *prometheus.CounterVec
	closureExportLatency   *prometheus.HistogramVec

	settlementTotal   *prometheus.CounterVec
	settlementLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total OCR ingest requests by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total OCR ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "OCR ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		readingsIngested = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "readings_ingested_total",
				Help: "Total nozzle readings stored by source",
			},
			[]string{"source"},
		)
		salesDerived = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "sales_derived_total",
				Help: "Total sales derived from readings",
			},
		)
		derivationFaults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "derivation_faults_total",
				Help: "Per-nozzle derivation faults by reason",
			},
			[]string{"reason"},
		)
		derivationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "derivation_runs_total",
				Help: "Total derivation runs by result",
			},
			[]string{"result"},
		)
		derivationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "derivation_latency_seconds",
				Help:    "Derivation run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		closureSaveTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "closure_save_total",
				Help: "Total closure draft saves by result",
			},
			[]string{"result"},
		)
		closureSaveLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "closure_save_latency_seconds",
				Help:    "Closure save latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		closureTransitionTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "closure_transitions_total",
				Help: "Total closure state transitions by edge and result",
			},
			[]string{"transition", "result"},
		)
		closureExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "closure_export_total",
				Help: "Total closure export operations by format and result",
			},
			[]string{"format", "result"},
		)
		closureExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "closure_export_latency_seconds",
				Help:    "Closure export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		settlementTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "settlement_apply_total",
				Help: "Total credit settlement applications by result",
			},
			[]string{"result"},
		)
		settlementLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "settlement_apply_latency_seconds",
				Help:    "Credit settlement latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			readingsIngested,
			salesDerived,
			derivationFaults,
			derivationTotal,
			derivationLatency,
			closureSaveTotal,
			closureSaveLatency,
			closureTransitionTotal,
			closureExportTotal,
			closureExportLatency,
			settlementTotal,
			settlementLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveIngest records ingest request duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// IncReadingIngested increments the stored reading counter by source.
func IncReadingIngested(source string) {
	if source == "" {
		source = "unknown"
	}
	if readingsIngested != nil {
		readingsIngested.WithLabelValues(source).Inc()
	}
}

// AddSalesDerived increments the derived sale counter by count.
func AddSalesDerived(count int) {
	if count <= 0 {
		return
	}
	if salesDerived != nil {
		salesDerived.Add(float64(count))
	}
}

// IncDerivationFault increments the per-nozzle fault counter.
func IncDerivationFault(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if derivationFaults != nil {
		derivationFaults.WithLabelValues(reason).Inc()
	}
}

// ObserveDerivation records derivation run latency and result.
func ObserveDerivation(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if derivationTotal != nil {
		derivationTotal.WithLabelValues(result).Inc()
	}
	if derivationLatency != nil {
		derivationLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveClosureSave records closure save latency and result.
func ObserveClosureSave(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if closureSaveTotal != nil {
		closureSaveTotal.WithLabelValues(result).Inc()
	}
	if closureSaveLatency != nil {
		closureSaveLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncClosureTransition increments the transition counter for an edge.
func IncClosureTransition(transition, result string) {
	if transition == "" {
		transition = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if closureTransitionTotal != nil {
		closureTransitionTotal.WithLabelValues(transition, result).Inc()
	}
}

// ObserveClosureExport records export latency and result.
func ObserveClosureExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if closureExportTotal != nil {
		closureExportTotal.WithLabelValues(format, result).Inc()
	}
	if closureExportLatency != nil {
		closureExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// ObserveSettlement records settlement application latency and result.
func ObserveSettlement(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if settlementTotal != nil {
		settlementTotal.WithLabelValues(result).Inc()
	}
	if settlementLatency != nil {
		settlementLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
