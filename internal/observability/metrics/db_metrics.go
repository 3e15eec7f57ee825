package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "closures_pending_review",
			Help: "Closures waiting in submitted status",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM daily_closures WHERE status = 'submitted'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "sales_flagged_for_review",
			Help: "Sales flagged by meter reset detection",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM sales WHERE reset_detected")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
