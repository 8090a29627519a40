// Package metrics — счётчики Prometheus для решений допуска, сканов и уровней доверия.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AdmissionDecisions — решения допуска по коду причины.
var AdmissionDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guard_admission_decisions_total",
	Help: "Admission decisions by outcome and reason code",
}, []string{"allowed", "code"})

// TrustPromotions — повышения уровня доверия по названию нового уровня.
var TrustPromotions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guard_trust_promotions_total",
	Help: "Trust tier promotions by new tier name",
}, []string{"tier"})

// PausesApplied — постановки на паузу.
var PausesApplied = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guard_pauses_applied_total",
	Help: "Number of user pauses applied",
})

// ScanFetchErrors — ошибки запросов к платформе при сканировании.
var ScanFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guard_scan_fetch_errors_total",
	Help: "Platform fetch failures skipped during opportunity scans",
})

// ScanOpportunities — число возможностей, оставшихся после ранжирования.
var ScanOpportunities = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "guard_scan_opportunities",
	Help:    "Opportunities retained per scan",
	Buckets: []float64{0, 1, 5, 10, 25, 50},
})
