package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// result: verified|duplicate|rejected|unsupported_algorithm|bad_request
	callbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipg_callbacks_total",
			Help: "IPG Connect callbacks by flow variant and verification result.",
		},
		[]string{"variant", "result"},
	)

	// status: completed|pending|failed
	statusTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipg_callback_status_total",
			Help: "Verified callbacks by canonical status.",
		},
		[]string{"variant", "status"},
	)

	callbackDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ipg_callback_duration_seconds",
			Help:    "Duration of callback handling in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"variant"},
	)

	// target: store|relay|report
	sideEffectErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipg_callback_side_effect_errors_total",
			Help: "Failures after verification while storing, relaying or reporting.",
		},
		[]string{"target"},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(callbacksTotal, statusTotal, callbackDuration, sideEffectErrors)
	})
}

func IncCallback(variant, result string) {
	callbacksTotal.WithLabelValues(variant, result).Inc()
}

func IncStatus(variant, status string) {
	statusTotal.WithLabelValues(variant, status).Inc()
}

func ObserveCallback(variant string, seconds float64) {
	callbackDuration.WithLabelValues(variant).Observe(seconds)
}

func IncSideEffectError(target string) {
	sideEffectErrors.WithLabelValues(target).Inc()
}
