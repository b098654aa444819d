// Package metrics exposes prometheus instrumentation for the scrape pipeline.
package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	initOnce sync.Once

	fetchAttempts *prometheus.CounterVec
	fetchDelay    prometheus.Histogram
	sourceStates  *prometheus.CounterVec
	recordsScored *prometheus.CounterVec
)

// Init registers the collectors. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		fetchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aeropolicy",
			Name:      "fetch_attempts_total",
			Help:      "Fetch attempts partitioned by source and outcome.",
		}, []string{"source", "outcome"})
		fetchDelay = promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aeropolicy",
			Name:      "fetch_delay_seconds",
			Help:      "Pre-request delay applied before each attempt.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
		})
		sourceStates = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aeropolicy",
			Name:      "source_states_total",
			Help:      "Pipeline state transitions per source.",
		}, []string{"source", "state"})
		recordsScored = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aeropolicy",
			Name:      "records_scored_total",
			Help:      "Scored records partitioned by manual review flag.",
		}, []string{"review"})
	})
}

// ObserveFetchAttempt records one attempt and its pre-request delay.
func ObserveFetchAttempt(source, outcome string, delay time.Duration) {
	if fetchAttempts == nil {
		return
	}
	fetchAttempts.WithLabelValues(source, outcome).Inc()
	fetchDelay.Observe(delay.Seconds())
}

// ObserveSourceState records a pipeline state transition for a source.
func ObserveSourceState(source, state string) {
	if sourceStates == nil {
		return
	}
	sourceStates.WithLabelValues(source, state).Inc()
}

// ObserveRecordScored counts a scored record.
func ObserveRecordScored(review bool) {
	if recordsScored == nil {
		return
	}
	recordsScored.WithLabelValues(fmt.Sprintf("%t", review)).Inc()
}

// Serve blocks serving /metrics and /healthz on the given port.
func Serve(port int) error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return http.ListenAndServe(fmt.Sprintf(":%d", port), r)
}
