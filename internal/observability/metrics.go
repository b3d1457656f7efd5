package observability

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/cartledger/internal/platform/logger"
)

// Metrics holds the unit-of-work and aggregate collectors on a private
// registry, so tests and multiple App instances never collide on the default
// registerer.
type Metrics struct {
	registry *prometheus.Registry

	operationLatency *prometheus.HistogramVec
	operations       *prometheus.CounterVec
	conflicts        *prometheus.CounterVec
	retries          *prometheus.CounterVec
	rollbacks        *prometheus.CounterVec
	teardownFailures *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = "cartledger"
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "operation_duration_seconds",
			Help:      "Duration of aggregate operations including their unit of work.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "operations_total",
			Help:      "Aggregate operations by outcome.",
		}, []string{"operation", "status"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "conflicts_total",
			Help:      "Aggregate operations that failed with a conflict.",
		}, []string{"operation"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "retryable_failures_total",
			Help:      "Aggregate operations that failed with a retryable error.",
		}, []string{"operation"}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "uow",
			Name:      "rollbacks_total",
			Help:      "Units of work rolled back.",
		}, []string{"operation"}),
		teardownFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "uow",
			Name:      "teardown_failures_total",
			Help:      "Best-effort teardown steps that failed and were ignored.",
		}, []string{"operation"}),
	}
	m.registry.MustRegister(
		m.operationLatency,
		m.operations,
		m.conflicts,
		m.retries,
		m.rollbacks,
		m.teardownFailures,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveAggregateOperation(name, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.operationLatency.WithLabelValues(name, status).Observe(dur.Seconds())
	m.operations.WithLabelValues(name, status).Inc()
}

func (m *Metrics) IncAggregateConflict(name string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(name).Inc()
}

func (m *Metrics) IncAggregateRetry(name string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(name).Inc()
}

func (m *Metrics) IncRollback(name string) {
	if m == nil {
		return
	}
	m.rollbacks.WithLabelValues(name).Inc()
}

func (m *Metrics) IncTeardownFailure(name string) {
	if m == nil {
		return
	}
	m.teardownFailures.WithLabelValues(name).Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on addr until ctx is done. An empty addr is a
// no-op.
func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
	if log != nil {
		log.Info("metrics server listening", "addr", addr)
	}
}
