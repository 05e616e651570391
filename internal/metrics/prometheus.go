// Package metrics records prediction telemetry. The API process exposes it
// to Prometheus; the forecast worker pushes it to CloudWatch at the end of
// each invocation.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"railrisk/internal/types"
)

// PoolStatter is satisfied by *pgxpool.Pool.
type PoolStatter interface {
	Stat() *pgxpool.Stat
}

// Prometheus holds the API process metrics.
type Prometheus struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	PredictionsTotal  *prometheus.CounterVec
	FallbacksTotal    *prometheus.CounterVec
	SourceFailures    *prometheus.CounterVec
	DBConnsTotal      prometheus.Gauge
	DBConnsAcquired   prometheus.Gauge
	DBConnsIdle       prometheus.Gauge
	DBAcquireWaitTime prometheus.Counter

	logger *slog.Logger

	collectorStarted atomic.Bool
	cancel           context.CancelFunc
	wg               sync.WaitGroup
}

// NewPrometheus creates and registers every metric on a fresh registry.
func NewPrometheus(logger *slog.Logger) *Prometheus {
	if logger == nil {
		logger = slog.Default()
	}
	registry := prometheus.NewRegistry()

	m := &Prometheus{Registry: registry, logger: logger}
	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "railrisk_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "railrisk_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	m.PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "railrisk_predictions_total",
			Help: "Predictions produced, by route, provenance and status",
		},
		[]string{"route", "provenance", "status"},
	)
	m.FallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "railrisk_inference_fallbacks_total",
			Help: "Predictions that fell back from the model to the rules",
		},
		[]string{"route", "reason"},
	)
	m.SourceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "railrisk_signal_source_failures_total",
			Help: "Signal sources that failed during a gather",
		},
		[]string{"source"},
	)
	m.DBConnsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "railrisk_db_connections_total",
		Help: "Number of open database connections",
	})
	m.DBConnsAcquired = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "railrisk_db_connections_acquired",
		Help: "Number of database connections currently in use",
	})
	m.DBConnsIdle = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "railrisk_db_connections_idle",
		Help: "Number of idle database connections",
	})
	m.DBAcquireWaitTime = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "railrisk_db_acquire_wait_seconds_total",
		Help: "Total time spent acquiring database connections",
	})

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PredictionsTotal,
		m.FallbacksTotal,
		m.SourceFailures,
		m.DBConnsTotal,
		m.DBConnsAcquired,
		m.DBConnsIdle,
		m.DBAcquireWaitTime,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RecordRequest records one HTTP request.
func (m *Prometheus) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (m *Prometheus) ObservePrediction(routeID string, provenance types.Provenance, status types.OperationStatus) {
	m.PredictionsTotal.WithLabelValues(routeID, string(provenance), string(status)).Inc()
}

func (m *Prometheus) ObserveFallback(routeID, reason string) {
	m.FallbacksTotal.WithLabelValues(routeID, reason).Inc()
}

func (m *Prometheus) ObserveSourceFailure(source string) {
	m.SourceFailures.WithLabelValues(source).Inc()
}

// StartPoolCollector samples pool statistics every interval until Shutdown.
// Only the first call starts a collector.
func (m *Prometheus) StartPoolCollector(pool PoolStatter, interval time.Duration) {
	if pool == nil {
		return
	}
	if !m.collectorStarted.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.wg.Add(1)
	m.cancel = cancel

	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("panic in pool stats collector", "error", r)
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var lastWait time.Duration
		for {
			select {
			case <-ticker.C:
				lastWait = m.samplePool(pool.Stat(), lastWait)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// samplePool updates the pool gauges and returns the cumulative acquire
// duration for the next delta.
func (m *Prometheus) samplePool(stat *pgxpool.Stat, lastWait time.Duration) time.Duration {
	m.DBConnsTotal.Set(float64(stat.TotalConns()))
	m.DBConnsAcquired.Set(float64(stat.AcquiredConns()))
	m.DBConnsIdle.Set(float64(stat.IdleConns()))
	wait := stat.AcquireDuration()
	if delta := wait - lastWait; delta > 0 {
		m.DBAcquireWaitTime.Add(delta.Seconds())
	}
	return wait
}

// Shutdown stops the pool collector. Safe to call more than once.
func (m *Prometheus) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
