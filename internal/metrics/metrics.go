// Package metrics expone las métricas Prometheus del backtester.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

const namespace = "polyguard"

// Collector implementa backtest.Recorder sobre un registry de Prometheus.
type Collector struct {
	registry *prometheus.Registry

	runs              *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
	activeRuns        prometheus.Gauge
	cacheLookups      *prometheus.CounterVec
	cacheEvictions    prometheus.Counter
	sourceFetches     *prometheus.CounterVec
	sourceRows        *prometheus.CounterVec
	evaluatorFailures *prometheus.CounterVec
}

// New crea un Collector registrado en reg. Si reg es nil se crea un registry
// propio (los tests crean uno por caso para no chocar en el global).
func New(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collector{
		registry: reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backtest_runs_total",
			Help:      "Finished backtests by validation method and terminal status",
		}, []string{"method", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backtest_duration_seconds",
			Help:      "Wall time from submission to terminal status",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"method"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backtest_active",
			Help:      "Backtests currently holding a concurrency slot",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_cache_lookups_total",
			Help:      "Dataset cache lookups by result",
		}, []string{"result"}),
		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_cache_evictions_total",
			Help:      "Dataset cache entries evicted for capacity",
		}),
		sourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_total",
			Help:      "Historical source fetches by source and result",
		}, []string{"source", "result"}),
		sourceRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rows_total",
			Help:      "Rows returned by historical sources",
		}, []string{"source"}),
		evaluatorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluator_failures_total",
			Help:      "Evaluator errors and panics counted as negative predictions",
		}, []string{"strategy"}),
	}
	reg.MustRegister(
		c.runs, c.runDuration, c.activeRuns,
		c.cacheLookups, c.cacheEvictions,
		c.sourceFetches, c.sourceRows, c.evaluatorFailures,
	)
	return c
}

// Handler devuelve el endpoint /metrics de este registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry devuelve el registry subyacente.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

func (c *Collector) CacheEviction() {
	c.cacheEvictions.Inc()
}

func (c *Collector) SourceFetched(kind domain.DataSourceKind, rows int, err error) {
	if err != nil {
		c.sourceFetches.WithLabelValues(string(kind), "error").Inc()
		return
	}
	c.sourceFetches.WithLabelValues(string(kind), "ok").Inc()
	c.sourceRows.WithLabelValues(string(kind)).Add(float64(rows))
}

func (c *Collector) EvaluatorFailure(strategy string) {
	c.evaluatorFailures.WithLabelValues(strategy).Inc()
}

func (c *Collector) BacktestFinished(method domain.ValidationMethod, status domain.RunStatus, elapsed time.Duration) {
	c.runs.WithLabelValues(string(method), string(status)).Inc()
	c.runDuration.WithLabelValues(string(method)).Observe(elapsed.Seconds())
}

func (c *Collector) ActiveBacktests(n int) {
	c.activeRuns.Set(float64(n))
}
