// Package metrics exposes the Prometheus metrics of a trend run.
package metrics

import (
	"context"
	"fmt"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"
)

// ProviderSet is metrics providers.
var ProviderSet = wire.NewSet(NewMetrics, NewRegistry)

// Metric names.
const (
	MetricRowsLoadedTotal       = "movietrends_rows_loaded_total"
	MetricRowsDroppedTotal      = "movietrends_rows_dropped_total"
	MetricAnalysesTotal         = "movietrends_analyses_total"
	MetricAnalysisDuration      = "movietrends_analysis_duration_seconds"
	MetricRankingRows           = "movietrends_ranking_rows"
	MetricHostMemoryUsedPercent = "movietrends_host_memory_used_percent"
	MetricHostCPUPercent        = "movietrends_host_cpu_percent"
	MetricProcessRSSBytes       = "movietrends_process_rss_bytes"
)

// Metrics holds the collectors of one run. All operations are safe for
// concurrent use.
type Metrics struct {
	rowsLoaded       *prometheus.CounterVec
	rowsDropped      *prometheus.CounterVec
	analysesTotal    *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	rankingRows      *prometheus.GaugeVec
	hostMemory       prometheus.Gauge
	hostCPU          prometheus.Gauge
	processRSS       prometheus.Gauge
}

// NewMetrics creates the collectors. They are not registered; call Register.
func NewMetrics() *Metrics {
	return &Metrics{
		rowsLoaded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRowsLoadedTotal,
				Help: "Source rows loaded by table",
			},
			[]string{"table"},
		),
		rowsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRowsDroppedTotal,
				Help: "Rows left out of the joined table by reason",
			},
			[]string{"reason"},
		),
		analysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricAnalysesTotal,
				Help: "Completed analyses by analysis and status",
			},
			[]string{"analysis", "status"},
		),
		analysisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricAnalysisDuration,
				Help:    "Histogram of analysis duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 300.0},
			},
			[]string{"analysis"},
		),
		rankingRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: MetricRankingRows,
				Help: "Rows in the latest result of each ranking",
			},
			[]string{"ranking"},
		),
		hostMemory: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricHostMemoryUsedPercent,
			Help: "Host memory in use at the end of the run",
		}),
		hostCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricHostCPUPercent,
			Help: "Host CPU utilisation at the end of the run",
		}),
		processRSS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricProcessRSSBytes,
			Help: "Resident set size of the job at the end of the run",
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.rowsLoaded,
		m.rowsDropped,
		m.analysesTotal,
		m.analysisDuration,
		m.rankingRows,
		m.hostMemory,
		m.hostCPU,
		m.processRSS,
	}
}

// NewRegistry returns a registry holding m plus the Go runtime and process
// collectors.
func NewRegistry(m *Metrics) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	if err := m.Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func (m *Metrics) AddRowsLoaded(table string, n int) {
	m.rowsLoaded.WithLabelValues(table).Add(float64(n))
}

func (m *Metrics) AddRowsDropped(reason string, n int) {
	m.rowsDropped.WithLabelValues(reason).Add(float64(n))
}

// ObserveAnalysis counts a finished analysis and records its duration.
func (m *Metrics) ObserveAnalysis(analysis, status string, seconds float64) {
	m.analysesTotal.WithLabelValues(analysis, status).Inc()
	m.analysisDuration.WithLabelValues(analysis).Observe(seconds)
}

func (m *Metrics) SetResultRows(ranking string, n int) {
	m.rankingRows.WithLabelValues(ranking).Set(float64(n))
}

// SetHost records a host snapshot.
func (m *Metrics) SetHost(s HostSnapshot) {
	m.hostMemory.Set(s.MemoryUsedPercent)
	m.hostCPU.Set(s.CPUPercent)
	m.processRSS.Set(float64(s.ProcessRSS))
}

// Push sends everything gathered by g to a Pushgateway, grouped by run id.
func Push(ctx context.Context, url, job, runID string, g prometheus.Gatherer) error {
	err := push.New(url, job).
		Gatherer(g).
		Grouping("run_id", runID).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
