// Package metrics records build and live-reload metrics.
//
// Components receive a [Recorder]; one-shot builds use [NoopRecorder] and
// the development server swaps in a [PrometheusRecorder] whose registry it
// serves over HTTP.
package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels for task outcomes.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

// Recorder defines the observability hooks used by the build and server.
type Recorder interface {
	ObserveTask(task string, d time.Duration, err error)
	ObserveFiles(task string, n int)
	IncReload()
	SetReloadClients(n int)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveTask(string, time.Duration, error) {}
func (NoopRecorder) ObserveFiles(string, int)                 {}
func (NoopRecorder) IncReload()                               {}
func (NoopRecorder) SetReloadClients(int)                     {}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry      *prom.Registry
	taskDuration  *prom.HistogramVec
	taskResults   *prom.CounterVec
	filesWritten  *prom.CounterVec
	reloads       prom.Counter
	reloadClients prom.Gauge
}

// NewPrometheusRecorder constructs and registers the metrics on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}

	pr := &PrometheusRecorder{
		registry: reg,
		taskDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "sitepipe",
			Name:      "task_duration_seconds",
			Help:      "Duration of build tasks",
			Buckets:   prom.DefBuckets,
		}, []string{"task"}),
		taskResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sitepipe",
			Name:      "task_results_total",
			Help:      "Task runs by outcome",
		}, []string{"task", "result"}),
		filesWritten: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sitepipe",
			Name:      "files_written_total",
			Help:      "Output files written per task",
		}, []string{"task"}),
		reloads: prom.NewCounter(prom.CounterOpts{
			Namespace: "sitepipe",
			Name:      "livereload_broadcasts_total",
			Help:      "Live-reload notifications sent",
		}),
		reloadClients: prom.NewGauge(prom.GaugeOpts{
			Namespace: "sitepipe",
			Name:      "livereload_clients",
			Help:      "Connected live-reload clients",
		}),
	}

	reg.MustRegister(pr.taskDuration, pr.taskResults, pr.filesWritten, pr.reloads, pr.reloadClients)

	return pr
}

func (p *PrometheusRecorder) ObserveTask(task string, d time.Duration, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailed
	}

	p.taskDuration.WithLabelValues(task).Observe(d.Seconds())
	p.taskResults.WithLabelValues(task, result).Inc()
}

func (p *PrometheusRecorder) ObserveFiles(task string, n int) {
	p.filesWritten.WithLabelValues(task).Add(float64(n))
}

func (p *PrometheusRecorder) IncReload() { p.reloads.Inc() }

func (p *PrometheusRecorder) SetReloadClients(n int) { p.reloadClients.Set(float64(n)) }

// Handler serves the recorder's registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
