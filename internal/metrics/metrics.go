// Package metrics records build orchestration metrics. Components depend on
// the Recorder interface; NoopRecorder is the default and PrometheusRecorder
// backs it with a prometheus registry that can be exported as a textfile for
// node-exporter style collection in CI.
package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Outcome labels a finished build.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// Recorder defines the observability hooks used by drivers and the build action.
type Recorder interface {
	ObserveBuild(builder string, outcome Outcome, d time.Duration)
	AddDiagnostics(builder string, n int)
	IncRebuildSignal(builder string)
	IncTypeCheckCycle(errors int)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuild(string, Outcome, time.Duration) {}
func (NoopRecorder) AddDiagnostics(string, int)                  {}
func (NoopRecorder) IncRebuildSignal(string)                     {}
func (NoopRecorder) IncTypeCheckCycle(int)                       {}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry        *prom.Registry
	buildDuration   *prom.HistogramVec
	buildOutcomes   *prom.CounterVec
	diagnostics     *prom.CounterVec
	rebuildSignals  *prom.CounterVec
	typeCheckCycles *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers the build metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		registry: reg,
		buildDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "venok",
			Name:      "build_duration_seconds",
			Help:      "Duration of a single build invocation",
			Buckets:   prom.DefBuckets,
		}, []string{"builder"}),
		buildOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "venok",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by builder and final status",
		}, []string{"builder", "outcome"}),
		diagnostics: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "venok",
			Name:      "diagnostics_total",
			Help:      "Diagnostics reported by compiler drivers",
		}, []string{"builder"}),
		rebuildSignals: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "venok",
			Name:      "rebuild_signals_total",
			Help:      "Debounced rebuild-complete signals emitted in watch mode",
		}, []string{"builder"}),
		typeCheckCycles: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "venok",
			Name:      "typecheck_cycles_total",
			Help:      "Completed type-check cycles by result",
		}, []string{"result"}),
	}
	reg.MustRegister(pr.buildDuration, pr.buildOutcomes, pr.diagnostics, pr.rebuildSignals, pr.typeCheckCycles)
	return pr
}

// Registry returns the registry the metrics are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.registry
}

func (p *PrometheusRecorder) ObserveBuild(builder string, outcome Outcome, d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.WithLabelValues(builder).Observe(d.Seconds())
	p.buildOutcomes.WithLabelValues(builder, string(outcome)).Inc()
}

func (p *PrometheusRecorder) AddDiagnostics(builder string, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.diagnostics.WithLabelValues(builder).Add(float64(n))
}

func (p *PrometheusRecorder) IncRebuildSignal(builder string) {
	if p == nil {
		return
	}
	p.rebuildSignals.WithLabelValues(builder).Inc()
}

func (p *PrometheusRecorder) IncTypeCheckCycle(errors int) {
	if p == nil {
		return
	}
	result := "clean"
	if errors > 0 {
		result = "errors"
	}
	p.typeCheckCycles.WithLabelValues(result).Inc()
}

// WriteTextfile writes the current metric values in the text exposition format.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	return prom.WriteToTextfile(path, p.registry)
}
