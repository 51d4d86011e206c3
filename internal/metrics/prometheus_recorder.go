package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "loadchain"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once           sync.Once
	stageDuration  *prom.HistogramVec
	stageResults   *prom.CounterVec
	moduleDuration prom.Histogram
	moduleOutcome  *prom.CounterVec
	emissions      *prom.CounterVec
	shortCircuits  *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual stage handler invocations",
			Buckets:   prom.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"stage", "phase"})
		pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"})
		pr.moduleDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "module_duration_seconds",
			Help:      "Total duration of one module run",
			Buckets:   prom.DefBuckets,
		})
		pr.moduleOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "module_outcomes_total",
			Help:      "Module runs by final status",
		}, []string{"outcome"})
		pr.emissions = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "emissions_total",
			Help:      "Emitted files by whether they were written or deduplicated",
		}, []string{"kind"})
		pr.shortCircuits = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "short_circuits_total",
			Help:      "Chains cut short by a stage's pitch handler",
		}, []string{"stage"})
		reg.MustRegister(pr.stageDuration, pr.stageResults, pr.moduleDuration, pr.moduleOutcome, pr.emissions, pr.shortCircuits)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage, phase string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage, phase).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveModuleDuration(d time.Duration) {
	if p == nil || p.moduleDuration == nil {
		return
	}
	p.moduleDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncModuleOutcome(outcome OutcomeLabel) {
	if p == nil || p.moduleOutcome == nil {
		return
	}
	p.moduleOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncEmission(fresh bool) {
	if p == nil || p.emissions == nil {
		return
	}
	kind := "dedup"
	if fresh {
		kind = "fresh"
	}
	p.emissions.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncShortCircuit(stage string) {
	if p == nil || p.shortCircuits == nil {
		return
	}
	p.shortCircuits.WithLabelValues(stage).Inc()
}
