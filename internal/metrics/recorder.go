package metrics

import (
	"sync"
	"time"
)

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess      ResultLabel = "success"
	ResultShortCircuit ResultLabel = "short_circuit"
	ResultFailed       ResultLabel = "failed"
)

// OutcomeLabel is the final status of one module run.
type OutcomeLabel string

const (
	OutcomeSuccess    OutcomeLabel = "success"
	OutcomeNoMatch    OutcomeLabel = "no_match"
	OutcomeValidation OutcomeLabel = "validation"
	OutcomeTransform  OutcomeLabel = "transform"
	OutcomeEmission   OutcomeLabel = "emission"
	OutcomeCanceled   OutcomeLabel = "canceled"
)

// Recorder defines observability hooks for stage and module metrics.
// Implementations must be safe for concurrent use.
type Recorder interface {
	ObserveStageDuration(stage, phase string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveModuleDuration(d time.Duration)
	IncModuleOutcome(outcome OutcomeLabel)
	IncEmission(fresh bool)
	IncShortCircuit(stage string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)                 {}
func (NoopRecorder) ObserveModuleDuration(time.Duration)                {}
func (NoopRecorder) IncModuleOutcome(OutcomeLabel)                      {}
func (NoopRecorder) IncEmission(bool)                                   {}
func (NoopRecorder) IncShortCircuit(string)                             {}

// CountingRecorder counts every hook call in memory.
type CountingRecorder struct {
	mu             sync.Mutex
	stageCalls     map[string]int // "stage/phase"
	stageResults   map[string]map[ResultLabel]int
	moduleRuns     int
	outcomes       map[OutcomeLabel]int
	freshEmissions int
	dedupEmissions int
	shortCircuits  map[string]int
}

// NewCountingRecorder returns an empty CountingRecorder.
func NewCountingRecorder() *CountingRecorder {
	return &CountingRecorder{
		stageCalls:    map[string]int{},
		stageResults:  map[string]map[ResultLabel]int{},
		outcomes:      map[OutcomeLabel]int{},
		shortCircuits: map[string]int{},
	}
}

func (c *CountingRecorder) ObserveStageDuration(stage, phase string, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stageCalls[stage+"/"+phase]++
}

func (c *CountingRecorder) IncStageResult(stage string, result ResultLabel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.stageResults[stage]
	if !ok {
		m = map[ResultLabel]int{}
		c.stageResults[stage] = m
	}
	m[result]++
}

func (c *CountingRecorder) ObserveModuleDuration(time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.moduleRuns++
}

func (c *CountingRecorder) IncModuleOutcome(outcome OutcomeLabel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[outcome]++
}

func (c *CountingRecorder) IncEmission(fresh bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fresh {
		c.freshEmissions++
	} else {
		c.dedupEmissions++
	}
}

func (c *CountingRecorder) IncShortCircuit(stage string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shortCircuits[stage]++
}

// StageCalls returns how many handler invocations were timed for stage in phase.
func (c *CountingRecorder) StageCalls(stage, phase string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stageCalls[stage+"/"+phase]
}

// StageResults returns the result count for stage.
func (c *CountingRecorder) StageResults(stage string, result ResultLabel) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stageResults[stage][result]
}

// ModuleRuns returns the number of module durations observed.
func (c *CountingRecorder) ModuleRuns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moduleRuns
}

// Outcomes returns the count for one module outcome.
func (c *CountingRecorder) Outcomes(outcome OutcomeLabel) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcomes[outcome]
}

// Emissions returns the fresh and deduplicated emission counts.
func (c *CountingRecorder) Emissions() (fresh, dedup int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freshEmissions, c.dedupEmissions
}

// ShortCircuits returns how often stage short-circuited a chain.
func (c *CountingRecorder) ShortCircuits(stage string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shortCircuits[stage]
}
