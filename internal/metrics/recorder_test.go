package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var (
	_ Recorder = NoopRecorder{}
	_ Recorder = (*CountingRecorder)(nil)
	_ Recorder = (*PrometheusRecorder)(nil)
)

func TestCountingRecorderConcurrent(t *testing.T) {
	c := NewCountingRecorder()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.ObserveStageDuration("banner", "normal", time.Millisecond)
			c.IncStageResult("banner", ResultSuccess)
			c.IncEmission(i%2 == 0)
		}(i)
	}
	wg.Wait()
	c.IncShortCircuit("style")
	c.ObserveModuleDuration(time.Millisecond)
	c.IncModuleOutcome(OutcomeTransform)

	assert.Equal(t, 50, c.StageCalls("banner", "normal"))
	assert.Equal(t, 50, c.StageResults("banner", ResultSuccess))
	fresh, dedup := c.Emissions()
	assert.Equal(t, 25, fresh)
	assert.Equal(t, 25, dedup)
	assert.Equal(t, 1, c.ShortCircuits("style"))
	assert.Equal(t, 1, c.ModuleRuns())
	assert.Equal(t, 1, c.Outcomes(OutcomeTransform))
	assert.Zero(t, c.Outcomes(OutcomeSuccess))
}
