package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/loadchain/internal/emit"
	"git.home.luguber.info/inful/loadchain/internal/logfields"
	"git.home.luguber.info/inful/loadchain/internal/metrics"
	"git.home.luguber.info/inful/loadchain/internal/schema"
)

// Step is one handler invocation recorded in a Result trace.
type Step struct {
	Stage    string        `json:"stage"`
	Phase    Phase         `json:"phase"`
	Index    int           `json:"index"`
	Handled  bool          `json:"handled,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Result is the outcome of a successful chain run.
type Result struct {
	Content      []byte
	Emissions    []emit.Record // fresh emissions in emission order
	References   []emit.Record // every file the run emitted, fresh or deduplicated, once per hash
	SourceMap    []byte
	Dependencies []string
	ShortCircuit string // name of the stage whose pitch answered, or ""
	Trace        []Step
}

// EngineOptions configures an Engine. Zero values get working defaults.
type EngineOptions struct {
	Emitter   *emit.Emitter
	Validator *schema.Validator
	Recorder  metrics.Recorder
	Logger    *slog.Logger
}

// Engine runs stage chains. One Engine serves any number of concurrent runs.
type Engine struct {
	emitter   *emit.Emitter
	validator *schema.Validator
	recorder  metrics.Recorder
	logger    *slog.Logger
}

// NewEngine returns an Engine.
func NewEngine(opts EngineOptions) *Engine {
	e := &Engine{
		emitter:   opts.Emitter,
		validator: opts.Validator,
		recorder:  opts.Recorder,
		logger:    opts.Logger,
	}
	if e.validator == nil {
		e.validator = schema.NewValidator()
	}
	if e.recorder == nil {
		e.recorder = metrics.NoopRecorder{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Validator returns the session validator.
func (e *Engine) Validator() *schema.Validator { return e.validator }

type runState int

const (
	statePitching runState = iota
	stateNormal
	stateDone
)

// Run executes chain over raw for module id. On error no partial content is
// returned; files already emitted stay in the emitter's table.
func (e *Engine) Run(ctx context.Context, id Identifier, chain []*StageDescriptor, raw []byte) (*Result, error) {
	run := &execution{
		ctx:      ctx,
		id:       id,
		chain:    chain,
		requests: Requests(chain),
		data:     make([]map[string]any, len(chain)),
		engine:   e,
		logger:   e.logger.With(logfields.Module(id.String())),
	}
	res := &Result{}
	content := raw

	state, i := statePitching, 0
	for state != stateDone {
		switch state {
		case statePitching:
			if i == len(chain) {
				state, i = stateNormal, len(chain)-1
				continue
			}
			d := chain[i]
			if err := e.validator.Validate(d.Name(), d.Options, d.EffectiveSchema()); err != nil {
				e.recorder.IncStageResult(d.Name(), metrics.ResultFailed)
				return nil, err
			}
			run.data[i] = map[string]any{}
			if d.Loader.Pitch == nil {
				i++
				continue
			}
			out, handled, dur, err := e.pitch(run, i)
			res.Trace = append(res.Trace, Step{Stage: d.Name(), Phase: PhasePitch, Index: i, Handled: handled, Duration: dur})
			if err != nil {
				return nil, e.fail(d, PhasePitch, i, err)
			}
			if handled {
				run.logger.Debug("Pitch short-circuited chain", logfields.Stage(d.Name()), logfields.Index(i))
				e.recorder.IncShortCircuit(d.Name())
				e.recorder.IncStageResult(d.Name(), metrics.ResultShortCircuit)
				res.ShortCircuit = d.Name()
				content = out
				state, i = stateNormal, i-1
				continue
			}
			i++

		case stateNormal:
			if i < 0 {
				state = stateDone
				continue
			}
			d := chain[i]
			if d.Loader.Normal != nil {
				out, dur, err := e.normal(run, i, content)
				res.Trace = append(res.Trace, Step{Stage: d.Name(), Phase: PhaseNormal, Index: i, Duration: dur})
				if err != nil {
					return nil, e.fail(d, PhaseNormal, i, err)
				}
				content = out
			}
			e.recorder.IncStageResult(d.Name(), metrics.ResultSuccess)
			i--
		}
	}

	res.Content = content
	res.Emissions = run.emissions
	res.References = run.references
	res.SourceMap = run.sourceMap
	res.Dependencies = run.dependencies
	return res, nil
}

func (e *Engine) pitch(run *execution, i int) (out []byte, handled bool, dur time.Duration, err error) {
	lc := &Context{run: run, index: i, phase: PhasePitch}
	name := run.chain[i].Name()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		dur = time.Since(start)
		e.recorder.ObserveStageDuration(name, string(PhasePitch), dur)
		run.logger.Debug("Stage pitched",
			logfields.Stage(name), logfields.Index(i), logfields.Phase(string(PhasePitch)),
			slog.Bool("handled", handled), logfields.DurationMS(float64(dur.Microseconds())/1000))
	}()
	out, handled, err = run.chain[i].Loader.Pitch(lc)
	return
}

func (e *Engine) normal(run *execution, i int, in []byte) (out []byte, dur time.Duration, err error) {
	lc := &Context{run: run, index: i, phase: PhaseNormal}
	name := run.chain[i].Name()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		dur = time.Since(start)
		e.recorder.ObserveStageDuration(name, string(PhaseNormal), dur)
		run.logger.Debug("Stage transformed content",
			logfields.Stage(name), logfields.Index(i), logfields.Phase(string(PhaseNormal)),
			logfields.Bytes(len(out)), logfields.DurationMS(float64(dur.Microseconds())/1000))
	}()
	out, err = run.chain[i].Loader.Normal(lc, in)
	return
}

// fail converts a handler error. Emission failures keep their type with the
// stage filled in; everything else becomes a TransformError.
func (e *Engine) fail(d *StageDescriptor, phase Phase, i int, err error) error {
	e.recorder.IncStageResult(d.Name(), metrics.ResultFailed)
	var ee *emit.EmissionError
	if errors.As(err, &ee) {
		if ee.Stage == "" {
			ee.Stage = d.Name()
		}
		return ee
	}
	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	return &TransformError{Stage: d.Name(), Phase: phase, Index: i, Err: err}
}
