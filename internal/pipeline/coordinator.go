package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/loadchain/internal/emit"
	"git.home.luguber.info/inful/loadchain/internal/eventstore"
	"git.home.luguber.info/inful/loadchain/internal/loader"
	"git.home.luguber.info/inful/loadchain/internal/logfields"
	"git.home.luguber.info/inful/loadchain/internal/metrics"
	"git.home.luguber.info/inful/loadchain/internal/rules"
	"git.home.luguber.info/inful/loadchain/internal/schema"
	"git.home.luguber.info/inful/loadchain/internal/storage"
)

// Options configures a Coordinator. Matcher is required.
type Options struct {
	Matcher   *rules.Matcher
	Emitter   *emit.Emitter
	Validator *schema.Validator
	Recorder  metrics.Recorder
	// Journal, when set, receives run_started, file_emitted and
	// run_completed or run_failed events for every run.
	Journal eventstore.Store
	Logger  *slog.Logger
	// KeepOutputs stores every module's final content in the emitter's
	// object store as a module_output object.
	KeepOutputs bool
}

// Request is one module to transform.
type Request struct {
	ModuleID string
	Raw      []byte
}

// Output is the result of a successful run.
type Output struct {
	ModuleID     string
	RunID        string
	Chain        []string // stage requests, first to last
	Content      []byte
	Emissions    []emit.Record
	References   []emit.Record // files the output refers to, including deduplicated ones
	SourceMap    []byte
	Dependencies []string
	ShortCircuit string
	OutputHash   string // set when outputs are kept
	Trace        []loader.Step
	Duration     time.Duration
}

// Coordinator runs modules through their resolved chains.
type Coordinator struct {
	matcher     *rules.Matcher
	engine      *loader.Engine
	emitter     *emit.Emitter
	recorder    metrics.Recorder
	journal     eventstore.Store
	logger      *slog.Logger
	keepOutputs bool
}

// New returns a Coordinator.
func New(opts Options) *Coordinator {
	c := &Coordinator{
		matcher:     opts.Matcher,
		emitter:     opts.Emitter,
		recorder:    opts.Recorder,
		journal:     opts.Journal,
		logger:      opts.Logger,
		keepOutputs: opts.KeepOutputs,
	}
	if c.recorder == nil {
		c.recorder = metrics.NoopRecorder{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.engine = loader.NewEngine(loader.EngineOptions{
		Emitter:   opts.Emitter,
		Validator: opts.Validator,
		Recorder:  c.recorder,
		Logger:    c.logger,
	})
	return c
}

// Matcher returns the matcher chains are resolved with.
func (c *Coordinator) Matcher() *rules.Matcher { return c.matcher }

// Emitter returns the shared emitter, or nil.
func (c *Coordinator) Emitter() *emit.Emitter { return c.emitter }

// Engine returns the execution engine.
func (c *Coordinator) Engine() *loader.Engine { return c.engine }

// Run transforms one module. Failures are returned as *Error.
func (c *Coordinator) Run(ctx context.Context, req Request) (*Output, error) {
	runID := uuid.NewString()
	start := time.Now()
	logger := c.logger.With(logfields.Module(req.ModuleID), logfields.RunID(runID))

	if err := ctx.Err(); err != nil {
		return nil, c.failed(ctx, logger, req.ModuleID, runID, start, err)
	}

	chain, parsed, err := c.matcher.ResolveChain(req.ModuleID)
	if err != nil {
		return nil, c.failed(ctx, logger, req.ModuleID, runID, start, err)
	}
	requests := loader.Requests(chain)
	logger.Debug("Resolved chain", logfields.Chain(requests))
	c.journalEvent(ctx, logger, func() (*eventstore.BaseEvent, error) {
		return eventstore.NewRunStarted(runID, req.ModuleID, requests)
	})

	res, err := c.engine.Run(ctx, parsed.Identifier, chain, req.Raw)
	if err != nil {
		return nil, c.failed(ctx, logger, req.ModuleID, runID, start, err)
	}

	out := &Output{
		ModuleID:     req.ModuleID,
		RunID:        runID,
		Chain:        requests,
		Content:      res.Content,
		Emissions:    res.Emissions,
		References:   res.References,
		SourceMap:    res.SourceMap,
		Dependencies: res.Dependencies,
		ShortCircuit: res.ShortCircuit,
		Trace:        res.Trace,
	}
	if c.keepOutputs && c.emitter != nil {
		hash, putErr := c.emitter.Store().Put(ctx, &storage.Object{
			Type:     storage.ObjectTypeModuleOutput,
			Data:     res.Content,
			Metadata: storage.Metadata{Custom: map[string]string{storage.MetaModule: req.ModuleID}},
		})
		if putErr != nil {
			logger.Warn("Failed to keep module output", logfields.Error(putErr))
		} else {
			out.OutputHash = hash
		}
	}
	out.Duration = time.Since(start)

	for _, rec := range res.Emissions {
		c.journalEvent(ctx, logger, func() (*eventstore.BaseEvent, error) {
			return eventstore.NewFileEmitted(runID, req.ModuleID, eventstore.FileEmittedPayload{Hash: rec.Hash, Path: rec.Path, Size: rec.Size})
		})
	}
	c.journalEvent(ctx, logger, func() (*eventstore.BaseEvent, error) {
		return eventstore.NewRunCompleted(runID, req.ModuleID, eventstore.RunCompletedPayload{
			Bytes:        len(res.Content),
			Emissions:    len(res.Emissions),
			ShortCircuit: res.ShortCircuit,
			DurationMS:   out.Duration.Milliseconds(),
		})
	})

	c.recorder.ObserveModuleDuration(out.Duration)
	c.recorder.IncModuleOutcome(metrics.OutcomeSuccess)
	logger.Info("Module transformed",
		logfields.Bytes(len(res.Content)),
		slog.Int("emissions", len(res.Emissions)),
		logfields.DurationMS(float64(out.Duration.Microseconds())/1000))
	return out, nil
}

func (c *Coordinator) failed(ctx context.Context, logger *slog.Logger, moduleID, runID string, start time.Time, err error) *Error {
	kind, stage := classify(ctx, err)
	pe := &Error{Kind: kind, ModuleID: moduleID, RunID: runID, Stage: stage, Err: err}
	dur := time.Since(start)

	c.recorder.ObserveModuleDuration(dur)
	c.recorder.IncModuleOutcome(kind.outcome())
	c.journalEvent(context.WithoutCancel(ctx), logger, func() (*eventstore.BaseEvent, error) {
		return eventstore.NewRunFailed(runID, moduleID, eventstore.RunFailedPayload{
			Kind:       string(kind),
			Stage:      stage,
			Message:    err.Error(),
			DurationMS: dur.Milliseconds(),
		})
	})
	logger.Warn("Module failed", slog.String("kind", string(kind)), logfields.Stage(stage), logfields.Error(err))
	return pe
}

// journalEvent appends an event when a journal is configured. Journal
// failures are logged and never fail the run.
func (c *Coordinator) journalEvent(ctx context.Context, logger *slog.Logger, build func() (*eventstore.BaseEvent, error)) {
	if c.journal == nil {
		return
	}
	e, err := build()
	if err == nil {
		err = eventstore.AppendEvent(ctx, c.journal, e)
	}
	if err != nil {
		logger.Warn("Failed to journal event", logfields.Error(err))
	}
}
