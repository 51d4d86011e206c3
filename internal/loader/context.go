package loader

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/loadchain/internal/emit"
	"git.home.luguber.info/inful/loadchain/internal/logfields"
	"git.home.luguber.info/inful/loadchain/internal/options"
)

// ErrNoEmitter is returned by EmitFile when the engine has no emitter.
var ErrNoEmitter = errors.New("no emitter configured")

// execution is the state of one chain run. It is owned by a single
// goroutine and discarded when the run ends.
type execution struct {
	ctx          context.Context
	id           Identifier
	chain        []*StageDescriptor
	requests     []string
	data         []map[string]any
	engine       *Engine
	logger       *slog.Logger
	sourceMap    []byte
	emissions    []emit.Record
	references   []emit.Record
	dependencies []string
}

// Context is the view of a run handed to one stage handler.
type Context struct {
	run   *execution
	index int
	phase Phase
}

// Context returns the run's context.
func (lc *Context) Context() context.Context { return lc.run.ctx }

// Resource returns the module identifier (path and query).
func (lc *Context) Resource() string { return lc.run.id.String() }

// ResourcePath returns the module path without its query.
func (lc *Context) ResourcePath() string { return lc.run.id.Path }

// ResourceQuery returns the module query, including the leading '?', or "".
func (lc *Context) ResourceQuery() string { return lc.run.id.Query }

// Stage returns the descriptor of the running stage.
func (lc *Context) Stage() *StageDescriptor { return lc.run.chain[lc.index] }

// Index returns the position of the running stage in the chain.
func (lc *Context) Index() int { return lc.index }

// Phase returns the pass the handler runs in.
func (lc *Context) Phase() Phase { return lc.phase }

// Options returns the stage's validated options.
func (lc *Context) Options() options.Value { return lc.Stage().Options }

// RemainingRequest returns the requests of the stages after this one followed
// by the resource, joined with '!'.
func (lc *Context) RemainingRequest() string {
	parts := append(append([]string(nil), lc.run.requests[lc.index+1:]...), lc.run.id.String())
	return strings.Join(parts, "!")
}

// PreviousRequest returns the requests of the stages before this one.
func (lc *Context) PreviousRequest() string {
	return strings.Join(lc.run.requests[:lc.index], "!")
}

// Data is shared between the pitch and normal handler of the same stage.
func (lc *Context) Data() map[string]any { return lc.run.data[lc.index] }

// EmitFile names content by hash with pattern and writes it once per session.
// It returns the path assigned to the content.
func (lc *Context) EmitFile(pattern string, content []byte) (string, error) {
	em := lc.run.engine.emitter
	if em == nil {
		return "", &emit.EmissionError{Stage: lc.Stage().Name(), Hash: emit.Hash(content), Err: ErrNoEmitter}
	}
	rec, fresh, err := em.Emit(lc.run.ctx, content, pattern, emit.Asset{
		Resource: lc.run.id.Path,
		Query:    lc.run.id.Query,
		Module:   lc.run.id.String(),
		Stage:    lc.Stage().Name(),
	})
	if err != nil {
		return "", err
	}
	lc.run.engine.recorder.IncEmission(fresh)
	if fresh {
		lc.run.emissions = append(lc.run.emissions, rec)
	}
	lc.run.reference(rec)
	return rec.Path, nil
}

func (run *execution) reference(rec emit.Record) {
	for _, r := range run.references {
		if r.Hash == rec.Hash {
			return
		}
	}
	run.references = append(run.references, rec)
}

// SourceMap returns the source map carried between stages.
func (lc *Context) SourceMap() []byte { return lc.run.sourceMap }

// SetSourceMap replaces the source map passed to the previous stage.
func (lc *Context) SetSourceMap(m []byte) { lc.run.sourceMap = m }

// AddDependency records a file the output depends on.
func (lc *Context) AddDependency(path string) {
	for _, d := range lc.run.dependencies {
		if d == path {
			return
		}
	}
	lc.run.dependencies = append(lc.run.dependencies, path)
}

// Logger returns a logger carrying the module and stage attributes.
func (lc *Context) Logger() *slog.Logger {
	return lc.run.logger.With(logfields.Stage(lc.Stage().Name()), logfields.Index(lc.index))
}
