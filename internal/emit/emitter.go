package emit

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/loadchain/internal/logfields"
	"git.home.luguber.info/inful/loadchain/internal/retry"
	"git.home.luguber.info/inful/loadchain/internal/storage"
)

// DefaultHashLength is the digest prefix length used by [hash] without an explicit length.
const DefaultHashLength = 20

// Emitter writes emitted files to an ObjectStore, deduplicated through a Table.
type Emitter struct {
	table      *Table
	store      storage.ObjectStore
	policy     retry.Policy
	hashLength int
	logger     *slog.Logger
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithRetryPolicy sets the backoff used for transient store failures.
func WithRetryPolicy(p retry.Policy) Option { return func(e *Emitter) { e.policy = p } }

// WithHashLength sets the default [hash] length.
func WithHashLength(n int) Option {
	return func(e *Emitter) {
		if n > 0 {
			e.hashLength = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(e *Emitter) { e.logger = l } }

// NewEmitter returns an Emitter over table and store. A nil table gets a fresh one.
func NewEmitter(table *Table, store storage.ObjectStore, opts ...Option) *Emitter {
	if table == nil {
		table = NewTable()
	}
	e := &Emitter{
		table:      table,
		store:      store,
		policy:     retry.DefaultPolicy(),
		hashLength: DefaultHashLength,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Table returns the emitter's table.
func (e *Emitter) Table() *Table { return e.table }

// Store returns the emitter's sink.
func (e *Emitter) Store() storage.ObjectStore { return e.store }

// HashLength returns the default [hash] length.
func (e *Emitter) HashLength() int { return e.hashLength }

// Emit names content by its hash and writes it once. fresh is true only for
// the call that performed the write; repeats return the first record.
// Concurrent emissions of the same content wait for the single writer.
func (e *Emitter) Emit(ctx context.Context, content []byte, pattern string, a Asset) (Record, bool, error) {
	hash := Hash(content)
	path := Interpolate(pattern, a, hash, e.hashLength)

	for {
		en, owner, err := e.table.claim(hash, path, content)
		if err != nil {
			return Record{}, false, &EmissionError{Stage: a.Stage, Path: path, Hash: hash, Err: err}
		}
		if owner {
			return e.write(ctx, en, a)
		}
		select {
		case <-en.done:
		case <-ctx.Done():
			return Record{}, false, &EmissionError{Stage: a.Stage, Path: path, Hash: hash, Err: ctx.Err()}
		}
		if en.err == nil {
			e.logger.Debug("Emission deduplicated",
				logfields.Hash(hash), logfields.Path(en.rec.Path), logfields.Stage(a.Stage))
			return en.rec, false, nil
		}
		// The writer failed and removed its entry; try to become the writer.
	}
}

func (e *Emitter) write(ctx context.Context, en *entry, a Asset) (Record, bool, error) {
	obj := &storage.Object{
		Hash: en.rec.Hash,
		Type: storage.ObjectTypeEmittedAsset,
		Data: en.rec.Content,
		Metadata: storage.Metadata{Custom: map[string]string{
			storage.MetaPath:   en.rec.Path,
			storage.MetaModule: a.Module,
			storage.MetaStage:  a.Stage,
		}},
	}
	err := e.policy.Do(ctx, "emit "+en.rec.Path, func() error {
		_, putErr := e.store.Put(ctx, obj)
		return putErr
	}, retry.IsTransient)
	e.table.finish(en, err)
	if err != nil {
		e.logger.Warn("Emission failed",
			logfields.Hash(en.rec.Hash), logfields.Path(en.rec.Path), logfields.Stage(a.Stage), logfields.Error(err))
		return Record{}, false, &EmissionError{Stage: a.Stage, Path: en.rec.Path, Hash: en.rec.Hash, Err: err}
	}
	e.logger.Debug("Emitted file",
		logfields.Hash(en.rec.Hash), logfields.Path(en.rec.Path), logfields.Bytes(en.rec.Size), logfields.Stage(a.Stage))
	return en.rec, true, nil
}
