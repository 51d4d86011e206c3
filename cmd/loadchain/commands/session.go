package commands

import (
	"context"
	stderrors "errors"
	"log/slog"

	"git.home.luguber.info/inful/loadchain/internal/config"
	"git.home.luguber.info/inful/loadchain/internal/emit"
	"git.home.luguber.info/inful/loadchain/internal/eventstore"
	"git.home.luguber.info/inful/loadchain/internal/foundation/errors"
	"git.home.luguber.info/inful/loadchain/internal/loader"
	"git.home.luguber.info/inful/loadchain/internal/metrics"
	"git.home.luguber.info/inful/loadchain/internal/pipeline"
	"git.home.luguber.info/inful/loadchain/internal/retry"
	"git.home.luguber.info/inful/loadchain/internal/rules"
	"git.home.luguber.info/inful/loadchain/internal/schema"
	"git.home.luguber.info/inful/loadchain/internal/stages"
	"git.home.luguber.info/inful/loadchain/internal/storage"
)

// sessionOptions tunes newSession.
type sessionOptions struct {
	Journal     string // path of the SQLite journal, empty disables it
	Recorder    metrics.Recorder
	KeepOutputs bool
	Logger      *slog.Logger
}

// session owns everything shared by the runs of one command: one emitter
// table, one validator cache and one object store.
type session struct {
	cfg         *config.Config
	registry    *loader.Registry
	matcher     *rules.Matcher
	store       storage.ObjectStore
	emitter     *emit.Emitter
	validator   *schema.Validator
	journal     eventstore.Store
	coordinator *pipeline.Coordinator
	logger      *slog.Logger
}

// newRegistry returns a registry holding every built-in stage.
func newRegistry(cfg *config.Config) (*loader.Registry, error) {
	reg := loader.NewRegistry()
	opts := stages.DefaultOptions()
	opts.FilePattern = cfg.Emit.DefaultPattern
	if err := stages.Register(reg, opts); err != nil {
		return nil, errors.InternalError("failed to register built-in stages").WithCause(err).Build()
	}
	return reg, nil
}

// newMatcher compiles the configured rules.
func newMatcher(cfg *config.Config, baseDir string, reg *loader.Registry) (*rules.Matcher, error) {
	compiled, err := rules.FromConfig(cfg.Rules, baseDir)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid rule").Fatal().UserAction().Build()
	}
	descriptors, err := rules.Compile(compiled, reg)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to compile rules").Fatal().UserAction().Build()
	}
	return rules.NewMatcher(descriptors, reg, cfg.Pipeline.RequireMatch), nil
}

func newSession(cfg *config.Config, baseDir string, opts sessionOptions) (*session, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	reg, err := newRegistry(cfg)
	if err != nil {
		return nil, err
	}
	matcher, err := newMatcher(cfg, baseDir, reg)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, registry: reg, matcher: matcher, validator: schema.NewValidator(), logger: opts.Logger}
	if cfg.Emit.StoreDir != "" {
		fsStore, err := storage.NewFSStore(cfg.Emit.StoreDir)
		if err != nil {
			return nil, errors.FileSystemError("failed to open object store").WithCause(err).
				WithContext("path", cfg.Emit.StoreDir).Build()
		}
		s.store = fsStore
	} else {
		s.store = storage.NewMemoryStore()
	}
	s.emitter = emit.NewEmitter(emit.NewTable(), s.store,
		emit.WithHashLength(cfg.Emit.HashLength),
		emit.WithRetryPolicy(retry.FromConfig(cfg.Retry)),
		emit.WithLogger(opts.Logger),
	)

	if opts.Journal != "" {
		journal, err := eventstore.NewSQLiteStore(opts.Journal)
		if err != nil {
			_ = s.store.Close()
			return nil, errors.WrapError(err, errors.CategoryJournal, "failed to open journal").
				WithContext("path", opts.Journal).Build()
		}
		s.journal = journal
	}

	s.coordinator = pipeline.New(pipeline.Options{
		Matcher:     matcher,
		Emitter:     s.emitter,
		Validator:   s.validator,
		Recorder:    opts.Recorder,
		Journal:     s.journal,
		Logger:      opts.Logger,
		KeepOutputs: opts.KeepOutputs,
	})
	return s, nil
}

// gc records hashes as the references of buildID and removes every stored
// object outside that set. Only persistent stores are collected.
func (s *session) gc(ctx context.Context, buildID string, hashes []string) (int, error) {
	fsStore, ok := s.store.(*storage.FSStore)
	if !ok {
		return 0, nil
	}
	referenced := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		referenced[h] = true
	}
	if err := fsStore.AddRunRef(buildID, hashes); err != nil {
		return 0, err
	}
	return fsStore.GC(ctx, referenced)
}

func (s *session) Close() error {
	var errs []error
	if s.journal != nil {
		errs = append(errs, s.journal.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return stderrors.Join(errs...)
}
