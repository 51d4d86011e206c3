package commands

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/loadchain/internal/foundation/errors"
	"git.home.luguber.info/inful/loadchain/internal/logfields"
	"git.home.luguber.info/inful/loadchain/internal/metrics"
	"git.home.luguber.info/inful/loadchain/internal/pipeline"
	"git.home.luguber.info/inful/loadchain/internal/rules"
	"git.home.luguber.info/inful/loadchain/internal/storage"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Modules     []string `arg:"" name:"module" help:"Module files, optionally prefixed with an inline chain (e.g. '!!raw!data.json')"`
	Output      string   `short:"o" help:"Output directory (overrides output.directory)"`
	Workers     int      `short:"w" help:"Concurrent modules (overrides pipeline.workers)"`
	Journal     string   `help:"Append run events to this SQLite journal"`
	KeepOutputs bool     `name:"keep-outputs" help:"Store module outputs in the object store"`
	GC          bool     `name:"gc" help:"Remove stored objects not referenced by this build"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, baseDir, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	if b.Output != "" {
		cfg.Output.Directory = b.Output
	}
	if b.Workers > 0 {
		cfg.Pipeline.Workers = b.Workers
	}

	recorder := metrics.NewCountingRecorder()
	s, err := newSession(cfg, baseDir, sessionOptions{
		Journal:     b.Journal,
		Recorder:    recorder,
		KeepOutputs: b.KeepOutputs,
		Logger:      g.logger(),
	})
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	ctx, cancel := signalContext()
	defer cancel()

	report, err := runBuild(ctx, s, b.Modules, buildOptions{GC: b.GC})
	if report != nil {
		fresh, dedup := recorder.Emissions()
		_, _ = fmt.Fprintf(g.out(), "Built %d of %d modules into %s (%d files emitted, %d deduplicated)\n",
			report.succeeded, len(report.results), cfg.Output.Directory, fresh, dedup)
	}
	return err
}

type buildOptions struct {
	GC bool
}

type buildReport struct {
	results   []pipeline.BatchResult
	manifest  *pipeline.Manifest
	succeeded int
}

// runBuild transforms moduleArgs, then writes outputs, emitted files and the
// manifest below the configured output directory. Modules that fail do not
// stop the others; the first failure is returned after everything is written.
func runBuild(ctx context.Context, s *session, moduleArgs []string, opts buildOptions) (*buildReport, error) {
	cfg := s.cfg
	logger := s.logger
	start := time.Now()

	reqs := make([]pipeline.Request, 0, len(moduleArgs))
	for _, arg := range moduleArgs {
		req, err := readModule(arg)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}

	if cfg.Output.Clean {
		if err := os.RemoveAll(cfg.Output.Directory); err != nil {
			return nil, errors.FileSystemError("failed to clean output directory").WithCause(err).
				WithContext("path", cfg.Output.Directory).Build()
		}
	}

	results := s.coordinator.RunAll(ctx, reqs, cfg.Pipeline.Workers)

	outputs := make(map[string]string, len(results))
	hashes := []string{}
	report := &buildReport{results: results}
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		report.succeeded++
		rel := outputName(r.Output.ModuleID)
		if _, err := storage.WriteFile(cfg.Output.Directory, rel, r.Output.Content); err != nil {
			return report, errors.FileSystemError("failed to write module output").WithCause(err).
				WithContext("module", r.Output.ModuleID).Build()
		}
		outputs[r.Output.ModuleID] = rel
		if r.Output.OutputHash != "" {
			hashes = append(hashes, r.Output.OutputHash)
		}
	}

	report.manifest = pipeline.NewManifest(results, outputs)
	records := report.manifest.Assets
	for _, rec := range records {
		if _, err := storage.WriteFile(cfg.Output.Directory, rec.Path, rec.Content); err != nil {
			return report, errors.FileSystemError("failed to write emitted file").WithCause(err).
				WithContext("path", rec.Path).Build()
		}
		hashes = append(hashes, rec.Hash)
	}

	data, err := report.manifest.Marshal()
	if err != nil {
		return report, errors.InternalError("failed to encode manifest").WithCause(err).Build()
	}
	if _, err := storage.WriteFile(cfg.Output.Directory, cfg.Output.Manifest, data); err != nil {
		return report, errors.FileSystemError("failed to write manifest").WithCause(err).Build()
	}

	if opts.GC {
		removed, err := s.gc(ctx, uuid.NewString(), hashes)
		if err != nil {
			logger.Warn("Object store GC failed", logfields.Error(err))
		} else if removed > 0 {
			logger.Info("Removed unreferenced objects", "count", removed)
		}
	}

	logger.Info("Build finished",
		"modules", len(results),
		"succeeded", report.succeeded,
		"emitted", len(records),
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))

	return report, firstFailure(results)
}

// readModule reads the resource named by a module argument.
func readModule(arg string) (pipeline.Request, error) {
	id := filepath.ToSlash(arg)
	parsed, err := rules.ParseRequest(id)
	if err != nil {
		return pipeline.Request{}, errors.WrapError(err, errors.CategoryConfig, "invalid module request").
			UserAction().WithContext("module", arg).Build()
	}
	raw, err := os.ReadFile(filepath.FromSlash(parsed.Identifier.Path))
	if err != nil {
		b := errors.FileSystemError("failed to read module").WithCause(err).WithContext("module", arg)
		if stderrors.Is(err, fs.ErrNotExist) {
			b = errors.WrapError(err, errors.CategoryNotFound, "module not found").UserAction().WithContext("module", arg)
		}
		return pipeline.Request{}, b.Build()
	}
	return pipeline.Request{ModuleID: id, Raw: raw}, nil
}

// outputName maps a module to its output file: the resource path with a .js
// suffix, stripped of any leading "../" or "/".
func outputName(moduleID string) string {
	parsed, err := rules.ParseRequest(moduleID)
	p := moduleID
	if err == nil {
		p = parsed.Identifier.Path
	}
	p = strings.TrimLeft(filepath.ToSlash(filepath.Clean(p)), "/")
	for strings.HasPrefix(p, "../") {
		p = strings.TrimPrefix(p, "../")
	}
	if !strings.HasSuffix(p, ".js") {
		p += ".js"
	}
	return p
}

// firstFailure returns the classified error of the first failed module.
func firstFailure(results []pipeline.BatchResult) error {
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		var pe *pipeline.Error
		if stderrors.As(r.Err, &pe) {
			return pe.Classified()
		}
		return r.Err
	}
	return nil
}
