package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/loadchain/internal/api"
	"git.home.luguber.info/inful/loadchain/internal/eventstore"
	"git.home.luguber.info/inful/loadchain/internal/foundation/errors"
	"git.home.luguber.info/inful/loadchain/internal/logfields"
	"git.home.luguber.info/inful/loadchain/internal/metrics"
	"git.home.luguber.info/inful/loadchain/internal/rules"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Modules  []string      `arg:"" name:"module" help:"Module files to build and watch"`
	Output   string        `short:"o" help:"Output directory (overrides output.directory)"`
	Journal  string        `help:"SQLite journal path (default: in-memory)"`
	Listen   string        `help:"Serve /healthz, /metrics and /modules on this address (default: metrics.listen when metrics are enabled)"`
	Debounce time.Duration `help:"Delay between a change and the rebuild" default:"300ms"`
}

// Run builds once, then rebuilds on every change until interrupted.
func (cmd *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, baseDir, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	if cmd.Output != "" {
		cfg.Output.Directory = cmd.Output
	}
	listen := cmd.Listen
	if listen == "" && cfg.Metrics.Enabled {
		listen = cfg.Metrics.Listen
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	reg := prom.NewRegistry()
	if listen != "" {
		recorder = metrics.NewPrometheusRecorder(reg)
	}

	journal := cmd.Journal
	if journal == "" {
		journal = ":memory:"
	}
	s, err := newSession(cfg, baseDir, sessionOptions{Journal: journal, Recorder: recorder, Logger: g.logger()})
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	history := eventstore.NewModuleHistoryProjection(s.journal)

	ctx, cancel := signalContext()
	defer cancel()

	rebuild := func() {
		if _, err := runBuild(ctx, s, cmd.Modules, buildOptions{}); err != nil {
			g.logger().Warn("Rebuild failed", logfields.Error(err))
		}
		if err := history.Rebuild(ctx); err != nil {
			g.logger().Warn("Failed to refresh module history", logfields.Error(err))
		}
	}
	rebuild()

	if listen != "" {
		srv := api.NewServer(listen, history, reg)
		go func() {
			if err := srv.Start(); err != nil {
				g.logger().Error("Status server failed", logfields.Error(err))
				cancel()
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		g.logger().Info("Status server listening", "addr", listen)
	}

	targets, dirs, err := watchTargets(cmd.Modules)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WrapError(err, errors.CategoryRuntime, "failed to create file watcher").Build()
	}
	defer func() { _ = watcher.Close() }()
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to watch directory").
				WithContext("path", dir).Build()
		}
	}
	_, _ = fmt.Fprintf(g.out(), "Watching %d modules in %d directories\n", len(targets), len(dirs))

	rebuildReq, trigger := newDebouncer(cmd.Debounce)
	for {
		select {
		case <-ctx.Done():
			g.logger().Info("Stopping watch")
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			handleFileEvent(g.logger(), targets, ev, trigger)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			g.logger().Warn("watcher error", logfields.Error(err))
		case <-rebuildReq:
			g.logger().Info("Change detected; rebuilding modules")
			rebuild()
		}
	}
}

// watchTargets returns the absolute resource paths of the module arguments
// and the directories containing them.
func watchTargets(moduleArgs []string) (map[string]bool, []string, error) {
	targets := make(map[string]bool, len(moduleArgs))
	seen := map[string]bool{}
	var dirs []string
	for _, arg := range moduleArgs {
		req, err := rules.ParseRequest(filepath.ToSlash(arg))
		if err != nil {
			return nil, nil, errors.WrapError(err, errors.CategoryConfig, "invalid module request").
				UserAction().WithContext("module", arg).Build()
		}
		abs, err := filepath.Abs(filepath.FromSlash(req.Identifier.Path))
		if err != nil {
			return nil, nil, err
		}
		targets[abs] = true
		if dir := filepath.Dir(abs); !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return targets, dirs, nil
}

// newDebouncer returns a channel that receives once per burst of triggers.
func newDebouncer(delay time.Duration) (<-chan struct{}, func()) {
	var mu sync.Mutex
	var timer *time.Timer
	rebuildReq := make(chan struct{}, 1)

	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(delay, func() {
			select {
			case rebuildReq <- struct{}{}:
			default:
			}
		})
	}
	return rebuildReq, trigger
}

// handleFileEvent triggers a rebuild when a watched module changes.
func handleFileEvent(logger *slog.Logger, targets map[string]bool, ev fsnotify.Event, trigger func()) {
	if shouldIgnoreEvent(ev.Name) || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil || !targets[abs] {
		return
	}
	logger.Debug("File change detected", logfields.Path(ev.Name), "op", ev.Op.String())
	trigger()
}

// shouldIgnoreEvent returns true for editor temp and swap files.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, ".#") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#")
}
