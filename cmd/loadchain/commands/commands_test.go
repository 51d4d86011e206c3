package commands

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/loadchain/internal/emit"
	"git.home.luguber.info/inful/loadchain/internal/eventstore"
	"git.home.luguber.info/inful/loadchain/internal/foundation/errors"
	"git.home.luguber.info/inful/loadchain/internal/pipeline"
	"git.home.luguber.info/inful/loadchain/internal/storage"
)

const goodRules = `rules:
  - test: '\.js$'
    use:
      - loader: banner
        options:
          author: Tester
  - test: '\.png$'
    use:
      - loader: file
`

const badRule = `  - test: '\.bad$'
    use:
      - loader: banner
`

const settings = `pipeline:
  workers: 2
  require_match: [".png"]
output:
  directory: dist
`

const testConfig = goodRules + badRule + settings

var pngBytes = bytes.Repeat([]byte{0x89, 'P', 'N', 'G'}, 64)

// writeProject creates a project in a temp dir and makes it the working directory.
func writeProject(t *testing.T, cfg string) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("loadchain.yaml", []byte(cfg), 0o600))
	require.NoError(t, os.MkdirAll("src", 0o750))
	require.NoError(t, os.MkdirAll("img", 0o750))
	require.NoError(t, os.WriteFile("src/app.js", []byte("console.log(1);"), 0o600))
	require.NoError(t, os.WriteFile("img/logo.png", pngBytes, 0o600))
	require.NoError(t, os.WriteFile("src/x.bad", []byte("x"), 0o600))
	return dir
}

func testGlobal() (*Global, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Global{Logger: slog.New(slog.DiscardHandler), Out: &buf}, &buf
}

func root() *CLI { return &CLI{Config: "loadchain.yaml"} }

func TestBuildWritesOutputsAndManifest(t *testing.T) {
	writeProject(t, testConfig)
	g, out := testGlobal()

	cmd := &BuildCmd{Modules: []string{"src/app.js", "img/logo.png"}}
	require.NoError(t, cmd.Run(g, root()))
	assert.Contains(t, out.String(), "Built 2 of 2 modules")

	js, err := os.ReadFile("dist/src/app.js")
	require.NoError(t, err)
	assert.Equal(t, "/**Author: Tester*/\nconsole.log(1);", string(js))

	emitted := "images/" + emit.Hash(pngBytes)[:20] + ".png"
	data, err := os.ReadFile(filepath.Join("dist", filepath.FromSlash(emitted)))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)

	logo, err := os.ReadFile("dist/img/logo.png.js")
	require.NoError(t, err)
	assert.Contains(t, string(logo), emitted)

	raw, err := os.ReadFile("dist/manifest.json")
	require.NoError(t, err)
	var manifest pipeline.Manifest
	require.NoError(t, json.Unmarshal(raw, &manifest))
	require.Len(t, manifest.Assets, 1)
	assert.Equal(t, emitted, manifest.Assets[0].Path)
	assert.Equal(t, "src/app.js", manifest.Modules["src/app.js"].Output)
	assert.Equal(t, []string{emitted}, manifest.Modules["img/logo.png"].Emitted)
}

func TestBuildInlineChain(t *testing.T) {
	writeProject(t, testConfig)
	g, _ := testGlobal()

	require.NoError(t, (&BuildCmd{Modules: []string{"!!raw!src/app.js"}}).Run(g, root()))
	js, err := os.ReadFile("dist/src/app.js")
	require.NoError(t, err)
	assert.Equal(t, `module.exports = "console.log(1);"`, string(js))
}

func TestBuildReportsFirstFailure(t *testing.T) {
	writeProject(t, testConfig)
	g, out := testGlobal()

	err := (&BuildCmd{Modules: []string{"src/x.bad", "src/app.js"}}).Run(g, root())
	require.Error(t, err)
	classified, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryValidation, classified.Category())
	assert.Equal(t, 2, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
	assert.Contains(t, out.String(), "Built 1 of 2 modules")

	_, statErr := os.Stat("dist/src/app.js")
	assert.NoError(t, statErr, "other modules are still written")
}

func TestBuildMissingModule(t *testing.T) {
	writeProject(t, testConfig)
	g, _ := testGlobal()

	err := (&BuildCmd{Modules: []string{"src/missing.js"}}).Run(g, root())
	require.Error(t, err)
	assert.Equal(t, errors.CategoryNotFound, errors.GetCategory(err))
}

func TestBuildJournalAndHistory(t *testing.T) {
	writeProject(t, testConfig)
	g, _ := testGlobal()

	journal := filepath.Join(t.TempDir(), "journal.db")
	require.NoError(t, (&BuildCmd{Modules: []string{"src/app.js", "img/logo.png"}, Journal: journal}).Run(g, root()))

	g, out := testGlobal()
	require.NoError(t, (&HistoryCmd{Journal: journal, JSON: true}).Run(g, root()))
	var summaries []eventstore.ModuleSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summaries))
	require.Len(t, summaries, 2)
	assert.Equal(t, "img/logo.png", summaries[0].Module)
	assert.Equal(t, "completed", summaries[0].Status)
	assert.Len(t, summaries[0].Emitted, 1)

	g, out = testGlobal()
	require.NoError(t, (&HistoryCmd{Journal: journal, Module: "src/app.js"}).Run(g, root()))
	assert.Contains(t, out.String(), "src/app.js")
	assert.NotContains(t, out.String(), "img/logo.png")

	err := (&HistoryCmd{Journal: journal, Module: "nope.js"}).Run(g, root())
	assert.Equal(t, errors.CategoryNotFound, errors.GetCategory(err))
}

func TestBuildGCRemovesUnreferencedObjects(t *testing.T) {
	writeProject(t, testConfig+"emit:\n  store_dir: store\n")
	g, _ := testGlobal()

	store, err := storage.NewFSStore("store")
	require.NoError(t, err)
	stale, err := store.Put(t.Context(), &storage.Object{Type: storage.ObjectTypeEmittedAsset, Data: []byte("stale")})
	require.NoError(t, err)

	require.NoError(t, (&BuildCmd{Modules: []string{"img/logo.png"}, GC: true}).Run(g, root()))

	exists, err := store.Exists(t.Context(), stale)
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = store.Exists(t.Context(), emit.Hash(pngBytes))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRebuildWritesOnlyReachedAssets(t *testing.T) {
	writeProject(t, testConfig)
	g, _ := testGlobal()
	cfg, baseDir, err := loadConfig("loadchain.yaml")
	require.NoError(t, err)
	s, err := newSession(cfg, baseDir, sessionOptions{Logger: g.logger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = runBuild(t.Context(), s, []string{"img/logo.png"}, buildOptions{})
	require.NoError(t, err)
	oldPath := filepath.Join("dist", "images", emit.Hash(pngBytes)[:20]+".png")
	require.FileExists(t, oldPath)

	edited := append(bytes.Clone(pngBytes), 0x00)
	require.NoError(t, os.WriteFile("img/logo.png", edited, 0o600))
	require.NoError(t, os.RemoveAll("dist"))

	report, err := runBuild(t.Context(), s, []string{"img/logo.png"}, buildOptions{})
	require.NoError(t, err)
	require.Len(t, report.manifest.Assets, 1)
	assert.Equal(t, emit.Hash(edited), report.manifest.Assets[0].Hash)
	assert.NoFileExists(t, oldPath)
	assert.FileExists(t, filepath.Join("dist", filepath.FromSlash(report.manifest.Assets[0].Path)))
}

func TestChainCommand(t *testing.T) {
	writeProject(t, testConfig)
	g, out := testGlobal()

	require.NoError(t, (&ChainCmd{Module: "src/app.js", Format: "text"}).Run(g, root()))
	assert.Contains(t, out.String(), `banner?{"author":"Tester"}`)

	target := filepath.Join(t.TempDir(), "chain.dot")
	require.NoError(t, (&ChainCmd{Module: "src/app.js", Format: "dot", Output: target}).Run(g, root()))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "digraph Chain")

	err = (&ChainCmd{Module: "img/other.png", Format: "text"}).Run(g, &CLI{Config: "missing.yaml"})
	assert.Equal(t, errors.CategoryConfig, errors.GetCategory(err))
}

func TestValidateCommand(t *testing.T) {
	writeProject(t, testConfig)
	g, out := testGlobal()

	err := (&ValidateCmd{}).Run(g, root())
	require.Error(t, err, "the .bad rule uses banner without an author")
	assert.Equal(t, errors.CategoryValidation, errors.GetCategory(err))
	assert.Contains(t, out.String(), "rule 2: banner:")

	require.NoError(t, os.WriteFile("loadchain.yaml", []byte(goodRules+settings), 0o600))
	g, out = testGlobal()
	require.NoError(t, (&ValidateCmd{}).Run(g, root()))
	assert.Contains(t, out.String(), "2 stages valid")
}

func TestLoadersCommand(t *testing.T) {
	g, out := testGlobal()
	require.NoError(t, (&LoadersCmd{}).Run(g, nil))
	for _, name := range []string{"banner", "file", "style", "markdown", "raw"} {
		assert.Contains(t, out.String(), name)
	}

	g, out = testGlobal()
	require.NoError(t, (&LoadersCmd{JSON: true}).Run(g, nil))
	var infos []loaderInfo
	require.NoError(t, json.Unmarshal(out.Bytes(), &infos))
	assert.NotEmpty(t, infos)
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	g, out := testGlobal()

	require.NoError(t, (&InitCmd{Output: dir}).Run(g, root()))
	assert.Contains(t, out.String(), "initialized successfully")
	_, err := os.Stat(filepath.Join(dir, "loadchain.yaml"))
	require.NoError(t, err)

	err = (&InitCmd{Output: dir}).Run(g, root())
	assert.Equal(t, errors.CategoryConfig, errors.GetCategory(err))
	require.NoError(t, (&InitCmd{Output: dir, Force: true}).Run(g, root()))
}

func TestOutputName(t *testing.T) {
	tests := map[string]string{
		"src/app.js":          "src/app.js",
		"img/logo.png":        "img/logo.png.js",
		"!!raw!data/x.json":   "data/x.json.js",
		"../outside/a.css":    "outside/a.css.js",
		"/abs/path/style.css": "abs/path/style.css.js",
	}
	for in, want := range tests {
		assert.Equal(t, want, outputName(in), in)
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Setenv("LOADCHAIN_LOG_LEVEL", "")
	assert.Equal(t, slog.LevelInfo, parseLogLevel(false))
	assert.Equal(t, slog.LevelDebug, parseLogLevel(true))

	t.Setenv("LOADCHAIN_LOG_LEVEL", "WARN")
	assert.Equal(t, slog.LevelWarn, parseLogLevel(true))
}

func TestWatchHelpers(t *testing.T) {
	dir := writeProject(t, testConfig)

	targets, dirs, err := watchTargets([]string{"src/app.js", "!!raw!src/x.bad", "img/logo.png"})
	require.NoError(t, err)
	assert.Len(t, targets, 3)
	assert.Len(t, dirs, 2)

	fired := 0
	trigger := func() { fired++ }
	logger := slog.New(slog.DiscardHandler)
	handleFileEvent(logger, targets, fsnotify.Event{Name: filepath.Join(dir, "src", "app.js"), Op: fsnotify.Write}, trigger)
	handleFileEvent(logger, targets, fsnotify.Event{Name: filepath.Join(dir, "src", "other.js"), Op: fsnotify.Write}, trigger)
	handleFileEvent(logger, targets, fsnotify.Event{Name: filepath.Join(dir, "src", "app.js"), Op: fsnotify.Chmod}, trigger)
	handleFileEvent(logger, targets, fsnotify.Event{Name: filepath.Join(dir, "src", "app.js.swp"), Op: fsnotify.Write}, trigger)
	assert.Equal(t, 1, fired)

	assert.True(t, shouldIgnoreEvent("#app.js#"))
	assert.False(t, shouldIgnoreEvent("app.js"))
}

func TestDebouncerCoalescesBursts(t *testing.T) {
	req, trigger := newDebouncer(10 * time.Millisecond)
	for range 5 {
		trigger()
	}
	select {
	case <-req:
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer never fired")
	}
	select {
	case <-req:
		t.Fatal("burst fired more than once")
	case <-time.After(50 * time.Millisecond):
	}
}
