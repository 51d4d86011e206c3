package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyModule     = "module"
	KeyRunID      = "run_id"
	KeyStage      = "stage"
	KeyPhase      = "phase"
	KeyIndex      = "index"
	KeyChain      = "chain"
	KeyHash       = "hash"
	KeyPath       = "path"
	KeyBytes      = "bytes"
	KeyWorker     = "worker"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Module(id string) slog.Attr      { return slog.String(KeyModule, id) }
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Phase(p string) slog.Attr        { return slog.String(KeyPhase, p) }
func Index(i int) slog.Attr           { return slog.Int(KeyIndex, i) }
func Chain(c []string) slog.Attr      { return slog.Any(KeyChain, c) }
func Hash(h string) slog.Attr         { return slog.String(KeyHash, h) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Bytes(n int) slog.Attr           { return slog.Int(KeyBytes, n) }
func Worker(w int) slog.Attr          { return slog.Int(KeyWorker, w) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
