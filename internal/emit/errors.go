package emit

import (
	"errors"
	"fmt"
)

// ErrPathConflict reports that a rendered path is already held by different content.
var ErrPathConflict = errors.New("path already assigned to different content")

// EmissionError reports a file that could not be emitted. Hash and Path are
// filled even when the write failed.
type EmissionError struct {
	Stage string
	Path  string
	Hash  string
	Err   error
}

func (e *EmissionError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("emit %s (stage %s): %v", e.Path, e.Stage, e.Err)
	}
	return fmt.Sprintf("emit %s: %v", e.Path, e.Err)
}

func (e *EmissionError) Unwrap() error { return e.Err }
