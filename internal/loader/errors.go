package loader

import "fmt"

// Phase is the pass a handler runs in.
type Phase string

const (
	PhasePitch  Phase = "pitch"
	PhaseNormal Phase = "normal"
)

// TransformError wraps an error returned (or a panic raised) by a stage handler.
type TransformError struct {
	Stage string
	Phase Phase
	Index int
	Err   error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("stage %q (%s, #%d): %v", e.Stage, e.Phase, e.Index, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }
