package eventstore

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event type names.
const (
	TypeRunStarted   = "run_started"
	TypeRunCompleted = "run_completed"
	TypeRunFailed    = "run_failed"
	TypeFileEmitted  = "file_emitted"
)

// RunStartedPayload records the resolved chain of a run.
type RunStartedPayload struct {
	Chain []string `json:"chain"`
}

// RunCompletedPayload summarises a successful run.
type RunCompletedPayload struct {
	Bytes        int    `json:"bytes"`
	Emissions    int    `json:"emissions"`
	ShortCircuit string `json:"short_circuit,omitempty"`
	DurationMS   int64  `json:"duration_ms"`
}

// RunFailedPayload records why a run failed.
type RunFailedPayload struct {
	Kind       string `json:"kind"`
	Stage      string `json:"stage,omitempty"`
	Message    string `json:"message"`
	DurationMS int64  `json:"duration_ms"`
}

// FileEmittedPayload records one fresh emission.
type FileEmittedPayload struct {
	Hash string `json:"hash"`
	Path string `json:"path"`
	Size int    `json:"size"`
}

func newEvent(runID, module, eventType string, payload any) (*BaseEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMarshalPayloadFailed, eventType, err)
	}
	return &BaseEvent{
		EventRunID:     runID,
		EventModule:    module,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   data,
	}, nil
}

// NewRunStarted creates a run_started event.
func NewRunStarted(runID, module string, chain []string) (*BaseEvent, error) {
	if chain == nil {
		chain = []string{}
	}
	return newEvent(runID, module, TypeRunStarted, RunStartedPayload{Chain: chain})
}

// NewRunCompleted creates a run_completed event.
func NewRunCompleted(runID, module string, p RunCompletedPayload) (*BaseEvent, error) {
	return newEvent(runID, module, TypeRunCompleted, p)
}

// NewRunFailed creates a run_failed event.
func NewRunFailed(runID, module string, p RunFailedPayload) (*BaseEvent, error) {
	return newEvent(runID, module, TypeRunFailed, p)
}

// NewFileEmitted creates a file_emitted event.
func NewFileEmitted(runID, module string, p FileEmittedPayload) (*BaseEvent, error) {
	return newEvent(runID, module, TypeFileEmitted, p)
}
