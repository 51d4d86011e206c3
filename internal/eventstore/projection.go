package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

const (
	statusRunning   = "running"
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// ModuleSummary is the read model of the latest run of one module.
type ModuleSummary struct {
	Module       string    `json:"module"`
	RunID        string    `json:"run_id"`
	Status       string    `json:"status"`
	Chain        []string  `json:"chain,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	DurationMS   int64     `json:"duration_ms,omitempty"`
	Emitted      []string  `json:"emitted,omitempty"`
	ShortCircuit string    `json:"short_circuit,omitempty"`
	FailureKind  string    `json:"failure_kind,omitempty"`
	Error        string    `json:"error,omitempty"`
	Runs         int       `json:"runs"`
}

// ModuleHistoryProjection keeps the latest run of every module, rebuilt
// from the journal and updated as events are appended.
type ModuleHistoryProjection struct {
	mu      sync.RWMutex
	store   Store
	modules map[string]*ModuleSummary
}

// NewModuleHistoryProjection creates a projection backed by store.
func NewModuleHistoryProjection(store Store) *ModuleHistoryProjection {
	return &ModuleHistoryProjection{store: store, modules: map[string]*ModuleSummary{}}
}

// Rebuild reconstructs the projection from every event in the store.
func (p *ModuleHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.modules = map[string]*ModuleSummary{}
	for _, e := range events {
		p.applyLocked(e)
	}
	return nil
}

// Apply processes a single event.
func (p *ModuleHistoryProjection) Apply(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(e)
}

func (p *ModuleHistoryProjection) applyLocked(e Event) {
	if e.Module() == "" {
		return
	}
	s, ok := p.modules[e.Module()]
	if e.Type() == TypeRunStarted || !ok {
		runs := 0
		if ok {
			runs = s.Runs
		}
		s = &ModuleSummary{Module: e.Module(), RunID: e.RunID(), Status: statusRunning, StartedAt: e.Timestamp(), Runs: runs + 1}
		p.modules[e.Module()] = s
	}
	if s.RunID != e.RunID() {
		return // late event of an older run
	}

	switch e.Type() {
	case TypeRunStarted:
		var payload RunStartedPayload
		if json.Unmarshal(e.Payload(), &payload) == nil {
			s.Chain = payload.Chain
		}
	case TypeFileEmitted:
		var payload FileEmittedPayload
		if json.Unmarshal(e.Payload(), &payload) == nil {
			s.Emitted = append(s.Emitted, payload.Path)
		}
	case TypeRunCompleted:
		var payload RunCompletedPayload
		if json.Unmarshal(e.Payload(), &payload) == nil {
			s.DurationMS = payload.DurationMS
			s.ShortCircuit = payload.ShortCircuit
		}
		s.Status = statusCompleted
	case TypeRunFailed:
		var payload RunFailedPayload
		if json.Unmarshal(e.Payload(), &payload) == nil {
			s.DurationMS = payload.DurationMS
			s.FailureKind = payload.Kind
			s.Error = payload.Message
		}
		s.Status = statusFailed
	}
}

// Get returns the summary of module.
func (p *ModuleHistoryProjection) Get(module string) (ModuleSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.modules[module]
	if !ok {
		return ModuleSummary{}, false
	}
	return *s, true
}

// List returns every module summary sorted by module identifier.
func (p *ModuleHistoryProjection) List() []ModuleSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]ModuleSummary, 0, len(p.modules))
	for _, s := range p.modules {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Module < out[j].Module })
	return out
}
