package onnx

import (
	"context"
	"fmt"
	"maps"
)

// GraphRunner is the minimal runner contract required by Engine methods.
// Tests substitute fake runners; production code uses ORT-backed Runners.
type GraphRunner interface {
	Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error)
	Name() string
	Close()
}

// Engine owns one runner per manifest graph and dispatches named runs.
type Engine struct {
	runners map[string]GraphRunner
	meta    *SessionManager
}

// NewEngine builds an ORT-backed runner for every graph in the manifest.
// On any failure, runners created so far are closed before returning.
func NewEngine(sm *SessionManager, cfg RunnerConfig) (*Engine, error) {
	runners := make(map[string]GraphRunner, len(sm.Sessions()))
	for _, meta := range sm.Sessions() {
		r, err := NewRunner(meta, cfg)
		if err != nil {
			for _, created := range runners {
				created.Close()
			}

			return nil, fmt.Errorf("engine: %w", err)
		}

		runners[meta.Name] = r
	}

	return &Engine{runners: runners, meta: sm}, nil
}

// NewEngineWithRunners builds an Engine from externally provided graph runners.
func NewEngineWithRunners(runners map[string]GraphRunner) *Engine {
	internal := make(map[string]GraphRunner, len(runners))
	maps.Copy(internal, runners)

	return &Engine{runners: internal}
}

// Run executes the named graph with the given input tensors.
func (e *Engine) Run(ctx context.Context, graph string, inputs map[string]*Tensor) (map[string]*Tensor, error) {
	r, ok := e.runners[graph]
	if !ok {
		return nil, fmt.Errorf("engine: unknown graph %q", graph)
	}

	out, err := r.Run(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	return out, nil
}

// Session returns manifest metadata for the named graph, when a manifest
// was supplied at construction.
func (e *Engine) Session(name string) (Session, bool) {
	if e.meta == nil {
		return Session{}, false
	}

	return e.meta.Session(name)
}

// Graphs lists the graph names the engine can run.
func (e *Engine) Graphs() []string {
	names := make([]string, 0, len(e.runners))
	for name := range e.runners {
		names = append(names, name)
	}

	return names
}

// Close releases all runners. Safe to call multiple times.
func (e *Engine) Close() {
	for name, r := range e.runners {
		r.Close()
		delete(e.runners, name)
	}
}
