// Package steps implements the registry of step kinds referenced by
// StepSpec.Type and the Step execution contract (spec.md §4.4).
package steps

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ma-collective/orchestrator/dashboard"
	"github.com/ma-collective/orchestrator/gitworkspace"
	"github.com/ma-collective/orchestrator/messenger"
	"github.com/ma-collective/orchestrator/workflow"
)

// Deps bundles the collaborators step kinds need. Not every step uses
// every field; PersonaRequestStep needs Messenger, GitOperationStep needs
// Workspace, and so on.
type Deps struct {
	Messenger          *messenger.Messenger
	Dashboard          *dashboard.Client
	Workspace          *gitworkspace.Workspace
	Logger             *slog.Logger
	PersonaTimeouts    map[string]int
	PersonaMaxRetries  map[string]*int
	DefaultTimeoutMs   int
	DefaultMaxRetries  int
	BackoffIncrementMs int
	SkipPersonaOps     bool
	SkipGitOps         bool
}

// ValidationResult is returned by Step.Validate before any side effect
// runs (spec.md §4.4 "Execution contract per step").
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// Status is a step's terminal outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusSkipped Status = "skipped"
)

// Result is returned by Step.Execute.
type Result struct {
	Status  Status
	Data    map[string]any
	Outputs map[string]any
	Err     error
	Metrics map[string]float64
}

// Step is the execution contract every step kind implements.
type Step interface {
	Validate(ctx context.Context, wc *workflow.Context, spec *workflow.StepSpec) ValidationResult
	Execute(ctx context.Context, wc *workflow.Context, spec *workflow.StepSpec) Result
}

// Factory builds a Step for a given type key, wired with deps.
type Factory func(deps Deps) Step

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

// Register adds a step factory under typeKey. Called from init() in each
// step kind's file, mirroring how the teacher's components self-register.
func Register(typeKey string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[typeKey] = factory
}

// New builds a Step for typeKey, or an error if it isn't registered.
func New(typeKey string, deps Deps) (Step, error) {
	mu.RLock()
	factory, ok := registry[typeKey]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("steps: unknown step type %q", typeKey)
	}
	return factory(deps), nil
}
