// Package workflow holds the immutable WorkflowDefinition loaded from disk
// and the mutable WorkflowContext threaded through a single run
// (spec.md §3.1-§3.3).
package workflow

import (
	"strconv"
	"strings"
	"sync"

	"github.com/ma-collective/orchestrator/transport"
)

// Context is the mutable state of a single workflow run. All fields
// except RepoRoot may change over the run's lifetime; Branch in
// particular is set by the coordinator at run start and afterwards only
// updated by git-operation steps, and every
// reader must go through Context rather than a value captured at
// workflow start (spec.md §3.3 invariant).
type Context struct {
	mu sync.RWMutex

	WorkflowID string
	ProjectID  string
	RepoRoot   string
	Transport  transport.Transport

	branch         string
	variables      map[string]any
	stepOutputs    map[string]map[string]any
	completedSteps map[string]bool
	failedStep     string
	abortRequested bool
	abortReason    string
}

// NewContext builds an empty Context for workflowID/projectID rooted at
// repoRoot, which is immutable for the life of the run.
func NewContext(workflowID, projectID, repoRoot string, tport transport.Transport, initialVars map[string]any) *Context {
	vars := make(map[string]any, len(initialVars))
	for k, v := range initialVars {
		vars[k] = v
	}
	return &Context{
		WorkflowID:     workflowID,
		ProjectID:      projectID,
		RepoRoot:       repoRoot,
		Transport:      tport,
		variables:      vars,
		stepOutputs:    make(map[string]map[string]any),
		completedSteps: make(map[string]bool),
	}
}

// Branch returns the current working branch.
func (c *Context) Branch() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.branch
}

// SetBranch is called by the coordinator to seed the run's feature branch
// and by git-operation steps on success.
func (c *Context) SetBranch(branch string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.branch = branch
}

// SetVariable assigns a top-level variable.
func (c *Context) SetVariable(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variables[name] = value
}

// Variable returns a top-level variable and whether it was present.
func (c *Context) Variable(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.variables[name]
	return v, ok
}

// Variables returns a snapshot copy of all top-level variables.
func (c *Context) Variables() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.variables))
	for k, v := range c.variables {
		out[k] = v
	}
	return out
}

// RecordStepOutputs stores a step's promoted outputs for later reference.
func (c *Context) RecordStepOutputs(step string, outputs map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stepOutputs[step] = outputs
	c.completedSteps[step] = true
}

// MarkSkipped records a step as completed (for downstream dependency
// purposes) without producing outputs (spec.md §3.2 condition semantics).
func (c *Context) MarkSkipped(step string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completedSteps[step] = true
}

// IsCompleted reports whether step has reached terminal success (or was
// skipped, which counts as success for dependents).
func (c *Context) IsCompleted(step string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.completedSteps[step]
}

// MarkFailed records the first failing step name.
func (c *Context) MarkFailed(step string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failedStep == "" {
		c.failedStep = step
	}
}

// FailedStep returns the name of the first step that failed, if any.
func (c *Context) FailedStep() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failedStep
}

// RequestAbort sets the abort flag with a reason. The scheduler checks
// this at step boundaries, never mid-step (spec.md §5).
func (c *Context) RequestAbort(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.abortRequested {
		c.abortRequested = true
		c.abortReason = reason
	}
}

// AbortRequested reports whether an abort has been requested and why.
func (c *Context) AbortRequested() (bool, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.abortRequested, c.abortReason
}

// Resolve expands `${name}` and dotted-path references against variables
// and stepOutputs. An unresolvable reference yields the literal string
// "unknown" rather than an error (spec.md §4.4, condition evaluator rule).
func (c *Context) Resolve(ref string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resolveLocked(ref)
}

func (c *Context) resolveLocked(ref string) string {
	parts := strings.Split(ref, ".")
	if len(parts) == 0 {
		return "unknown"
	}

	head := parts[0]
	var current any
	if v, ok := c.variables[head]; ok {
		current = v
	} else if out, ok := c.stepOutputs[head]; ok {
		current = out
	} else {
		return "unknown"
	}

	for _, p := range parts[1:] {
		m, ok := current.(map[string]any)
		if !ok {
			return "unknown"
		}
		v, ok := m[p]
		if !ok {
			return "unknown"
		}
		current = v
	}

	return stringify(current)
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "unknown"
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return "unknown"
	}
}
