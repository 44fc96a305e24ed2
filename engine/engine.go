package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ma-collective/orchestrator/workflow"
	"github.com/ma-collective/orchestrator/workflow/steps"
)

// RunResult is the terminal outcome of one workflow run.
type RunResult struct {
	Status      string // "success" | "failed" (an aborted run is "failed" with AbortReason set)
	FailedStep  string
	AbortReason string
}

// Engine drives one workflow.Definition's steps to completion against a
// workflow.Context, respecting depends_on, condition, retry/backoff, and
// the abort signal (spec.md §4.4).
type Engine struct {
	deps   steps.Deps
	logger *slog.Logger
}

// New builds an Engine wired with the step collaborators.
func New(deps steps.Deps, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{deps: deps, logger: logger}
}

// Run executes def against wc until every step resolves, the workflow
// fails, or an abort is requested. Scheduling is single-threaded: at most
// one step is "running" at a time within the run (spec.md §8 property 1).
func (e *Engine) Run(ctx context.Context, def *workflow.Definition, wc *workflow.Context) RunResult {
	if err := def.Validate(); err != nil {
		e.logger.Error("engine: invalid workflow definition", "workflow", def.Name, "error", err)
		return RunResult{Status: "failed", FailedStep: "", AbortReason: ""}
	}

	graph, err := newDependencyGraph(def.Steps)
	if err != nil {
		e.logger.Error("engine: failed to build dependency graph", "workflow", def.Name, "error", err)
		return RunResult{Status: "failed"}
	}

	scheduled := make(map[string]bool, graph.size())
	failed := false

	for len(scheduled) < graph.size() {
		if abortRequested, reason := wc.AbortRequested(); abortRequested {
			recordAbort(def.Name, reason)
			failed = true
			break
		}

		ready := graph.ready(scheduled)
		if len(ready) == 0 {
			// Dependencies satisfied but nothing runnable: a prior failure
			// left dependents permanently blocked.
			break
		}

		for _, name := range ready {
			spec := graph.spec(name)
			scheduled[name] = true

			if !workflow.EvalCondition(wc, spec.Condition) {
				wc.MarkSkipped(name)
				graph.markResolved(name)
				continue
			}

			outcome := e.runStep(ctx, def.Name, wc, spec)
			graph.markResolved(name)

			if outcome != nil {
				wc.MarkFailed(name)
				e.logger.Error("engine: step failed", "workflow", def.Name, "step", name, "error", outcome)
				failed = true
				break
			}

			if abortRequested, reason := wc.AbortRequested(); abortRequested {
				recordAbort(def.Name, reason)
				failed = true
				break
			}
		}

		if failed {
			break
		}
	}

	if failed {
		e.runFailureHandlers(ctx, def, wc)
		_, reason := wc.AbortRequested()
		recordWorkflowOutcome(def.Name, "failed")
		return RunResult{Status: "failed", FailedStep: wc.FailedStep(), AbortReason: reason}
	}

	recordWorkflowOutcome(def.Name, "success")
	return RunResult{Status: "success"}
}

// runStep validates, conditionally retries, and executes one step,
// returning nil on terminal success.
func (e *Engine) runStep(ctx context.Context, workflowName string, wc *workflow.Context, spec *workflow.StepSpec) error {
	step, err := steps.New(spec.Type, e.deps)
	if err != nil {
		return err
	}

	validation := step.Validate(ctx, wc, spec)
	if !validation.Valid {
		return fmt.Errorf("step %s: invalid config: %s", spec.Name, strings.Join(validation.Errors, "; "))
	}

	start := time.Now()
	result, err := e.executeWithRetry(ctx, step, wc, spec)
	recordStep(workflowName, spec.Type, string(result.Status), time.Since(start).Seconds())
	if err != nil {
		return err
	}

	if result.Status == steps.StatusSuccess {
		wc.RecordStepOutputs(spec.Name, result.Outputs)
		promoteOutputs(wc, spec, result.Outputs)
	}
	return nil
}

// executeWithRetry runs step.Execute, retrying per spec.Retry (spec.md
// §4.4 "Failure handling") when the error matches retryable_errors (or no
// filter is declared).
func (e *Engine) executeWithRetry(ctx context.Context, step steps.Step, wc *workflow.Context, spec *workflow.StepSpec) (steps.Result, error) {
	if spec.Retry == nil {
		result := step.Execute(ctx, wc, spec)
		if result.Status == steps.StatusFailure {
			return result, result.Err
		}
		return result, nil
	}

	maxAttempts := spec.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	b := backoff.NewExponentialBackOff()
	if spec.Retry.InitialDelayMs > 0 {
		b.InitialInterval = time.Duration(spec.Retry.InitialDelayMs) * time.Millisecond
	}
	if spec.Retry.BackoffMultiplier > 0 {
		b.Multiplier = spec.Retry.BackoffMultiplier
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxAttempts-1)), ctx)

	var result steps.Result
	operation := func() error {
		result = step.Execute(ctx, wc, spec)
		if result.Status != steps.StatusFailure {
			return nil
		}
		if !isRetryableStepError(result.Err, spec.Retry.RetryableErrors) {
			return backoff.Permanent(result.Err)
		}
		return result.Err
	}

	if err := backoff.Retry(operation, policy); err != nil {
		var permErr *backoff.PermanentError
		if errors.As(err, &permErr) {
			return result, permErr.Err
		}
		return result, err
	}
	return result, nil
}

func isRetryableStepError(err error, patterns []string) bool {
	if err == nil {
		return false
	}
	if len(patterns) == 0 {
		return true
	}
	lower := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// promoteOutputs applies StepSpec.Outputs (step-local output name ->
// context variable name) to surface a step's results beyond its own
// namespace (spec.md §3.2).
func promoteOutputs(wc *workflow.Context, spec *workflow.StepSpec, outputs map[string]any) {
	for localName, varName := range spec.Outputs {
		if v, ok := outputs[localName]; ok {
			wc.SetVariable(varName, v)
		}
	}
}

// runFailureHandlers executes failure_handling.on_workflow_failure steps
// best-effort: each failure is logged but never re-raised (spec.md §4.4,
// §9 open question on failure-handler retry policy).
func (e *Engine) runFailureHandlers(ctx context.Context, def *workflow.Definition, wc *workflow.Context) {
	for i := range def.FailureHandling.OnWorkflowFailure {
		spec := &def.FailureHandling.OnWorkflowFailure[i]
		step, err := steps.New(spec.Type, e.deps)
		if err != nil {
			e.logger.Warn("engine: failure handler step type unknown", "workflow", def.Name, "step", spec.Name, "error", err)
			continue
		}
		if result := step.Execute(ctx, wc, spec); result.Status == steps.StatusFailure {
			e.logger.Warn("engine: failure handler step failed", "workflow", def.Name, "step", spec.Name, "error", result.Err)
		}
	}
}
