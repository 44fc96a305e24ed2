package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ma-collective/orchestrator/dashboard"
	"github.com/ma-collective/orchestrator/helpers"
	"github.com/ma-collective/orchestrator/interpreter"
	"github.com/ma-collective/orchestrator/workflow"
)

func init() {
	Register("qa-iteration-loop", func(deps Deps) Step { return &QAIterationLoopStep{deps: deps} })
}

// QAIterationLoopStep runs plan-fix -> implement -> commit -> retest until
// the retest passes or max_iterations is exhausted (spec.md §4.4.2). The
// step applies no diffs itself: the commit stages whatever is in the
// working tree at that point.
type QAIterationLoopStep struct {
	deps Deps
}

type qaIterationLoopConfig struct {
	TaskID           string   `json:"task_id"`
	ProjectID        string   `json:"project_id"`
	PlanFixIntent    string   `json:"plan_fix_intent"`
	ImplementIntent  string   `json:"implement_intent"`
	RetestIntent     string   `json:"retest_intent"`
	CommitMessage    string   `json:"commit_message"`
	MaxIterations    *int     `json:"max_iterations"`
	TestFilePatterns []string `json:"test_file_patterns"`
}

func decodeQAIterationLoopConfig(raw map[string]any) qaIterationLoopConfig {
	var cfg qaIterationLoopConfig
	b, _ := json.Marshal(raw)
	_ = json.Unmarshal(b, &cfg)
	return cfg
}

func (s *QAIterationLoopStep) Validate(_ context.Context, _ *workflow.Context, spec *workflow.StepSpec) ValidationResult {
	cfg := decodeQAIterationLoopConfig(spec.Config)
	var errs []string
	if cfg.RetestIntent == "" {
		errs = append(errs, "config.retest_intent is required")
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// qaFailure records one iteration's retest outcome, fed back into the next
// iteration's plan-fix request as cumulative history.
type qaFailure struct {
	Iteration int    `json:"iteration"`
	Details   string `json:"details"`
	Raw       string `json:"raw"`
}

func (s *QAIterationLoopStep) Execute(ctx context.Context, wc *workflow.Context, spec *workflow.StepSpec) Result {
	cfg := decodeQAIterationLoopConfig(spec.Config)

	if s.deps.SkipPersonaOps {
		return Result{Status: StatusSuccess, Outputs: map[string]any{
			spec.Name + "_status":     string(interpreter.StatusPass),
			spec.Name + "_iterations": 0,
		}}
	}

	unlimited := cfg.MaxIterations == nil
	maxIterations := 0
	if !unlimited {
		maxIterations = *cfg.MaxIterations
	}

	var history []qaFailure
	iteration := 0

	for {
		iteration++
		if !unlimited && iteration > maxIterations {
			helpers.RequestWorkflowAbort(wc, s.deps.Logger, spec.Name, "qa_max_iterations")
			return Result{
				Status: StatusFailure,
				Err:    fmt.Errorf("qa-iteration-loop %s: exhausted %d iterations without a passing retest", spec.Name, maxIterations),
				Data:   map[string]any{"iterations": iteration - 1},
			}
		}

		historyJSON, _ := json.Marshal(history)

		if cfg.PlanFixIntent != "" {
			if res := s.runPersona(ctx, wc, spec, cfg.PlanFixIntent, map[string]any{
				"iteration": iteration,
				"history":   string(historyJSON),
			}); res.Status == StatusFailure {
				return res
			}
		}

		if cfg.ImplementIntent != "" {
			if res := s.runPersona(ctx, wc, spec, cfg.ImplementIntent, map[string]any{
				"iteration": iteration,
				"history":   string(historyJSON),
			}); res.Status == StatusFailure {
				return res
			}
		}

		if !s.deps.SkipGitOps && s.deps.Workspace != nil && cfg.CommitMessage != "" {
			message := workflow.Interpolate(wc, cfg.CommitMessage)
			commitResult, err := s.deps.Workspace.CommitAndPush(ctx, wc.RepoRoot, fmt.Sprintf("%s (iteration %d)", message, iteration))
			if err != nil {
				return Result{Status: StatusFailure, Err: fmt.Errorf("qa-iteration-loop %s: commit-and-push: %w", spec.Name, err)}
			}
			if commitResult.Committed && !commitResult.Pushed {
				helpers.RequestWorkflowAbort(wc, s.deps.Logger, spec.Name, "push_failed")
				return Result{Status: StatusFailure, Err: fmt.Errorf("qa-iteration-loop %s: push failed after iteration %d", spec.Name, iteration)}
			}
		}

		retestPayload := map[string]any{
			"iteration": iteration,
			"history":   string(historyJSON),
		}
		if testFiles, err := helpers.DiscoverTestFiles(wc.RepoRoot, cfg.TestFilePatterns); err == nil {
			retestPayload["test_files"] = testFiles
			retestPayload["test_dirs"] = helpers.UniqueDirs(testFiles)
		}

		retestResult, event, err := s.sendAndWait(ctx, wc, spec, cfg.RetestIntent, retestPayload)
		if err != nil {
			return Result{Status: StatusFailure, Err: fmt.Errorf("qa-iteration-loop %s: retest: %w", spec.Name, err)}
		}

		if retestResult.Status == interpreter.StatusPass {
			if s.deps.Dashboard != nil && cfg.TaskID != "" {
				_, _ = s.deps.Dashboard.SetTaskStatus(ctx, cfg.ProjectID, cfg.TaskID, dashboard.StatusInReview)
			}
			return Result{
				Status: StatusSuccess,
				Outputs: map[string]any{
					spec.Name + "_status":     string(interpreter.StatusPass),
					spec.Name + "_iterations": iteration,
				},
			}
		}

		history = append(history, qaFailure{Iteration: iteration, Details: retestResult.Details, Raw: event})
	}
}

func (s *QAIterationLoopStep) runPersona(ctx context.Context, wc *workflow.Context, spec *workflow.StepSpec, intent string, payload map[string]any) Result {
	n, _, err := s.sendAndWait(ctx, wc, spec, intent, payload)
	if err != nil {
		return Result{Status: StatusFailure, Err: fmt.Errorf("qa-iteration-loop %s: %s: %w", spec.Name, intent, err)}
	}
	if n.Status == interpreter.StatusFail {
		return Result{Status: StatusFailure, Err: fmt.Errorf("qa-iteration-loop %s: %s returned fail: %s", spec.Name, intent, n.Details)}
	}
	return Result{Status: StatusSuccess}
}

func (s *QAIterationLoopStep) sendAndWait(ctx context.Context, wc *workflow.Context, spec *workflow.StepSpec, intent string, payload map[string]any) (interpreter.Normalized, string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return interpreter.Normalized{}, "", err
	}
	timeoutMs := s.deps.DefaultTimeoutMs
	if timeoutMs == 0 {
		timeoutMs = 90000
	}
	corrID, err := s.deps.Messenger.Send(ctx, wc.WorkflowID, spec.Name, "tester-qa", intent, payloadBytes,
		timeoutMs/1000, wc.RepoRoot, wc.Branch(), wc.ProjectID, "")
	if err != nil {
		return interpreter.Normalized{}, "", err
	}
	event, err := s.deps.Messenger.Wait(ctx, wc.WorkflowID, "tester-qa", corrID, time.Duration(timeoutMs)*time.Millisecond)
	if err != nil {
		return interpreter.Normalized{}, "", err
	}
	return interpreter.Interpret("tester-qa", event.Result), event.Result, nil
}
