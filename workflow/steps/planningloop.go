package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ma-collective/orchestrator/interpreter"
	"github.com/ma-collective/orchestrator/workflow"
)

func init() {
	Register("planning-loop", func(deps Deps) Step { return &PlanningLoopStep{deps: deps} })
}

const defaultPlanningMaxIterations = 5

// PlanningLoopStep alternates planner and plan-evaluator personas, committing
// each round's artifacts best-effort, until the evaluator passes or
// maxIterations is exhausted (spec.md §4.4.3).
type PlanningLoopStep struct {
	deps Deps
}

type planningLoopConfig struct {
	TaskID        string `json:"task_id"`
	PlannerIntent string `json:"planner_intent"`
	EvaluatorIntent string `json:"evaluator_intent"`
	MaxIterations int    `json:"max_iterations"`
}

func decodePlanningLoopConfig(raw map[string]any) planningLoopConfig {
	var cfg planningLoopConfig
	b, _ := json.Marshal(raw)
	_ = json.Unmarshal(b, &cfg)
	return cfg
}

func (s *PlanningLoopStep) Validate(_ context.Context, _ *workflow.Context, spec *workflow.StepSpec) ValidationResult {
	cfg := decodePlanningLoopConfig(spec.Config)
	var errs []string
	if cfg.PlannerIntent == "" {
		errs = append(errs, "config.planner_intent is required")
	}
	if cfg.EvaluatorIntent == "" {
		errs = append(errs, "config.evaluator_intent is required")
	}
	if cfg.TaskID == "" {
		errs = append(errs, "config.task_id is required")
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func (s *PlanningLoopStep) Execute(ctx context.Context, wc *workflow.Context, spec *workflow.StepSpec) Result {
	cfg := decodePlanningLoopConfig(spec.Config)

	if s.deps.SkipPersonaOps {
		return Result{Status: StatusSuccess, Outputs: map[string]any{
			spec.Name + "_status":     string(interpreter.StatusPass),
			spec.Name + "_iterations": 0,
		}}
	}

	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultPlanningMaxIterations
	}

	taskID := workflow.Interpolate(wc, cfg.TaskID)
	artifactDir := fmt.Sprintf(".ma/tasks/%s", taskID)

	for iteration := 1; iteration <= maxIterations; iteration++ {
		lenient := iteration > 3

		planNormalized, planRaw, err := s.sendAndWait(ctx, wc, spec, "planner", cfg.PlannerIntent, map[string]any{
			"iteration": iteration,
			"lenient":   lenient,
		})
		if err != nil {
			return Result{Status: StatusFailure, Err: fmt.Errorf("planning-loop %s: planner: %w", spec.Name, err)}
		}
		s.commitArtifact(ctx, wc, spec, fmt.Sprintf("%s/02-plan-iteration-%d.md", artifactDir, iteration), planRaw,
			fmt.Sprintf("docs: plan iteration %d for %s", iteration, taskID))

		evalNormalized, evalRaw, err := s.sendAndWait(ctx, wc, spec, "plan-evaluator", cfg.EvaluatorIntent, map[string]any{
			"iteration": iteration,
			"lenient":   lenient,
			"plan":      planRaw,
		})
		if err != nil {
			return Result{Status: StatusFailure, Err: fmt.Errorf("planning-loop %s: evaluator: %w", spec.Name, err)}
		}
		s.commitArtifact(ctx, wc, spec, fmt.Sprintf("%s/02-plan-eval-iteration-%d.md", artifactDir, iteration), evalRaw,
			fmt.Sprintf("docs: plan evaluation iteration %d for %s", iteration, taskID))

		if evalNormalized.Status == interpreter.StatusPass {
			s.commitArtifact(ctx, wc, spec, fmt.Sprintf("%s/03-plan-final.md", artifactDir), planRaw,
				fmt.Sprintf("docs: final plan for %s", taskID))
			return Result{
				Status: StatusSuccess,
				Outputs: map[string]any{
					spec.Name + "_status":     string(interpreter.StatusPass),
					spec.Name + "_iterations": iteration,
					spec.Name + "_plan":       planRaw,
				},
			}
		}

		_ = planNormalized
	}

	return Result{
		Status: StatusFailure,
		Err:    fmt.Errorf("planning-loop %s: evaluator never passed within %d iterations", spec.Name, maxIterations),
		Data:   map[string]any{"iterations": maxIterations},
	}
}

// commitArtifact writes a planning artifact file into the working tree and
// commits and pushes it through Workspace.CommitAndPush;
// failures are logged, never fail the step (spec.md §4.4.3 "best-effort").
func (s *PlanningLoopStep) commitArtifact(ctx context.Context, wc *workflow.Context, spec *workflow.StepSpec, relPath, content, message string) {
	if s.deps.SkipGitOps || s.deps.Workspace == nil {
		return
	}
	if err := writeArtifactFile(wc.RepoRoot, relPath, content); err != nil {
		if s.deps.Logger != nil {
			s.deps.Logger.Warn("planning-loop: failed to write artifact", "step", spec.Name, "path", relPath, "error", err)
		}
		return
	}
	if _, err := s.deps.Workspace.CommitAndPush(ctx, wc.RepoRoot, message); err != nil {
		if s.deps.Logger != nil {
			s.deps.Logger.Warn("planning-loop: failed to commit artifact", "step", spec.Name, "path", relPath, "error", err)
		}
	}
}

func (s *PlanningLoopStep) sendAndWait(ctx context.Context, wc *workflow.Context, spec *workflow.StepSpec, persona, intent string, payload map[string]any) (interpreter.Normalized, string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return interpreter.Normalized{}, "", err
	}
	timeoutMs := s.deps.DefaultTimeoutMs
	if timeoutMs == 0 {
		timeoutMs = 90000
	}
	corrID, err := s.deps.Messenger.Send(ctx, wc.WorkflowID, spec.Name, persona, intent, payloadBytes,
		timeoutMs/1000, wc.RepoRoot, wc.Branch(), wc.ProjectID, "")
	if err != nil {
		return interpreter.Normalized{}, "", err
	}
	event, err := s.deps.Messenger.Wait(ctx, wc.WorkflowID, persona, corrID, time.Duration(timeoutMs)*time.Millisecond)
	if err != nil {
		return interpreter.Normalized{}, "", err
	}
	return interpreter.Interpret(persona, event.Result), event.Result, nil
}
