package steps

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ma-collective/orchestrator/dashboard"
	"github.com/ma-collective/orchestrator/workflow"
)

func init() {
	Register("variable-set", func(deps Deps) Step { return &VariableSetStep{} })
	Register("task-status-update", func(deps Deps) Step { return &TaskStatusUpdateStep{deps: deps} })
}

// VariableSetStep assigns literal or interpolated values onto the
// workflow context's variable map.
type VariableSetStep struct{}

func (s *VariableSetStep) Validate(_ context.Context, _ *workflow.Context, spec *workflow.StepSpec) ValidationResult {
	if len(spec.Config) == 0 {
		return ValidationResult{Valid: false, Errors: []string{"config must declare at least one variable"}}
	}
	return ValidationResult{Valid: true}
}

func (s *VariableSetStep) Execute(_ context.Context, wc *workflow.Context, spec *workflow.StepSpec) Result {
	outputs := make(map[string]any, len(spec.Config))
	for name, value := range spec.Config {
		resolved := value
		if str, ok := value.(string); ok {
			resolved = workflow.Interpolate(wc, str)
		}
		wc.SetVariable(name, resolved)
		outputs[name] = resolved
	}
	return Result{Status: StatusSuccess, Outputs: outputs}
}

// TaskStatusUpdateStep transitions a dashboard task's status
// (spec.md §6.1 status transitions).
type TaskStatusUpdateStep struct {
	deps Deps
}

type taskStatusUpdateConfig struct {
	ProjectID string `json:"project_id"`
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
}

func (s *TaskStatusUpdateStep) Validate(_ context.Context, _ *workflow.Context, spec *workflow.StepSpec) ValidationResult {
	var cfg taskStatusUpdateConfig
	b, _ := json.Marshal(spec.Config)
	_ = json.Unmarshal(b, &cfg)
	if cfg.TaskID == "" || cfg.Status == "" {
		return ValidationResult{Valid: false, Errors: []string{"config.task_id and config.status are required"}}
	}
	return ValidationResult{Valid: true}
}

func (s *TaskStatusUpdateStep) Execute(ctx context.Context, wc *workflow.Context, spec *workflow.StepSpec) Result {
	var cfg taskStatusUpdateConfig
	b, _ := json.Marshal(spec.Config)
	_ = json.Unmarshal(b, &cfg)

	projectID := workflow.Interpolate(wc, cfg.ProjectID)
	taskID := workflow.Interpolate(wc, cfg.TaskID)
	status := dashboard.TaskStatus(workflow.Interpolate(wc, cfg.Status))

	if _, err := s.deps.Dashboard.SetTaskStatus(ctx, projectID, taskID, status); err != nil {
		return Result{Status: StatusFailure, Err: fmt.Errorf("update task status: %w", err)}
	}
	return Result{Status: StatusSuccess, Outputs: map[string]any{spec.Name + "_status": string(status)}}
}
