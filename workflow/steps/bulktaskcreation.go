package steps

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ma-collective/orchestrator/bulktasks"
	"github.com/ma-collective/orchestrator/dashboard"
	"github.com/ma-collective/orchestrator/helpers"
	"github.com/ma-collective/orchestrator/workflow"
)

func init() {
	Register("bulk-task-creation", func(deps Deps) Step { return &BulkTaskCreationStep{deps: deps} })
}

// BulkTaskCreationStep creates many tasks in one dashboard call
// (spec.md §4.4.5).
type BulkTaskCreationStep struct {
	deps Deps
}

type bulkTaskCreationConfig struct {
	ProjectID              string                    `json:"project_id"`
	Tasks                  []bulktasks.CandidateTask `json:"tasks"`
	TitlePrefix            string                    `json:"title_prefix"`
	UpsertByExternalID     bool                      `json:"upsert_by_external_id"`
	ExternalIDTemplate     string                    `json:"external_id_template"`
	DuplicateStrategy      string                    `json:"duplicate_strategy"`
	ExistingTasks          []bulktasks.ExistingTask  `json:"existing_tasks"`
	MaxAttempts            int                       `json:"max_attempts"`
	RetryablePatterns      []string                  `json:"retryable_patterns"`
	AbortOnPartialFailure  bool                      `json:"abort_on_partial_failure"`
}

func decodeBulkTaskCreationConfig(raw map[string]any) bulkTaskCreationConfig {
	var cfg bulkTaskCreationConfig
	b, _ := json.Marshal(raw)
	_ = json.Unmarshal(b, &cfg)
	return cfg
}

func (s *BulkTaskCreationStep) Validate(_ context.Context, _ *workflow.Context, spec *workflow.StepSpec) ValidationResult {
	cfg := decodeBulkTaskCreationConfig(spec.Config)
	if cfg.ProjectID == "" {
		return ValidationResult{Valid: false, Errors: []string{"config.project_id is required"}}
	}
	if len(cfg.Tasks) == 0 {
		return ValidationResult{Valid: false, Errors: []string{"config.tasks must be non-empty"}}
	}
	return ValidationResult{Valid: true}
}

func (s *BulkTaskCreationStep) Execute(ctx context.Context, wc *workflow.Context, spec *workflow.StepSpec) Result {
	cfg := decodeBulkTaskCreationConfig(spec.Config)

	enriched := bulktasks.Enrich(cfg.Tasks, bulktasks.EnrichOptions{
		TitlePrefix:        workflow.Interpolate(wc, cfg.TitlePrefix),
		UpsertByExternalID: cfg.UpsertByExternalID,
		ExternalIDTemplate: cfg.ExternalIDTemplate,
		WorkflowRunID:      wc.WorkflowID,
		StepName:           spec.Name,
		Strategy:           bulktasks.DuplicateStrategy(cfg.DuplicateStrategy),
		Existing:           cfg.ExistingTasks,
	})

	dashboardTasks := make([]dashboard.Task, 0, len(enriched))
	for _, t := range enriched {
		if t.IsDuplicate {
			continue
		}
		dashboardTasks = append(dashboardTasks, dashboard.Task{
			Title:         t.Title,
			Description:   t.Description,
			Priority:      t.Priority,
			PriorityScore: t.PriorityScore,
			MilestoneSlug: t.MilestoneSlug,
			ExternalID:    t.ExternalID,
			Status:        dashboard.StatusOpen,
		})
	}

	maxAttempts := uint64(cfg.MaxAttempts)
	if maxAttempts == 0 {
		maxAttempts = 3
	}

	resp, err := bulktasks.BulkCreate(ctx, s.deps.Dashboard, workflow.Interpolate(wc, cfg.ProjectID), dashboardTasks, maxAttempts, cfg.RetryablePatterns)
	if err != nil {
		return Result{Status: StatusFailure, Err: fmt.Errorf("bulk task creation: %w", err)}
	}

	if cfg.AbortOnPartialFailure && len(resp.Errors) > 0 {
		helpers.RequestWorkflowAbort(wc, s.deps.Logger, spec.Name, "bulk_task_creation_partial_failure")
	}

	return Result{
		Status: StatusSuccess,
		Outputs: map[string]any{
			spec.Name + "_created_count": len(resp.Created),
			spec.Name + "_skipped_count": len(resp.Skipped),
			spec.Name + "_summary":       resp.Summary,
		},
	}
}
