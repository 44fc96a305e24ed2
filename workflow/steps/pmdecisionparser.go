package steps

import (
	"context"
	"encoding/json"

	"github.com/ma-collective/orchestrator/pmdecision"
	"github.com/ma-collective/orchestrator/workflow"
)

func init() {
	Register("pm-decision-parser", func(deps Deps) Step { return &PMDecisionParserStep{} })
}

// PMDecisionParserStep normalizes a PM persona's free-form decision
// (spec.md §4.4.4).
type PMDecisionParserStep struct{}

type pmDecisionConfig struct {
	ReviewType string `json:"review_type"`
	SourceVar  string `json:"source"`
}

func (s *PMDecisionParserStep) Validate(_ context.Context, _ *workflow.Context, spec *workflow.StepSpec) ValidationResult {
	var cfg pmDecisionConfig
	b, _ := json.Marshal(spec.Config)
	_ = json.Unmarshal(b, &cfg)
	if cfg.SourceVar == "" {
		return ValidationResult{Valid: false, Errors: []string{"config.source is required"}}
	}
	return ValidationResult{Valid: true}
}

func (s *PMDecisionParserStep) Execute(_ context.Context, wc *workflow.Context, spec *workflow.StepSpec) Result {
	var cfg pmDecisionConfig
	b, _ := json.Marshal(spec.Config)
	_ = json.Unmarshal(b, &cfg)

	raw := wc.Resolve(cfg.SourceVar)
	decision := pmdecision.Parse(cfg.ReviewType, raw)

	decisionJSON, _ := json.Marshal(decision)
	return Result{
		Status: StatusSuccess,
		Outputs: map[string]any{
			spec.Name + "_decision":          decision.Decision,
			spec.Name + "_follow_up_tasks":   decision.FollowUpTasks,
			spec.Name + "_decision_json":     string(decisionJSON),
			spec.Name + "_warnings":          decision.Warnings,
		},
	}
}
