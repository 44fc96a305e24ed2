package steps

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ma-collective/orchestrator/review"
	"github.com/ma-collective/orchestrator/workflow"
)

func init() {
	Register("review-failure-normalization", func(deps Deps) Step { return &ReviewFailureNormalizationStep{deps: deps} })
}

// ReviewFailureNormalizationStep reduces heterogeneous review output to a
// canonical issue list (spec.md §4.4.6).
type ReviewFailureNormalizationStep struct {
	deps Deps
}

type reviewNormalizeConfig struct {
	SourceVar     string `json:"source"`
	ReviewType    string `json:"review_type"`
	FeatureBranch string `json:"feature_branch"`
}

func decodeReviewNormalizeConfig(raw map[string]any) reviewNormalizeConfig {
	var cfg reviewNormalizeConfig
	b, _ := json.Marshal(raw)
	_ = json.Unmarshal(b, &cfg)
	return cfg
}

func (s *ReviewFailureNormalizationStep) Validate(_ context.Context, _ *workflow.Context, spec *workflow.StepSpec) ValidationResult {
	cfg := decodeReviewNormalizeConfig(spec.Config)
	if cfg.SourceVar == "" {
		return ValidationResult{Valid: false, Errors: []string{"config.source is required"}}
	}
	return ValidationResult{Valid: true}
}

func (s *ReviewFailureNormalizationStep) Execute(_ context.Context, wc *workflow.Context, spec *workflow.StepSpec) Result {
	cfg := decodeReviewNormalizeConfig(spec.Config)

	if cfg.FeatureBranch != "" {
		featureBranch := workflow.Interpolate(wc, cfg.FeatureBranch)
		if wc.Branch() != featureBranch {
			return Result{Status: StatusFailure, Err: fmt.Errorf(
				"review-failure-normalization: current branch %q does not match feature branch %q", wc.Branch(), featureBranch)}
		}
	}

	rawJSON := wc.Resolve(cfg.SourceVar)
	var raw map[string]any
	if err := json.Unmarshal([]byte(rawJSON), &raw); err != nil {
		return Result{Status: StatusFailure, Err: fmt.Errorf("review-failure-normalization: parse source: %w", err)}
	}

	findings, gapDetected, err := review.Extract(cfg.ReviewType, raw)
	if err != nil {
		return Result{Status: StatusFailure, Err: err}
	}

	deduped := review.Deduplicate(findings)
	review.SortBySeverity(deduped)

	dedupedJSON, _ := json.Marshal(deduped)
	return Result{
		Status: StatusSuccess,
		Outputs: map[string]any{
			spec.Name + "_findings":      string(dedupedJSON),
			spec.Name + "_finding_count": len(deduped),
			spec.Name + "_severity_gap":  gapDetected,
		},
	}
}
