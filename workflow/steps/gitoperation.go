package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ma-collective/orchestrator/gitworkspace"
	"github.com/ma-collective/orchestrator/helpers"
	"github.com/ma-collective/orchestrator/workflow"
)

func init() {
	Register("git-operation", func(deps Deps) Step { return &GitOperationStep{deps: deps} })
}

// GitOperationStep dispatches to one GitWorkspace operation
// (spec.md §4.4.7).
type GitOperationStep struct {
	deps Deps
}

type gitOperationConfig struct {
	Operation  string `json:"operation"`
	BaseBranch string `json:"base_branch"`
	Branch     string `json:"branch"`
	Message    string `json:"message"`
}

func decodeGitOperationConfig(raw map[string]any) gitOperationConfig {
	var cfg gitOperationConfig
	b, _ := json.Marshal(raw)
	_ = json.Unmarshal(b, &cfg)
	return cfg
}

func (s *GitOperationStep) Validate(_ context.Context, _ *workflow.Context, spec *workflow.StepSpec) ValidationResult {
	cfg := decodeGitOperationConfig(spec.Config)
	switch cfg.Operation {
	case "checkout-branch-from-base", "ensure-branch-published", "commit-and-push", "describe-working-tree":
		return ValidationResult{Valid: true}
	default:
		return ValidationResult{Valid: false, Errors: []string{fmt.Sprintf("unknown git operation %q", cfg.Operation)}}
	}
}

func (s *GitOperationStep) Execute(ctx context.Context, wc *workflow.Context, spec *workflow.StepSpec) Result {
	if s.deps.SkipGitOps {
		return Result{Status: StatusSuccess, Outputs: map[string]any{spec.Name + "_skipped": true}}
	}
	cfg := decodeGitOperationConfig(spec.Config)
	repoRoot := wc.RepoRoot

	switch cfg.Operation {
	case "checkout-branch-from-base":
		err := s.deps.Workspace.CheckoutBranchFromBase(ctx, repoRoot, workflow.Interpolate(wc, cfg.BaseBranch), workflow.Interpolate(wc, cfg.Branch))
		if err != nil {
			var gwErr *gitworkspace.Error
			if errors.As(err, &gwErr) && gwErr.Kind == gitworkspace.KindDirtyWorkingTree {
				helpers.RequestWorkflowAbort(wc, s.deps.Logger, spec.Name, "dirty_working_tree")
			}
			return Result{Status: StatusFailure, Err: err}
		}
		wc.SetBranch(workflow.Interpolate(wc, cfg.Branch))
		return Result{Status: StatusSuccess}

	case "ensure-branch-published":
		if err := s.deps.Workspace.EnsureBranchPublished(ctx, repoRoot, wc.Branch()); err != nil {
			return Result{Status: StatusFailure, Err: err}
		}
		return Result{Status: StatusSuccess}

	case "commit-and-push":
		result, err := s.deps.Workspace.CommitAndPush(ctx, repoRoot, workflow.Interpolate(wc, cfg.Message))
		if err != nil {
			helpers.RequestWorkflowAbort(wc, s.deps.Logger, spec.Name, "push_failed")
			return Result{Status: StatusFailure, Err: err}
		}
		if result.Committed && !result.Pushed && result.Reason == "push_failed" {
			helpers.RequestWorkflowAbort(wc, s.deps.Logger, spec.Name, "push_failed")
			return Result{Status: StatusFailure, Err: fmt.Errorf("commit-and-push: push failed")}
		}
		return Result{Status: StatusSuccess, Outputs: map[string]any{
			spec.Name + "_committed": result.Committed,
			spec.Name + "_pushed":    result.Pushed,
			spec.Name + "_reason":    result.Reason,
		}}

	case "describe-working-tree":
		tree, err := s.deps.Workspace.DescribeWorkingTree(ctx, repoRoot)
		if err != nil {
			return Result{Status: StatusFailure, Err: err}
		}
		return Result{Status: StatusSuccess, Outputs: map[string]any{
			spec.Name + "_dirty":   tree.Dirty,
			spec.Name + "_branch":  tree.Branch,
			spec.Name + "_summary": tree.Summary,
		}}

	default:
		return Result{Status: StatusFailure, Err: fmt.Errorf("unknown git operation %q", cfg.Operation)}
	}
}
