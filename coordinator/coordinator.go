// Package coordinator implements the outer TaskWorkflowRunner loop: pick
// the next task, prepare its git branch, invoke the workflow engine, and
// reflect status back to the dashboard (spec.md §4.6).
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ma-collective/orchestrator/dashboard"
	"github.com/ma-collective/orchestrator/engine"
	"github.com/ma-collective/orchestrator/gitworkspace"
	"github.com/ma-collective/orchestrator/transport"
	"github.com/ma-collective/orchestrator/workflow"
	"github.com/ma-collective/orchestrator/workflow/steps"
)

// maxIterations bounds the outer loop to prevent runaway processing of a
// single project (spec.md §4.6 "iteration bound e.g. 50").
const maxIterations = 50

// Coordinator drives one project's backlog to completion, one task per
// iteration, handing each task to the Engine under a freshly prepared git
// branch.
type Coordinator struct {
	Dashboard    *dashboard.Client
	Workspace    *gitworkspace.Workspace
	Loader       *workflow.Loader
	Transport    transport.Transport
	StepDeps     steps.Deps
	Logger       *slog.Logger
	DefaultBranch string
}

// New builds a Coordinator with required collaborators.
func New(dashboardClient *dashboard.Client, ws *gitworkspace.Workspace, loader *workflow.Loader, tport transport.Transport, stepDeps steps.Deps, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if stepDeps.Logger == nil {
		stepDeps.Logger = logger
	}
	return &Coordinator{
		Dashboard:     dashboardClient,
		Workspace:     ws,
		Loader:        loader,
		Transport:     tport,
		StepDeps:      stepDeps,
		Logger:        logger,
		DefaultBranch: "main",
	}
}

// RunProject processes projectID's backlog until no eligible task remains
// or the iteration bound is reached.
func (c *Coordinator) RunProject(ctx context.Context, projectID string) error {
	processed := make(map[string]bool)

	for i := 0; i < maxIterations; i++ {
		project, err := c.Dashboard.GetProjectStatus(ctx, projectID)
		if err != nil {
			return fmt.Errorf("coordinator: fetch project status: %w", err)
		}

		tasks, err := c.Dashboard.ListTasks(ctx, projectID)
		if err != nil {
			return fmt.Errorf("coordinator: list tasks: %w", err)
		}

		milestone, task, ok := selectNext(project.Milestones, tasks, processed)
		if !ok {
			c.Logger.Info("coordinator: no eligible task remains", "project_id", projectID)
			return nil
		}
		processed[task.ID] = true

		if err := c.runTask(ctx, project, milestone, task); err != nil {
			c.Logger.Error("coordinator: task run failed", "project_id", projectID, "task_id", task.ID, "error", err)
		}
	}

	c.Logger.Warn("coordinator: iteration bound reached", "project_id", projectID, "bound", maxIterations)
	return nil
}

func (c *Coordinator) runTask(ctx context.Context, project dashboard.Project, milestone dashboard.Milestone, task dashboard.Task) error {
	repo := primaryRepository(project)
	if repo == nil {
		return fmt.Errorf("coordinator: project %s has no repository", project.ID)
	}

	repoRoot := c.Workspace.Resolve(project.Name, repo.RemoteURL)
	if err := c.Workspace.Ensure(ctx, repoRoot, repo.RemoteURL); err != nil {
		return fmt.Errorf("coordinator: ensure repo: %w", err)
	}

	featureBranch := featureBranchName(milestone, task)
	baseBranch := c.DefaultBranch
	if err := c.Workspace.CheckoutBranchFromBase(ctx, repoRoot, baseBranch, featureBranch); err != nil {
		var gwErr *gitworkspace.Error
		if errors.As(err, &gwErr) && gwErr.Kind == gitworkspace.KindDirtyWorkingTree {
			c.markBlocked(ctx, project.ID, task.ID)
		}
		return fmt.Errorf("coordinator: checkout branch from base: %w", err)
	}
	if err := c.Workspace.EnsureBranchPublished(ctx, repoRoot, featureBranch); err != nil {
		return fmt.Errorf("coordinator: publish branch: %w", err)
	}

	if _, err := c.Dashboard.SetTaskStatus(ctx, project.ID, task.ID, dashboard.StatusInProgress); err != nil {
		return fmt.Errorf("coordinator: mark task in_progress: %w", err)
	}

	wc := workflow.NewContext(uuid.NewString(), project.ID, repoRoot, c.Transport, initialVariables(project, milestone, task, repoRoot, repo.RemoteURL, featureBranch))
	wc.SetBranch(featureBranch)

	def := c.selectWorkflow(wc)
	if def == nil {
		c.markBlocked(ctx, project.ID, task.ID)
		return fmt.Errorf("coordinator: no workflow definition matches task %s", task.ID)
	}

	result := engine.New(c.StepDeps, c.Logger).Run(ctx, def, wc)
	if result.Status != "success" {
		c.markBlocked(ctx, project.ID, task.ID)
		return fmt.Errorf("coordinator: workflow %s failed at step %s (abort reason %q)", def.Name, result.FailedStep, result.AbortReason)
	}

	if _, err := c.Dashboard.SetTaskStatus(ctx, project.ID, task.ID, dashboard.StatusInReview); err != nil {
		return fmt.Errorf("coordinator: mark task in_review: %w", err)
	}
	if _, err := c.Dashboard.SetTaskStatus(ctx, project.ID, task.ID, dashboard.StatusDone); err != nil {
		return fmt.Errorf("coordinator: mark task done: %w", err)
	}
	return nil
}

func (c *Coordinator) markBlocked(ctx context.Context, projectID, taskID string) {
	if _, err := c.Dashboard.SetTaskStatus(ctx, projectID, taskID, dashboard.StatusBlocked); err != nil {
		c.Logger.Error("coordinator: failed to mark task blocked", "project_id", projectID, "task_id", taskID, "error", err)
	}
}

func (c *Coordinator) selectWorkflow(wc *workflow.Context) *workflow.Definition {
	for _, def := range c.Loader.All() {
		if def.MatchesTrigger(wc) {
			return def
		}
	}
	return nil
}

func primaryRepository(project dashboard.Project) *dashboard.Repository {
	if project.Repository != nil {
		return project.Repository
	}
	for i := range project.Repositories {
		if project.Repositories[i].IsDefault {
			return &project.Repositories[i]
		}
	}
	if len(project.Repositories) > 0 {
		return &project.Repositories[0]
	}
	return nil
}

// selectNext picks the first active milestone (falling back to any
// milestone with at least one open task), then the highest-priority
// not-done task within it that hasn't already been processed this run
// (spec.md §4.6 step 1).
func selectNext(milestones []dashboard.Milestone, tasks []dashboard.Task, processed map[string]bool) (dashboard.Milestone, dashboard.Task, bool) {
	byMilestone := make(map[string][]dashboard.Task)
	for _, t := range tasks {
		byMilestone[t.MilestoneID] = append(byMilestone[t.MilestoneID], t)
	}

	candidates := make([]dashboard.Milestone, 0, len(milestones))
	for _, m := range milestones {
		if m.Active {
			candidates = append(candidates, m)
		}
	}
	for _, m := range milestones {
		if !m.Active && hasOpenTask(byMilestone[m.ID], processed) {
			candidates = append(candidates, m)
		}
	}

	for _, m := range candidates {
		if task, ok := nextTask(byMilestone[m.ID], processed); ok {
			return m, task, true
		}
	}
	return dashboard.Milestone{}, dashboard.Task{}, false
}

func hasOpenTask(tasks []dashboard.Task, processed map[string]bool) bool {
	_, ok := nextTask(tasks, processed)
	return ok
}

// nextTask picks the first not-done task, ordered by priority score
// descending then original slice order (spec.md §4.6 step 1).
func nextTask(tasks []dashboard.Task, processed map[string]bool) (dashboard.Task, bool) {
	candidates := make([]dashboard.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status == dashboard.StatusDone || t.Status == dashboard.StatusArchived || processed[t.ID] {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return dashboard.Task{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].PriorityScore > candidates[j].PriorityScore
	})
	return candidates[0], true
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(slug, "-")
}

// featureBranchName follows spec.md's glossary: "milestone/<slug>" when a
// milestone is known, else "task/<slug>".
func featureBranchName(milestone dashboard.Milestone, task dashboard.Task) string {
	if milestone.Slug != "" {
		return "milestone/" + milestone.Slug
	}
	slug := slugify(task.Title)
	if slug == "" {
		slug = task.ID
	}
	return "task/" + slug
}

func initialVariables(project dashboard.Project, milestone dashboard.Milestone, task dashboard.Task, repoRoot, repoRemote, featureBranch string) map[string]any {
	return map[string]any{
		"project_id":           project.ID,
		"project_name":         project.Name,
		"milestone_id":         milestone.ID,
		"milestone_slug":       milestone.Slug,
		"milestone_name":       milestone.Name,
		"task_id":              task.ID,
		"task_slug":            slugify(task.Title),
		"task_name":            task.Title,
		"task_type":            task.Type,
		"task":                 task,
		"repo_remote":          repoRemote,
		"effective_repo_path":  repoRoot,
		"feature_branch_name":  featureBranch,
	}
}
