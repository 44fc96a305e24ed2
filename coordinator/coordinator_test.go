package coordinator

import (
	"testing"

	"github.com/ma-collective/orchestrator/dashboard"
)

func TestSelectNextPrefersActiveMilestoneHighestPriority(t *testing.T) {
	milestones := []dashboard.Milestone{
		{ID: "m1", Slug: "foundation", Active: true},
		{ID: "m2", Slug: "later", Active: false},
	}
	tasks := []dashboard.Task{
		{ID: "t1", MilestoneID: "m1", Status: dashboard.StatusOpen, PriorityScore: 800},
		{ID: "t2", MilestoneID: "m1", Status: dashboard.StatusOpen, PriorityScore: 1500},
		{ID: "t3", MilestoneID: "m2", Status: dashboard.StatusOpen, PriorityScore: 2000},
	}

	milestone, task, ok := selectNext(milestones, tasks, map[string]bool{})
	if !ok {
		t.Fatal("expected a task to be selected")
	}
	if milestone.ID != "m1" {
		t.Fatalf("expected milestone m1, got %s", milestone.ID)
	}
	if task.ID != "t2" {
		t.Fatalf("expected highest-priority task t2, got %s", task.ID)
	}
}

func TestSelectNextSkipsProcessedTasks(t *testing.T) {
	milestones := []dashboard.Milestone{{ID: "m1", Active: true}}
	tasks := []dashboard.Task{
		{ID: "t1", MilestoneID: "m1", Status: dashboard.StatusOpen, PriorityScore: 100},
	}
	_, _, ok := selectNext(milestones, tasks, map[string]bool{"t1": true})
	if ok {
		t.Fatal("expected no eligible task once the only one is processed")
	}
}

func TestSelectNextFallsBackToMilestoneWithOpenTasks(t *testing.T) {
	milestones := []dashboard.Milestone{{ID: "m1", Active: false}}
	tasks := []dashboard.Task{
		{ID: "t1", MilestoneID: "m1", Status: dashboard.StatusOpen, PriorityScore: 100},
	}
	milestone, task, ok := selectNext(milestones, tasks, map[string]bool{})
	if !ok {
		t.Fatal("expected fallback milestone to be selected")
	}
	if milestone.ID != "m1" || task.ID != "t1" {
		t.Fatalf("unexpected selection: %+v %+v", milestone, task)
	}
}

func TestSelectNextIgnoresDoneAndArchivedTasks(t *testing.T) {
	milestones := []dashboard.Milestone{{ID: "m1", Active: true}}
	tasks := []dashboard.Task{
		{ID: "t1", MilestoneID: "m1", Status: dashboard.StatusDone, PriorityScore: 2000},
		{ID: "t2", MilestoneID: "m1", Status: dashboard.StatusArchived, PriorityScore: 1900},
		{ID: "t3", MilestoneID: "m1", Status: dashboard.StatusOpen, PriorityScore: 100},
	}
	_, task, ok := selectNext(milestones, tasks, map[string]bool{})
	if !ok || task.ID != "t3" {
		t.Fatalf("expected t3 to be selected, got %+v (ok=%v)", task, ok)
	}
}

func TestFeatureBranchNamePrefersMilestoneSlug(t *testing.T) {
	name := featureBranchName(dashboard.Milestone{Slug: "foundation"}, dashboard.Task{Title: "Add config loader"})
	if name != "milestone/foundation" {
		t.Fatalf("expected milestone/foundation, got %s", name)
	}
}

func TestFeatureBranchNameFallsBackToTaskSlug(t *testing.T) {
	name := featureBranchName(dashboard.Milestone{}, dashboard.Task{ID: "42", Title: "Add config loader!"})
	if name != "task/add-config-loader" {
		t.Fatalf("expected task/add-config-loader, got %s", name)
	}
}

func TestPrimaryRepositoryPrefersSingularField(t *testing.T) {
	repo := primaryRepository(dashboard.Project{Repository: &dashboard.Repository{Name: "primary"}})
	if repo == nil || repo.Name != "primary" {
		t.Fatalf("expected primary repository, got %+v", repo)
	}
}

func TestPrimaryRepositoryFallsBackToDefaultInList(t *testing.T) {
	repo := primaryRepository(dashboard.Project{Repositories: []dashboard.Repository{
		{Name: "other"},
		{Name: "default", IsDefault: true},
	}})
	if repo == nil || repo.Name != "default" {
		t.Fatalf("expected default repository, got %+v", repo)
	}
}
