package workflow

import "testing"

func TestContextBranchUpdatesAreVisibleThroughContext(t *testing.T) {
	ctx := NewContext("wf-1", "proj-1", "/repo", nil, nil)
	if ctx.Branch() != "" {
		t.Fatal("expected empty initial branch")
	}
	ctx.SetBranch("task/add-widget")
	if ctx.Branch() != "task/add-widget" {
		t.Fatalf("got %q", ctx.Branch())
	}
}

func TestContextMarkSkippedCountsAsCompleted(t *testing.T) {
	ctx := NewContext("wf-1", "proj-1", "/repo", nil, nil)
	ctx.MarkSkipped("optional-step")
	if !ctx.IsCompleted("optional-step") {
		t.Fatal("expected skipped step to count as completed")
	}
}

func TestContextAbortRequestIsSticky(t *testing.T) {
	ctx := NewContext("wf-1", "proj-1", "/repo", nil, nil)
	ctx.RequestAbort("dirty_working_tree")
	ctx.RequestAbort("push_failed")

	abort, reason := ctx.AbortRequested()
	if !abort || reason != "dirty_working_tree" {
		t.Fatalf("expected first abort reason to stick, got %v %q", abort, reason)
	}
}

func TestContextFailedStepKeepsFirst(t *testing.T) {
	ctx := NewContext("wf-1", "proj-1", "/repo", nil, nil)
	ctx.MarkFailed("step-a")
	ctx.MarkFailed("step-b")
	if ctx.FailedStep() != "step-a" {
		t.Fatalf("got %q", ctx.FailedStep())
	}
}
