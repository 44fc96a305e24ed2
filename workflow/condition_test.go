package workflow

import "testing"

func TestEvalConditionSimpleEquality(t *testing.T) {
	ctx := NewContext("wf-1", "proj-1", "/repo", nil, map[string]any{"task_type": "task"})
	if !EvalCondition(ctx, `${task_type} == "task"`) {
		t.Fatal("expected condition to be true")
	}
	if EvalCondition(ctx, `${task_type} == "bug"`) {
		t.Fatal("expected condition to be false")
	}
}

func TestEvalConditionConjunctionAndDisjunction(t *testing.T) {
	ctx := NewContext("wf-1", "proj-1", "/repo", nil, map[string]any{
		"task_type": "task",
		"priority":  "high",
	})
	if !EvalCondition(ctx, `${task_type} == "task" && ${priority} == "high"`) {
		t.Fatal("expected conjunction to be true")
	}
	if !EvalCondition(ctx, `${task_type} == "bug" || ${priority} == "high"`) {
		t.Fatal("expected disjunction to be true")
	}
	if EvalCondition(ctx, `${task_type} == "bug" && ${priority} == "high"`) {
		t.Fatal("expected conjunction to be false")
	}
}

func TestEvalConditionUnknownVariableResolvesToLiteral(t *testing.T) {
	ctx := NewContext("wf-1", "proj-1", "/repo", nil, nil)
	if !EvalCondition(ctx, `${missing} == "unknown"`) {
		t.Fatal("expected unresolved variable to compare equal to literal unknown")
	}
}

func TestEvalConditionEmptyIsTrue(t *testing.T) {
	ctx := NewContext("wf-1", "proj-1", "/repo", nil, nil)
	if !EvalCondition(ctx, "") {
		t.Fatal("expected empty condition to be true")
	}
}

func TestInterpolateDottedPath(t *testing.T) {
	ctx := NewContext("wf-1", "proj-1", "/repo", nil, nil)
	ctx.RecordStepOutputs("qa", map[string]any{"status": "pass"})
	if got := Interpolate(ctx, "result is ${qa.status}"); got != "result is pass" {
		t.Fatalf("got %q", got)
	}
}
