package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/ma-collective/orchestrator/transport"
	"github.com/ma-collective/orchestrator/workflow"
	"github.com/ma-collective/orchestrator/workflow/steps"
)

type fakeStep struct {
	fail      bool
	failTimes int
	calls     int
	outputs   map[string]any
}

func (f *fakeStep) Validate(context.Context, *workflow.Context, *workflow.StepSpec) steps.ValidationResult {
	return steps.ValidationResult{Valid: true}
}

func (f *fakeStep) Execute(context.Context, *workflow.Context, *workflow.StepSpec) steps.Result {
	f.calls++
	if f.calls <= f.failTimes || f.fail {
		return steps.Result{Status: steps.StatusFailure, Err: fmt.Errorf("synthetic failure on call %d", f.calls)}
	}
	return steps.Result{Status: steps.StatusSuccess, Outputs: f.outputs}
}

func init() {
	steps.Register("engine-test-success", func(steps.Deps) steps.Step {
		return &fakeStep{outputs: map[string]any{"value": "ok"}}
	})
	steps.Register("engine-test-always-fail", func(steps.Deps) steps.Step {
		return &fakeStep{fail: true}
	})
}

func newTestContext() *workflow.Context {
	tport, err := transport.NewLocalTransport(nil)
	if err != nil {
		panic(err)
	}
	return workflow.NewContext("wf-1", "project-1", "/tmp/repo", tport, map[string]any{})
}

func TestEngineRunsStepsInDependencyOrder(t *testing.T) {
	def := &workflow.Definition{
		Name: "sample",
		Steps: []workflow.StepSpec{
			{Name: "first", Type: "engine-test-success"},
			{Name: "second", Type: "engine-test-success", DependsOn: []string{"first"}},
		},
	}
	wc := newTestContext()
	e := New(steps.Deps{}, nil)

	result := e.Run(context.Background(), def, wc)
	if result.Status != "success" {
		t.Fatalf("expected success, got %+v", result)
	}
	if !wc.IsCompleted("first") || !wc.IsCompleted("second") {
		t.Fatal("expected both steps completed")
	}
}

func TestEngineSkipsStepOnFalseCondition(t *testing.T) {
	def := &workflow.Definition{
		Name: "sample",
		Steps: []workflow.StepSpec{
			{Name: "gated", Type: "engine-test-success", Condition: "${flag} == 'yes'"},
		},
	}
	wc := newTestContext()
	wc.SetVariable("flag", "no")
	e := New(steps.Deps{}, nil)

	result := e.Run(context.Background(), def, wc)
	if result.Status != "success" {
		t.Fatalf("expected success, got %+v", result)
	}
	if !wc.IsCompleted("gated") {
		t.Fatal("expected skipped step marked completed for dependents")
	}
}

func TestEngineFailsWorkflowOnStepFailure(t *testing.T) {
	def := &workflow.Definition{
		Name: "sample",
		Steps: []workflow.StepSpec{
			{Name: "boom", Type: "engine-test-always-fail"},
		},
	}
	wc := newTestContext()
	e := New(steps.Deps{}, nil)

	result := e.Run(context.Background(), def, wc)
	if result.Status != "failed" {
		t.Fatalf("expected failed, got %+v", result)
	}
	if result.FailedStep != "boom" {
		t.Fatalf("expected failed step boom, got %q", result.FailedStep)
	}
}

func TestEngineRetriesTransientFailureUntilSuccess(t *testing.T) {
	steps.Register("engine-test-flaky", func(steps.Deps) steps.Step {
		return &fakeStep{failTimes: 2, outputs: map[string]any{"value": "recovered"}}
	})
	def := &workflow.Definition{
		Name: "sample",
		Steps: []workflow.StepSpec{
			{Name: "flaky", Type: "engine-test-flaky", Retry: &workflow.RetrySpec{MaxAttempts: 3, InitialDelayMs: 1, BackoffMultiplier: 1}},
		},
	}
	wc := newTestContext()
	e := New(steps.Deps{}, nil)

	result := e.Run(context.Background(), def, wc)
	if result.Status != "success" {
		t.Fatalf("expected success after retries, got %+v", result)
	}
}

func TestEnginePromotesOutputsToVariables(t *testing.T) {
	def := &workflow.Definition{
		Name: "sample",
		Steps: []workflow.StepSpec{
			{Name: "produce", Type: "engine-test-success", Outputs: map[string]string{"value": "promoted_value"}},
		},
	}
	wc := newTestContext()
	e := New(steps.Deps{}, nil)

	result := e.Run(context.Background(), def, wc)
	if result.Status != "success" {
		t.Fatalf("expected success, got %+v", result)
	}
	v, ok := wc.Variable("promoted_value")
	if !ok || v != "ok" {
		t.Fatalf("expected promoted_value=ok, got %v (ok=%v)", v, ok)
	}
}

func TestEngineRunsFailureHandlersOnFailure(t *testing.T) {
	handlerRan := false
	steps.Register("engine-test-handler", func(steps.Deps) steps.Step {
		return &handlerStep{ran: &handlerRan}
	})
	def := &workflow.Definition{
		Name: "sample",
		Steps: []workflow.StepSpec{
			{Name: "boom", Type: "engine-test-always-fail"},
		},
		FailureHandling: workflow.FailureHandling{
			OnWorkflowFailure: []workflow.StepSpec{
				{Name: "cleanup", Type: "engine-test-handler"},
			},
		},
	}
	wc := newTestContext()
	e := New(steps.Deps{}, nil)

	result := e.Run(context.Background(), def, wc)
	if result.Status != "failed" {
		t.Fatalf("expected failed, got %+v", result)
	}
	if !handlerRan {
		t.Fatal("expected failure handler to run")
	}
}

type handlerStep struct{ ran *bool }

func (h *handlerStep) Validate(context.Context, *workflow.Context, *workflow.StepSpec) steps.ValidationResult {
	return steps.ValidationResult{Valid: true}
}

func (h *handlerStep) Execute(context.Context, *workflow.Context, *workflow.StepSpec) steps.Result {
	*h.ran = true
	return steps.Result{Status: steps.StatusSuccess}
}
