package engine

import (
	"testing"

	"github.com/ma-collective/orchestrator/workflow"
)

func TestNewDependencyGraphNoDependencies(t *testing.T) {
	steps := []workflow.StepSpec{
		{Name: "a", Type: "noop"},
		{Name: "b", Type: "noop"},
	}
	g, err := newDependencyGraph(steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ready := g.ready(map[string]bool{})
	if len(ready) != 2 {
		t.Fatalf("expected 2 ready steps, got %d", len(ready))
	}
}

func TestNewDependencyGraphLinear(t *testing.T) {
	steps := []workflow.StepSpec{
		{Name: "a", Type: "noop"},
		{Name: "b", Type: "noop", DependsOn: []string{"a"}},
		{Name: "c", Type: "noop", DependsOn: []string{"b"}},
	}
	g, err := newDependencyGraph(steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	scheduled := map[string]bool{}
	ready := g.ready(scheduled)
	if len(ready) != 1 || ready[0] != "a" {
		t.Fatalf("expected only a ready, got %v", ready)
	}

	scheduled["a"] = true
	g.markResolved("a")
	ready = g.ready(scheduled)
	if len(ready) != 1 || ready[0] != "b" {
		t.Fatalf("expected only b ready, got %v", ready)
	}
}

func TestNewDependencyGraphDetectsCycle(t *testing.T) {
	steps := []workflow.StepSpec{
		{Name: "a", Type: "noop", DependsOn: []string{"b"}},
		{Name: "b", Type: "noop", DependsOn: []string{"a"}},
	}
	if _, err := newDependencyGraph(steps); err == nil {
		t.Fatal("expected cycle error, got nil")
	}
}

func TestNewDependencyGraphRejectsUnknownDependency(t *testing.T) {
	steps := []workflow.StepSpec{
		{Name: "a", Type: "noop", DependsOn: []string{"missing"}},
	}
	if _, err := newDependencyGraph(steps); err == nil {
		t.Fatal("expected unknown-dependency error, got nil")
	}
}

func TestReadyBreaksTiesBySourceOrder(t *testing.T) {
	steps := []workflow.StepSpec{
		{Name: "z", Type: "noop"},
		{Name: "a", Type: "noop"},
		{Name: "m", Type: "noop"},
	}
	g, err := newDependencyGraph(steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ready := g.ready(map[string]bool{})
	want := []string{"z", "a", "m"}
	for i, name := range want {
		if ready[i] != name {
			t.Fatalf("expected source order %v, got %v", want, ready)
		}
	}
}
