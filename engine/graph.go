// Package engine drives a workflow.Definition's steps to completion,
// respecting depends_on, condition, retry/backoff, and abort signaling
// (spec.md §4.4).
package engine

import (
	"fmt"
	"sync"

	"github.com/ma-collective/orchestrator/workflow"
)

// dependencyGraph computes step readiness from depends_on edges using
// Kahn's algorithm, adapted from the teacher's task dispatcher to operate
// on workflow.StepSpec instead of dispatcher tasks.
type dependencyGraph struct {
	mu         sync.Mutex
	specs      map[string]*workflow.StepSpec
	order      map[string]int
	inDegree   map[string]int
	dependents map[string][]string
}

func newDependencyGraph(steps []workflow.StepSpec) (*dependencyGraph, error) {
	g := &dependencyGraph{
		specs:      make(map[string]*workflow.StepSpec, len(steps)),
		order:      make(map[string]int, len(steps)),
		inDegree:   make(map[string]int, len(steps)),
		dependents: make(map[string][]string),
	}

	for i := range steps {
		s := &steps[i]
		g.specs[s.Name] = s
		g.order[s.Name] = i
		g.inDegree[s.Name] = 0
	}

	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if _, ok := g.specs[dep]; !ok {
				return nil, fmt.Errorf("engine: step %q depends on unknown step %q", s.Name, dep)
			}
			g.inDegree[s.Name]++
			g.dependents[dep] = append(g.dependents[dep], s.Name)
		}
	}

	if err := g.detectCycles(); err != nil {
		return nil, err
	}

	return g, nil
}

func (g *dependencyGraph) detectCycles() error {
	temp := make(map[string]int, len(g.inDegree))
	for id, deg := range g.inDegree {
		temp[id] = deg
	}
	var queue []string
	for id, deg := range temp {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		for _, dep := range g.dependents[id] {
			temp[dep]--
			if temp[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if processed != len(g.specs) {
		return fmt.Errorf("engine: circular dependency detected among %d steps", len(g.specs)-processed)
	}
	return nil
}

// ready returns the names of steps whose dependencies have all resolved
// (terminal success or skipped) and that have not yet been scheduled, in
// ascending YAML source order (spec.md §4.4 tie-break rule).
func (g *dependencyGraph) ready(scheduled map[string]bool) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var names []string
	for name := range g.specs {
		if scheduled[name] {
			continue
		}
		if g.inDegree[name] > 0 {
			continue
		}
		names = append(names, name)
	}

	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if g.order[names[j]] < g.order[names[i]] {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	return names
}

func (g *dependencyGraph) markResolved(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, dep := range g.dependents[name] {
		g.inDegree[dep]--
	}
}

func (g *dependencyGraph) spec(name string) *workflow.StepSpec {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.specs[name]
}

func (g *dependencyGraph) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.specs)
}
