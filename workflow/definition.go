package workflow

import "fmt"

// RetrySpec overrides step-level retry behavior (spec.md §4.4).
type RetrySpec struct {
	MaxAttempts       int      `yaml:"max_attempts"`
	InitialDelayMs    int      `yaml:"initial_delay_ms"`
	BackoffMultiplier float64  `yaml:"backoff_multiplier"`
	RetryableErrors   []string `yaml:"retryable_errors,omitempty"`
}

// StepSpec is one step of a WorkflowDefinition (spec.md §3.2).
type StepSpec struct {
	Name        string         `yaml:"name"`
	Type        string         `yaml:"type"`
	Description string         `yaml:"description,omitempty"`
	DependsOn   []string       `yaml:"depends_on,omitempty"`
	Condition   string         `yaml:"condition,omitempty"`
	Config      map[string]any `yaml:"config,omitempty"`
	Outputs     map[string]string `yaml:"outputs,omitempty"`
	TimeoutMs   int            `yaml:"timeout_ms,omitempty"`
	Retry       *RetrySpec     `yaml:"retry,omitempty"`
}

// Validate checks structural requirements the loader cannot express in
// the YAML schema alone (unique names mirrored at the definition level).
func (s *StepSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("step: name is required")
	}
	if s.Type == "" {
		return fmt.Errorf("step %s: type is required", s.Name)
	}
	return nil
}

// FailureHandling lists steps run (best-effort) when a workflow fails
// (spec.md §4.4 "Failure handling").
type FailureHandling struct {
	OnWorkflowFailure []StepSpec `yaml:"on_workflow_failure,omitempty"`
}

// TriggerContext gates whether a definition applies to a given task
// (spec.md §3.1 "context": gating flags).
type TriggerContext struct {
	RepoRequired bool `yaml:"repo_required,omitempty"`
}

// Definition is an immutable WorkflowDefinition loaded once per run
// (spec.md §3.1).
type Definition struct {
	Name            string          `yaml:"name"`
	Version         string          `yaml:"version"`
	Description     string          `yaml:"description,omitempty"`
	Trigger         string          `yaml:"trigger,omitempty"`
	Context         TriggerContext  `yaml:"context,omitempty"`
	Steps           []StepSpec      `yaml:"steps"`
	FailureHandling FailureHandling `yaml:"failure_handling,omitempty"`
}

// Validate checks the definition is well-formed: non-empty steps, unique
// step names, and depends_on referencing only declared steps.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("workflow definition: name is required")
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("workflow %s: at least one step is required", d.Name)
	}

	seen := make(map[string]bool, len(d.Steps))
	for _, step := range d.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("workflow %s: %w", d.Name, err)
		}
		if seen[step.Name] {
			return fmt.Errorf("workflow %s: duplicate step name %q", d.Name, step.Name)
		}
		seen[step.Name] = true
	}
	for _, step := range d.Steps {
		for _, dep := range step.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("workflow %s: step %q depends on undeclared step %q", d.Name, step.Name, dep)
			}
		}
	}
	return nil
}

// MatchesTrigger evaluates Trigger against vars, defaulting to true when
// no trigger is declared.
func (d *Definition) MatchesTrigger(ctx *Context) bool {
	if d.Trigger == "" {
		return true
	}
	return EvalCondition(ctx, d.Trigger)
}
