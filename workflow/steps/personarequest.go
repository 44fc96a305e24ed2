package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ma-collective/orchestrator/interpreter"
	"github.com/ma-collective/orchestrator/messenger"
	"github.com/ma-collective/orchestrator/workflow"
)

func init() {
	Register("persona-request", func(deps Deps) Step { return &PersonaRequestStep{deps: deps} })
}

// PersonaRequestStep sends one persona request and waits for its terminal
// event, retrying with a progressive timeout on PersonaTimeout
// (spec.md §4.4.1).
type PersonaRequestStep struct {
	deps Deps
}

type personaRequestConfig struct {
	Step       string         `json:"step" mapstructure:"step"`
	Persona    string         `json:"persona"`
	Intent     string         `json:"intent"`
	Payload    map[string]any `json:"payload"`
	TimeoutMs  int            `json:"timeout"`
	MaxRetries *int           `json:"maxRetries"`
}

func decodePersonaRequestConfig(raw map[string]any) personaRequestConfig {
	var cfg personaRequestConfig
	b, _ := json.Marshal(raw)
	_ = json.Unmarshal(b, &cfg)
	return cfg
}

func (s *PersonaRequestStep) Validate(_ context.Context, _ *workflow.Context, spec *workflow.StepSpec) ValidationResult {
	cfg := decodePersonaRequestConfig(spec.Config)
	var errs []string
	if cfg.Persona == "" {
		errs = append(errs, "config.persona is required")
	}
	if cfg.Intent == "" {
		errs = append(errs, "config.intent is required")
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func (s *PersonaRequestStep) Execute(ctx context.Context, wc *workflow.Context, spec *workflow.StepSpec) Result {
	cfg := decodePersonaRequestConfig(spec.Config)

	if s.deps.SkipPersonaOps {
		outputs := map[string]any{
			spec.Name + "_status":  string(interpreter.StatusPass),
			spec.Name + "_result":  "{}",
			spec.Name + "_details": "skipped: SKIP_PERSONA_OPERATIONS",
		}
		return Result{Status: StatusSuccess, Outputs: outputs}
	}

	baseTimeoutMs := cfg.TimeoutMs
	if baseTimeoutMs == 0 {
		if t, ok := s.deps.PersonaTimeouts[cfg.Persona]; ok {
			baseTimeoutMs = t
		} else {
			baseTimeoutMs = s.deps.DefaultTimeoutMs
		}
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == nil {
		if mr, ok := s.deps.PersonaMaxRetries[cfg.Persona]; ok {
			maxRetries = mr // may itself be nil => unlimited
		} else {
			d := s.deps.DefaultMaxRetries
			maxRetries = &d
		}
	}

	payload := cfg.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payload["task"] = wc.Variables()["task"]
	if repo, ok := wc.Variable("effective_repo_path"); ok && repo != "" {
		payload["repo"] = repo
	} else if remote, ok := wc.Variable("repo_remote"); ok {
		payload["repo"] = remote
	}
	payload["branch"] = wc.Branch()
	payload["project_id"] = wc.ProjectID

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return Result{Status: StatusFailure, Err: fmt.Errorf("encode persona payload: %w", err)}
	}

	increment := s.deps.BackoffIncrementMs
	if increment == 0 {
		increment = 30000
	}

	unlimited := maxRetries == nil
	attempts := 1
	if !unlimited {
		attempts = *maxRetries + 1
	}

	var lastErr error
	for attempt := 1; unlimited || attempt <= attempts; attempt++ {
		timeoutMs := baseTimeoutMs + (attempt-1)*increment
		timeout := time.Duration(timeoutMs) * time.Millisecond

		corrID, err := s.deps.Messenger.Send(ctx, wc.WorkflowID, spec.Name, cfg.Persona, cfg.Intent, payloadBytes,
			timeoutMs/1000, fmt.Sprint(payload["repo"]), wc.Branch(), wc.ProjectID, fmt.Sprint(payload["task"]))
		if err != nil {
			return Result{Status: StatusFailure, Err: fmt.Errorf("send persona request: %w", err)}
		}

		event, err := s.deps.Messenger.Wait(ctx, wc.WorkflowID, cfg.Persona, corrID, timeout)
		if err != nil {
			var timeoutErr *messenger.TimeoutError
			if errors.As(err, &timeoutErr) {
				lastErr = err
				if unlimited || attempt < attempts {
					continue
				}
				break
			}
			return Result{Status: StatusFailure, Err: fmt.Errorf("wait for persona event: %w", err)}
		}

		normalized := interpreter.Interpret(cfg.Persona, event.Result)
		outputs := map[string]any{
			spec.Name + "_status":  string(normalized.Status),
			spec.Name + "_result":  normalized.Raw,
			spec.Name + "_details": normalized.Details,
		}
		return Result{Status: StatusSuccess, Outputs: outputs}
	}

	finalTimeoutMs := baseTimeoutMs + (attempts-1)*increment
	return Result{
		Status: StatusFailure,
		Err: fmt.Errorf("persona %s timed out after %d attempts for step %s: base timeout %dms, final timeout %dms: %w",
			cfg.Persona, attempts, spec.Name, baseTimeoutMs, finalTimeoutMs, lastErr),
		Data: map[string]any{"workflowAborted": true},
	}
}
