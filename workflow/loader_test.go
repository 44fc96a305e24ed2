package workflow

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleWorkflowYAML = `
name: qa-cycle
version: "1"
trigger: task_type == "task"
steps:
  - name: implement
    type: persona-request
    config:
      persona: developer
  - name: qa
    type: persona-request
    depends_on: [implement]
    condition: ${implement_status} == "pass"
    config:
      persona: tester-qa
`

func writeWorkflow(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write workflow file: %v", err)
	}
}

func TestLoaderLoadsDefinitions(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "qa-cycle.yaml", sampleWorkflowYAML)

	loader, err := NewLoader(dir, nil)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	def, ok := loader.Get("qa-cycle")
	if !ok {
		t.Fatal("expected qa-cycle definition to be loaded")
	}
	if len(def.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(def.Steps))
	}
}

func TestLoaderRejectsUndeclaredDependency(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "bad.yaml", `
name: bad
steps:
  - name: only-step
    type: persona-request
    depends_on: [missing-step]
`)
	if _, err := NewLoader(dir, nil); err == nil {
		t.Fatal("expected validation error for undeclared dependency")
	}
}

func TestLoaderWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "qa-cycle.yaml", sampleWorkflowYAML)

	loader, err := NewLoader(dir, nil)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	stop := make(chan struct{})
	defer close(stop)
	if err := loader.Watch(stop); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	writeWorkflow(t, dir, "extra.yaml", `
name: extra
steps:
  - name: only-step
    type: persona-request
`)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := loader.Get("extra"); ok {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("expected extra workflow to be picked up by watch")
}
