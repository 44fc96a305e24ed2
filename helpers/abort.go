package helpers

import (
	"log/slog"

	"github.com/ma-collective/orchestrator/workflow"
)

// RequestWorkflowAbort sets wc's abort flag (first reason wins, per
// workflow.Context.RequestAbort) and logs the request. Every step that can
// trigger an abort (dirty tree, push failure, QA exhaustion, bulk-task
// partial failure) should route through this instead of calling
// RequestAbort directly, so aborts are always observable in logs.
func RequestWorkflowAbort(wc *workflow.Context, logger *slog.Logger, step, reason string) {
	wc.RequestAbort(reason)
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("workflow abort requested", "step", step, "reason", reason, "workflow_id", wc.WorkflowID)
}
