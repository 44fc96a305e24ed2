package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stepsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_engine_steps_total",
			Help: "Total workflow steps executed by workflow name, step type, and terminal status",
		},
		[]string{"workflow", "step_type", "status"},
	)

	stepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "orchestrator_engine_step_duration_seconds",
			Help: "Step execution duration in seconds by workflow name and step type",
		},
		[]string{"workflow", "step_type"},
	)

	workflowsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_engine_workflows_total",
			Help: "Total workflow runs by workflow name and terminal outcome",
		},
		[]string{"workflow", "outcome"},
	)

	workflowAborts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_engine_workflow_aborts_total",
			Help: "Total workflow aborts by workflow name and abort reason",
		},
		[]string{"workflow", "reason"},
	)
)

func recordStep(workflowName, stepType, status string, seconds float64) {
	stepsExecuted.WithLabelValues(workflowName, stepType, status).Inc()
	stepDuration.WithLabelValues(workflowName, stepType).Observe(seconds)
}

func recordWorkflowOutcome(workflowName, outcome string) {
	workflowsCompleted.WithLabelValues(workflowName, outcome).Inc()
}

func recordAbort(workflowName, reason string) {
	workflowAborts.WithLabelValues(workflowName, reason).Inc()
}
