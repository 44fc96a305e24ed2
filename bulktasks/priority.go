// Package bulktasks implements enrichment and idempotent submission for
// the BulkTaskCreationStep (spec.md §4.4.5).
package bulktasks

import "strings"

// defaultPriorityScores are the fallback scores used when no custom
// mapping is configured.
var defaultPriorityScores = map[string]int{
	"critical": 1500,
	"high":     1200,
	"medium":   800,
	"low":      50,
}

// PriorityCalculator maps a task's named priority to a numeric score.
type PriorityCalculator struct {
	scores map[string]int
}

// NewPriorityCalculator builds a calculator, merging overrides onto the
// spec-mandated defaults.
func NewPriorityCalculator(overrides map[string]int) *PriorityCalculator {
	scores := make(map[string]int, len(defaultPriorityScores))
	for k, v := range defaultPriorityScores {
		scores[k] = v
	}
	for k, v := range overrides {
		scores[strings.ToLower(k)] = v
	}
	return &PriorityCalculator{scores: scores}
}

// Score returns the numeric priority score for priority, defaulting to
// the "low" score for unrecognized values.
func (p *PriorityCalculator) Score(priority string) int {
	if score, ok := p.scores[strings.ToLower(priority)]; ok {
		return score
	}
	return p.scores["low"]
}

// TaskRouter decides which milestone bucket a task routes to based on
// priority (spec.md §4.4.5: critical|high → urgent, medium|low → deferred).
type TaskRouter struct{}

// Route returns "urgent" or "deferred" for the given priority.
func (TaskRouter) Route(priority string) string {
	switch strings.ToLower(priority) {
	case "critical", "high":
		return "urgent"
	default:
		return "deferred"
	}
}
