// Package pmdecision normalizes a PM persona's free-form decision into a
// structured follow-up-task plan (spec.md §4.4.4).
package pmdecision

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var validPriorities = map[string]bool{"critical": true, "high": true, "medium": true, "low": true}

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// FollowUpTask is one task extracted from a PM decision.
type FollowUpTask struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Priority    string         `json:"priority,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// MilestoneUpdate is a requested change to a milestone.
type MilestoneUpdate struct {
	Slug   string `json:"slug"`
	Status string `json:"status,omitempty"`
}

// Decision is the normalized output of parsing a PM persona's response.
type Decision struct {
	Decision         string            `json:"decision"`
	FollowUpTasks    []FollowUpTask    `json:"follow_up_tasks"`
	MilestoneUpdates []MilestoneUpdate `json:"milestone_updates,omitempty"`
	Warnings         []string          `json:"warnings,omitempty"`
}

// rawDecision mirrors the heterogeneous shapes personas actually emit.
type rawDecision struct {
	Decision         string            `json:"decision"`
	FollowUpTasks    []FollowUpTask    `json:"follow_up_tasks"`
	FollowUpTasksAlt []FollowUpTask    `json:"followUpTasks"`
	Backlog          []FollowUpTask    `json:"backlog"`
	MilestoneUpdates []MilestoneUpdate `json:"milestone_updates"`
}

// Parse extracts a Decision from a persona's raw text, unwrapping fenced
// JSON blocks when present. Parse failures degrade to a safe "defer"
// decision rather than propagating an error (spec.md §4.4.4: "never
// throws").
func Parse(reviewType, raw string) Decision {
	body := raw
	if m := fencedJSONPattern.FindStringSubmatch(raw); m != nil {
		body = m[1]
	}

	var rd rawDecision
	if err := json.Unmarshal([]byte(body), &rd); err != nil {
		return Decision{Decision: "defer", Warnings: []string{"failed to parse PM decision, defaulting to defer"}}
	}

	d := Decision{
		Decision:         rd.Decision,
		FollowUpTasks:    rd.FollowUpTasks,
		MilestoneUpdates: rd.MilestoneUpdates,
	}

	if len(rd.FollowUpTasksAlt) > 0 {
		d.FollowUpTasks = append(d.FollowUpTasks, rd.FollowUpTasksAlt...)
	}
	if len(rd.Backlog) > 0 {
		d.FollowUpTasks = append(d.FollowUpTasks, rd.Backlog...)
		d.Warnings = append(d.Warnings, "backlog is deprecated; merged into follow_up_tasks")
	}

	if d.Decision == "immediate_fix" && len(d.FollowUpTasks) == 0 {
		d.Decision = "defer"
		d.Warnings = append(d.Warnings, "immediate_fix with no follow_up_tasks auto-corrected to defer")
	}

	for i := range d.FollowUpTasks {
		t := &d.FollowUpTasks[i]
		if t.Priority != "" && !validPriorities[strings.ToLower(t.Priority)] {
			d.Warnings = append(d.Warnings, fmt.Sprintf("invalid priority %q retained for task %q", t.Priority, t.Title))
		}
		if t.Title == "" {
			t.Title = fmt.Sprintf("%s follow-up", reviewType)
			if t.Metadata == nil {
				t.Metadata = map[string]any{}
			}
			t.Metadata["generated_title_reason"] = "missing_pm_title"
		}
	}

	return d
}
