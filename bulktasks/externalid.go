package bulktasks

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const defaultExternalIDTemplate = "${workflow_run_id}:${step_name}:${task_index}"

var titleSlugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func titleSlug(title string) string {
	slug := titleSlugPattern.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(slug, "-")
}

var templateVarPattern = regexp.MustCompile(`\$\{([a-zA-Z0-9_.]+)\}`)

// ExternalIDVars supplies the variables an external-id template may
// reference (spec.md §4.4.5).
type ExternalIDVars struct {
	WorkflowRunID string
	StepName      string
	TaskIndex     int
	Task          CandidateTask
}

// RenderExternalID expands template against vars, falling back to the
// spec's default template when template is empty.
func RenderExternalID(template string, vars ExternalIDVars) string {
	if template == "" {
		template = defaultExternalIDTemplate
	}
	return templateVarPattern.ReplaceAllStringFunc(template, func(match string) string {
		ref := templateVarPattern.FindStringSubmatch(match)[1]
		switch ref {
		case "workflow_run_id":
			return vars.WorkflowRunID
		case "step_name":
			return vars.StepName
		case "task_index":
			return strconv.Itoa(vars.TaskIndex)
		case "task.title_slug":
			return titleSlug(vars.Task.Title)
		case "task.title":
			return vars.Task.Title
		case "task.priority":
			return vars.Task.Priority
		case "task.milestone_slug":
			return vars.Task.MilestoneSlug
		default:
			return fmt.Sprintf("${%s}", ref)
		}
	})
}
