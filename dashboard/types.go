package dashboard

// TaskStatus is the valid set of dashboard task states (spec.md §6.1).
type TaskStatus string

const (
	StatusOpen       TaskStatus = "open"
	StatusInProgress TaskStatus = "in_progress"
	StatusInReview   TaskStatus = "in_review"
	StatusBlocked    TaskStatus = "blocked"
	StatusDone       TaskStatus = "done"
	StatusArchived   TaskStatus = "archived"
)

// Repository describes a project's git remote.
type Repository struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	RemoteURL string `json:"remote_url"`
	IsDefault bool   `json:"is_default,omitempty"`
}

// Milestone groups tasks under a project.
type Milestone struct {
	ID       string `json:"id,omitempty"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
	Status   string `json:"status,omitempty"`
}

// Task is a single unit of work tracked on the dashboard.
type Task struct {
	ID            string     `json:"id,omitempty"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Type          string     `json:"type,omitempty"`
	Status        TaskStatus `json:"status"`
	Priority      string     `json:"priority,omitempty"`
	PriorityScore int        `json:"priority_score,omitempty"`
	MilestoneID   string     `json:"milestone_id,omitempty"`
	MilestoneSlug string     `json:"milestone_slug,omitempty"`
	ExternalID    string     `json:"external_id,omitempty"`
	CreatedAt     string     `json:"created_at,omitempty"`
}

// Project is the top-level entity owning milestones, tasks, and repos.
type Project struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Status        string       `json:"status,omitempty"`
	Repository    *Repository  `json:"repository,omitempty"`
	Repositories  []Repository `json:"repositories,omitempty"`
	Milestones    []Milestone  `json:"milestones,omitempty"`
}

// BulkTasksRequest is the body of POST /projects/{id}/tasks:bulk.
type BulkTasksRequest struct {
	Tasks []Task `json:"tasks"`
}

// SkippedTask reports why a task in a bulk request was not created.
type SkippedTask struct {
	Task       Task   `json:"task"`
	ExternalID string `json:"external_id"`
	Reason     string `json:"reason"`
}

// BulkTasksSummary tallies a bulk creation call's outcome.
type BulkTasksSummary struct {
	TotalRequested int `json:"totalRequested"`
	Created        int `json:"created"`
	Skipped        int `json:"skipped"`
}

// BulkTasksResponse is the decoded result of POST /projects/{id}/tasks:bulk.
type BulkTasksResponse struct {
	Created []Task            `json:"created"`
	Skipped []SkippedTask      `json:"skipped"`
	Errors  []string          `json:"errors,omitempty"`
	Summary BulkTasksSummary  `json:"summary"`
}
