package dashboard

import (
	"context"
	"fmt"
	"net/http"
)

// GetProject fetches a project with its repository, repositories, and
// milestones populated (spec.md §6.1).
func (c *Client) GetProject(ctx context.Context, id string) (Project, error) {
	var p Project
	err := c.doJSON(ctx, http.MethodGet, "/projects/"+id, nil, &p)
	return p, err
}

// GetProjectStatus fetches the enriched status alias.
func (c *Client) GetProjectStatus(ctx context.Context, id string) (Project, error) {
	var p Project
	err := c.doJSON(ctx, http.MethodGet, "/projects/"+id+"/status", nil, &p)
	return p, err
}

// CreateProject creates a new project.
func (c *Client) CreateProject(ctx context.Context, p Project) (Project, error) {
	var created Project
	err := c.doJSON(ctx, http.MethodPost, "/projects", p, &created)
	return created, err
}

// UpdateProject patches an existing project.
func (c *Client) UpdateProject(ctx context.Context, id string, patch map[string]any) (Project, error) {
	var p Project
	err := c.doJSON(ctx, http.MethodPatch, "/projects/"+id, patch, &p)
	return p, err
}

// DeleteProject removes a project.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/projects/"+id, nil, nil)
}

// CreateMilestone creates a milestone under projectID. Slugs are unique
// per project; a duplicate slug yields a 409 *Error.
func (c *Client) CreateMilestone(ctx context.Context, projectID string, m Milestone) (Milestone, error) {
	var created Milestone
	err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/projects/%s/milestones", projectID), m, &created)
	return created, err
}

// ListMilestones lists milestones under projectID.
func (c *Client) ListMilestones(ctx context.Context, projectID string) ([]Milestone, error) {
	var ms []Milestone
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/projects/%s/milestones", projectID), nil, &ms)
	return ms, err
}

// UpdateMilestone patches a milestone.
func (c *Client) UpdateMilestone(ctx context.Context, projectID, milestoneID string, patch map[string]any) (Milestone, error) {
	var m Milestone
	err := c.doJSON(ctx, http.MethodPatch, fmt.Sprintf("/projects/%s/milestones/%s", projectID, milestoneID), patch, &m)
	return m, err
}

// DeleteMilestone removes a milestone.
func (c *Client) DeleteMilestone(ctx context.Context, projectID, milestoneID string) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/projects/%s/milestones/%s", projectID, milestoneID), nil, nil)
}

// CreateTask creates a task under projectID.
func (c *Client) CreateTask(ctx context.Context, projectID string, t Task) (Task, error) {
	var created Task
	err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/projects/%s/tasks", projectID), t, &created)
	return created, err
}

// ListTasks lists tasks under projectID.
func (c *Client) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	var tasks []Task
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/projects/%s/tasks", projectID), nil, &tasks)
	return tasks, err
}

// UpdateTask patches a task, typically to transition its status
// (spec.md §6.1: not_started → in_progress → in_review → done, or blocked).
func (c *Client) UpdateTask(ctx context.Context, projectID, taskID string, patch map[string]any) (Task, error) {
	var t Task
	err := c.doJSON(ctx, http.MethodPatch, fmt.Sprintf("/projects/%s/tasks/%s", projectID, taskID), patch, &t)
	return t, err
}

// SetTaskStatus is a convenience wrapper over UpdateTask for the common
// status-transition case used by the coordinator.
func (c *Client) SetTaskStatus(ctx context.Context, projectID, taskID string, status TaskStatus) (Task, error) {
	return c.UpdateTask(ctx, projectID, taskID, map[string]any{"status": string(status)})
}

// BulkCreateTasks performs the idempotent bulk creation call
// (spec.md §4.4.5, §6.1): the dashboard skips tasks whose external_id
// already exists and reports them in the response's Skipped field.
func (c *Client) BulkCreateTasks(ctx context.Context, projectID string, tasks []Task) (BulkTasksResponse, error) {
	var resp BulkTasksResponse
	err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/projects/%s/tasks:bulk", projectID), BulkTasksRequest{Tasks: tasks}, &resp)
	return resp, err
}

// CreateRepository registers a repository under projectID.
func (c *Client) CreateRepository(ctx context.Context, projectID string, r Repository) (Repository, error) {
	var created Repository
	err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/projects/%s/repositories", projectID), r, &created)
	return created, err
}

// Health reports the dashboard's liveness check.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/health", nil, nil)
}

// HealthReady reports the readiness check.
func (c *Client) HealthReady(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/health/ready", nil, nil)
}
