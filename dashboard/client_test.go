package dashboard_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ma-collective/orchestrator/dashboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/proj-1", r.URL.Path)
		json.NewEncoder(w).Encode(dashboard.Project{ID: "proj-1", Name: "Widgets"})
	}))
	defer server.Close()

	client := dashboard.NewClient(server.URL)
	p, err := client.GetProject(t.Context(), "proj-1")
	require.NoError(t, err)
	assert.Equal(t, "Widgets", p.Name)
}

func TestBulkCreateTasksReportsSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/proj-1/tasks:bulk", r.URL.Path)
		var body dashboard.BulkTasksRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Tasks, 2)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(dashboard.BulkTasksResponse{
			Created: []dashboard.Task{body.Tasks[0]},
			Skipped: []dashboard.SkippedTask{{Task: body.Tasks[1], ExternalID: body.Tasks[1].ExternalID, Reason: "duplicate external_id"}},
			Summary: dashboard.BulkTasksSummary{TotalRequested: 2, Created: 1, Skipped: 1},
		})
	}))
	defer server.Close()

	client := dashboard.NewClient(server.URL)
	resp, err := client.BulkCreateTasks(t.Context(), "proj-1", []dashboard.Task{
		{Title: "Task A", ExternalID: "run:step:0"},
		{Title: "Task B", ExternalID: "run:step:1"},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Created, 1)
	assert.Len(t, resp.Skipped, 1)
	assert.Equal(t, 1, resp.Summary.Skipped)
}

func TestSetTaskStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		var patch map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
		assert.Equal(t, "in_progress", patch["status"])
		json.NewEncoder(w).Encode(dashboard.Task{ID: "task-1", Status: dashboard.StatusInProgress})
	}))
	defer server.Close()

	client := dashboard.NewClient(server.URL)
	task, err := client.SetTaskStatus(t.Context(), "proj-1", "task-1", dashboard.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, dashboard.StatusInProgress, task.Status)
}

func TestDoJSONStopsOnClientError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := dashboard.NewClient(server.URL, dashboard.WithMaxRetries(2))
	_, err := client.GetProject(t.Context(), "missing")
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
