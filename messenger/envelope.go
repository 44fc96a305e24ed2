// Package messenger builds persona request envelopes, writes them to the
// request stream, and waits on the event stream for the matching
// correlation id (spec.md §4.3).
package messenger

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// RequestMsg is the wire envelope sent to a persona (spec.md §3.4). All
// fields are strings on the wire (transport.Message.Fields); Payload is
// JSON-encoded.
type RequestMsg struct {
	WorkflowID string
	Step       string
	From       string
	ToPersona  string
	Intent     string
	Payload    json.RawMessage
	CorrID     string
	DeadlineS  int
	Repo       string
	Branch     string
	ProjectID  string
	TaskID     string
}

// EventStatus enumerates the terminal/progress states a persona event can carry.
type EventStatus string

const (
	EventDone     EventStatus = "done"
	EventProgress EventStatus = "progress"
	EventError    EventStatus = "error"
	EventBlocked  EventStatus = "blocked"
)

// EventMsg is the wire envelope a persona emits back (spec.md §3.4).
type EventMsg struct {
	WorkflowID  string
	Step        string
	FromPersona string
	Status      EventStatus
	Result      string
	CorrID      string
	Ts          string
	Error       string
}

// ToFields serializes a RequestMsg into the string field map XAdd expects.
func (r RequestMsg) ToFields() map[string]string {
	fields := map[string]string{
		"workflow_id": r.WorkflowID,
		"from":        r.From,
		"to_persona":  r.ToPersona,
		"intent":      r.Intent,
		"payload":     string(r.Payload),
		"corr_id":     r.CorrID,
	}
	if r.Step != "" {
		fields["step"] = r.Step
	}
	if r.DeadlineS > 0 {
		fields["deadline_s"] = strconv.Itoa(r.DeadlineS)
	}
	if r.Repo != "" {
		fields["repo"] = r.Repo
	}
	if r.Branch != "" {
		fields["branch"] = r.Branch
	}
	if r.ProjectID != "" {
		fields["project_id"] = r.ProjectID
	}
	if r.TaskID != "" {
		fields["task_id"] = r.TaskID
	}
	return fields
}

// RequestFromFields is the inverse of ToFields — parseEnvelope ∘
// serializeEnvelope = id (spec.md §8 round-trip law).
func RequestFromFields(fields map[string]string) (RequestMsg, error) {
	r := RequestMsg{
		WorkflowID: fields["workflow_id"],
		Step:       fields["step"],
		From:       fields["from"],
		ToPersona:  fields["to_persona"],
		Intent:     fields["intent"],
		Payload:    json.RawMessage(fields["payload"]),
		CorrID:     fields["corr_id"],
		Repo:       fields["repo"],
		Branch:     fields["branch"],
		ProjectID:  fields["project_id"],
		TaskID:     fields["task_id"],
	}
	if v, ok := fields["deadline_s"]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return RequestMsg{}, fmt.Errorf("parse deadline_s: %w", err)
		}
		r.DeadlineS = n
	}
	if r.WorkflowID == "" || r.CorrID == "" {
		return RequestMsg{}, fmt.Errorf("request message missing workflow_id or corr_id")
	}
	return r, nil
}

// ToFields serializes an EventMsg into the string field map XAdd expects.
func (e EventMsg) ToFields() map[string]string {
	fields := map[string]string{
		"workflow_id":  e.WorkflowID,
		"from_persona": e.FromPersona,
		"status":       string(e.Status),
	}
	if e.Step != "" {
		fields["step"] = e.Step
	}
	if e.Result != "" {
		fields["result"] = e.Result
	}
	if e.CorrID != "" {
		fields["corr_id"] = e.CorrID
	}
	if e.Ts != "" {
		fields["ts"] = e.Ts
	}
	if e.Error != "" {
		fields["error"] = e.Error
	}
	return fields
}

// EventFromFields is the inverse of EventMsg.ToFields.
func EventFromFields(fields map[string]string) (EventMsg, error) {
	e := EventMsg{
		WorkflowID:  fields["workflow_id"],
		Step:        fields["step"],
		FromPersona: fields["from_persona"],
		Status:      EventStatus(fields["status"]),
		Result:      fields["result"],
		CorrID:      fields["corr_id"],
		Ts:          fields["ts"],
		Error:       fields["error"],
	}
	if e.WorkflowID == "" || e.FromPersona == "" {
		return EventMsg{}, fmt.Errorf("event message missing workflow_id or from_persona")
	}
	return e, nil
}
