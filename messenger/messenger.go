package messenger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ma-collective/orchestrator/transport"
)

// TimeoutError is raised when the cumulative wait for a matching event
// exceeds the caller's supplied timeout (spec.md §4.3, §7 PersonaTimeout).
type TimeoutError struct {
	WorkflowID string
	Persona    string
	CorrID     string
	Waited     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("persona timeout: workflow=%s persona=%s corr_id=%s waited=%s",
		e.WorkflowID, e.Persona, e.CorrID, e.Waited)
}

// blockInterval is the bounded per-cycle BLOCK duration (spec.md §4.3: "~1s").
const blockInterval = time.Second

// Messenger sends persona requests and waits for their terminal events.
type Messenger struct {
	transport      transport.Transport
	requestStream  string
	eventStream    string
	groupPrefix    string
	consumerID     string
	from           string
	logger         *slog.Logger
}

// New builds a Messenger bound to a request/event stream pair.
func New(t transport.Transport, requestStream, eventStream, groupPrefix, consumerID, from string, logger *slog.Logger) *Messenger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Messenger{
		transport:     t,
		requestStream: requestStream,
		eventStream:   eventStream,
		groupPrefix:   groupPrefix,
		consumerID:    consumerID,
		from:          from,
		logger:        logger,
	}
}

// Send constructs a fresh-corr-id envelope, appends it to the request
// stream, and returns the corr_id to correlate against later.
func (m *Messenger) Send(ctx context.Context, workflowID, step, toPersona, intent string, payload []byte, deadlineS int, repo, branch, projectID, taskID string) (string, error) {
	req := RequestMsg{
		WorkflowID: workflowID,
		Step:       step,
		From:       m.from,
		ToPersona:  toPersona,
		Intent:     intent,
		Payload:    payload,
		CorrID:     uuid.NewString(),
		DeadlineS:  deadlineS,
		Repo:       repo,
		Branch:     branch,
		ProjectID:  projectID,
		TaskID:     taskID,
	}
	if _, err := m.transport.XAdd(ctx, m.requestStream, "*", req.ToFields()); err != nil {
		return "", fmt.Errorf("send persona request: %w", err)
	}
	return req.CorrID, nil
}

// Wait reads the event stream, for this persona's consumer group, until an
// event matching (workflowID, fromPersona, corrID) arrives or timeout
// elapses. Non-matching events that belong to this workflow are acked so
// they don't accumulate; events for other workflows are left unacked for
// their own consumer.
func (m *Messenger) Wait(ctx context.Context, workflowID, fromPersona, corrID string, timeout time.Duration) (EventMsg, error) {
	group := m.groupPrefix + ":" + fromPersona
	if err := m.transport.XGroupCreate(ctx, m.eventStream, group, "$", true); err != nil {
		var terr *transport.Error
		if !(errors.As(err, &terr) && terr.Kind == transport.KindAlreadyExists) {
			return EventMsg{}, fmt.Errorf("ensure event consumer group: %w", err)
		}
	}

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return EventMsg{}, &TimeoutError{WorkflowID: workflowID, Persona: fromPersona, CorrID: corrID, Waited: timeout}
		}
		block := blockInterval
		if remaining < block {
			block = remaining
		}

		res, err := m.transport.XReadGroup(ctx, group, m.consumerID,
			[]transport.ReadGroupRequest{{Stream: m.eventStream, ID: ">"}}, 50, block)
		if err != nil {
			var terr *transport.Error
			if errors.As(err, &terr) && terr.Kind == transport.KindDisconnected {
				// Retriable without message loss (spec.md §4.1); loop again
				// until the overall timeout elapses.
				continue
			}
			return EventMsg{}, fmt.Errorf("read event stream: %w", err)
		}

		for _, msg := range res[m.eventStream] {
			event, perr := EventFromFields(msg.Fields)
			if perr != nil {
				m.logger.Warn("dropping unparseable event", "error", perr, "id", msg.ID)
				_, _ = m.transport.XAck(ctx, m.eventStream, group, msg.ID)
				continue
			}
			if event.WorkflowID != workflowID {
				// Belongs to a different workflow/coordinator; leave unacked
				// for that consumer to pick up.
				continue
			}
			if event.CorrID != corrID || event.FromPersona != fromPersona {
				// Same workflow but a stale/other-step event; ack so it
				// doesn't accumulate for this persona's group.
				_, _ = m.transport.XAck(ctx, m.eventStream, group, msg.ID)
				continue
			}
			_, _ = m.transport.XAck(ctx, m.eventStream, group, msg.ID)
			return event, nil
		}
	}
}
