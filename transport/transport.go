// Package transport abstracts an append-only, consumer-group stream broker.
// The production driver talks to Redis Streams; the local driver backs the
// same interface with an embedded miniredis instance so tests exercise the
// identical code path the production driver runs.
package transport

import (
	"context"
	"fmt"
	"time"
)

// ErrorKind classifies transport failures so callers can decide whether to
// retry without inspecting driver-specific error types.
type ErrorKind string

const (
	KindDisconnected ErrorKind = "disconnected"
	KindTimeout      ErrorKind = "timeout"
	KindNotFound     ErrorKind = "not_found"
	KindAlreadyExists ErrorKind = "already_exists"
	KindProtocol     ErrorKind = "protocol"
	KindIO           ErrorKind = "io"
)

// Error is the error type every Transport operation fails with.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("transport: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is(err, &Error{Kind: KindAlreadyExists}) style checks
// against just the Kind, ignoring Op/Err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == "" {
		return true
	}
	return t.Kind == e.Kind
}

// NewError builds a *Error, the canonical constructor used by every driver.
func NewError(op string, kind ErrorKind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Message is a single stream entry: a server-assigned ID and a string field map.
type Message struct {
	ID     string
	Fields map[string]string
}

// PendingSummary is the XPENDING summary form: totals, ID range and
// per-consumer pending counts (no per-message detail).
type PendingSummary struct {
	Count     int64
	Lowest    string
	Highest   string
	Consumers map[string]int64
}

// GroupInfo mirrors XINFO GROUPS output for one consumer group on a stream.
type GroupInfo struct {
	Name            string
	Consumers       int64
	Pending         int64
	LastDeliveredID string
}

// ReadGroupRequest selects one stream and the ID cursor to read from within
// an XReadGroup call. ">" means "only new messages never delivered to this
// consumer in this group".
type ReadGroupRequest struct {
	Stream string
	ID     string
}

// Transport is the full contract described in spec.md §4.1. Every operation
// returns a *Error on failure; never a bare error, so callers can always do
// a type assertion without juggling multiple error shapes.
type Transport interface {
	// Connect and Disconnect are idempotent; calling either repeatedly is safe.
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// XAdd appends fields to stream under id ("*" requests a server-assigned
	// id) and returns the assigned id. fields must be non-empty.
	XAdd(ctx context.Context, stream, id string, fields map[string]string) (string, error)

	// XGroupCreate creates consumer group on stream starting at from ("$" for
	// "only new", "0" for "from the start"). mkstream creates the stream if
	// it doesn't exist. Duplicate creation surfaces KindAlreadyExists, not a
	// fatal error.
	XGroupCreate(ctx context.Context, stream, group, from string, mkstream bool) error

	// XReadGroup performs an at-most-one-delivery read across the given
	// streams for (group, consumer). block is the maximum wait before
	// returning an empty result; it never silently drops messages.
	XReadGroup(ctx context.Context, group, consumer string, streams []ReadGroupRequest, count int64, block time.Duration) (map[string][]Message, error)

	// XAck acknowledges one or more ids on stream for group and returns the
	// number actually acknowledged.
	XAck(ctx context.Context, stream, group string, ids ...string) (int64, error)

	XRange(ctx context.Context, stream, start, stop string, count int64) ([]Message, error)
	XLen(ctx context.Context, stream string) (int64, error)
	XPending(ctx context.Context, stream, group string) (*PendingSummary, error)

	// XClaim reassigns ids idle longer than minIdle to consumer, for recovery
	// after a crashed consumer leaves unacked messages behind.
	XClaim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids ...string) ([]Message, error)

	Del(ctx context.Context, stream string) error
	XInfoGroups(ctx context.Context, stream string) ([]GroupInfo, error)
}
