package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestTransport(t *testing.T) *LocalTransport {
	t.Helper()
	tr, err := NewLocalTransport(nil)
	require.NoError(t, err)
	t.Cleanup(tr.Close)
	require.NoError(t, tr.Connect(context.Background()))
	return tr
}

func TestXAddXRange(t *testing.T) {
	tr := newTestTransport(t)
	ctx := context.Background()

	id, err := tr.XAdd(ctx, "agent.requests", "*", map[string]string{"intent": "plan"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs, err := tr.XRange(ctx, "agent.requests", "-", "+", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "plan", msgs[0].Fields["intent"])
}

func TestXAddRequiresFields(t *testing.T) {
	tr := newTestTransport(t)
	_, err := tr.XAdd(context.Background(), "s", "*", nil)
	require.Error(t, err)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	require.Equal(t, KindProtocol, terr.Kind)
}

func TestXGroupCreateDuplicateIsAlreadyExists(t *testing.T) {
	tr := newTestTransport(t)
	ctx := context.Background()

	require.NoError(t, tr.XGroupCreate(ctx, "agent.requests", "persona:tester-qa", "$", true))

	err := tr.XGroupCreate(ctx, "agent.requests", "persona:tester-qa", "$", true)
	require.Error(t, err)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	require.Equal(t, KindAlreadyExists, terr.Kind)
}

func TestXReadGroupAndAck(t *testing.T) {
	tr := newTestTransport(t)
	ctx := context.Background()

	require.NoError(t, tr.XGroupCreate(ctx, "agent.events", "coord:wf-1", "0", true))
	_, err := tr.XAdd(ctx, "agent.events", "*", map[string]string{"corr_id": "abc"})
	require.NoError(t, err)

	res, err := tr.XReadGroup(ctx, "coord:wf-1", "consumer-1", []ReadGroupRequest{{Stream: "agent.events", ID: ">"}}, 10, 100*time.Millisecond)
	require.NoError(t, err)
	msgs := res["agent.events"]
	require.Len(t, msgs, 1)
	require.Equal(t, "abc", msgs[0].Fields["corr_id"])

	n, err := tr.XAck(ctx, "agent.events", "coord:wf-1", msgs[0].ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestXReadGroupBlockTimeoutReturnsEmpty(t *testing.T) {
	tr := newTestTransport(t)
	ctx := context.Background()

	require.NoError(t, tr.XGroupCreate(ctx, "agent.events", "coord:wf-2", "$", true))

	res, err := tr.XReadGroup(ctx, "coord:wf-2", "consumer-1", []ReadGroupRequest{{Stream: "agent.events", ID: ">"}}, 10, 50*time.Millisecond)
	require.NoError(t, err)
	require.Empty(t, res["agent.events"])
}

func TestXLenAndDel(t *testing.T) {
	tr := newTestTransport(t)
	ctx := context.Background()

	_, err := tr.XAdd(ctx, "s", "*", map[string]string{"a": "1"})
	require.NoError(t, err)
	n, err := tr.XLen(ctx, "s")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	require.NoError(t, tr.Del(ctx, "s"))
	n, err = tr.XLen(ctx, "s")
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
}
