package events

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) *Embedded {
	t.Helper()
	srv, err := StartEmbedded("127.0.0.1", -1)
	require.NoError(t, err)
	t.Cleanup(srv.Shutdown)
	return srv
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "owera.runs.r1.task.completed", Subject("owera", "r1", TaskCompleted))
	assert.Equal(t, "owera.runs.r1.>", RunWildcard("owera", "r1"))

	typ, ok := TypeFromSubject("owera", "owera.runs.r1.task.completed")
	require.True(t, ok)
	assert.Equal(t, TaskCompleted, typ)

	_, ok = TypeFromSubject("owera", "other.runs.r1.run.started")
	assert.False(t, ok)
	_, ok = TypeFromSubject("owera", "owera.runs.r1")
	assert.False(t, ok)
}

func TestNATSPublisher_RoundTrip(t *testing.T) {
	srv := startServer(t)
	pub, err := Connect(srv.URL(), "test", nil)
	require.NoError(t, err)
	defer pub.Close()

	ch := make(chan *nats.Msg, 4)
	sub, err := pub.Subscribe("r1", ch)
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()
	require.NoError(t, pub.Conn().Flush())

	ctx := context.Background()
	require.NoError(t, pub.Publish(ctx, Event{Type: TaskCompleted, RunID: "r1", Feature: "login", Cycle: 2}))
	require.NoError(t, pub.Publish(ctx, Event{Type: RunStarted, RunID: "other"}))
	require.NoError(t, pub.Publish(ctx, Event{Type: RunFinished, RunID: "r1", Outcome: "complete"}))

	var got []Event
	for len(got) < 2 {
		select {
		case msg := <-ch:
			e, err := Decode(msg)
			require.NoError(t, err)
			typ, ok := TypeFromSubject("test", msg.Subject)
			require.True(t, ok)
			assert.Equal(t, e.Type, typ)
			got = append(got, e)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}

	assert.Equal(t, TaskCompleted, got[0].Type)
	assert.Equal(t, "login", got[0].Feature)
	assert.Equal(t, 2, got[0].Cycle)
	assert.False(t, got[0].Time.IsZero())
	assert.Equal(t, RunFinished, got[1].Type)
	assert.Equal(t, "complete", got[1].Outcome)
}

func TestNATSPublisher_Validation(t *testing.T) {
	srv := startServer(t)
	pub, err := Connect(srv.URL(), "", nil)
	require.NoError(t, err)
	defer pub.Close()
	assert.Equal(t, DefaultPrefix, pub.Prefix())

	assert.Error(t, pub.Publish(context.Background(), Event{Type: RunStarted}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pub.Publish(ctx, Event{Type: RunStarted, RunID: "r"}), context.Canceled)
}

func TestNATSPublisher_CloseLeavesSharedConnOpen(t *testing.T) {
	srv := startServer(t)
	nc, err := nats.Connect(srv.URL())
	require.NoError(t, err)
	defer nc.Close()

	pub := NewNATSPublisher(nc, "owera", nil)
	require.NoError(t, pub.Close())
	assert.False(t, nc.IsClosed())
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()
	require.NoError(t, r.Publish(ctx, Event{Type: RunStarted, RunID: "r"}))
	require.NoError(t, r.Publish(ctx, Event{Type: TaskCreated, RunID: "r"}))
	require.NoError(t, r.Publish(ctx, Event{Type: TaskCreated, RunID: "r"}))

	assert.Len(t, r.Events(), 3)
	assert.Len(t, r.OfType(TaskCreated), 2)
	assert.Empty(t, r.OfType(IssueRaised))
	assert.NoError(t, NoOp{}.Publish(ctx, Event{}))
}
