package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBroadcaster() *Broadcaster {
	return NewBroadcaster(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func TestEventMarshalFlattensPayload(t *testing.T) {
	ev := Event{
		Type: TypeRevocationCreated,
		Payload: map[string]any{
			"userId": "u1",
			"orgId":  "org1",
		},
	}

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(raw, &frame))
	assert.Equal(t, "revocation_created", frame["type"])
	assert.Equal(t, "u1", frame["userId"])
	assert.Equal(t, "org1", frame["orgId"])
}

func TestBroadcastFanOut(t *testing.T) {
	b := testBroadcaster()
	defer b.Close()

	subs := []*Subscription{b.Register(), b.Register(), b.Register()}
	require.Equal(t, 3, b.SubscriberCount())

	b.Publish(context.Background(), Event{Type: TypeRevocationCreated, Payload: map[string]any{"userId": "u1"}})

	for _, sub := range subs {
		frame := <-sub.C

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(frame, &decoded))
		assert.Equal(t, "revocation_created", decoded["type"])

		// Exactly once: no second frame is waiting.
		select {
		case extra := <-sub.C:
			t.Fatalf("unexpected extra frame: %s", extra)
		default:
		}
	}
}

func TestDisconnectedSubscriberReceivesNothing(t *testing.T) {
	b := testBroadcaster()
	defer b.Close()

	stay := b.Register()
	leave := b.Register()
	leave.Close()

	assert.Equal(t, 1, b.SubscriberCount())

	b.Publish(context.Background(), Event{Type: TypeAnalysisCompleted})

	frame, ok := <-stay.C
	require.True(t, ok)
	assert.Contains(t, string(frame), "ai_analysis_completed")

	// The closed subscription's channel is closed and empty.
	_, ok = <-leave.C
	assert.False(t, ok)
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	b := testBroadcaster()
	defer b.Close()

	slow := b.Register()
	fast := b.Register()

	// Publish more frames than a buffer holds without draining the slow
	// subscriber. Publish must return every time instead of blocking, and the
	// fast subscriber keeps receiving.
	for i := 0; i < subscriberBuffer+5; i++ {
		b.Publish(context.Background(), Event{Type: TypeRevocationCreated})
		select {
		case <-fast.C:
		default:
			t.Fatal("fast subscriber missed a frame")
		}
	}

	// The slow subscriber lost the overflow but kept a full buffer.
	assert.Equal(t, subscriberBuffer, countBuffered(slow))
}

func countBuffered(sub *Subscription) int {
	n := 0
	for {
		select {
		case _, ok := <-sub.C:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

func TestCloseUnregistersEverything(t *testing.T) {
	b := testBroadcaster()
	sub := b.Register()

	b.Close()
	assert.Equal(t, 0, b.SubscriberCount())

	_, ok := <-sub.C
	assert.False(t, ok)

	// Registration after close yields an already-closed subscription.
	late := b.Register()
	_, ok = <-late.C
	assert.False(t, ok)
}
