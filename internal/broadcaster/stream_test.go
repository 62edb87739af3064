package broadcaster

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/conductorhq/conductor/internal/convrepo"
	"github.com/conductorhq/conductor/internal/observability"
	"github.com/conductorhq/conductor/pkg/models"
)

func TestStreamReplaysThenFollowsLive(t *testing.T) {
	store := convrepo.NewMemoryRepository()
	b := New(store, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < 3; i++ {
		if _, err := b.Publish(ctx, "agent-1", mkEvent(models.EventMessage)); err != nil {
			t.Fatalf("seed publish %d: %v", i, err)
		}
	}

	out, err := b.Stream(ctx, "agent-1", 1)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	var seqs []uint64
	for i := 0; i < 3; i++ {
		select {
		case se := <-out:
			seqs = append(seqs, se.Event.Sequence)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for replayed event %d", i)
		}
	}
	for i, s := range seqs {
		if s != uint64(i+1) {
			t.Fatalf("expected replayed sequence %d at position %d, got %d", i+1, i, s)
		}
	}

	if _, err := b.Publish(ctx, "agent-1", mkEvent(models.EventMessage)); err != nil {
		t.Fatalf("live publish: %v", err)
	}
	select {
	case se := <-out:
		if se.Event.Sequence != 4 {
			t.Fatalf("expected live event sequence 4, got %d", se.Event.Sequence)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for live event")
	}
}

func TestStreamTerminatesOnDoneEvent(t *testing.T) {
	store := convrepo.NewMemoryRepository()
	b := New(store, nil)
	ctx := context.Background()

	if _, err := b.Publish(ctx, "agent-1", mkEvent(models.EventDone)); err != nil {
		t.Fatalf("publish done: %v", err)
	}

	out, err := b.Stream(ctx, "agent-1", 1)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	select {
	case se, ok := <-out:
		if !ok {
			t.Fatalf("channel closed before delivering done event")
		}
		if se.Event.Type != models.EventDone {
			t.Fatalf("expected done event, got %v", se.Event.Type)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for done event")
	}

	select {
	case _, ok := <-out:
		if ok {
			t.Fatalf("expected channel to close after done event")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for channel close")
	}
}

// Replay ending on an already-persisted "done" event must terminate the
// stream without ever registering a live subscriber.
func TestStreamSkipsSubscribeWhenReplayEndsInDone(t *testing.T) {
	store := convrepo.NewMemoryRepository()
	metrics := observability.NewMetrics()
	b := New(store, nil).WithMetrics(metrics)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := b.Publish(ctx, "agent-1", mkEvent(models.EventMessage)); err != nil {
			t.Fatalf("seed publish %d: %v", i, err)
		}
	}
	if _, err := b.Publish(ctx, "agent-1", mkEvent(models.EventDone)); err != nil {
		t.Fatalf("publish done: %v", err)
	}

	out, err := b.Stream(ctx, "agent-1", 1)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	var last models.ConversationEvent
	for i := 0; i < 5; i++ {
		select {
		case se, ok := <-out:
			if !ok {
				t.Fatalf("channel closed early at event %d", i)
			}
			last = se.Event
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for replayed event %d", i)
		}
	}
	if last.Type != models.EventDone {
		t.Fatalf("expected final replayed event to be done, got %v", last.Type)
	}

	select {
	case _, ok := <-out:
		if ok {
			t.Fatalf("expected channel to close after replay-only done event")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for channel close")
	}

	if got := testutil.ToFloat64(metrics.BroadcasterActiveStreams); got != 0 {
		t.Fatalf("expected no subscriber ever registered, active stream gauge = %v", got)
	}
}

func TestStreamToleratesOverlapBetweenReplayAndLive(t *testing.T) {
	store := convrepo.NewMemoryRepository()
	b := New(store, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := b.Publish(ctx, "agent-1", mkEvent(models.EventMessage)); err != nil {
		t.Fatalf("seed publish: %v", err)
	}

	out, err := b.Stream(ctx, "agent-1", 1)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	seen := make(map[uint64]int)
	select {
	case se := <-out:
		seen[se.Event.Sequence]++
	case <-time.After(time.Second):
		t.Fatalf("timed out on replayed event")
	}

	if _, err := b.Publish(ctx, "agent-1", mkEvent(models.EventMessage)); err != nil {
		t.Fatalf("live publish: %v", err)
	}
	select {
	case se := <-out:
		seen[se.Event.Sequence]++
	case <-time.After(time.Second):
		t.Fatalf("timed out on live event")
	}

	if seen[1] != 1 || seen[2] != 1 {
		t.Fatalf("expected each sequence delivered at least once without being silently dropped, got %v", seen)
	}
}
