package broadcaster

import (
	"context"
	"time"

	"github.com/conductorhq/conductor/pkg/models"
)

// KeepAliveInterval is how often the stream emits a synthetic tick while
// idle, so intermediary proxies and clients don't time out the connection
// (spec §4.8: "30s keep-alive timeout ticks").
const KeepAliveInterval = 30 * time.Second

// StreamEvent is one item yielded by Stream: either a real event or a
// keep-alive tick (Event is the zero value in that case).
type StreamEvent struct {
	Event     models.ConversationEvent
	KeepAlive bool
}

// Stream replays persisted events from fromSequence and then follows live
// events for agentID, sending the combined sequence on the returned
// channel until ctx is cancelled or a "done" event is delivered. The
// channel is closed when the stream ends. Because delivery is at-least-once,
// callers must tolerate duplicate or overlapping sequence numbers between
// the replay and live phases (spec §4.8, §5).
func (b *Broadcaster) Stream(ctx context.Context, agentID string, fromSequence uint64) (<-chan StreamEvent, error) {
	out := make(chan StreamEvent)

	replayed, err := b.store.Replay(ctx, agentID, fromSequence)
	if err != nil {
		return nil, err
	}

	// If replay already ends on a "done" event, the conversation is over and
	// there is nothing left to follow live: skip registering a subscriber
	// entirely rather than opening and immediately closing one (spec §4.8).
	replayEndsInDone := len(replayed) > 0 && replayed[len(replayed)-1].Type == models.EventDone

	var sub *Subscriber
	if !replayEndsInDone {
		sub = b.Subscribe(agentID)
	}

	go func() {
		defer close(out)
		if sub != nil {
			defer b.Unsubscribe(agentID, sub.ID)
		}

		for _, e := range replayed {
			select {
			case out <- StreamEvent{Event: e}:
			case <-ctx.Done():
				return
			}
			if e.Type == models.EventDone {
				return
			}
		}

		if sub == nil {
			return
		}

		ticker := time.NewTicker(KeepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case out <- StreamEvent{KeepAlive: true}:
				case <-ctx.Done():
					return
				}
			case e, ok := <-sub.queue:
				if !ok {
					return
				}
				select {
				case out <- StreamEvent{Event: e}:
				case <-ctx.Done():
					return
				}
				ticker.Reset(KeepAliveInterval)
				if e.Type == models.EventDone {
					return
				}
				if !sub.Active() {
					return
				}
			}
		}
	}()

	return out, nil
}
