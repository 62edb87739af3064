package broadcaster

import "github.com/conductorhq/conductor/pkg/models"

// ring is a fixed-capacity circular buffer of the most recent K events for
// one agent, used to serve replay requests without a durable store round
// trip (spec §4.7: "keep the last K=1000 events in memory per agent").
type ring struct {
	buf   []models.ConversationEvent
	cap   int
	start int // index of the oldest element
	size  int
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = 1000
	}
	return &ring{buf: make([]models.ConversationEvent, capacity), cap: capacity}
}

func (r *ring) push(e models.ConversationEvent) {
	idx := (r.start + r.size) % r.cap
	r.buf[idx] = e
	if r.size < r.cap {
		r.size++
	} else {
		r.start = (r.start + 1) % r.cap
	}
}

// since returns buffered events with Sequence >= fromSequence, oldest first.
func (r *ring) since(fromSequence uint64) []models.ConversationEvent {
	out := make([]models.ConversationEvent, 0, r.size)
	for i := 0; i < r.size; i++ {
		e := r.buf[(r.start+i)%r.cap]
		if e.Sequence >= fromSequence {
			out = append(out, e)
		}
	}
	return out
}
