package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SubscriberBuffer is the per-subscriber channel capacity.
const SubscriberBuffer = 32

// Broadcaster fans run events out to subscribers.
// Slow subscribers lose events instead of blocking the publisher.
type Broadcaster struct {
	subscribers map[chan Event]string // channel -> run ID filter
	mu          sync.RWMutex
	log         zerolog.Logger
}

// NewBroadcaster creates a new event broadcaster.
func NewBroadcaster(log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]string),
		log:         log.With().Str("component", "event_broadcaster").Logger(),
	}
}

// Subscribe adds a subscriber for runID. An empty runID receives every run.
func (b *Broadcaster) Subscribe(runID string) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, SubscriberBuffer)
	b.subscribers[ch] = runID

	b.log.Debug().
		Str("run_id", runID).
		Int("total_subscribers", len(b.subscribers)).
		Msg("New subscriber added")

	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	runID, ok := b.subscribers[ch]
	if !ok {
		return
	}
	delete(b.subscribers, ch)
	close(ch)

	b.log.Debug().
		Str("run_id", runID).
		Int("total_subscribers", len(b.subscribers)).
		Msg("Subscriber removed")
}

// Subscribers returns the number of active subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Publish sends event to every subscriber whose filter matches its run.
func (b *Broadcaster) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch, runID := range b.subscribers {
		if runID != "" && runID != event.RunID {
			continue
		}
		select {
		case ch <- event:
		default:
			b.log.Warn().
				Str("run_id", event.RunID).
				Str("event_type", string(event.Type)).
				Msg("Subscriber channel full, event dropped")
		}
	}
}
