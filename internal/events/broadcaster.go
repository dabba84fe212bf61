// internal/events/broadcaster.go

// Package events carries run progress out of the engine as a stream of
// timestamped human-readable events. Delivery is best effort: a slow
// subscriber loses events instead of stalling the fill loop, and zero
// subscribers is not an error.
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Level tags the severity of a progress event.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Event is one progress update from a fill run.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	URL       string    `json:"url,omitempty"`
	Field     string    `json:"field,omitempty"`
}

// Broadcaster fans events out to any number of subscribers.
type Broadcaster struct {
	logger     *zap.Logger
	mu         sync.Mutex
	subs       map[chan Event]struct{}
	bufferSize int
	closed     bool
}

// NewBroadcaster creates a broadcaster whose subscriber channels buffer
// up to bufferSize events each.
func NewBroadcaster(logger *zap.Logger, bufferSize int) *Broadcaster {
	if bufferSize < 1 {
		bufferSize = 16
	}
	return &Broadcaster{
		logger:     logger.Named("events"),
		subs:       make(map[chan Event]struct{}),
		bufferSize: bufferSize,
	}
}

// Subscribe registers a new listener. The returned cancel func removes
// the subscription and closes its channel; it is safe to call twice.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Publish stamps and delivers the event to every subscriber. Full
// subscriber buffers drop the event. A nil broadcaster publishes to
// nobody, so components can treat the progress channel as optional.
func (b *Broadcaster) Publish(ev Event) {
	if b == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Debug("Dropping event for slow subscriber",
				zap.String("message", ev.Message))
		}
	}
}

// Info publishes an info-level event.
func (b *Broadcaster) Info(msg, url, field string) {
	b.Publish(Event{Level: LevelInfo, Message: msg, URL: url, Field: field})
}

// Error publishes an error-level event.
func (b *Broadcaster) Error(msg, url, field string) {
	b.Publish(Event{Level: LevelError, Message: msg, URL: url, Field: field})
}

// Close closes every subscriber channel. Publish becomes a no-op.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	b.subs = make(map[chan Event]struct{})
}
