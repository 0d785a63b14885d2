// Package events provides an in-process emitter for item status
// changes, so callers can observe ingestion progress without polling
// and without the pipeline depending on any consumer type.
package events

import (
	"sync"

	"github.com/oak-labs/corpora/internal/domain"
)

// ItemEvent describes one item status change.
type ItemEvent struct {
	BaseID   string
	ItemID   string
	ParentID string
	Status   domain.ItemStatus
	Error    string
}

const subscriberBuffer = 64

// Emitter fans item events out to subscribers. Publishing never blocks:
// a subscriber that falls behind loses events rather than stalling the
// ingestion pipeline.
type Emitter struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan ItemEvent
}

// NewEmitter creates an Emitter.
func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[int]chan ItemEvent)}
}

// Subscribe registers a new subscriber. The returned cancel function
// unregisters it and closes the channel.
func (e *Emitter) Subscribe() (<-chan ItemEvent, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	ch := make(chan ItemEvent, subscriberBuffer)
	e.subs[id] = ch

	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if sub, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber with room in its
// buffer.
func (e *Emitter) Publish(ev ItemEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
