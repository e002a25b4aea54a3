// Package events provides a simple publish-subscribe bus carrying client
// directory snapshots to SSE subscribers.
package events

import (
	"sync"

	"github.com/petitstrawberry/prism/internal/models"
)

const subBufferSize = 8

// Bus is a non-blocking publish-subscribe event bus.
// Subscribers that are slow to consume events will have events dropped
// rather than blocking publishers — the publisher here is the engine's
// notification path, which must never stall.
type Bus struct {
	mu   sync.Mutex
	subs map[string]chan models.Directory
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]chan models.Directory),
	}
}

// Subscribe creates a new subscription with the given ID.
// The returned channel receives directory snapshots.
// Call Unsubscribe when done to clean up.
func (b *Bus) Subscribe(id string) <-chan models.Directory {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan models.Directory, subBufferSize)
	b.subs[id] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish sends a directory snapshot to all subscribers.
// If a subscriber's channel is full, the event is dropped (non-blocking).
func (b *Bus) Publish(dir models.Directory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- dir:
		default:
			// Drop if subscriber is slow
		}
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
