// Package pubsub implements the hand-off queue's best-effort, non-durable
// notification fan-out (spec.md §4.4). It is the many-producer,
// many-subscriber counterpart to the durable queue package: publishing to a
// channel with no subscribers silently drops the message, and each
// subscription keeps its own delivery cursor, matching spec.md §5's
// stated shared-resource policy.
package pubsub

import (
	"sync"

	"github.com/vaultbox/emts/internal/logging"
)

const subscriberBuffer = 16

// Registry is a channel-name-keyed fan-out registry. Zero value is not
// usable; construct with NewRegistry.
type Registry struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan []byte
	nextID int
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]map[int]chan []byte)}
}

// Subscribe registers a new listener on channel and returns a receive-only
// stream plus an unsubscribe function the caller must call on disconnect.
// Messages published before Subscribe is called are never seen.
func (r *Registry) Subscribe(channel string) (<-chan []byte, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.subs[channel] == nil {
		r.subs[channel] = make(map[int]chan []byte)
	}
	id := r.nextID
	r.nextID++

	ch := make(chan []byte, subscriberBuffer)
	r.subs[channel][id] = ch

	unsubscribe := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		listeners, ok := r.subs[channel]
		if !ok {
			return
		}
		if c, ok := listeners[id]; ok {
			close(c)
			delete(listeners, id)
		}
		if len(listeners) == 0 {
			delete(r.subs, channel)
		}
	}
	return ch, unsubscribe
}

// Publish delivers blob to every listener currently subscribed to channel.
// Delivery is best-effort: a slow subscriber whose buffer is full has this
// publish dropped for it rather than blocking the publisher.
func (r *Registry) Publish(channel string, blob []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	listeners := r.subs[channel]
	if len(listeners) == 0 {
		return
	}
	for _, ch := range listeners {
		select {
		case ch <- blob:
		default:
			logging.WarnLog("pubsub: dropping notification on channel %q, subscriber buffer full", channel)
		}
	}
}

// SubscriberCount reports how many listeners are currently registered on
// channel, mainly for tests and diagnostics.
func (r *Registry) SubscriberCount(channel string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[channel])
}
