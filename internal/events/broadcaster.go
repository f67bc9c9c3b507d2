// Package events provides the live-channel broadcaster pushing combined
// status updates to connected clients.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/printerpal/printerpal/internal/metrics"
	"github.com/printerpal/printerpal/internal/status"
)

// Broadcaster manages live-channel subscribers and publishes status updates.
// Delivery is best-effort and independent per subscriber: a slow consumer
// drops updates instead of blocking the rest. Because every update carries
// full state, a dropped update is superseded by the next one.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan status.StatusUpdate]struct{}
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan status.StatusUpdate]struct{}),
	}
}

// Subscribe adds a new subscriber and returns its update channel.
// The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan status.StatusUpdate {
	ch := make(chan status.StatusUpdate, 8)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	metrics.SetSSEConnectionsActive(int64(b.Count()))
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan status.StatusUpdate) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	close(ch)
	b.mu.Unlock()
	metrics.SetSSEConnectionsActive(int64(b.Count()))
}

// Publish sends an update to all subscribers. Non-blocking: drops updates
// for slow consumers.
func (b *Broadcaster) Publish(update status.StatusUpdate) {
	if update.TS == 0 {
		update.TS = time.Now().Unix()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- update:
		default:
			// Drop for slow consumer; next update carries full state
		}
	}
	metrics.RecordSSEUpdate()
}

// Count returns the current number of subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// MarshalUpdate serializes an update to JSON.
func MarshalUpdate(u status.StatusUpdate) ([]byte, error) {
	return json.Marshal(u)
}
