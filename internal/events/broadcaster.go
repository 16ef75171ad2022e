// Package events fans out domain events to in-process subscribers.
package events

import (
	"sync"

	"github.com/vadiminshakov/quoter/internal/domain"
)

// Broadcaster fans out events to all subscribers via buffered channels.
type Broadcaster[T any] struct {
	mu     sync.RWMutex
	subs   map[chan T]struct{}
	buffer int
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster[T any](buffer int) *Broadcaster[T] {
	if buffer < 1 {
		buffer = 64
	}
	return &Broadcaster[T]{
		subs:   make(map[chan T]struct{}),
		buffer: buffer,
	}
}

// Publish sends the event to all subscribers, dropping it for readers whose buffer is full.
// It returns the number of subscribers that missed the event.
func (b *Broadcaster[T]) Publish(ev T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	dropped := 0
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			dropped++
		}
	}
	return dropped
}

// Subscribe returns a channel that receives events until Unsubscribe is called.
func (b *Broadcaster[T]) Subscribe() chan T {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *Broadcaster[T]) Unsubscribe(ch chan T) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of active subscribers.
func (b *Broadcaster[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// OrderBroadcaster delivers order acknowledgements from venue gateways.
type OrderBroadcaster = Broadcaster[domain.OrderCreatedEvent]

// NewOrderBroadcaster creates the acknowledgement channel.
func NewOrderBroadcaster() *OrderBroadcaster {
	return NewBroadcaster[domain.OrderCreatedEvent](256)
}

// DecisionBroadcaster delivers quote decisions to live listeners such as the SSE stream.
type DecisionBroadcaster = Broadcaster[domain.QuoteDecision]

// NewDecisionBroadcaster creates the decision channel.
func NewDecisionBroadcaster() *DecisionBroadcaster {
	return NewBroadcaster[domain.QuoteDecision](64)
}
