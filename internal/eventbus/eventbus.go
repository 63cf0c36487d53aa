// Package eventbus fans fleet events out to in-process subscribers such as
// the metrics collector and the event log stream.
package eventbus

import (
	"sync"
	"sync/atomic"
)

// Event is any value published on an untyped bus.
type Event = any

// EventBus is the untyped bus carried by the coordinator components.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// Option customizes a bus.
type Option func(*options)

type options struct {
	buffer int
}

// WithBuffer sets the per-subscriber channel capacity.
func WithBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.buffer = n
		}
	}
}

// TypedBus is a publish/subscribe bus for events of type T. Publishing never
// blocks: a subscriber whose buffer is full misses the event, which is
// counted in Dropped.
type TypedBus[T any] struct {
	buffer  int
	dropped atomic.Uint64

	mu     sync.RWMutex
	subs   []chan T
	closed bool
}

// NewTyped creates a TypedBus.
func NewTyped[T any](opts ...Option) *TypedBus[T] {
	o := options{buffer: DefaultBuffer}
	for _, fn := range opts {
		fn(&o)
	}
	return &TypedBus[T]{buffer: o.buffer}
}

// Bus is the untyped EventBus implementation.
type Bus = TypedBus[Event]

// New creates an untyped Bus.
func New(opts ...Option) *Bus { return NewTyped[Event](opts...) }

var _ EventBus = (*Bus)(nil)

// Publish hands e to every subscriber that has room for it.
func (b *TypedBus[T]) Publish(e T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe registers a subscriber. After Close the returned channel is
// already closed.
func (b *TypedBus[T]) Subscribe() <-chan T {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Unsubscribe removes the subscriber and closes its channel. Unknown or
// already closed channels are ignored.
func (b *TypedBus[T]) Unsubscribe(sub <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Close closes every subscriber channel. Later publishes are discarded.
func (b *TypedBus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}

// Subscribers returns the number of live subscribers.
func (b *TypedBus[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was
// full.
func (b *TypedBus[T]) Dropped() uint64 { return b.dropped.Load() }
