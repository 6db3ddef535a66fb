package channel

import "sync"

// Buffered is a Channel backed by a buffered Go channel.
type Buffered[T any] struct {
	ch   chan T
	once sync.Once
}

// TrySend queues v if the buffer has room.
func (b *Buffered[T]) TrySend(v T) bool {
	select {
	case b.ch <- v:
		return true
	default:
		return false
	}
}

// SendUntil queues v unless done closes first.
func (b *Buffered[T]) SendUntil(v T, done <-chan struct{}) bool {
	select {
	case b.ch <- v:
		return true
	case <-done:
		return false
	}
}

// Receive returns the receive-only side.
func (b *Buffered[T]) Receive() <-chan T {
	return b.ch
}

// Len returns the number of queued values.
func (b *Buffered[T]) Len() int {
	return len(b.ch)
}

// Cap returns the queue size.
func (b *Buffered[T]) Cap() int {
	return cap(b.ch)
}

// Close closes the receive side. Further calls are no-ops; senders must have
// stopped.
func (b *Buffered[T]) Close() {
	b.once.Do(func() { close(b.ch) })
}
