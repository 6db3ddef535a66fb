// Package channel holds the bounded queues that hand frames and envelopes
// between the goroutines of one connection.
package channel

// Receiver provides read access to a queue.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
	Cap() int
}

// Sender provides write access to a queue. Neither method blocks forever.
type Sender[T any] interface {
	// TrySend delivers v only if that would not block.
	TrySend(T) bool
	// SendUntil blocks until v is delivered or done is closed.
	SendUntil(v T, done <-chan struct{}) bool
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}

// New creates a queue holding up to size values. A size below one gives a
// queue of one.
func New[T any](size int) Channel[T] {
	if size < 1 {
		size = 1
	}
	return &Buffered[T]{ch: make(chan T, size)}
}
