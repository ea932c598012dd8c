package events

import (
	"context"
	"errors"
	"sync/atomic"
)

// DefaultBufferSize is the capacity of the bus channel.
const DefaultBufferSize = 256

// ErrBusClosed is returned by Send once the sender's context is done.
// Producers treat it as a normal shutdown signal.
var ErrBusClosed = errors.New("event bus closed")

// Bus is a bounded multi-producer, single-consumer event channel. Senders
// block while the buffer is full.
type Bus struct {
	ch      chan Event
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewBus returns a bus with the given capacity (DefaultBufferSize if <= 0).
func NewBus(size int) *Bus {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Bus{ch: make(chan Event, size)}
}

// Send delivers ev, blocking while the buffer is full. It returns
// ErrBusClosed if ctx is done first.
func (b *Bus) Send(ctx context.Context, ev Event) error {
	if ctx.Err() != nil {
		b.dropped.Add(1)
		return ErrBusClosed
	}
	select {
	case b.ch <- ev:
		b.sent.Add(1)
		return nil
	case <-ctx.Done():
		b.dropped.Add(1)
		return ErrBusClosed
	}
}

// Events returns the receive side. Only the reconciliation loop reads it.
func (b *Bus) Events() <-chan Event { return b.ch }

// Len returns the number of queued events.
func (b *Bus) Len() int { return len(b.ch) }

// Stats returns the number of delivered and abandoned sends.
func (b *Bus) Stats() (sent, dropped uint64) {
	return b.sent.Load(), b.dropped.Load()
}
