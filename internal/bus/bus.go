// Package bus implements the daemon's inter-component message passing
// (spec.md C7): typed, single-consumer channels carrying monotonically
// epoch-tagged messages from config to protocols, protocols to the RIB,
// the RIB to the FIB shim, and the FIB shim's kernel notifications back
// to the RIB. It generalizes the teacher's queue.Queue (a mutex-guarded
// slice of byte slices) into typed Go channels, since every payload here
// is already a typed Go value rather than wire bytes.
package bus

import "sync/atomic"

// Epoch is a monotonically increasing counter kept per channel and
// shared by all of that channel's senders, so a consumer can detect gaps
// across the channel as a whole; gaps are not tracked per sender. There
// should never be any in normal operation: each channel has a fixed
// buffer depth and Send blocks while it is full rather than dropping.
type Epoch uint64

// Envelope wraps a payload with the sender's identity and epoch.
type Envelope[T any] struct {
	Sender string
	Epoch  Epoch
	Body   T
}

// Channel is a single-consumer, any-producer typed channel. Producers
// call Send; the owning task ranges over C. Close must only be called by
// the owning consumer during shutdown, after which Send becomes a no-op.
type Channel[T any] struct {
	C      chan Envelope[T]
	epoch  atomic.Uint64
	closed atomic.Bool
}

// NewChannel creates a bus channel with the given buffer depth. Depth 0
// makes it synchronous (rendezvous); most producers here run on their own
// goroutine and can tolerate a small buffer to avoid lockstep stalls.
func NewChannel[T any](depth int) *Channel[T] {
	return &Channel[T]{C: make(chan Envelope[T], depth)}
}

// Send delivers body tagged with sender and the channel's next epoch
// (one counter for all senders). It is safe to call from multiple
// producer goroutines.
func (c *Channel[T]) Send(sender string, body T) {
	if c.closed.Load() {
		return
	}
	e := Epoch(c.epoch.Add(1))
	c.C <- Envelope[T]{Sender: sender, Epoch: e, Body: body}
}

// Close marks the channel closed and closes the underlying Go channel.
// Only the consuming task should call this, during its own shutdown.
func (c *Channel[T]) Close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.C)
	}
}

// Drain reads and discards any buffered envelopes without blocking,
// used during task shutdown per spec.md §5 ("Task shutdown drains
// inbound channels, closes sockets, then exits").
func (c *Channel[T]) Drain() {
	for {
		select {
		case _, ok := <-c.C:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
