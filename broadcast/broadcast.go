// Package broadcast provides a publish/subscribe channel with latest-value
// semantics.
//
// Each subscriber holds at most one undelivered value. A publish replaces
// the pending value rather than queueing behind it, so slow subscribers
// never block publishers and always observe the newest state, in publish
// order, possibly skipping intermediate states.
package broadcast

import (
	"context"
	"errors"
	"sync"

	"github.com/oklog/ulid/v2"
)

var ErrClosed = errors.New("broadcast: channel closed")

// Channel carries values of type T to every current subscriber.
type Channel[T any] struct {
	mu      sync.Mutex
	current T
	seq     uint64
	subs    map[ulid.ULID]*Subscription[T]
	closed  bool
}

// New creates a channel whose current value is initial.
func New[T any](initial T) *Channel[T] {
	return &Channel[T]{
		current: initial,
		subs:    make(map[ulid.ULID]*Subscription[T]),
	}
}

// Publish makes v the current value and offers it to all subscribers.
func (c *Channel[T]) Publish(v T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.current = v
	c.seq++
	for _, s := range c.subs {
		s.offer(v, c.seq)
	}
	return nil
}

// Current returns the latest published value and its sequence number.
func (c *Channel[T]) Current() (T, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.seq
}

// Subscribe registers a subscriber. The returned subscription's Seed is the
// current value at the moment of subscribing; every later publish is
// observable through Next.
func (c *Channel[T]) Subscribe() (*Subscription[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	s := &Subscription[T]{
		id:      ulid.Make(),
		ch:      c,
		seed:    c.current,
		seen:    c.seq,
		pending: c.seq,
		notify:  make(chan struct{}, 1),
	}
	c.subs[s.id] = s
	return s, nil
}

// Len returns the number of live subscribers.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Close ends the channel. Subscribers receive any pending value and then
// ErrClosed. Close is idempotent.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	for _, s := range c.subs {
		s.close()
	}
	c.subs = nil
}

func (c *Channel[T]) remove(id ulid.ULID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, id)
}

// Subscription is one subscriber's view of a Channel.
type Subscription[T any] struct {
	id     ulid.ULID
	ch     *Channel[T]
	seed   T
	notify chan struct{}

	mu      sync.Mutex
	latest  T
	pending uint64
	seen    uint64
	closed  bool
}

func (s *Subscription[T]) ID() string {
	return s.id.String()
}

// Seed is the channel's value when the subscription was created.
func (s *Subscription[T]) Seed() T {
	return s.seed
}

func (s *Subscription[T]) offer(v T, seq uint64) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.latest = v
	s.pending = seq
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until a value newer than the last one returned is available,
// the channel closes (ErrClosed), the subscription is cancelled (ErrClosed)
// or ctx is done.
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		s.mu.Lock()
		if s.pending > s.seen {
			s.seen = s.pending
			v := s.latest
			s.mu.Unlock()
			return v, nil
		}
		if s.closed {
			s.mu.Unlock()
			return zero, ErrClosed
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Cancel detaches the subscription from its channel. Safe to call more than
// once.
func (s *Subscription[T]) Cancel() {
	s.ch.remove(s.id)
	s.close()
}
