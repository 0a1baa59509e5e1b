// Package keyqueue serializes work per key.
//
// Calls for the same key run one at a time in arrival order; calls for
// different keys run concurrently. It is the way to make read-modify-write
// sequences on one document atomic with respect to each other.
package keyqueue

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("keyqueue: queue closed")

type slot struct {
	lock chan struct{}
	refs int
}

type Queue struct {
	mu    sync.Mutex
	slots map[string]*slot
	done  chan struct{}
	once  sync.Once
}

func New() *Queue {
	return &Queue{
		slots: make(map[string]*slot),
		done:  make(chan struct{}),
	}
}

// Do runs fn once every earlier call for key has finished. It returns
// ctx.Err() if ctx ends while waiting and ErrClosed once the queue is
// closed; fn is not run in either case. Otherwise it returns fn's error.
func (q *Queue) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	s, err := q.acquire(key)
	if err != nil {
		return err
	}
	defer q.release(key, s)

	select {
	case s.lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrClosed
	}
	defer func() { <-s.lock }()

	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	return fn(ctx)
}

func (q *Queue) acquire(key string) (*slot, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.slots == nil {
		return nil, ErrClosed
	}
	s, ok := q.slots[key]
	if !ok {
		s = &slot{lock: make(chan struct{}, 1)}
		q.slots[key] = s
	}
	s.refs++
	return s, nil
}

// release drops a reference; the slot is reclaimed when nobody holds or
// waits on it.
func (q *Queue) release(key string, s *slot) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s.refs--
	if s.refs == 0 && q.slots != nil {
		delete(q.slots, key)
	}
}

// Len is the number of keys with a running or waiting call.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.slots)
}

// Close wakes every waiter with ErrClosed. Running calls finish normally.
func (q *Queue) Close() error {
	q.once.Do(func() {
		q.mu.Lock()
		q.slots = nil
		q.mu.Unlock()
		close(q.done)
	})
	return nil
}
