// Package observer projects crud operations and document watches onto a
// single observable state, for presentation layers that render one
// document at a time.
package observer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/stevemurr/reactive-docstore/broadcast"
	"github.com/stevemurr/reactive-docstore/crud"
	"github.com/stevemurr/reactive-docstore/jsonv"
	"github.com/stevemurr/reactive-docstore/logging"
)

// State is the published projection. Doc is nil when the tracked document
// is absent or has not been loaded.
type State[T any] struct {
	DocID      string
	Doc        *T
	Err        *crud.Error
	Loading    bool
	IsWatching bool
}

type watch struct {
	cancel context.CancelFunc
}

// Controller publishes one State for a collection. With several watches
// running, the state follows whichever watched document changed last; use
// one controller per document for independent views.
type Controller[T any] struct {
	id     string
	facade *crud.Facade[T]
	log    logging.Logger

	root   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State[T]
	inflight int
	watches  map[string]*watch
	disposed bool
	bus      *broadcast.Channel[State[T]]
}

type Option func(*options)

type options struct {
	log logging.Logger
}

func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.log = l }
}

func New[T any](facade *crud.Facade[T], opts ...Option) *Controller[T] {
	o := options{log: logging.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	root, cancel := context.WithCancel(context.Background())
	return &Controller[T]{
		id:      uuid.NewString(),
		facade:  facade,
		log:     o.log,
		root:    root,
		cancel:  cancel,
		watches: make(map[string]*watch),
		bus:     broadcast.New(State[T]{}),
	}
}

// ID identifies the controller in logs.
func (c *Controller[T]) ID() string {
	return c.id
}

// State returns the current projection.
func (c *Controller[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe follows the projection. The subscription ends with
// broadcast.ErrClosed once the controller is disposed.
func (c *Controller[T]) Subscribe() (*broadcast.Subscription[State[T]], error) {
	return c.bus.Subscribe()
}

// publishLocked recomputes the derived flags and publishes. c.mu is held.
func (c *Controller[T]) publishLocked() {
	c.state.Loading = c.inflight > 0
	c.state.IsWatching = c.watches[c.state.DocID] != nil
	if err := c.bus.Publish(c.state); err != nil {
		c.log.Debug("controller state dropped", "controller", c.id, "err", err)
	}
}

func (c *Controller[T]) disposedError(op, id string) *crud.Error {
	return &crud.Error{
		Kind:    crud.Disposed,
		Message: "controller disposed",
		Context: crud.ErrorContext{Collection: c.facade.Collection(), DocID: id, Op: op},
	}
}

func (c *Controller[T]) begin(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return false
	}
	c.inflight++
	c.state.DocID = id
	c.publishLocked()
	return true
}

// oneShot brackets call with the loading flag and applies its outcome.
func oneShot[T, R any](c *Controller[T], op, id string, call func() crud.Result[R], apply func(*State[T], R)) crud.Result[R] {
	if !c.begin(id) {
		return crud.Err[R](c.disposedError(op, id))
	}
	res := call()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	if c.disposed {
		return res
	}
	c.state.DocID = id
	if v, ok := res.Value(); ok {
		c.state.Err = nil
		apply(&c.state, v)
	} else {
		c.state.Err = res.Err()
	}
	c.publishLocked()
	return res
}

func setDoc[T any](s *State[T], v T) {
	s.Doc = &v
}

func (c *Controller[T]) Read(ctx context.Context, id string) crud.Result[T] {
	return oneShot(c, "read", id, func() crud.Result[T] {
		return c.facade.Read(ctx, id)
	}, setDoc[T])
}

func (c *Controller[T]) Write(ctx context.Context, id string, entity T) crud.Result[T] {
	return oneShot(c, "write", id, func() crud.Result[T] {
		return c.facade.Write(ctx, id, entity)
	}, setDoc[T])
}

func (c *Controller[T]) Delete(ctx context.Context, id string) crud.Result[struct{}] {
	return oneShot(c, "delete", id, func() crud.Result[struct{}] {
		return c.facade.Delete(ctx, id)
	}, func(s *State[T], _ struct{}) { s.Doc = nil })
}

// Exists leaves Doc as it was.
func (c *Controller[T]) Exists(ctx context.Context, id string) crud.Result[bool] {
	return oneShot(c, "exists", id, func() crud.Result[bool] {
		return c.facade.Exists(ctx, id)
	}, func(*State[T], bool) {})
}

func (c *Controller[T]) Mutate(ctx context.Context, id string, transform func(T) T) crud.Result[T] {
	return oneShot(c, "mutate", id, func() crud.Result[T] {
		return c.facade.Mutate(ctx, id, transform)
	}, setDoc[T])
}

func (c *Controller[T]) Patch(ctx context.Context, id string, partial jsonv.Value) crud.Result[T] {
	return oneShot(c, "patch", id, func() crud.Result[T] {
		return c.facade.Patch(ctx, id, partial)
	}, setDoc[T])
}

func (c *Controller[T]) Ensure(ctx context.Context, id string, create func() T, update func(T) T) crud.Result[T] {
	return oneShot(c, "ensure", id, func() crud.Result[T] {
		return c.facade.Ensure(ctx, id, create, update)
	}, setDoc[T])
}

// StartWatch follows id until StopWatch, StopAllWatches or Dispose. A watch
// already running for id is stopped first. A watch that cannot attach is
// reported both in the state and as the returned error.
//
// The attach happens under mu, so a watch in c.watches is always attached
// and whoever removes it detaches it exactly once.
func (c *Controller[T]) StartWatch(id string) *crud.Error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return c.disposedError("start_watch", id)
	}
	prev := c.watches[id]
	delete(c.watches, id)

	ctx, cancel := context.WithCancel(c.root)
	events, err := c.facade.Watch(ctx, id)
	if err != nil {
		cancel()
		var e *crud.Error
		if !errors.As(err, &e) {
			e = &crud.Error{Kind: crud.KindOf(err), Message: err.Error()}
		}
		c.state.DocID = id
		c.state.Err = e
		c.publishLocked()
		c.mu.Unlock()
		if prev != nil {
			c.stop(id, prev)
		}
		c.log.Warn("watch failed", "controller", c.id, "collection", c.facade.Collection(), "doc", id, "err", err)
		return e
	}
	w := &watch{cancel: cancel}
	c.watches[id] = w
	c.state.DocID = id
	c.publishLocked()
	c.mu.Unlock()

	if prev != nil {
		c.stop(id, prev)
	}
	c.log.Debug("watch started", "controller", c.id, "collection", c.facade.Collection(), "doc", id)
	go c.follow(id, w, events)
	return nil
}

func (c *Controller[T]) follow(id string, w *watch, events <-chan crud.Result[T]) {
	for res := range events {
		c.mu.Lock()
		if c.watches[id] != w {
			c.mu.Unlock()
			continue
		}
		c.state.DocID = id
		if v, ok := res.Value(); ok {
			c.state.Doc = &v
			c.state.Err = nil
		} else if res.Kind() == crud.NotFound {
			c.state.Doc = nil
			c.state.Err = nil
		} else {
			c.state.Err = res.Err()
		}
		c.publishLocked()
		c.mu.Unlock()
	}

	// The stream ended on its own, e.g. the store was disposed.
	c.mu.Lock()
	current := c.watches[id] == w
	if current {
		delete(c.watches, id)
		if !c.disposed {
			c.publishLocked()
		}
	}
	c.mu.Unlock()
	if current {
		c.stop(id, w)
	}
}

func (c *Controller[T]) stop(id string, w *watch) {
	w.cancel()
	c.facade.Detach(id)
	c.log.Debug("watch stopped", "controller", c.id, "collection", c.facade.Collection(), "doc", id)
}

// StopWatch cancels the watch on id and detaches it. Stopping an id that is
// not watched does nothing.
func (c *Controller[T]) StopWatch(id string) {
	c.mu.Lock()
	w := c.watches[id]
	if w == nil {
		c.mu.Unlock()
		return
	}
	delete(c.watches, id)
	if !c.disposed {
		c.publishLocked()
	}
	c.mu.Unlock()
	c.stop(id, w)
}

func (c *Controller[T]) StopAllWatches() {
	c.mu.Lock()
	stopped := c.watches
	c.watches = make(map[string]*watch)
	if !c.disposed {
		c.publishLocked()
	}
	c.mu.Unlock()
	for id, w := range stopped {
		c.stop(id, w)
	}
}

// Watching lists the ids with an active watch.
func (c *Controller[T]) Watching() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.watches))
	for id := range c.watches {
		ids = append(ids, id)
	}
	return ids
}

// Dispose stops every watch and closes the state channel. The store is left
// alone since other controllers may share it. Dispose is idempotent.
func (c *Controller[T]) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	stopped := c.watches
	c.watches = make(map[string]*watch)
	c.mu.Unlock()

	for id, w := range stopped {
		c.stop(id, w)
	}
	c.cancel()
	c.bus.Close()
	c.log.Debug("controller disposed", "controller", c.id, "watches", len(stopped))
}

func (c *Controller[T]) String() string {
	return fmt.Sprintf("observer.Controller(%s, %s)", c.facade.Collection(), c.id)
}
