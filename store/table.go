package store

import (
	"sync"

	"github.com/stevemurr/reactive-docstore/broadcast"
	"github.com/stevemurr/reactive-docstore/jsonv"
	"github.com/stevemurr/reactive-docstore/snapshot"
)

// collectionTable is one collection: its documents in the backend, the
// broadcast of its whole contents, and its watch counts. mu guards all
// three, so a mutation and its broadcast are atomic with respect to other
// writers and to registry changes.
type collectionTable struct {
	name    string
	backend Backend

	mu       sync.RWMutex
	bus      *broadcast.Channel[snapshot.Contents]
	watchers map[string]int
	closed   bool
}

func newCollectionTable(name string, backend Backend, docs map[string]jsonv.Value) *collectionTable {
	return &collectionTable{
		name:     name,
		backend:  backend,
		bus:      broadcast.New(snapshot.Contents(docs)),
		watchers: make(map[string]int),
	}
}

func (t *collectionTable) get(docID string) (jsonv.Value, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return jsonv.Value{}, false, ErrDisposed
	}
	return t.backend.Get(t.name, docID)
}

func (t *collectionTable) all() (snapshot.Contents, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return nil, ErrDisposed
	}
	docs, err := t.backend.GetAll(t.name)
	return snapshot.Contents(docs), err
}

// put stores doc and broadcasts; it returns what the backend now holds.
func (t *collectionTable) put(docID string, doc jsonv.Value) (jsonv.Value, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return jsonv.Value{}, ErrDisposed
	}
	if err := t.backend.Put(t.name, docID, doc); err != nil {
		return jsonv.Value{}, err
	}
	docs, err := t.backend.GetAll(t.name)
	if err != nil {
		return jsonv.Value{}, err
	}
	_ = t.bus.Publish(snapshot.Contents(docs))
	return docs[docID], nil
}

func (t *collectionTable) remove(docID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrDisposed
	}
	existed, err := t.backend.Delete(t.name, docID)
	if err != nil || !existed {
		return err
	}
	docs, err := t.backend.GetAll(t.name)
	if err != nil {
		return err
	}
	_ = t.bus.Publish(snapshot.Contents(docs))
	return nil
}

func (t *collectionTable) subscribe() (*broadcast.Subscription[snapshot.Contents], error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return nil, ErrDisposed
	}
	sub, err := t.bus.Subscribe()
	if err != nil {
		return nil, ErrDisposed
	}
	return sub, nil
}

func (t *collectionTable) attach(docID string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, ErrDisposed
	}
	t.watchers[docID]++
	return t.watchers[docID], nil
}

// detach reports whether a watcher was removed, and whether this call
// brought the count to zero.
func (t *collectionTable) detach(docID string) (removed, idle bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.watchers[docID]
	if !ok {
		return false, false
	}
	if n <= 1 {
		delete(t.watchers, docID)
		return true, true
	}
	t.watchers[docID] = n - 1
	return true, false
}

// release drops the key and returns how many watchers it had.
func (t *collectionTable) release(docID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.watchers[docID]
	delete(t.watchers, docID)
	return n
}

func (t *collectionTable) count(docID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.watchers[docID]
}

func (t *collectionTable) total() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, c := range t.watchers {
		n += c
	}
	return n
}

func (t *collectionTable) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.bus.Close()
}
