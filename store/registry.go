package store

// WatchRegistry counts the logical watchers of each (collection, docId).
//
// Counts are independent of stream cancellation: cancelling a stream does
// not detach it. Callers attach when a watch starts and detach after they
// cancel it. The counts live in the collection tables and share their lock.
type WatchRegistry struct {
	store *DocumentStore
}

// Attach adds a watcher and returns the new count.
func (r *WatchRegistry) Attach(collection, docID string) (int, error) {
	const op = "attach"
	if f := r.store.check(op, collection, docID, true); f != nil {
		return 0, f
	}
	t, err := r.store.table(collection)
	if err != nil {
		return 0, mapErr(op, collection, docID, err)
	}
	n, err := t.attach(docID)
	if err != nil {
		return 0, mapErr(op, collection, docID, err)
	}
	WatcherCount.WithLabelValues(collection).Inc()
	return n, nil
}

// Detach removes a watcher. It never fails and never goes below zero; it
// returns true only for the call that brings the count to zero, which is
// when the key becomes eligible for cleanup.
func (r *WatchRegistry) Detach(collection, docID string) bool {
	t, ok := r.store.tables.Load(collection)
	if !ok || docID == "" {
		return false
	}
	removed, idle := t.detach(docID)
	if !removed {
		return false
	}
	WatcherCount.WithLabelValues(collection).Dec()
	if idle {
		r.store.log.Debug("watch idle", "collection", collection, "doc", docID)
		if r.store.opts.OnIdle != nil {
			r.store.opts.OnIdle(collection, docID)
		}
	}
	return idle
}

// Release clears the key regardless of its count.
func (r *WatchRegistry) Release(collection, docID string) {
	t, ok := r.store.tables.Load(collection)
	if !ok {
		return
	}
	if n := t.release(docID); n > 0 {
		WatcherCount.WithLabelValues(collection).Sub(float64(n))
		r.store.log.Debug("watch released", "collection", collection, "doc", docID, "watchers", n)
	}
}

// Count returns the current watcher count of the key.
func (r *WatchRegistry) Count(collection, docID string) int {
	t, ok := r.store.tables.Load(collection)
	if !ok {
		return 0
	}
	return t.count(docID)
}

// Total returns the number of watchers across all keys.
func (r *WatchRegistry) Total() int {
	n := 0
	r.store.tables.Range(func(_ string, t *collectionTable) bool {
		n += t.total()
		return true
	})
	return n
}
