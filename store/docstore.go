package store

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/stevemurr/reactive-docstore/jsonv"
	"github.com/stevemurr/reactive-docstore/logging"
	"github.com/stevemurr/reactive-docstore/snapshot"
)

// DocSnapshot is an immutable copy of one document at a point in time.
type DocSnapshot = snapshot.Doc

// DocumentStore owns every collection. It is meant to be created once and
// handed to each collaborator that needs it; all of them then observe the
// same documents.
type DocumentStore struct {
	opts     Options
	backend  Backend
	log      logging.Logger
	tables   *xsync.MapOf[string, *collectionTable]
	registry *WatchRegistry

	throwOnSave   atomic.Bool
	throwOnDelete atomic.Bool
	disposed      atomic.Bool
}

// New creates a store. Options are applied over DefaultOptions.
func New(options ...Option) *DocumentStore {
	opts := DefaultOptions()
	for _, o := range options {
		o(&opts)
	}
	if opts.Backend == nil {
		opts.Backend = NewMemoryBackend()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	s := &DocumentStore{
		opts:    opts,
		backend: opts.Backend,
		log:     opts.Logger,
		tables:  xsync.NewMapOf[string, *collectionTable](),
	}
	s.registry = &WatchRegistry{store: s}
	s.throwOnSave.Store(opts.ThrowOnSave)
	s.throwOnDelete.Store(opts.ThrowOnDelete)
	return s
}

// Options returns the configuration the store was built with.
func (s *DocumentStore) Options() Options {
	o := s.opts
	o.ThrowOnSave = s.throwOnSave.Load()
	o.ThrowOnDelete = s.throwOnDelete.Load()
	return o
}

// SetFaults switches forced failures of Save and Delete on or off.
func (s *DocumentStore) SetFaults(onSave, onDelete bool) {
	s.throwOnSave.Store(onSave)
	s.throwOnDelete.Store(onDelete)
	s.log.Info("fault injection changed", "save", onSave, "delete", onDelete)
}

func (s *DocumentStore) Watches() *WatchRegistry {
	return s.registry
}

func (s *DocumentStore) Disposed() bool {
	return s.disposed.Load()
}

// Dispose tears the store down. Every stream ends and every later call
// fails with ErrDisposed. Dispose is idempotent.
func (s *DocumentStore) Dispose() {
	if !s.disposed.CompareAndSwap(false, true) {
		return
	}
	s.tables.Range(func(_ string, t *collectionTable) bool {
		t.close()
		return true
	})
	if err := s.backend.Close(); err != nil {
		s.log.Warn("backend close failed", "err", err)
	}
	s.log.Info("store disposed")
}

func (s *DocumentStore) table(name string) (*collectionTable, error) {
	if t, ok := s.tables.Load(name); ok {
		return t, nil
	}
	docs, err := s.backend.GetAll(name)
	if err != nil {
		return nil, err
	}
	t, loaded := s.tables.LoadOrStore(name, newCollectionTable(name, s.backend, docs))
	if !loaded {
		s.log.Debug("collection created", "collection", name)
	}
	// Dispose may have ranged over the tables before this one was stored.
	if s.disposed.Load() {
		t.close()
		return nil, ErrDisposed
	}
	return t, nil
}

func (s *DocumentStore) check(op, collection, docID string, needID bool) *Fault {
	if s.disposed.Load() {
		return fault(op, collection, docID, ErrDisposed)
	}
	if collection == "" || (needID && docID == "") {
		return fault(op, collection, docID, ErrInvalidArgument)
	}
	return nil
}

// wait applies the configured latency.
func (s *DocumentStore) wait(ctx context.Context, op, collection, docID string) error {
	if s.opts.Latency > 0 {
		timer := time.NewTimer(s.opts.Latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return fault(op, collection, docID, ctx.Err())
		}
	}
	if s.disposed.Load() {
		return fault(op, collection, docID, ErrDisposed)
	}
	return nil
}

// mapErr turns a table or backend error into a Fault.
func mapErr(op, collection, docID string, err error) error {
	if err == ErrDisposed {
		return fault(op, collection, docID, ErrDisposed)
	}
	return unexpected(op, collection, docID, err)
}

// Save overwrites the document and returns a copy of what was stored.
func (s *DocumentStore) Save(ctx context.Context, collection, docID string, doc jsonv.Value) (snap DocSnapshot, err error) {
	const op = "save"
	defer s.track(op, time.Now(), &err)
	if f := s.check(op, collection, docID, true); f != nil {
		return DocSnapshot{}, f
	}
	if err := s.wait(ctx, op, collection, docID); err != nil {
		return DocSnapshot{}, err
	}
	if s.throwOnSave.Load() {
		s.log.Debug("forced save failure", "collection", collection, "doc", docID)
		return DocSnapshot{}, fault(op, collection, docID, ErrUnexpected)
	}
	t, err := s.table(collection)
	if err != nil {
		return DocSnapshot{}, mapErr(op, collection, docID, err)
	}
	stored, err := t.put(docID, doc.Clone())
	if err != nil {
		return DocSnapshot{}, mapErr(op, collection, docID, err)
	}
	return DocSnapshot{ID: docID, Value: stored.Clone(), Exists: true}, nil
}

// Read returns the document or ErrNotFound.
func (s *DocumentStore) Read(ctx context.Context, collection, docID string) (snap DocSnapshot, err error) {
	const op = "read"
	defer s.track(op, time.Now(), &err)
	if f := s.check(op, collection, docID, true); f != nil {
		return DocSnapshot{}, f
	}
	if err := s.wait(ctx, op, collection, docID); err != nil {
		return DocSnapshot{}, err
	}
	t, err := s.table(collection)
	if err != nil {
		return DocSnapshot{}, mapErr(op, collection, docID, err)
	}
	v, ok, err := t.get(docID)
	if err != nil {
		return DocSnapshot{}, mapErr(op, collection, docID, err)
	}
	if !ok {
		return DocSnapshot{}, fault(op, collection, docID, ErrNotFound)
	}
	return DocSnapshot{ID: docID, Value: v.Clone(), Exists: true}, nil
}

// ReadAll returns every document of the collection.
func (s *DocumentStore) ReadAll(ctx context.Context, collection string) (docs []DocSnapshot, err error) {
	const op = "read_all"
	defer s.track(op, time.Now(), &err)
	if f := s.check(op, collection, "", false); f != nil {
		return nil, f
	}
	if err := s.wait(ctx, op, collection, ""); err != nil {
		return nil, err
	}
	t, err := s.table(collection)
	if err != nil {
		return nil, mapErr(op, collection, "", err)
	}
	contents, err := t.all()
	if err != nil {
		return nil, mapErr(op, collection, "", err)
	}
	return snapshot.CopyList(snapshot.CollectionView(s.opts.OrderCollectionsByKey)(contents)), nil
}

// Delete removes the document. Deleting an absent document succeeds.
func (s *DocumentStore) Delete(ctx context.Context, collection, docID string) (err error) {
	const op = "delete"
	defer s.track(op, time.Now(), &err)
	if f := s.check(op, collection, docID, true); f != nil {
		return f
	}
	if err := s.wait(ctx, op, collection, docID); err != nil {
		return err
	}
	if s.throwOnDelete.Load() {
		s.log.Debug("forced delete failure", "collection", collection, "doc", docID)
		return fault(op, collection, docID, ErrUnexpected)
	}
	t, err := s.table(collection)
	if err != nil {
		return mapErr(op, collection, docID, err)
	}
	if err := t.remove(docID); err != nil {
		return mapErr(op, collection, docID, err)
	}
	return nil
}

// Collections lists the collections created so far, plus any the backend
// already held when it was handed to the store, sorted by name.
func (s *DocumentStore) Collections() []string {
	var names []string
	s.tables.Range(func(name string, _ *collectionTable) bool {
		names = append(names, name)
		return true
	})
	if !s.disposed.Load() {
		stored, err := s.backend.ListCollections()
		if err != nil {
			s.log.Warn("list collections failed", "err", err)
		}
		names = append(names, stored...)
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// DocumentStream watches one document. The channel is closed when ctx is
// done or the store is disposed.
func (s *DocumentStore) DocumentStream(ctx context.Context, collection, docID string) (<-chan DocSnapshot, error) {
	const op = "document_stream"
	if f := s.check(op, collection, docID, true); f != nil {
		return nil, f
	}
	cfg := snapshot.Config[DocSnapshot]{
		EmitInitial: s.opts.EmitInitial,
		Dedupe:      s.opts.DedupeByContent,
		Equal:       snapshot.DocEqual,
		OnEmit:      func(DocSnapshot) { EmissionCount.WithLabelValues("document").Inc() },
	}
	if s.opts.DeepCopies {
		cfg.Copy = snapshot.CopyDoc
	}
	return stream(ctx, s, op, collection, docID, snapshot.DocumentView(docID), cfg)
}

// CollectionStream watches a whole collection.
func (s *DocumentStore) CollectionStream(ctx context.Context, collection string) (<-chan []DocSnapshot, error) {
	const op = "collection_stream"
	if f := s.check(op, collection, "", false); f != nil {
		return nil, f
	}
	cfg := snapshot.Config[[]DocSnapshot]{
		EmitInitial: s.opts.EmitInitial,
		Dedupe:      s.opts.DedupeByContent,
		Equal:       snapshot.ListEqual,
		OnEmit:      func([]DocSnapshot) { EmissionCount.WithLabelValues("collection").Inc() },
	}
	if s.opts.DeepCopies {
		cfg.Copy = snapshot.CopyList
	}
	return stream(ctx, s, op, collection, "", snapshot.CollectionView(s.opts.OrderCollectionsByKey), cfg)
}

func stream[T any](ctx context.Context, s *DocumentStore, op, collection, docID string, project func(snapshot.Contents) T, cfg snapshot.Config[T]) (<-chan T, error) {
	t, err := s.table(collection)
	if err != nil {
		return nil, mapErr(op, collection, docID, err)
	}
	sub, err := t.subscribe()
	if err != nil {
		return nil, mapErr(op, collection, docID, err)
	}
	out := make(chan T)
	go func() {
		defer sub.Cancel()
		err := snapshot.Derive(ctx, sub, project, cfg, out)
		s.log.Debug("stream ended", "op", op, "collection", collection, "doc", docID, "reason", err)
	}()
	return out, nil
}

func (s *DocumentStore) track(op string, start time.Time, err *error) {
	observe(op, *err)
	OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
