package store

import (
	"time"

	"github.com/stevemurr/reactive-docstore/logging"
)

// Options configures a DocumentStore.
type Options struct {
	// EmitInitial sends each new watcher the current value before any change.
	EmitInitial bool
	// DeepCopies hands every emission to the watcher as a private copy.
	DeepCopies bool
	// DedupeByContent drops emissions deep-equal to the watcher's last one.
	DedupeByContent bool
	// OrderCollectionsByKey sorts collection snapshots by docId.
	OrderCollectionsByKey bool

	// Latency delays Save, Read, ReadAll and Delete.
	Latency time.Duration
	// ThrowOnSave and ThrowOnDelete force those operations to fail with
	// ErrUnexpected.
	ThrowOnSave   bool
	ThrowOnDelete bool

	// Backend stores the documents. Nil means a fresh MemoryBackend.
	Backend Backend
	Logger  logging.Logger
	// OnIdle is called when the last watcher of a document detaches.
	OnIdle func(collection, docID string)
}

func DefaultOptions() Options {
	return Options{
		EmitInitial:           true,
		DeepCopies:            true,
		DedupeByContent:       true,
		OrderCollectionsByKey: true,
	}
}

type Option func(*Options)

func WithEmitInitial(on bool) Option {
	return func(o *Options) { o.EmitInitial = on }
}

func WithDeepCopies(on bool) Option {
	return func(o *Options) { o.DeepCopies = on }
}

func WithDedupeByContent(on bool) Option {
	return func(o *Options) { o.DedupeByContent = on }
}

func WithOrderCollectionsByKey(on bool) Option {
	return func(o *Options) { o.OrderCollectionsByKey = on }
}

func WithLatency(d time.Duration) Option {
	return func(o *Options) { o.Latency = d }
}

func WithThrowOnSave(on bool) Option {
	return func(o *Options) { o.ThrowOnSave = on }
}

func WithThrowOnDelete(on bool) Option {
	return func(o *Options) { o.ThrowOnDelete = on }
}

func WithBackend(b Backend) Option {
	return func(o *Options) { o.Backend = b }
}

func WithLogger(l logging.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func WithOnIdle(fn func(collection, docID string)) Option {
	return func(o *Options) { o.OnIdle = fn }
}
