// Package store implements the reactive document store: lazily created
// collections of JSON documents, whole-collection broadcasts on every
// mutation, derived per-document and per-collection watch streams, and a
// ref-counted watch registry.
package store

import (
	"github.com/stevemurr/reactive-docstore/jsonv"
)

// Backend is the document storage behind the collection tables. It operates
// on named collections, where each collection contains documents keyed by a
// string identifier. The store serializes mutations per collection, so a
// Backend only has to be safe across collections.
type Backend interface {
	// GetAll returns every document in a collection as a map of key -> document.
	GetAll(collection string) (map[string]jsonv.Value, error)

	// Get returns a single document by key; ok is false if it does not exist.
	Get(collection, key string) (doc jsonv.Value, ok bool, err error)

	// Put inserts or replaces a document.
	Put(collection, key string, doc jsonv.Value) error

	// Delete removes a document. Returns true if it existed.
	Delete(collection, key string) (bool, error)

	// ListCollections returns the names of all collections that contain data.
	ListCollections() ([]string, error)

	// Close releases the backend's resources.
	Close() error
}
