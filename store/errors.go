package store

import (
	"errors"
	"fmt"
)

// Sentinel errors carried by every Fault the store returns.
var (
	// ErrInvalidArgument is returned for an empty collection name or docId.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrConflict is reserved for optimistic concurrency and never returned.
	ErrConflict = errors.New("conflict")

	// ErrUnexpected covers backend failures and injected faults.
	ErrUnexpected = errors.New("unexpected failure")

	// ErrDisposed is returned by every operation after Dispose.
	ErrDisposed = errors.New("store disposed")
)

// Fault is the error type returned at the store boundary. It names the
// operation and document and unwraps to one of the sentinels above.
type Fault struct {
	Op         string
	Collection string
	DocID      string
	Err        error
}

func (f *Fault) Error() string {
	target := f.Collection
	if f.DocID != "" {
		target += "/" + f.DocID
	}
	return fmt.Sprintf("docstore: %s %s: %v", f.Op, target, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

func fault(op, collection, docID string, err error) *Fault {
	return &Fault{Op: op, Collection: collection, DocID: docID, Err: err}
}

// unexpected wraps a backend error so it matches ErrUnexpected.
func unexpected(op, collection, docID string, cause error) *Fault {
	return fault(op, collection, docID, fmt.Errorf("%w: %w", ErrUnexpected, cause))
}
