package crud

import (
	"errors"
	"fmt"

	"github.com/stevemurr/reactive-docstore/store"
)

// ErrorKind classifies a failed operation.
type ErrorKind uint8

const (
	// InvalidArgument: empty collection name or docId, or a malformed patch.
	InvalidArgument ErrorKind = iota + 1
	// NotFound: the target document does not exist.
	NotFound
	// Conflict is reserved for optimistic concurrency; nothing raises it yet.
	Conflict
	// Unexpected: anything else, including codec failures and injected faults.
	Unexpected
	// Disposed: the store has been torn down.
	Disposed
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Unexpected:
		return "unexpected"
	case Disposed:
		return "disposed"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ErrorContext says where an error happened.
type ErrorContext struct {
	Collection string
	DocID      string
	Op         string
}

// Error is the failure half of a Result.
type Error struct {
	Kind    ErrorKind
	Message string
	Context ErrorContext
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s/%s: %s: %s", e.Context.Op, e.Context.Collection, e.Context.DocID, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Result is either Ok with a value or Err with an *Error.
type Result[T any] struct {
	value T
	err   *Error
}

func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

func Err[T any](e *Error) Result[T] {
	return Result[T]{err: e}
}

func (r Result[T]) IsOk() bool {
	return r.err == nil
}

// Value returns the value and whether the result is Ok.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.err == nil
}

// Err returns the failure, or nil for Ok.
func (r Result[T]) Err() *Error {
	return r.err
}

// Kind returns the error kind, or 0 for Ok.
func (r Result[T]) Kind() ErrorKind {
	if r.err == nil {
		return 0
	}
	return r.err.Kind
}

// Get converts the result to Go's (value, error) form.
func (r Result[T]) Get() (T, error) {
	if r.err != nil {
		return r.value, r.err
	}
	return r.value, nil
}

// KindOf classifies any error the store returns.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, store.ErrInvalidArgument):
		return InvalidArgument
	case errors.Is(err, store.ErrNotFound):
		return NotFound
	case errors.Is(err, store.ErrConflict):
		return Conflict
	case errors.Is(err, store.ErrDisposed):
		return Disposed
	default:
		return Unexpected
	}
}

func newError(kind ErrorKind, op, collection, docID string, cause error) *Error {
	msg := kind.String()
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Kind:    kind,
		Message: msg,
		Context: ErrorContext{Collection: collection, DocID: docID, Op: op},
		cause:   cause,
	}
}

// fromErr converts any error into an *Error carrying the facade's context.
func fromErr(op, collection, docID string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return newError(KindOf(err), op, collection, docID, err)
}
