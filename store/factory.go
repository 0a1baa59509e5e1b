package store

import (
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// NewBackend creates a Backend based on its name.
//
// Supported backends:
//
//	"memory" - Go maps (default)
//	"sqlite" - private in-memory SQLite database
func NewBackend(name string) (Backend, error) {
	switch name {
	case "memory", "":
		return NewMemoryBackend(), nil
	case "sqlite":
		return NewSqliteBackend()
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: memory, sqlite)", name)
	}
}
