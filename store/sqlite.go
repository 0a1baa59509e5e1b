package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/stevemurr/reactive-docstore/jsonv"
)

// SqliteBackend stores all collections in one in-memory SQLite database.
// Documents are kept as JSON text, so object key order survives a round trip.
//
// Tables:
//
//	documents(collection, key, data)  PRIMARY KEY (collection, key)
type SqliteBackend struct {
	db *sql.DB
}

// NewSqliteBackend opens a private in-memory database. Nothing touches disk;
// the database lives until Close.
func NewSqliteBackend() (*SqliteBackend, error) {
	name := "docstore-" + uuid.NewString()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// A shared-cache memory database disappears with its last connection.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		key TEXT NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (collection, key)
	)`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create documents table")
	}
	return &SqliteBackend{db: db}, nil
}

func (s *SqliteBackend) Close() error {
	return s.db.Close()
}

func (s *SqliteBackend) GetAll(collection string) (map[string]jsonv.Value, error) {
	rows, err := s.db.Query("SELECT key, data FROM documents WHERE collection = ?", collection)
	if err != nil {
		return nil, errors.Wrapf(err, "query collection %q", collection)
	}
	defer rows.Close()
	result := make(map[string]jsonv.Value)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, errors.Wrap(err, "scan document")
		}
		doc, err := jsonv.Parse([]byte(raw))
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s/%s", collection, key)
		}
		result[key] = doc
	}
	return result, rows.Err()
}

func (s *SqliteBackend) Get(collection, key string) (jsonv.Value, bool, error) {
	var raw string
	err := s.db.QueryRow(
		"SELECT data FROM documents WHERE collection = ? AND key = ?",
		collection, key,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return jsonv.Value{}, false, nil
	}
	if err != nil {
		return jsonv.Value{}, false, errors.Wrapf(err, "get %s/%s", collection, key)
	}
	doc, err := jsonv.Parse([]byte(raw))
	if err != nil {
		return jsonv.Value{}, false, errors.Wrapf(err, "decode %s/%s", collection, key)
	}
	return doc, true, nil
}

func (s *SqliteBackend) Put(collection, key string, doc jsonv.Value) error {
	b, err := doc.MarshalJSON()
	if err != nil {
		return errors.Wrapf(err, "encode %s/%s", collection, key)
	}
	_, err = s.db.Exec(
		`INSERT INTO documents (collection, key, data) VALUES (?, ?, ?)
		 ON CONFLICT(collection, key) DO UPDATE SET data = excluded.data`,
		collection, key, string(b),
	)
	return errors.Wrapf(err, "put %s/%s", collection, key)
}

func (s *SqliteBackend) Delete(collection, key string) (bool, error) {
	res, err := s.db.Exec(
		"DELETE FROM documents WHERE collection = ? AND key = ?",
		collection, key,
	)
	if err != nil {
		return false, errors.Wrapf(err, "delete %s/%s", collection, key)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SqliteBackend) ListCollections() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT collection FROM documents ORDER BY collection")
	if err != nil {
		return nil, errors.Wrap(err, "list collections")
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "scan collection")
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
