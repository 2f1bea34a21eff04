// Package store defines the document-store contract shared by the
// production NATS KV backend and the in-memory test backend. Every
// entity family (sensors, platforms, contexts, permanent hosts,
// deployments, vocabulary, unknown sensors) lives in its own bucket of
// documents keyed by externally visible identifiers.
package store

import (
	"context"
	"errors"
)

// Entry is a document with the revision needed for CAS updates.
type Entry struct {
	Key      string
	Value    []byte
	Revision uint64
}

// Documents is the per-bucket document store. All operations are atomic
// per document; there are no multi-document transactions. Create fails
// when the key exists, which is how uniqueness constraints are enforced.
// Update fails when the revision is stale, which is how concurrent
// writes surface as conflicts. Neither failure is retried here; retry
// policy belongs to the caller.
type Documents interface {
	// Get returns the document at key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) (*Entry, error)

	// Create writes a new document, failing with ErrKeyExists if the key
	// is already present.
	Create(ctx context.Context, key string, value []byte) (uint64, error)

	// Update replaces the document at key iff revision matches the stored
	// revision, failing with ErrRevisionMismatch otherwise.
	Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error)

	// Put writes the document unconditionally (last writer wins).
	Put(ctx context.Context, key string, value []byte) (uint64, error)

	// Delete removes the document at key, or returns ErrKeyNotFound.
	Delete(ctx context.Context, key string) error

	// Keys lists all keys with the given prefix ("" for all).
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Status is the explicit lifecycle marker on every stored entity row.
// Read paths filter on it; deletion is a status change, not a document
// removal, except for context documents which are history and never
// deleted at all.
type Status string

// Entity row statuses
const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

// Sentinel errors every Documents implementation must return.
var (
	ErrKeyNotFound      = errors.New("store: key not found")
	ErrKeyExists        = errors.New("store: key already exists")
	ErrRevisionMismatch = errors.New("store: revision mismatch (concurrent update)")
)

// IsNotFound reports whether err is the key-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// IsConflict reports whether err is a create or CAS conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrKeyExists) || errors.Is(err, ErrRevisionMismatch)
}
