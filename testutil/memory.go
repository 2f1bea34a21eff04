// Package testutil provides test doubles for the document store so
// domain packages can be tested without a NATS server.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/store"
)

// MemoryBucket is an in-memory store.Documents implementation with the
// same atomicity semantics as a JetStream KV bucket: per-key writes are
// atomic, Create fails on existing keys, Update fails on stale
// revisions. Thread-safe for concurrent use.
type MemoryBucket struct {
	mu   sync.Mutex
	docs map[string]*memoryDoc
	rev  uint64

	// FailNext, when set, makes the next operation return this error.
	// Used to exercise store-failure paths.
	FailNext error
}

type memoryDoc struct {
	value    []byte
	revision uint64
}

// Interface check
var _ store.Documents = (*MemoryBucket)(nil)

// NewMemoryBucket creates an empty in-memory bucket.
func NewMemoryBucket() *MemoryBucket {
	return &MemoryBucket{
		docs: make(map[string]*memoryDoc),
	}
}

func (b *MemoryBucket) takeFailure() error {
	err := b.FailNext
	b.FailNext = nil
	return err
}

// Get returns the document at key.
func (b *MemoryBucket) Get(_ context.Context, key string) (*store.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeFailure(); err != nil {
		return nil, err
	}

	doc, ok := b.docs[key]
	if !ok {
		return nil, store.ErrKeyNotFound
	}
	value := make([]byte, len(doc.value))
	copy(value, doc.value)
	return &store.Entry{Key: key, Value: value, Revision: doc.revision}, nil
}

// Create writes a new document, failing if the key exists.
func (b *MemoryBucket) Create(_ context.Context, key string, value []byte) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeFailure(); err != nil {
		return 0, err
	}

	if _, ok := b.docs[key]; ok {
		return 0, store.ErrKeyExists
	}
	b.rev++
	b.docs[key] = &memoryDoc{value: clone(value), revision: b.rev}
	return b.rev, nil
}

// Update replaces the document iff revision matches.
func (b *MemoryBucket) Update(_ context.Context, key string, value []byte, revision uint64) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeFailure(); err != nil {
		return 0, err
	}

	doc, ok := b.docs[key]
	if !ok || doc.revision != revision {
		return 0, store.ErrRevisionMismatch
	}
	b.rev++
	b.docs[key] = &memoryDoc{value: clone(value), revision: b.rev}
	return b.rev, nil
}

// Put writes the document unconditionally.
func (b *MemoryBucket) Put(_ context.Context, key string, value []byte) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeFailure(); err != nil {
		return 0, err
	}

	b.rev++
	b.docs[key] = &memoryDoc{value: clone(value), revision: b.rev}
	return b.rev, nil
}

// Delete removes the document at key.
func (b *MemoryBucket) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeFailure(); err != nil {
		return err
	}

	if _, ok := b.docs[key]; !ok {
		return store.ErrKeyNotFound
	}
	delete(b.docs, key)
	return nil
}

// Keys lists keys with the given prefix in sorted order.
func (b *MemoryBucket) Keys(_ context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeFailure(); err != nil {
		return nil, err
	}

	var keys []string
	for key := range b.docs {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored documents.
func (b *MemoryBucket) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.docs)
}

func clone(value []byte) []byte {
	out := make([]byte, len(value))
	copy(out, value)
	return out
}
