// Package natsclient provides NATS connection management and the
// JetStream Key-Value document store backend.
//
// # Connection management
//
// Client wraps a single nats.Conn plus its JetStream context. Initial
// connection establishment retries with exponential backoff; after
// that, reconnection is delegated to the NATS client library. Status
// transitions are reported through an optional callback so the health
// monitor can track readiness.
//
// # Document store
//
// KVStore adapts one KV bucket to the store.Documents contract used by
// every entity store in this module:
//
//	kv, _ := client.EnsureBucket(ctx, store.BucketSensors, 1)
//	docs := client.NewKVStore(kv)
//
// Create maps key-exists conflicts to store.ErrKeyExists and Update
// maps stale revisions to store.ErrRevisionMismatch. Both are returned
// to the caller untouched: the core performs no automatic retries, so
// concurrent writers see a typed conflict instead of silent
// double-writes.
//
// # Request/reply
//
// Respond and Request expose plain NATS request/reply for the thin api
// layer. Transport-level retry and reconnect behavior lives entirely in
// this package; the domain packages above it never retry.
package natsclient
