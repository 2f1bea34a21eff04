// Package api exposes the request surface over NATS request/reply.
// Every operation follows the same path: record the request, validate
// the payload against its schema, dispatch to the owning domain
// component, and reply with an envelope carrying either the result or
// a classified error. Expected outcomes (validation, not-found,
// conflict, forbidden) travel back to the caller without noise in the
// logs; store failures are logged with their internal detail and
// reach the caller with a reduced message only.
package api
