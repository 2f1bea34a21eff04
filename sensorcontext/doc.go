// Package sensorcontext implements the temporal context-versioning
// store for sensors and the merge engine that fuses a context payload
// into a raw observation.
//
// # Versioning model
//
// Each sensor has an ordered set of context versions, each valid over
// [StartDate, EndDate). At most one version per sensor is live (EndDate
// absent) at any time; the invariant is enforced by creating a
// live.<sensor> pointer key with store Create semantics, so a second
// concurrent create surfaces as a Conflict instead of silently
// double-versioning. Closed versions are immutable.
//
// GetAt resolves the version valid at an arbitrary past instant, which
// is what lets out-of-order observations be enriched with the context
// valid at their own result time.
//
// # Merge engine
//
// Merge is a pure function. It never overwrites a field the incoming
// observation already carries, applies plain fallback values for absent
// fields, and evaluates conditional rules in list order against the
// accumulating merged object with the last matching rule winning.
package sensorcontext
