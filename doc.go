// Package sensordeploymentmanager catalogs physical sensors, the platforms
// that host them and the deployments that own them, and attaches temporally
// versioned context to raw observations that otherwise carry only a sensor
// identifier and a result.
//
// # Architecture
//
// The hard problem this module solves is keeping observation context correct
// as the physical world changes. Sensors move between platforms, platforms
// are rehosted on other platforms, and permanent hardware units are
// registered into deployments. Observations arrive out of order and must be
// enriched with the context that was valid at their own result time, not the
// context valid now.
//
//	┌──────────────────────────────────────────────┐
//	│              api (NATS request/reply)        │  schema-validated
//	└──────────────────────────────────────────────┘  operation contracts
//	           ↓ invokes
//	┌──────────────┬───────────────┬───────────────┐
//	│   sensor     │   platform    │ registration  │  lifecycle, hierarchy,
//	│ (lifecycle,  │ (hosting tree,│ (permanent-   │  permanent-host saga
//	│  guard)      │  location)    │  host binding)│
//	└──────────────┴───────────────┴───────────────┘
//	           ↓ cut / close / query versions
//	┌──────────────────────────────────────────────┐
//	│   sensorcontext (temporal versions + merge)  │  one live version
//	└──────────────────────────────────────────────┘  per sensor
//	           ↓ documents
//	┌──────────────────────────────────────────────┐
//	│   store / natsclient (JetStream KV buckets)  │  per-key atomicity,
//	└──────────────────────────────────────────────┘  CAS revisions
//
// Observation enrichment (the enrich package) reads back through the version
// history: given an observation's result time it resolves the context valid
// at that instant, merges the context payload into the observation without
// overwriting anything the observation already carries, and falls back to a
// persisted unknown-sensor marker when no context exists.
//
// # Packages
//
// Domain:
//   - sensor: sensor rows, the relationship guard and lifecycle controller
//   - platform: platform rows, hostedByPath maintenance, location cascade
//   - sensorcontext: context versions, interval queries, the merge engine
//   - registration: permanent hosts and the registration workflow
//   - enrich: observation enrichment and the unknown-sensor sink
//   - deployment, vocabulary: collaborator stores (plain soft-delete CRUD)
//   - geometry: GeoJSON geometry validation
//
// Infrastructure:
//   - store: document-store contract shared by production and test backends
//   - natsclient: NATS connection management and the KV document store
//   - schema: per-operation JSON Schema input contracts
//   - errors: classified error taxonomy (validation, conflict, not-found,
//     forbidden, store failure)
//   - metric, health, config: operational plumbing
//   - message: observation and location wire shapes
//
// # Consistency model
//
// All writes are per-document atomic. The single-live-context invariant is
// enforced by creating a live-pointer key with KV Create: a second
// concurrent create for the same sensor fails with a conflict instead of
// silently double-versioning. Multi-step workflows (registration, rehost
// cascades) commit each step independently; they are sagas with no automatic
// rollback, and no retries happen inside this module.
package sensordeploymentmanager
