// Package enrich fills in the context of raw observations: deployment
// membership, hosting path, observed property and the rest, resolved
// as of each observation's own result time, plus a location inherited
// from the nearest located platform on the hosting path. Sensors the
// catalog has never heard of land in a diagnostic sink instead of
// failing the pipeline.
package enrich
