// Package sensor owns the sensor catalog and its lifecycle. A sensor's
// deployment, host platform and permanent host form a constrained
// triangle: the guard rejects illegal combinations before any write,
// and the controller cuts a new context version whenever a legal write
// changes the payload observations should be enriched with.
package sensor
