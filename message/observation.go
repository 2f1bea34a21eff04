// Package message defines the wire shapes shared between the domain
// packages and the request layer: observations, locations and the
// response envelope.
package message

import (
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/geometry"
)

// Location is a geometry with an identity and the instant it became
// valid. Platforms carry their current location; observations may carry
// one of their own.
type Location struct {
	ID       string            `json:"id"`
	Geometry geometry.Geometry `json:"geometry"`
	ValidAt  int64             `json:"validAt"` // unix ms
}

// Result is the measured value of an observation.
type Result struct {
	Value any    `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// Observation is a raw or enriched observation. Raw observations carry
// only MadeBySensor, ResultTime and HasResult; enrichment fills in the
// remaining fields from the context valid at ResultTime without ever
// overwriting a field the observation already carries.
type Observation struct {
	ID           string    `json:"id,omitempty"`
	MadeBySensor string    `json:"madeBySensor"`
	ResultTime   string    `json:"resultTime"` // RFC3339
	HasResult    *Result   `json:"hasResult,omitempty"`
	Location     *Location `json:"location,omitempty"`

	// Context-derived fields
	InDeployments        []string `json:"inDeployments,omitempty"`
	HostedByPath         []string `json:"hostedByPath,omitempty"`
	ObservedProperty     string   `json:"observedProperty,omitempty"`
	HasFeatureOfInterest string   `json:"hasFeatureOfInterest,omitempty"`
	Disciplines          []string `json:"disciplines,omitempty"`
	UsedProcedures       []string `json:"usedProcedures,omitempty"`
}

// Field names used by conditional context rules to address observation
// fields structurally.
const (
	FieldMadeBySensor         = "madeBySensor"
	FieldObservedProperty     = "observedProperty"
	FieldHasFeatureOfInterest = "hasFeatureOfInterest"
)

// StringField returns the named string field of the observation, or
// "" when the name is unknown. Only fields addressable by context rule
// conditions are exposed.
func (o Observation) StringField(name string) string {
	switch name {
	case FieldMadeBySensor:
		return o.MadeBySensor
	case FieldObservedProperty:
		return o.ObservedProperty
	case FieldHasFeatureOfInterest:
		return o.HasFeatureOfInterest
	default:
		return ""
	}
}
