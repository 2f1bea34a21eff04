package sensor

import (
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/message"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/sensorcontext"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/store"
)

// ConfigEntry is one condition-tagged default descriptor from a
// sensor's config. The entry tagged HasPriority supplies the plain
// fallback values; every other entry becomes a conditional rule keyed
// on its observed property.
type ConfigEntry struct {
	ID                   string   `json:"id,omitempty"`
	HasPriority          bool     `json:"hasPriority"`
	ObservedProperty     string   `json:"observedProperty,omitempty"`
	Unit                 string   `json:"unit,omitempty"`
	HasFeatureOfInterest string   `json:"hasFeatureOfInterest,omitempty"`
	Disciplines          []string `json:"disciplines,omitempty"`
	UsedProcedures       []string `json:"usedProcedures,omitempty"`
}

// Sensor is the mutable catalog row for a physical sensor. Only
// Context rows keep history; the Sensor row itself is always the
// current state.
type Sensor struct {
	ID          string `json:"id"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`

	// PermanentHost binds the sensor to a hardware unit. While set,
	// HasDeployment and IsHostedBy may only be written by the
	// registration workflow, never by a direct client edit.
	PermanentHost string `json:"permanentHost,omitempty"`
	HasDeployment string `json:"hasDeployment,omitempty"`
	IsHostedBy    string `json:"isHostedBy,omitempty"`

	InitialConfig []ConfigEntry `json:"initialConfig,omitempty"`
	CurrentConfig []ConfigEntry `json:"currentConfig,omitempty"`

	Status    store.Status `json:"status"`
	CreatedAt int64        `json:"createdAt"`
	UpdatedAt int64        `json:"updatedAt"`
}

// Updates carries a proposed sensor update. Pointer fields distinguish
// "leave as is" (nil) from "set to empty" (pointer to zero value).
type Updates struct {
	Label         *string        `json:"label,omitempty"`
	Description   *string        `json:"description,omitempty"`
	PermanentHost *string        `json:"permanentHost,omitempty"`
	HasDeployment *string        `json:"hasDeployment,omitempty"`
	IsHostedBy    *string        `json:"isHostedBy,omitempty"`
	CurrentConfig *[]ConfigEntry `json:"currentConfig,omitempty"`
}

// apply returns the sensor as it would look after the update.
func (u Updates) apply(s Sensor) Sensor {
	if u.Label != nil {
		s.Label = *u.Label
	}
	if u.Description != nil {
		s.Description = *u.Description
	}
	if u.PermanentHost != nil {
		s.PermanentHost = *u.PermanentHost
	}
	if u.HasDeployment != nil {
		s.HasDeployment = *u.HasDeployment
	}
	if u.IsHostedBy != nil {
		s.IsHostedBy = *u.IsHostedBy
	}
	if u.CurrentConfig != nil {
		s.CurrentConfig = *u.CurrentConfig
	}
	return s
}

// ContextPayload derives the context toAdd for the sensor's current
// state: deployment membership and hosting path as plain copies, and
// the config entries folded into per-field fallbacks and rules. The
// priority entry supplies plain values; each non-priority entry
// becomes a rule conditioned on the observation carrying that entry's
// observed property.
func ContextPayload(s Sensor, hostedByPath []string) sensorcontext.ToAdd {
	toAdd := sensorcontext.ToAdd{}
	if s.HasDeployment != "" {
		toAdd.InDeployments = []string{s.HasDeployment}
	}
	if len(hostedByPath) > 0 {
		toAdd.HostedByPath = append([]string(nil), hostedByPath...)
	}

	for _, entry := range s.CurrentConfig {
		if entry.HasPriority {
			toAdd.ObservedProperty.Value = entry.ObservedProperty
			toAdd.HasFeatureOfInterest.Value = entry.HasFeatureOfInterest
			toAdd.Disciplines.Value = append([]string(nil), entry.Disciplines...)
			toAdd.UsedProcedures.Value = append([]string(nil), entry.UsedProcedures...)
			continue
		}
		if entry.ObservedProperty == "" {
			continue
		}
		when := []sensorcontext.Condition{{
			Field:  message.FieldObservedProperty,
			Equals: entry.ObservedProperty,
		}}
		if entry.HasFeatureOfInterest != "" {
			toAdd.HasFeatureOfInterest.Ifs = append(toAdd.HasFeatureOfInterest.Ifs, sensorcontext.StringRule{
				When:  when,
				Value: entry.HasFeatureOfInterest,
			})
		}
		if len(entry.Disciplines) > 0 {
			toAdd.Disciplines.Ifs = append(toAdd.Disciplines.Ifs, sensorcontext.ListRule{
				When:  when,
				Value: append([]string(nil), entry.Disciplines...),
			})
		}
		if len(entry.UsedProcedures) > 0 {
			toAdd.UsedProcedures.Ifs = append(toAdd.UsedProcedures.Ifs, sensorcontext.ListRule{
				When:  when,
				Value: append([]string(nil), entry.UsedProcedures...),
			})
		}
	}
	return toAdd
}
