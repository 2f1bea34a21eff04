package sensorcontext

import (
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/message"
)

// Merge fuses a context payload into an observation. It is pure and
// total: identical inputs always produce identical output, no error is
// ever raised, and a field already present on the incoming observation
// is never overwritten.
//
// Simple fields (inDeployments, hostedByPath) are copied only when
// absent. Complex fields are resolved in a fixed order — observed
// property, feature of interest, disciplines, used procedures — so that
// a later field's rule predicates can reference the already-merged
// value of an earlier one. Per field: apply the plain fallback, then
// every conditional rule in list order against the accumulating merged
// object with the LAST matching rule winning (no short-circuit), and
// keep the fallback when no rule matched.
func Merge(obs message.Observation, toAdd ToAdd) message.Observation {
	merged := obs

	if len(merged.InDeployments) == 0 && len(toAdd.InDeployments) > 0 {
		merged.InDeployments = copyList(toAdd.InDeployments)
	}
	if len(merged.HostedByPath) == 0 && len(toAdd.HostedByPath) > 0 {
		merged.HostedByPath = copyList(toAdd.HostedByPath)
	}

	if obs.ObservedProperty == "" {
		merged.ObservedProperty = resolveString(merged, message.FieldObservedProperty, toAdd.ObservedProperty)
	}
	if obs.HasFeatureOfInterest == "" {
		merged.HasFeatureOfInterest = resolveString(merged, message.FieldHasFeatureOfInterest, toAdd.HasFeatureOfInterest)
	}
	if len(obs.Disciplines) == 0 {
		merged.Disciplines = resolveList(merged, toAdd.Disciplines)
	}
	if len(obs.UsedProcedures) == 0 {
		merged.UsedProcedures = resolveList(merged, toAdd.UsedProcedures)
	}

	return merged
}

// resolveString applies a single-valued property against the merged
// observation so far. The fallback is applied before rule evaluation so
// a predicate can reference the field's own tentative value; every
// matching rule then overwrites it, last match wins.
func resolveString(merged message.Observation, field string, p StringProperty) string {
	out := p.Value
	for _, rule := range p.Ifs {
		probe := merged
		setStringField(&probe, field, out)
		if matches(probe, rule.When) {
			out = rule.Value
		}
	}
	return out
}

// resolveList is resolveString for list-valued properties. Predicates
// address string fields only, so no self-reference is needed.
func resolveList(merged message.Observation, p ListProperty) []string {
	out := copyList(p.Value)
	for _, rule := range p.Ifs {
		if matches(merged, rule.When) {
			out = copyList(rule.Value)
		}
	}
	return out
}

// matches reports whether every condition of a rule predicate holds on
// the accumulating merged observation. An empty predicate never
// matches; a rule that should always apply belongs in the plain value.
func matches(merged message.Observation, when []Condition) bool {
	if len(when) == 0 {
		return false
	}
	for _, cond := range when {
		if merged.StringField(cond.Field) != cond.Equals {
			return false
		}
	}
	return true
}

func setStringField(obs *message.Observation, field, value string) {
	switch field {
	case message.FieldObservedProperty:
		obs.ObservedProperty = value
	case message.FieldHasFeatureOfInterest:
		obs.HasFeatureOfInterest = value
	}
}

func copyList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
