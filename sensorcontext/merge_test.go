package sensorcontext

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/message"
)

func TestMergeSimpleFieldsOnlyWhenAbsent(t *testing.T) {
	toAdd := ToAdd{
		InDeployments: []string{"dep-1"},
		HostedByPath:  []string{"platform-a", "platform-b"},
	}

	merged := Merge(message.Observation{MadeBySensor: "sensor-1"}, toAdd)
	assert.Equal(t, []string{"dep-1"}, merged.InDeployments)
	assert.Equal(t, []string{"platform-a", "platform-b"}, merged.HostedByPath)

	// Already-present fields are never overwritten
	obs := message.Observation{
		MadeBySensor:  "sensor-1",
		InDeployments: []string{"dep-9"},
		HostedByPath:  []string{"platform-z"},
	}
	merged = Merge(obs, toAdd)
	assert.Equal(t, []string{"dep-9"}, merged.InDeployments)
	assert.Equal(t, []string{"platform-z"}, merged.HostedByPath)
}

func TestMergePlainFallback(t *testing.T) {
	toAdd := ToAdd{
		ObservedProperty:     StringProperty{Value: "air-temperature"},
		HasFeatureOfInterest: StringProperty{Value: "earth-atmosphere"},
		Disciplines:          ListProperty{Value: []string{"meteorology"}},
		UsedProcedures:       ListProperty{Value: []string{"point-sample"}},
	}

	merged := Merge(message.Observation{MadeBySensor: "sensor-1"}, toAdd)
	assert.Equal(t, "air-temperature", merged.ObservedProperty)
	assert.Equal(t, "earth-atmosphere", merged.HasFeatureOfInterest)
	assert.Equal(t, []string{"meteorology"}, merged.Disciplines)
	assert.Equal(t, []string{"point-sample"}, merged.UsedProcedures)
}

func TestMergeNeverOverwritesIncomingFields(t *testing.T) {
	obs := message.Observation{
		MadeBySensor:         "sensor-1",
		ObservedProperty:     "relative-humidity",
		HasFeatureOfInterest: "indoor-air",
		Disciplines:          []string{"hydrology"},
		UsedProcedures:       []string{"averaged"},
	}
	toAdd := ToAdd{
		ObservedProperty:     StringProperty{Value: "air-temperature"},
		HasFeatureOfInterest: StringProperty{Value: "earth-atmosphere"},
		Disciplines:          ListProperty{Value: []string{"meteorology"}},
		UsedProcedures:       ListProperty{Value: []string{"point-sample"}},
	}

	merged := Merge(obs, toAdd)
	assert.Equal(t, "relative-humidity", merged.ObservedProperty)
	assert.Equal(t, "indoor-air", merged.HasFeatureOfInterest)
	assert.Equal(t, []string{"hydrology"}, merged.Disciplines)
	assert.Equal(t, []string{"averaged"}, merged.UsedProcedures)
}

func TestMergeConditionalRules(t *testing.T) {
	// Unit-style rules keyed on the observed property
	toAdd := ToAdd{
		ObservedProperty: StringProperty{Value: "air-temperature"},
		UsedProcedures: ListProperty{
			Value: []string{"default-procedure"},
			Ifs: []ListRule{
				{
					When:  []Condition{{Field: message.FieldObservedProperty, Equals: "air-temperature"}},
					Value: []string{"thermistor-sampling"},
				},
				{
					When:  []Condition{{Field: message.FieldObservedProperty, Equals: "relative-humidity"}},
					Value: []string{"capacitive-sampling"},
				},
			},
		},
	}

	// The fallback observed property drives the rule
	merged := Merge(message.Observation{MadeBySensor: "sensor-1"}, toAdd)
	assert.Equal(t, []string{"thermistor-sampling"}, merged.UsedProcedures)

	// An incoming observed property drives it instead
	obs := message.Observation{MadeBySensor: "sensor-1", ObservedProperty: "relative-humidity"}
	merged = Merge(obs, toAdd)
	assert.Equal(t, []string{"capacitive-sampling"}, merged.UsedProcedures)
	assert.Equal(t, "relative-humidity", merged.ObservedProperty)
}

func TestMergeLastMatchingRuleWins(t *testing.T) {
	toAdd := ToAdd{
		ObservedProperty: StringProperty{Value: "air-temperature"},
		HasFeatureOfInterest: StringProperty{
			Ifs: []StringRule{
				{
					When:  []Condition{{Field: message.FieldObservedProperty, Equals: "air-temperature"}},
					Value: "first-match",
				},
				{
					When:  []Condition{{Field: message.FieldMadeBySensor, Equals: "sensor-1"}},
					Value: "second-match",
				},
			},
		},
	}

	// Both rules match; the later one in list order wins
	merged := Merge(message.Observation{MadeBySensor: "sensor-1"}, toAdd)
	assert.Equal(t, "second-match", merged.HasFeatureOfInterest)
}

func TestMergeFallbackKeptWhenNoRuleMatches(t *testing.T) {
	toAdd := ToAdd{
		ObservedProperty: StringProperty{
			Value: "air-temperature",
			Ifs: []StringRule{
				{
					When:  []Condition{{Field: message.FieldMadeBySensor, Equals: "other-sensor"}},
					Value: "never-applied",
				},
			},
		},
	}

	merged := Merge(message.Observation{MadeBySensor: "sensor-1"}, toAdd)
	assert.Equal(t, "air-temperature", merged.ObservedProperty)
}

func TestMergeRuleCanReferenceOwnFallback(t *testing.T) {
	// A rule on observedProperty conditioned on the fallback value
	toAdd := ToAdd{
		ObservedProperty: StringProperty{
			Value: "raw-count",
			Ifs: []StringRule{
				{
					When:  []Condition{{Field: message.FieldObservedProperty, Equals: "raw-count"}},
					Value: "particle-count",
				},
			},
		},
	}

	merged := Merge(message.Observation{MadeBySensor: "sensor-1"}, toAdd)
	assert.Equal(t, "particle-count", merged.ObservedProperty)
}

func TestMergeEmptyPredicateNeverMatches(t *testing.T) {
	toAdd := ToAdd{
		ObservedProperty: StringProperty{
			Value: "air-temperature",
			Ifs:   []StringRule{{When: nil, Value: "unconditional"}},
		},
	}

	merged := Merge(message.Observation{MadeBySensor: "sensor-1"}, toAdd)
	assert.Equal(t, "air-temperature", merged.ObservedProperty)
}

func TestMergeEmptyContextReturnsObservationUnchanged(t *testing.T) {
	obs := message.Observation{
		MadeBySensor: "sensor-1",
		ResultTime:   "2024-03-01T12:00:00Z",
		HasResult:    &message.Result{Value: 21.4, Unit: "degree-celsius"},
	}

	merged := Merge(obs, ToAdd{})
	assert.Empty(t, cmp.Diff(obs, merged))
}

func TestMergeIsPure(t *testing.T) {
	obs := message.Observation{MadeBySensor: "sensor-1"}
	toAdd := ToAdd{
		InDeployments:    []string{"dep-1"},
		ObservedProperty: StringProperty{Value: "air-temperature"},
		Disciplines: ListProperty{
			Value: []string{"meteorology"},
			Ifs: []ListRule{
				{
					When:  []Condition{{Field: message.FieldObservedProperty, Equals: "air-temperature"}},
					Value: []string{"meteorology", "climatology"},
				},
			},
		},
	}

	first := Merge(obs, toAdd)
	second := Merge(obs, toAdd)
	assert.Empty(t, cmp.Diff(first, second))

	// Mutating the output must not reach back into the inputs
	first.InDeployments[0] = "mutated"
	first.Disciplines[0] = "mutated"
	assert.Equal(t, []string{"dep-1"}, toAdd.InDeployments)
	assert.Equal(t, []string{"meteorology", "climatology"}, Merge(obs, toAdd).Disciplines)
}
