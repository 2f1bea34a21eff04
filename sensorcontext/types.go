package sensorcontext

// Context is one validity-interval version of a sensor's context. The
// interval is [StartDate, EndDate); EndDate 0 marks the live version.
// A context is immutable once closed; superseding state cuts a new
// version instead of editing an old one.
type Context struct {
	ID        string `json:"id"`
	Sensor    string `json:"sensor"`
	StartDate int64  `json:"startDate"`          // unix ms
	EndDate   int64  `json:"endDate,omitempty"`  // unix ms, 0 = live
	ToAdd     ToAdd  `json:"toAdd"`
}

// Live reports whether this is the open-ended version.
func (c Context) Live() bool {
	return c.EndDate == 0
}

// Contains reports whether t falls inside this version's interval.
func (c Context) Contains(t int64) bool {
	if t < c.StartDate {
		return false
	}
	return c.Live() || t < c.EndDate
}

// ToAdd is the context payload: the observation fields to fill in, and
// under what conditions, for this validity interval. Simple fields
// (inDeployments, hostedByPath) are plain copies; complex fields carry
// a plain fallback and/or an ordered list of conditional rules.
type ToAdd struct {
	InDeployments []string `json:"inDeployments,omitempty"`
	HostedByPath  []string `json:"hostedByPath,omitempty"`

	ObservedProperty     StringProperty `json:"observedProperty,omitempty"`
	HasFeatureOfInterest StringProperty `json:"hasFeatureOfInterest,omitempty"`
	Disciplines          ListProperty   `json:"disciplines,omitempty"`
	UsedProcedures       ListProperty   `json:"usedProcedures,omitempty"`
}

// Condition is one required field equality of a rule predicate,
// checked structurally against the accumulating merged observation.
type Condition struct {
	Field  string `json:"field"`
	Equals string `json:"equals"`
}

// StringRule pairs a predicate with a single-valued field value.
type StringRule struct {
	When  []Condition `json:"when"`
	Value string      `json:"value"`
}

// StringProperty is the payload for a single-valued complex field.
type StringProperty struct {
	Value string       `json:"value,omitempty"`
	Ifs   []StringRule `json:"ifs,omitempty"`
}

// Empty reports whether the property carries nothing to apply.
func (p StringProperty) Empty() bool {
	return p.Value == "" && len(p.Ifs) == 0
}

// ListRule pairs a predicate with a list-valued field value.
type ListRule struct {
	When  []Condition `json:"when"`
	Value []string    `json:"value"`
}

// ListProperty is the payload for a list-valued complex field.
type ListProperty struct {
	Value []string   `json:"value,omitempty"`
	Ifs   []ListRule `json:"ifs,omitempty"`
}

// Empty reports whether the property carries nothing to apply.
func (p ListProperty) Empty() bool {
	return len(p.Value) == 0 && len(p.Ifs) == 0
}
