package sensor

import (
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/errors"
)

// Relationship rules for the {permanentHost, hasDeployment, isHostedBy}
// triangle. The guard is pure: it inspects the current sensor and the
// proposed update and returns the first violated rule as Forbidden,
// naming the conflicting fields. It never reads the store and never
// writes anything.

// CheckNew validates the relationship fields of a sensor being created
// directly by a client.
func CheckNew(s Sensor) error {
	const op = "CheckNew"

	if s.PermanentHost != "" && s.HasDeployment != "" {
		return errors.Forbiddenf(component, op, "permanentHost and hasDeployment cannot both be set; sensors on a permanent host join deployments via registration")
	}
	if s.PermanentHost != "" && s.IsHostedBy != "" {
		return errors.Forbiddenf(component, op, "permanentHost and isHostedBy cannot both be set")
	}
	if s.IsHostedBy != "" && s.HasDeployment == "" {
		return errors.Forbiddenf(component, op, "isHostedBy requires hasDeployment; a hosted sensor must be in a deployment")
	}
	return nil
}

// CheckUpdate validates a proposed update against the current sensor.
func CheckUpdate(current Sensor, u Updates) error {
	const op = "CheckUpdate"

	next := u.apply(current)

	settingDeployment := u.HasDeployment != nil && *u.HasDeployment != "" && *u.HasDeployment != current.HasDeployment
	clearingDeployment := u.HasDeployment != nil && *u.HasDeployment == "" && current.HasDeployment != ""
	changingDeployment := u.HasDeployment != nil && *u.HasDeployment != current.HasDeployment
	changingPermanentHost := u.PermanentHost != nil && *u.PermanentHost != current.PermanentHost
	settingHost := u.IsHostedBy != nil && *u.IsHostedBy != "" && *u.IsHostedBy != current.IsHostedBy
	clearingHost := u.IsHostedBy != nil && *u.IsHostedBy == "" && current.IsHostedBy != ""

	// Deployment membership for a permanent-host sensor is the
	// registration workflow's job, not a direct edit.
	if settingDeployment && next.PermanentHost != "" {
		return errors.Forbiddenf(component, op, "hasDeployment cannot be set directly while permanentHost is set")
	}

	if changingPermanentHost && current.IsHostedBy != "" {
		return errors.Forbiddenf(component, op, "permanentHost cannot change while isHostedBy is set")
	}
	if changingPermanentHost && settingDeployment {
		return errors.Forbiddenf(component, op, "permanentHost and hasDeployment cannot change in the same update")
	}

	if settingHost {
		if next.HasDeployment == "" {
			return errors.Forbiddenf(component, op, "isHostedBy requires hasDeployment; a hosted sensor must be in a deployment")
		}
		if next.PermanentHost != "" {
			return errors.Forbiddenf(component, op, "isHostedBy cannot be set while permanentHost is set")
		}
	}

	// A sensor never leaves its platform through its own update; the
	// platform link is only cleared as a side effect of platform
	// deletion, or replaced as part of a deployment move.
	if clearingHost && !changingDeployment {
		return errors.Forbiddenf(component, op, "isHostedBy cannot be cleared directly; it is removed when the platform is deleted")
	}

	// A deployment move cannot leave the sensor sitting on a platform
	// that belongs to the old deployment.
	if changingDeployment && current.IsHostedBy != "" && u.IsHostedBy == nil {
		return errors.Forbiddenf(component, op, "hasDeployment cannot change while isHostedBy still points at the old deployment's platform")
	}
	if clearingDeployment && next.IsHostedBy != "" {
		return errors.Forbiddenf(component, op, "removing hasDeployment would leave isHostedBy set")
	}

	return nil
}
