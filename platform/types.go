package platform

import (
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/message"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/store"
)

// Platform is a structure that can host sensors and other platforms
// inside a deployment. HostedByPath is the denormalized root-first
// ancestor chain, excluding the platform itself; it always equals the
// host's own path with the host's id appended, which makes descendant
// queries a simple containment check.
type Platform struct {
	ID              string   `json:"id"`
	Label           string   `json:"label,omitempty"`
	Description     string   `json:"description,omitempty"`
	OwnerDeployment string   `json:"ownerDeployment"`
	InDeployments   []string `json:"inDeployments,omitempty"`
	IsHostedBy      string   `json:"isHostedBy,omitempty"`
	HostedByPath    []string `json:"hostedByPath,omitempty"`

	// Static marks a platform as stationary. A static platform may
	// never be hosted, directly or transitively, on a mobile one.
	Static bool `json:"static"`

	Location                 *message.Location `json:"location,omitempty"`
	UpdateLocationWithSensor string            `json:"updateLocationWithSensor,omitempty"`

	Status    store.Status `json:"status"`
	CreatedAt int64        `json:"createdAt"`
	UpdatedAt int64        `json:"updatedAt"`
}

// Hosted reports whether the platform currently has a host.
func (p Platform) Hosted() bool {
	return p.IsHostedBy != ""
}

// HasAncestor reports whether id appears in the platform's ancestor
// chain.
func (p Platform) HasAncestor(id string) bool {
	for _, ancestor := range p.HostedByPath {
		if ancestor == id {
			return true
		}
	}
	return false
}

// VisibleIn reports whether the platform belongs to or is shared with
// the given deployment.
func (p Platform) VisibleIn(deploymentID string) bool {
	if p.OwnerDeployment == deploymentID {
		return true
	}
	for _, dep := range p.InDeployments {
		if dep == deploymentID {
			return true
		}
	}
	return false
}
