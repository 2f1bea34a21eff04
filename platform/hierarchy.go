package platform

import (
	"context"
	"log/slog"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/errors"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/geometry"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/pkg/timestamp"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/store"
)

// DeploymentGetter is the slice of the deployment store the hierarchy
// needs: existence checks for owning deployments.
type DeploymentGetter interface {
	Exists(ctx context.Context, id string) error
}

// Hierarchy maintains the platform hosting tree: who hosts whom, the
// denormalized ancestor paths, and the location inheritance that rides
// along with hosting changes. Structural operations return the ids of
// every platform whose ancestry changed so the caller can re-version
// the contexts of sensors hosted anywhere in that subtree.
type Hierarchy struct {
	store       *Store
	deployments DeploymentGetter
	logger      *slog.Logger
}

// NewHierarchy wires a hierarchy over the platform store.
func NewHierarchy(s *Store, deployments DeploymentGetter, logger *slog.Logger) *Hierarchy {
	return &Hierarchy{
		store:       s,
		deployments: deployments,
		logger:      logger.With("component", component),
	}
}

// Create validates and persists a new platform. A hosted platform
// takes its path from the host, and inherits the host's location when
// it brings none of its own.
func (h *Hierarchy) Create(ctx context.Context, p Platform) (*Platform, error) {
	const op = "Create"

	if !store.ValidID(p.ID) {
		return nil, errors.Validationf(component, op, "invalid platform id %q", p.ID)
	}
	if p.OwnerDeployment == "" {
		return nil, errors.Validationf(component, op, "platform %s has no owner deployment", p.ID)
	}
	if err := h.deployments.Exists(ctx, p.OwnerDeployment); err != nil {
		return nil, err
	}
	if p.Location != nil {
		if err := geometry.Validate(p.Location.Geometry); err != nil {
			return nil, errors.Validationf(component, op, "platform %s location: %v", p.ID, err)
		}
	}

	if p.IsHostedBy != "" {
		host, err := h.store.Get(ctx, p.IsHostedBy)
		if err != nil {
			return nil, err
		}
		if err := h.checkHost(op, p, *host); err != nil {
			return nil, err
		}
		p.HostedByPath = childPath(*host)
		if p.Location == nil {
			inheritLocation(&p, *host)
		}
	} else {
		p.HostedByPath = nil
	}

	now := timestamp.Now()
	p.Status = store.StatusActive
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := h.store.create(ctx, op, p); err != nil {
		return nil, err
	}
	h.logger.Info("platform created", "platform", p.ID, "host", p.IsHostedBy, "deployment", p.OwnerDeployment)
	return &p, nil
}

// Rehost moves a platform (and with it, its whole subtree) onto a new
// host. The new host's location flows down to every mobile descendant
// and to static descendants that have no location of their own; static
// platforms that already know where they are stay put. Returns the
// updated platform and the ids of every platform whose ancestry
// changed, the rehosted platform included.
func (h *Hierarchy) Rehost(ctx context.Context, id, newHostID string) (*Platform, []string, error) {
	const op = "Rehost"

	p, revision, err := h.store.getWithRevision(ctx, op, id)
	if err != nil {
		return nil, nil, err
	}
	if newHostID == id {
		return nil, nil, errors.Validationf(component, op, "platform %s cannot host itself", id)
	}
	if newHostID == p.IsHostedBy {
		return nil, nil, errors.Validationf(component, op, "platform %s is already hosted by %s", id, newHostID)
	}

	host, err := h.store.Get(ctx, newHostID)
	if err != nil {
		return nil, nil, err
	}
	if host.HasAncestor(id) {
		return nil, nil, errors.Forbiddenf(component, op, "platform %s is a descendant of %s; rehosting would create a cycle", newHostID, id)
	}
	if err := h.checkHost(op, *p, *host); err != nil {
		return nil, nil, err
	}

	descendants, err := h.store.Descendants(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	oldPathLen := len(p.HostedByPath)
	p.IsHostedBy = newHostID
	p.HostedByPath = childPath(*host)
	inheritLocation(p, *host)
	p.UpdatedAt = timestamp.Now()
	if err := h.store.update(ctx, op, *p, revision); err != nil {
		return nil, nil, err
	}

	affected := []string{p.ID}
	for _, d := range descendants {
		// The leading oldPathLen segments of a descendant's path were
		// the rehosted platform's old ancestors; splice in the new ones.
		rebased := make([]string, 0, len(p.HostedByPath)+len(d.HostedByPath)-oldPathLen)
		rebased = append(rebased, p.HostedByPath...)
		rebased = append(rebased, d.HostedByPath[oldPathLen:]...)
		d.HostedByPath = rebased
		inheritLocation(&d, *host)

		if err := h.updateDescendant(ctx, op, d); err != nil {
			return nil, nil, err
		}
		affected = append(affected, d.ID)
	}

	h.logger.Info("platform rehosted", "platform", id, "host", newHostID, "affected", len(affected))
	return p, affected, nil
}

// Unhost detaches a platform from its host. The platform keeps its
// last-known location; descendants stay attached and have the old
// ancestors trimmed off their paths.
func (h *Hierarchy) Unhost(ctx context.Context, id string) (*Platform, []string, error) {
	const op = "Unhost"

	p, revision, err := h.store.getWithRevision(ctx, op, id)
	if err != nil {
		return nil, nil, err
	}
	if !p.Hosted() {
		return nil, nil, errors.Validationf(component, op, "platform %s is not hosted", id)
	}

	descendants, err := h.store.Descendants(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	trim := len(p.HostedByPath)
	p.IsHostedBy = ""
	p.HostedByPath = nil
	p.UpdatedAt = timestamp.Now()
	if err := h.store.update(ctx, op, *p, revision); err != nil {
		return nil, nil, err
	}

	affected := []string{p.ID}
	for _, d := range descendants {
		d.HostedByPath = append([]string(nil), d.HostedByPath[trim:]...)
		if err := h.updateDescendant(ctx, op, d); err != nil {
			return nil, nil, err
		}
		affected = append(affected, d.ID)
	}

	h.logger.Info("platform unhosted", "platform", id, "affected", len(affected))
	return p, affected, nil
}

// CutDescendants detaches a platform's subtree ahead of its deletion.
// Direct children lose their host entirely; deeper descendants stay on
// their nearer ancestor and have the deleted platform and everything
// above it trimmed from their paths. Returns the ids of every
// descendant touched.
func (h *Hierarchy) CutDescendants(ctx context.Context, id string) ([]string, error) {
	const op = "CutDescendants"

	descendants, err := h.store.Descendants(ctx, id)
	if err != nil {
		return nil, err
	}

	var affected []string
	for _, d := range descendants {
		if d.IsHostedBy == id {
			d.IsHostedBy = ""
			d.HostedByPath = nil
		} else {
			cut := indexOf(d.HostedByPath, id)
			d.HostedByPath = append([]string(nil), d.HostedByPath[cut+1:]...)
		}
		if err := h.updateDescendant(ctx, op, d); err != nil {
			return nil, err
		}
		affected = append(affected, d.ID)
	}

	if len(affected) > 0 {
		h.logger.Info("platform subtree cut", "platform", id, "affected", len(affected))
	}
	return affected, nil
}

// Delete soft-deletes a platform after cutting its subtree loose.
// Returns the ids of the descendants whose ancestry changed; the
// caller is responsible for re-versioning the contexts of sensors
// hosted on them, and for detaching sensors hosted on the deleted
// platform itself.
func (h *Hierarchy) Delete(ctx context.Context, id string) ([]string, error) {
	const op = "Delete"

	p, revision, err := h.store.getWithRevision(ctx, op, id)
	if err != nil {
		return nil, err
	}

	affected, err := h.CutDescendants(ctx, id)
	if err != nil {
		return nil, err
	}

	p.IsHostedBy = ""
	p.HostedByPath = nil
	p.Status = store.StatusDeleted
	p.UpdatedAt = timestamp.Now()
	if err := h.store.update(ctx, op, *p, revision); err != nil {
		return nil, err
	}

	h.logger.Info("platform deleted", "platform", id, "descendants", len(affected))
	return affected, nil
}

// checkHost holds the hosting rules shared by Create and Rehost: the
// host must be visible in the platform's owning deployment, and a
// static platform may never sit on a mobile one.
func (h *Hierarchy) checkHost(op string, p, host Platform) error {
	if !host.VisibleIn(p.OwnerDeployment) {
		return errors.Forbiddenf(component, op, "host platform %s is not in deployment %s", host.ID, p.OwnerDeployment)
	}
	if p.Static && !host.Static {
		return errors.Forbiddenf(component, op, "static platform %s cannot be hosted on mobile platform %s", p.ID, host.ID)
	}
	return nil
}

// inheritLocation copies the host's location onto p unless p is static
// and already owns one. The host's updateLocationWithSensor pointer
// rides along so a moving host keeps moving its passengers.
func inheritLocation(p *Platform, host Platform) {
	if host.Location == nil {
		return
	}
	if p.Static && p.Location != nil {
		return
	}
	loc := *host.Location
	p.Location = &loc
	if host.UpdateLocationWithSensor != "" {
		p.UpdateLocationWithSensor = host.UpdateLocationWithSensor
	}
}

// updateDescendant rewrites a descendant row, re-reading for the
// current revision since List carries none.
func (h *Hierarchy) updateDescendant(ctx context.Context, op string, d Platform) error {
	_, revision, err := h.store.getWithRevision(ctx, op, d.ID)
	if err != nil {
		return err
	}
	d.UpdatedAt = timestamp.Now()
	return h.store.update(ctx, op, d, revision)
}

func childPath(host Platform) []string {
	path := make([]string, 0, len(host.HostedByPath)+1)
	path = append(path, host.HostedByPath...)
	return append(path, host.ID)
}

func indexOf(list []string, want string) int {
	for i, v := range list {
		if v == want {
			return i
		}
	}
	return -1
}
