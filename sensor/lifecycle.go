package sensor

import (
	"context"
	"log/slog"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/errors"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/pkg/timestamp"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/platform"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/sensorcontext"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/store"
)

// PlatformGetter is the slice of the platform store the lifecycle
// needs: resolving host platforms to their paths.
type PlatformGetter interface {
	Get(ctx context.Context, id string) (*platform.Platform, error)
}

// DeploymentChecker reports deployment existence as nil-or-NotFound.
type DeploymentChecker interface {
	Exists(ctx context.Context, id string) error
}

// LocationSensorDetacher clears a permanent host's
// updateLocationWithSensor pointer when it names the given sensor.
type LocationSensorDetacher interface {
	DetachLocationSensor(ctx context.Context, sensorID string) error
}

// Controller owns sensor writes. Every mutation that changes the
// sensor's effective context payload ends the live context and creates
// a superseding version; edits that leave the payload unchanged leave
// the context history alone.
type Controller struct {
	sensors     *Store
	contexts    *sensorcontext.Store
	platforms   PlatformGetter
	deployments DeploymentChecker
	hosts       LocationSensorDetacher
	logger      *slog.Logger
}

// NewController wires a sensor lifecycle controller.
func NewController(sensors *Store, contexts *sensorcontext.Store, platforms PlatformGetter, deployments DeploymentChecker, hosts LocationSensorDetacher, logger *slog.Logger) *Controller {
	return &Controller{
		sensors:     sensors,
		contexts:    contexts,
		platforms:   platforms,
		deployments: deployments,
		hosts:       hosts,
		logger:      logger.With("component", component),
	}
}

// Create validates and persists a new sensor and cuts its first
// context version from the initial state.
func (c *Controller) Create(ctx context.Context, row Sensor) (*Sensor, error) {
	const op = "Create"

	if !store.ValidID(row.ID) {
		return nil, errors.Validationf(component, op, "invalid sensor id %q", row.ID)
	}
	if err := CheckNew(row); err != nil {
		return nil, err
	}
	if row.HasDeployment != "" {
		if err := c.deployments.Exists(ctx, row.HasDeployment); err != nil {
			return nil, err
		}
	}

	var hostedByPath []string
	if row.IsHostedBy != "" {
		path, err := c.resolveHostPath(ctx, op, row.IsHostedBy, row.HasDeployment)
		if err != nil {
			return nil, err
		}
		hostedByPath = path
	}

	if row.CurrentConfig == nil {
		row.CurrentConfig = row.InitialConfig
	}

	now := timestamp.Now()
	row.Status = store.StatusActive
	row.CreatedAt = now
	row.UpdatedAt = now
	if err := c.sensors.create(ctx, op, row); err != nil {
		return nil, err
	}

	if err := c.contexts.Create(ctx, sensorcontext.Context{
		ID:        uuid.NewString(),
		Sensor:    row.ID,
		StartDate: now,
		ToAdd:     ContextPayload(row, hostedByPath),
	}); err != nil {
		return nil, err
	}

	c.logger.Info("sensor created", "sensor", row.ID, "deployment", row.HasDeployment, "platform", row.IsHostedBy)
	return &row, nil
}

// Update applies a guarded update to a sensor. When the post-update
// state derives a context payload that differs from the live one, the
// live context is ended and the new payload becomes the live version;
// otherwise the context history is untouched.
func (c *Controller) Update(ctx context.Context, id string, u Updates) (*Sensor, error) {
	const op = "Update"

	current, revision, err := c.sensors.getWithRevision(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if err := CheckUpdate(*current, u); err != nil {
		return nil, err
	}

	next := u.apply(*current)

	if next.HasDeployment != "" && next.HasDeployment != current.HasDeployment {
		if err := c.deployments.Exists(ctx, next.HasDeployment); err != nil {
			return nil, err
		}
	}

	var hostedByPath []string
	if next.IsHostedBy != "" {
		path, err := c.resolveHostPath(ctx, op, next.IsHostedBy, next.HasDeployment)
		if err != nil {
			return nil, err
		}
		hostedByPath = path
	}

	// Leaving a permanent host releases its location pointer if this
	// sensor was driving it.
	if current.PermanentHost != "" && next.PermanentHost != current.PermanentHost {
		if err := c.hosts.DetachLocationSensor(ctx, id); err != nil {
			return nil, err
		}
	}

	next.UpdatedAt = timestamp.Now()
	if err := c.sensors.update(ctx, op, next, revision); err != nil {
		return nil, err
	}

	if err := c.reversion(ctx, next, hostedByPath); err != nil {
		return nil, err
	}
	return &next, nil
}

// Delete ends the sensor's live context, releases any permanent-host
// location pointer naming it, and soft-deletes the row.
func (c *Controller) Delete(ctx context.Context, id string) error {
	const op = "Delete"

	row, revision, err := c.sensors.getWithRevision(ctx, op, id)
	if err != nil {
		return err
	}

	if err := c.contexts.EndLive(ctx, id, timestamp.Now()); err != nil && !errors.IsNotFound(err) {
		return err
	}
	if row.PermanentHost != "" {
		if err := c.hosts.DetachLocationSensor(ctx, id); err != nil {
			return err
		}
	}

	row.Status = store.StatusDeleted
	row.UpdatedAt = timestamp.Now()
	if err := c.sensors.update(ctx, op, *row, revision); err != nil {
		return err
	}
	c.logger.Info("sensor deleted", "sensor", id)
	return nil
}

// RecontextualizeHosted re-versions the context of every sensor hosted
// directly on one of the given platforms. Used after a structural
// change to the hosting tree; each sensor's new payload is derived
// from its platform's current path.
func (c *Controller) RecontextualizeHosted(ctx context.Context, platformIDs []string) error {
	sensors, err := c.sensors.ListByPlatforms(ctx, platformIDs)
	if err != nil {
		return err
	}
	for _, row := range sensors {
		host, err := c.platforms.Get(ctx, row.IsHostedBy)
		if err != nil {
			return err
		}
		path := append(append([]string(nil), host.HostedByPath...), host.ID)
		if err := c.reversion(ctx, row, path); err != nil {
			return err
		}
	}
	return nil
}

// DetachFromPlatforms clears the platform link of every sensor hosted
// directly on one of the given platforms and re-versions their
// contexts. Used when a platform is deleted; this is the one path that
// may clear isHostedBy.
func (c *Controller) DetachFromPlatforms(ctx context.Context, platformIDs []string) error {
	const op = "DetachFromPlatforms"

	sensors, err := c.sensors.ListByPlatforms(ctx, platformIDs)
	if err != nil {
		return err
	}
	for _, row := range sensors {
		current, revision, err := c.sensors.getWithRevision(ctx, op, row.ID)
		if err != nil {
			return err
		}
		current.IsHostedBy = ""
		current.UpdatedAt = timestamp.Now()
		if err := c.sensors.update(ctx, op, *current, revision); err != nil {
			return err
		}
		if err := c.reversion(ctx, *current, nil); err != nil {
			return err
		}
	}
	return nil
}

// Migrate moves a sensor into a deployment and onto a platform on
// behalf of the registration workflow, which is the only caller
// allowed to set these fields on a permanent-host sensor. The live
// context is always ended and recreated with the new deployment,
// hosting path and the sensor's own config.
func (c *Controller) Migrate(ctx context.Context, id, deploymentID, platformID string, hostedByPath []string) (*Sensor, error) {
	const op = "Migrate"

	row, revision, err := c.sensors.getWithRevision(ctx, op, id)
	if err != nil {
		return nil, err
	}

	row.HasDeployment = deploymentID
	row.IsHostedBy = platformID
	row.UpdatedAt = timestamp.Now()
	if err := c.sensors.update(ctx, op, *row, revision); err != nil {
		return nil, err
	}

	now := timestamp.Now()
	if err := c.contexts.EndLive(ctx, id, now); err != nil && !errors.IsNotFound(err) {
		return nil, err
	}
	if err := c.contexts.Create(ctx, sensorcontext.Context{
		ID:        uuid.NewString(),
		Sensor:    id,
		StartDate: now,
		ToAdd:     ContextPayload(*row, hostedByPath),
	}); err != nil {
		return nil, err
	}
	c.logger.Info("sensor migrated", "sensor", id, "deployment", deploymentID, "platform", platformID)
	return row, nil
}

// reversion cuts a new context version for the sensor when the payload
// derived from its current state differs from the live one. The
// comparison ignores context identity and dates; only the payload
// matters, so a no-op edit never floods the history with duplicate
// versions.
func (c *Controller) reversion(ctx context.Context, row Sensor, hostedByPath []string) error {
	candidate := ContextPayload(row, hostedByPath)

	live, err := c.contexts.GetLive(ctx, row.ID)
	if err != nil && !errors.IsNotFound(err) {
		return err
	}

	now := timestamp.Now()
	if live != nil {
		if cmp.Equal(candidate, live.ToAdd, cmpopts.EquateEmpty()) {
			return nil
		}
		if err := c.contexts.EndLive(ctx, row.ID, now); err != nil {
			return err
		}
	}

	if err := c.contexts.Create(ctx, sensorcontext.Context{
		ID:        uuid.NewString(),
		Sensor:    row.ID,
		StartDate: now,
		ToAdd:     candidate,
	}); err != nil {
		return err
	}
	c.logger.Info("context re-versioned", "sensor", row.ID)
	return nil
}

// resolveHostPath loads the host platform, checks it is visible in the
// sensor's deployment, and returns the path the sensor's context
// should carry: the platform's own ancestry plus the platform itself.
func (c *Controller) resolveHostPath(ctx context.Context, op, platformID, deploymentID string) ([]string, error) {
	host, err := c.platforms.Get(ctx, platformID)
	if err != nil {
		return nil, err
	}
	if !host.VisibleIn(deploymentID) {
		return nil, errors.Forbiddenf(component, op, "platform %s is not in deployment %s", platformID, deploymentID)
	}
	return append(append([]string(nil), host.HostedByPath...), host.ID), nil
}
