package registration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/errors"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/platform"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/sensor"
)

// Workflow binds a permanent hardware unit and all its sensors into a
// deployment in one logical operation. It is a saga: each step commits
// independently and there is no automatic rollback, so a failure
// mid-migration leaves earlier sensors moved and later ones not. The
// "already registered" guard makes a full re-run safe only before the
// host has been marked; a partial sensor migration has to be repaired
// by hand.
type Workflow struct {
	hosts     *HostStore
	sensors   *sensor.Store
	lifecycle *sensor.Controller
	hierarchy *platform.Hierarchy
	logger    *slog.Logger
}

// NewWorkflow wires the registration workflow.
func NewWorkflow(hosts *HostStore, sensors *sensor.Store, lifecycle *sensor.Controller, hierarchy *platform.Hierarchy, logger *slog.Logger) *Workflow {
	return &Workflow{
		hosts:     hosts,
		sensors:   sensors,
		lifecycle: lifecycle,
		hierarchy: hierarchy,
		logger:    logger.With("component", component),
	}
}

// Result reports what a registration produced.
type Result struct {
	Host     PermanentHost `json:"host"`
	Platform string        `json:"platform"`
	Sensors  []string      `json:"sensors"`
}

// Register claims the permanent host identified by registrationKey for
// the given deployment: one new platform seeded from the host, every
// sensor of the unit moved onto it with a fresh context version, and
// the host marked registered.
func (w *Workflow) Register(ctx context.Context, registrationKey, deploymentID string) (*Result, error) {
	const op = "Register"

	host, err := w.hosts.GetByKey(ctx, registrationKey)
	if err != nil {
		return nil, err
	}
	if host.RegisteredAs != "" {
		return nil, errors.Forbiddenf(component, op, "permanent host %s is already registered as platform %s", host.ID, host.RegisteredAs)
	}

	unitSensors, err := w.sensors.ListByPermanentHost(ctx, host.ID)
	if err != nil {
		return nil, err
	}
	// Registration is all-or-nothing for the unit.
	for _, s := range unitSensors {
		if s.HasDeployment != "" {
			return nil, errors.Forbiddenf(component, op, "sensor %s on permanent host %s is already in deployment %s", s.ID, host.ID, s.HasDeployment)
		}
	}

	created, err := w.hierarchy.Create(ctx, platform.Platform{
		ID:                       platformID(host.ID),
		Label:                    host.Label,
		OwnerDeployment:          deploymentID,
		Static:                   host.Static,
		Location:                 host.Location,
		UpdateLocationWithSensor: host.UpdateLocationWithSensor,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{Platform: created.ID}
	for _, s := range unitSensors {
		if _, err := w.lifecycle.Migrate(ctx, s.ID, deploymentID, created.ID, []string{created.ID}); err != nil {
			return nil, err
		}
		result.Sensors = append(result.Sensors, s.ID)
	}

	if err := w.hosts.MarkRegistered(ctx, host.ID, created.ID); err != nil {
		return nil, err
	}
	host.RegisteredAs = created.ID
	result.Host = *host

	w.logger.Info("permanent host registered",
		"host", host.ID, "deployment", deploymentID, "platform", created.ID, "sensors", len(result.Sensors))
	return result, nil
}

// platformID derives a fresh platform id for a registration. The host
// id alone is not enough: a host can be registered, released and
// registered again, and platform rows are only ever soft-deleted.
func platformID(hostID string) string {
	return fmt.Sprintf("%s-%s", hostID, uuid.NewString()[:8])
}
