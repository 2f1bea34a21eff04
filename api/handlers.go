package api

import (
	"context"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/deployment"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/errors"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/message"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/platform"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/registration"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/sensor"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/vocabulary"
)

// idRequest covers every operation addressed by a bare id.
type idRequest struct {
	ID string `json:"id"`
}

// deletedReply acknowledges a soft delete.
type deletedReply struct {
	Deleted string `json:"deleted"`
}

func (a *API) sensorCreate(ctx context.Context, payload []byte) (any, error) {
	const op = "sensor.create"
	var req struct {
		ID            string               `json:"id"`
		Label         string               `json:"label"`
		Description   string               `json:"description"`
		PermanentHost string               `json:"permanentHost"`
		HasDeployment string               `json:"hasDeployment"`
		IsHostedBy    string               `json:"isHostedBy"`
		InitialConfig []sensor.ConfigEntry `json:"initialConfig"`
	}
	if err := decode(op, payload, &req); err != nil {
		return nil, err
	}
	if err := a.checkConfigRefs(ctx, op, req.InitialConfig); err != nil {
		return nil, err
	}
	created, err := a.sensors.Create(ctx, sensor.Sensor{
		ID:            req.ID,
		Label:         req.Label,
		Description:   req.Description,
		PermanentHost: req.PermanentHost,
		HasDeployment: req.HasDeployment,
		IsHostedBy:    req.IsHostedBy,
		InitialConfig: req.InitialConfig,
	})
	if err != nil {
		return nil, err
	}
	a.metrics.RecordContextVersioned(op)
	return created, nil
}

func (a *API) sensorUpdate(ctx context.Context, payload []byte) (any, error) {
	const op = "sensor.update"
	var req struct {
		ID      string         `json:"id"`
		Updates sensor.Updates `json:"updates"`
	}
	if err := decode(op, payload, &req); err != nil {
		return nil, err
	}
	if req.Updates.CurrentConfig != nil {
		if err := a.checkConfigRefs(ctx, op, *req.Updates.CurrentConfig); err != nil {
			return nil, err
		}
	}
	return a.sensors.Update(ctx, req.ID, req.Updates)
}

func (a *API) sensorGet(ctx context.Context, payload []byte) (any, error) {
	var req idRequest
	if err := decode("sensor.get", payload, &req); err != nil {
		return nil, err
	}
	return a.sensorStore.Get(ctx, req.ID)
}

func (a *API) sensorDelete(ctx context.Context, payload []byte) (any, error) {
	const op = "sensor.delete"
	var req idRequest
	if err := decode(op, payload, &req); err != nil {
		return nil, err
	}
	if err := a.sensors.Delete(ctx, req.ID); err != nil {
		return nil, err
	}
	a.metrics.RecordContextVersioned(op)
	return deletedReply{Deleted: req.ID}, nil
}

func (a *API) platformCreate(ctx context.Context, payload []byte) (any, error) {
	const op = "platform.create"
	var req struct {
		ID                       string            `json:"id"`
		Label                    string            `json:"label"`
		Description              string            `json:"description"`
		OwnerDeployment          string            `json:"ownerDeployment"`
		InDeployments            []string          `json:"inDeployments"`
		IsHostedBy               string            `json:"isHostedBy"`
		Static                   *bool             `json:"static"`
		Location                 *message.Location `json:"location"`
		UpdateLocationWithSensor string            `json:"updateLocationWithSensor"`
	}
	if err := decode(op, payload, &req); err != nil {
		return nil, err
	}
	// Platforms are fixed installations unless declared otherwise.
	static := true
	if req.Static != nil {
		static = *req.Static
	}
	return a.hierarchy.Create(ctx, platform.Platform{
		ID:                       req.ID,
		Label:                    req.Label,
		Description:              req.Description,
		OwnerDeployment:          req.OwnerDeployment,
		InDeployments:            req.InDeployments,
		IsHostedBy:               req.IsHostedBy,
		Static:                   static,
		Location:                 req.Location,
		UpdateLocationWithSensor: req.UpdateLocationWithSensor,
	})
}

func (a *API) platformRehost(ctx context.Context, payload []byte) (any, error) {
	const op = "platform.rehost"
	var req struct {
		ID     string `json:"id"`
		HostID string `json:"hostId"`
	}
	if err := decode(op, payload, &req); err != nil {
		return nil, err
	}
	p, affected, err := a.hierarchy.Rehost(ctx, req.ID, req.HostID)
	if err != nil {
		return nil, err
	}
	if err := a.sensors.RecontextualizeHosted(ctx, affected); err != nil {
		return nil, err
	}
	a.metrics.RecordContextVersioned(op)
	return p, nil
}

func (a *API) platformUnhost(ctx context.Context, payload []byte) (any, error) {
	const op = "platform.unhost"
	var req idRequest
	if err := decode(op, payload, &req); err != nil {
		return nil, err
	}
	p, affected, err := a.hierarchy.Unhost(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if err := a.sensors.RecontextualizeHosted(ctx, affected); err != nil {
		return nil, err
	}
	a.metrics.RecordContextVersioned(op)
	return p, nil
}

func (a *API) platformGet(ctx context.Context, payload []byte) (any, error) {
	var req idRequest
	if err := decode("platform.get", payload, &req); err != nil {
		return nil, err
	}
	return a.platforms.Get(ctx, req.ID)
}

func (a *API) platformDelete(ctx context.Context, payload []byte) (any, error) {
	const op = "platform.delete"
	var req idRequest
	if err := decode(op, payload, &req); err != nil {
		return nil, err
	}
	descendants, err := a.hierarchy.Delete(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	// Sensors sitting on the deleted platform drop off it entirely;
	// sensors deeper in the subtree keep their platform and pick up
	// its recomputed ancestry.
	if err := a.sensors.DetachFromPlatforms(ctx, []string{req.ID}); err != nil {
		return nil, err
	}
	if err := a.sensors.RecontextualizeHosted(ctx, descendants); err != nil {
		return nil, err
	}
	a.metrics.RecordContextVersioned(op)
	return deletedReply{Deleted: req.ID}, nil
}

func (a *API) deploymentCreate(ctx context.Context, payload []byte) (any, error) {
	const op = "deployment.create"
	var req struct {
		ID          string `json:"id"`
		Label       string `json:"label"`
		Description string `json:"description"`
		Public      bool   `json:"public"`
	}
	if err := decode(op, payload, &req); err != nil {
		return nil, err
	}
	return a.deployments.Create(ctx, deployment.Deployment{
		ID:          req.ID,
		Label:       req.Label,
		Description: req.Description,
		Public:      req.Public,
	})
}

func (a *API) deploymentUpdate(ctx context.Context, payload []byte) (any, error) {
	const op = "deployment.update"
	var req struct {
		ID      string             `json:"id"`
		Updates deployment.Updates `json:"updates"`
	}
	if err := decode(op, payload, &req); err != nil {
		return nil, err
	}
	return a.deployments.Update(ctx, req.ID, req.Updates)
}

func (a *API) deploymentGet(ctx context.Context, payload []byte) (any, error) {
	var req idRequest
	if err := decode("deployment.get", payload, &req); err != nil {
		return nil, err
	}
	return a.deployments.Get(ctx, req.ID)
}

func (a *API) deploymentDelete(ctx context.Context, payload []byte) (any, error) {
	const op = "deployment.delete"
	var req idRequest
	if err := decode(op, payload, &req); err != nil {
		return nil, err
	}
	if err := a.deployments.Delete(ctx, req.ID); err != nil {
		return nil, err
	}
	return deletedReply{Deleted: req.ID}, nil
}

func (a *API) permanentHostCreate(ctx context.Context, payload []byte) (any, error) {
	const op = "permanenthost.create"
	var req struct {
		ID                       string            `json:"id"`
		Label                    string            `json:"label"`
		Description              string            `json:"description"`
		Static                   bool              `json:"static"`
		Location                 *message.Location `json:"location"`
		UpdateLocationWithSensor string            `json:"updateLocationWithSensor"`
	}
	if err := decode(op, payload, &req); err != nil {
		return nil, err
	}
	return a.hosts.Create(ctx, registration.PermanentHost{
		ID:                       req.ID,
		Label:                    req.Label,
		Description:              req.Description,
		Static:                   req.Static,
		Location:                 req.Location,
		UpdateLocationWithSensor: req.UpdateLocationWithSensor,
	})
}

func (a *API) permanentHostRegister(ctx context.Context, payload []byte) (any, error) {
	const op = "permanenthost.register"
	var req struct {
		RegistrationKey string `json:"registrationKey"`
		DeploymentID    string `json:"deploymentId"`
	}
	if err := decode(op, payload, &req); err != nil {
		return nil, err
	}
	result, err := a.workflow.Register(ctx, req.RegistrationKey, req.DeploymentID)
	if err != nil {
		return nil, err
	}
	for range result.Sensors {
		a.metrics.RecordContextVersioned(op)
	}
	return result, nil
}

func (a *API) contextGetLive(ctx context.Context, payload []byte) (any, error) {
	var req struct {
		SensorID string `json:"sensorId"`
	}
	if err := decode("context.get-live", payload, &req); err != nil {
		return nil, err
	}
	return a.contexts.GetLive(ctx, req.SensorID)
}

func (a *API) contextGetAt(ctx context.Context, payload []byte) (any, error) {
	var req struct {
		SensorID  string `json:"sensorId"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := decode("context.get-at", payload, &req); err != nil {
		return nil, err
	}
	return a.contexts.GetAt(ctx, req.SensorID, req.Timestamp)
}

func (a *API) observationAddContext(ctx context.Context, payload []byte) (any, error) {
	var obs message.Observation
	if err := decode("observation.add-context", payload, &obs); err != nil {
		return nil, err
	}
	return a.enricher.AddContext(ctx, obs)
}

func (a *API) vocabularyCreate(ctx context.Context, payload []byte) (any, error) {
	const op = "vocabulary.create"
	var req struct {
		ID          string          `json:"id"`
		Kind        vocabulary.Kind `json:"kind"`
		Label       string          `json:"label"`
		Description string          `json:"description"`
	}
	if err := decode(op, payload, &req); err != nil {
		return nil, err
	}
	return a.vocab.Create(ctx, vocabulary.Term{
		ID:          req.ID,
		Kind:        req.Kind,
		Label:       req.Label,
		Description: req.Description,
	})
}

func (a *API) vocabularyDelete(ctx context.Context, payload []byte) (any, error) {
	const op = "vocabulary.delete"
	var req struct {
		ID   string          `json:"id"`
		Kind vocabulary.Kind `json:"kind"`
	}
	if err := decode(op, payload, &req); err != nil {
		return nil, err
	}
	if err := a.vocab.Delete(ctx, req.Kind, req.ID); err != nil {
		return nil, err
	}
	return deletedReply{Deleted: req.ID}, nil
}

// checkConfigRefs verifies every vocabulary reference in a config
// before the sensor write. An unknown reference is the caller's
// mistake, so NotFound from the vocabulary store comes back as a
// validation failure naming the missing entity.
func (a *API) checkConfigRefs(ctx context.Context, op string, entries []sensor.ConfigEntry) error {
	for _, e := range entries {
		refs := vocabulary.ConfigRefs{
			ObservedProperty:     e.ObservedProperty,
			Unit:                 e.Unit,
			HasFeatureOfInterest: e.HasFeatureOfInterest,
			Disciplines:          e.Disciplines,
			UsedProcedures:       e.UsedProcedures,
		}
		if err := a.vocab.CheckRefs(ctx, refs); err != nil {
			if errors.KindOf(err) == errors.KindNotFound {
				return errors.Validationf(component, op, "unknown vocabulary reference: %v", err)
			}
			return err
		}
	}
	return nil
}
