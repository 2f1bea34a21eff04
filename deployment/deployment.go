// Package deployment is the catalog of deployments: the organizational
// units that own platforms and sensors. It is a plain soft-delete CRUD
// store; the interesting structural logic lives with the platforms and
// sensors that reference it.
package deployment

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/errors"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/pkg/timestamp"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/store"
)

const component = "deployment"

// Deployment is an owning unit for platforms and sensors.
type Deployment struct {
	ID          string `json:"id"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
	Public      bool   `json:"public"`

	Status    store.Status `json:"status"`
	CreatedAt int64        `json:"createdAt"`
	UpdatedAt int64        `json:"updatedAt"`
}

// Store persists deployments keyed by id.
type Store struct {
	docs   store.Documents
	logger *slog.Logger
}

func NewStore(docs store.Documents, logger *slog.Logger) *Store {
	return &Store{
		docs:   docs,
		logger: logger.With("component", component),
	}
}

// Get returns an active deployment by id.
func (s *Store) Get(ctx context.Context, id string) (*Deployment, error) {
	const op = "Get"

	d, _, err := s.get(ctx, op, id)
	return d, err
}

// Exists reports whether an active deployment with the given id is
// present, as a nil-or-NotFound error.
func (s *Store) Exists(ctx context.Context, id string) error {
	const op = "Exists"

	_, _, err := s.get(ctx, op, id)
	return err
}

func (s *Store) get(ctx context.Context, op, id string) (*Deployment, uint64, error) {
	entry, err := s.docs.Get(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, 0, errors.NotFound(errors.ErrDeploymentNotFound, component, op)
		}
		return nil, 0, errors.WrapStore(err, component, op, "read deployment document")
	}

	var d Deployment
	if err := json.Unmarshal(entry.Value, &d); err != nil {
		return nil, 0, errors.WrapStore(err, component, op, "unmarshal deployment")
	}
	if d.Status == store.StatusDeleted {
		return nil, 0, errors.NotFound(errors.ErrDeploymentNotFound, component, op)
	}
	return &d, entry.Revision, nil
}

// Create persists a new deployment; duplicate ids are a Conflict.
func (s *Store) Create(ctx context.Context, d Deployment) (*Deployment, error) {
	const op = "Create"

	if !store.ValidID(d.ID) {
		return nil, errors.Validationf(component, op, "invalid deployment id %q", d.ID)
	}

	now := timestamp.Now()
	d.Status = store.StatusActive
	d.CreatedAt = now
	d.UpdatedAt = now

	doc, err := json.Marshal(d)
	if err != nil {
		return nil, errors.WrapStore(err, component, op, "marshal deployment")
	}
	if _, err := s.docs.Create(ctx, d.ID, doc); err != nil {
		if store.IsConflict(err) {
			return nil, errors.Conflictf(component, op, "deployment %s already exists", d.ID)
		}
		return nil, errors.WrapStore(err, component, op, "create deployment document")
	}
	s.logger.Info("deployment created", "deployment", d.ID)
	return &d, nil
}

// Updates carries the fields an update may change; nil pointers mean
// leave-as-is.
type Updates struct {
	Label       *string `json:"label,omitempty"`
	Description *string `json:"description,omitempty"`
	Public      *bool   `json:"public,omitempty"`
}

// Update applies a partial update to an active deployment.
func (s *Store) Update(ctx context.Context, id string, u Updates) (*Deployment, error) {
	const op = "Update"

	d, revision, err := s.get(ctx, op, id)
	if err != nil {
		return nil, err
	}

	if u.Label != nil {
		d.Label = *u.Label
	}
	if u.Description != nil {
		d.Description = *u.Description
	}
	if u.Public != nil {
		d.Public = *u.Public
	}
	d.UpdatedAt = timestamp.Now()

	if err := s.write(ctx, op, *d, revision); err != nil {
		return nil, err
	}
	return d, nil
}

// Delete soft-deletes the deployment. The caller is responsible for
// first cutting loose the platforms and sensors it owns.
func (s *Store) Delete(ctx context.Context, id string) error {
	const op = "Delete"

	d, revision, err := s.get(ctx, op, id)
	if err != nil {
		return err
	}

	d.Status = store.StatusDeleted
	d.UpdatedAt = timestamp.Now()
	if err := s.write(ctx, op, *d, revision); err != nil {
		return err
	}
	s.logger.Info("deployment deleted", "deployment", id)
	return nil
}

func (s *Store) write(ctx context.Context, op string, d Deployment, revision uint64) error {
	doc, err := json.Marshal(d)
	if err != nil {
		return errors.WrapStore(err, component, op, "marshal deployment")
	}
	if _, err := s.docs.Update(ctx, d.ID, doc, revision); err != nil {
		if store.IsConflict(err) {
			return errors.Conflict(errors.ErrRevisionConflict, component, op)
		}
		return errors.WrapStore(err, component, op, "update deployment document")
	}
	return nil
}
