package sensor

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/errors"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/store"
)

const component = "sensor"

// Store persists sensor rows, keyed by sensor id.
type Store struct {
	docs   store.Documents
	logger *slog.Logger
}

// NewStore creates a sensor store over the given document bucket.
func NewStore(docs store.Documents, logger *slog.Logger) *Store {
	return &Store{
		docs:   docs,
		logger: logger.With("component", component),
	}
}

// Get returns an active sensor by id.
func (s *Store) Get(ctx context.Context, id string) (*Sensor, error) {
	const op = "Get"

	row, _, err := s.getWithRevision(ctx, op, id)
	return row, err
}

func (s *Store) getWithRevision(ctx context.Context, op, id string) (*Sensor, uint64, error) {
	entry, err := s.docs.Get(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, 0, errors.NotFound(errors.ErrSensorNotFound, component, op)
		}
		return nil, 0, errors.WrapStore(err, component, op, "read sensor document")
	}

	var row Sensor
	if err := json.Unmarshal(entry.Value, &row); err != nil {
		return nil, 0, errors.WrapStore(err, component, op, "unmarshal sensor")
	}
	if row.Status == store.StatusDeleted {
		return nil, 0, errors.NotFound(errors.ErrSensorNotFound, component, op)
	}
	return &row, entry.Revision, nil
}

func (s *Store) create(ctx context.Context, op string, row Sensor) error {
	doc, err := json.Marshal(row)
	if err != nil {
		return errors.WrapStore(err, component, op, "marshal sensor")
	}
	if _, err := s.docs.Create(ctx, row.ID, doc); err != nil {
		if store.IsConflict(err) {
			return errors.Conflictf(component, op, "sensor %s already exists", row.ID)
		}
		return errors.WrapStore(err, component, op, "create sensor document")
	}
	return nil
}

func (s *Store) update(ctx context.Context, op string, row Sensor, revision uint64) error {
	doc, err := json.Marshal(row)
	if err != nil {
		return errors.WrapStore(err, component, op, "marshal sensor")
	}
	if _, err := s.docs.Update(ctx, row.ID, doc, revision); err != nil {
		if store.IsConflict(err) {
			return errors.Conflict(errors.ErrRevisionConflict, component, op)
		}
		return errors.WrapStore(err, component, op, "update sensor document")
	}
	return nil
}

// List returns every active sensor matching the filter.
func (s *Store) List(ctx context.Context, filter func(Sensor) bool) ([]Sensor, error) {
	const op = "List"

	keys, err := s.docs.Keys(ctx, "")
	if err != nil {
		return nil, errors.WrapStore(err, component, op, "list sensor documents")
	}

	var sensors []Sensor
	for _, key := range keys {
		entry, err := s.docs.Get(ctx, key)
		if err != nil {
			if store.IsNotFound(err) {
				continue
			}
			return nil, errors.WrapStore(err, component, op, "read sensor document")
		}
		var row Sensor
		if err := json.Unmarshal(entry.Value, &row); err != nil {
			return nil, errors.WrapStore(err, component, op, "unmarshal sensor")
		}
		if row.Status == store.StatusDeleted {
			continue
		}
		if filter == nil || filter(row) {
			sensors = append(sensors, row)
		}
	}
	return sensors, nil
}

// ListByPermanentHost returns the active sensors belonging to a
// hardware unit.
func (s *Store) ListByPermanentHost(ctx context.Context, permanentHost string) ([]Sensor, error) {
	return s.List(ctx, func(row Sensor) bool {
		return row.PermanentHost == permanentHost
	})
}

// ListByPlatforms returns the active sensors hosted directly on any of
// the given platforms.
func (s *Store) ListByPlatforms(ctx context.Context, platformIDs []string) ([]Sensor, error) {
	wanted := make(map[string]bool, len(platformIDs))
	for _, id := range platformIDs {
		wanted[id] = true
	}
	return s.List(ctx, func(row Sensor) bool {
		return row.IsHostedBy != "" && wanted[row.IsHostedBy]
	})
}
