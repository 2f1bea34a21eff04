package enrich

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/errors"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/message"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/pkg/timestamp"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/store"
)

// UnknownSensor records observations from sensors with no context at
// their result time: how many have arrived and what the last one
// looked like, so an operator can see what keeps knocking.
type UnknownSensor struct {
	Sensor          string              `json:"sensor"`
	Count           int64               `json:"count"`
	LastObservation message.Observation `json:"lastObservation"`
	LastSeen        int64               `json:"lastSeen"`
}

// UnknownStore persists unknown-sensor records keyed by sensor id.
// Upserts are read-modify-write without CAS; two racing upserts may
// lose a count increment, which is acceptable for a diagnostic sink.
type UnknownStore struct {
	docs   store.Documents
	logger *slog.Logger
}

// NewUnknownStore creates an unknown-sensor store over the given
// bucket.
func NewUnknownStore(docs store.Documents, logger *slog.Logger) *UnknownStore {
	return &UnknownStore{
		docs:   docs,
		logger: logger.With("component", component),
	}
}

// Upsert bumps the counter for a sensor and remembers its latest
// observation.
func (s *UnknownStore) Upsert(ctx context.Context, sensorID string, obs message.Observation) error {
	const op = "Upsert"

	record := UnknownSensor{Sensor: sensorID}
	entry, err := s.docs.Get(ctx, sensorID)
	if err != nil && !store.IsNotFound(err) {
		return errors.WrapStore(err, component, op, "read unknown-sensor record")
	}
	if entry != nil {
		if err := json.Unmarshal(entry.Value, &record); err != nil {
			return errors.WrapStore(err, component, op, "unmarshal unknown-sensor record")
		}
	}

	record.Count++
	record.LastObservation = obs
	record.LastSeen = timestamp.Now()

	doc, err := json.Marshal(record)
	if err != nil {
		return errors.WrapStore(err, component, op, "marshal unknown-sensor record")
	}
	if _, err := s.docs.Put(ctx, sensorID, doc); err != nil {
		return errors.WrapStore(err, component, op, "write unknown-sensor record")
	}
	return nil
}

// Get returns the record for a sensor.
func (s *UnknownStore) Get(ctx context.Context, sensorID string) (*UnknownSensor, error) {
	const op = "Get"

	entry, err := s.docs.Get(ctx, sensorID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, errors.NotFound(errors.ErrSensorNotFound, component, op)
		}
		return nil, errors.WrapStore(err, component, op, "read unknown-sensor record")
	}
	var record UnknownSensor
	if err := json.Unmarshal(entry.Value, &record); err != nil {
		return nil, errors.WrapStore(err, component, op, "unmarshal unknown-sensor record")
	}
	return &record, nil
}

// Forget drops the record for a sensor, typically once it has been
// properly created.
func (s *UnknownStore) Forget(ctx context.Context, sensorID string) error {
	const op = "Forget"

	if err := s.docs.Delete(ctx, sensorID); err != nil && !store.IsNotFound(err) {
		return errors.WrapStore(err, component, op, "delete unknown-sensor record")
	}
	return nil
}
