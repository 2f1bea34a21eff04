package sensorcontext

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/errors"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/store"
)

const component = "contextstore"

// livePointer is the document behind the live.<sensor> key. Its
// existence is the uniqueness constraint: at most one context per
// sensor has no end date, enforced by store.Create semantics.
type livePointer struct {
	Context string `json:"context"`
}

// Store persists context versions in the contexts bucket. Context
// documents live at ctx.<sensor>.<id>; the live version is addressed
// through the live.<sensor> pointer key.
type Store struct {
	docs   store.Documents
	logger *slog.Logger
}

// NewStore creates a context store over the given document bucket.
func NewStore(docs store.Documents, logger *slog.Logger) *Store {
	return &Store{
		docs:   docs,
		logger: logger.With("component", component),
	}
}

// Create persists a new live context. It fails with a Conflict when a
// live context already exists for the sensor; callers must end the old
// version first. Concurrent creates race on the live pointer and
// exactly one wins.
func (s *Store) Create(ctx context.Context, c Context) error {
	const op = "Create"

	if !store.ValidID(c.Sensor) {
		return errors.Validationf(component, op, "invalid sensor id %q", c.Sensor)
	}
	if c.ID == "" {
		return errors.Validationf(component, op, "context id is required")
	}
	if c.StartDate == 0 {
		return errors.Validationf(component, op, "startDate is required")
	}
	if !c.Live() {
		return errors.Validationf(component, op, "a new context must be live (no endDate)")
	}

	pointer, err := json.Marshal(livePointer{Context: c.ID})
	if err != nil {
		return errors.WrapStore(err, component, op, "marshal live pointer")
	}
	doc, err := json.Marshal(c)
	if err != nil {
		return errors.WrapStore(err, component, op, "marshal context")
	}

	// The pointer create is the uniqueness gate.
	if _, err := s.docs.Create(ctx, liveKey(c.Sensor), pointer); err != nil {
		if store.IsConflict(err) {
			return errors.Conflict(errors.ErrLiveContextExists, component, op)
		}
		return errors.WrapStore(err, component, op, "create live pointer")
	}

	if _, err := s.docs.Create(ctx, contextKey(c.Sensor, c.ID), doc); err != nil {
		// Roll the pointer back so the sensor is not left pointing at a
		// context that was never written. Best effort; a failure here
		// leaves a dangling pointer that the next Create reports as a
		// conflict.
		if delErr := s.docs.Delete(ctx, liveKey(c.Sensor)); delErr != nil {
			s.logger.Error("live pointer rollback failed",
				"sensor", c.Sensor, "context", c.ID, "error", delErr)
		}
		if store.IsConflict(err) {
			return errors.Conflict(errors.ErrAlreadyExists, component, op)
		}
		return errors.WrapStore(err, component, op, "create context document")
	}

	return nil
}

// GetLive returns the context with no end date for the sensor. A sensor
// with no live pointer has never had context attached (or has had it
// ended): NotFound.
func (s *Store) GetLive(ctx context.Context, sensorID string) (*Context, error) {
	const op = "GetLive"

	entry, err := s.docs.Get(ctx, liveKey(sensorID))
	if err != nil {
		if store.IsNotFound(err) {
			return nil, errors.NotFound(errors.ErrContextNotFound, component, op)
		}
		return nil, errors.WrapStore(err, component, op, "read live pointer")
	}

	var pointer livePointer
	if err := json.Unmarshal(entry.Value, &pointer); err != nil {
		return nil, errors.WrapStore(err, component, op, "unmarshal live pointer")
	}

	return s.get(ctx, op, sensorID, pointer.Context)
}

// EndLive closes the live context at endDate and removes the live
// pointer, making room for a superseding version.
func (s *Store) EndLive(ctx context.Context, sensorID string, endDate int64) error {
	const op = "EndLive"

	live, err := s.GetLive(ctx, sensorID)
	if err != nil {
		return err
	}
	if endDate < live.StartDate {
		return errors.Validationf(component, op,
			"endDate %d precedes startDate %d", endDate, live.StartDate)
	}

	entry, err := s.docs.Get(ctx, contextKey(sensorID, live.ID))
	if err != nil {
		return errors.WrapStore(err, component, op, "read context document")
	}

	closed := *live
	closed.EndDate = endDate
	doc, err := json.Marshal(closed)
	if err != nil {
		return errors.WrapStore(err, component, op, "marshal context")
	}

	if _, err := s.docs.Update(ctx, contextKey(sensorID, live.ID), doc, entry.Revision); err != nil {
		if store.IsConflict(err) {
			return errors.Conflict(errors.ErrRevisionConflict, component, op)
		}
		return errors.WrapStore(err, component, op, "close context document")
	}

	if err := s.docs.Delete(ctx, liveKey(sensorID)); err != nil && !store.IsNotFound(err) {
		return errors.WrapStore(err, component, op, "remove live pointer")
	}
	return nil
}

// GetAt returns the context whose validity interval contains t. Used by
// observation enrichment to resolve out-of-order observations against
// the context valid at their own result time.
func (s *Store) GetAt(ctx context.Context, sensorID string, t int64) (*Context, error) {
	const op = "GetAt"

	keys, err := s.docs.Keys(ctx, contextPrefix(sensorID))
	if err != nil {
		return nil, errors.WrapStore(err, component, op, "list context documents")
	}

	for _, key := range keys {
		entry, err := s.docs.Get(ctx, key)
		if err != nil {
			if store.IsNotFound(err) {
				continue
			}
			return nil, errors.WrapStore(err, component, op, "read context document")
		}
		var c Context
		if err := json.Unmarshal(entry.Value, &c); err != nil {
			return nil, errors.WrapStore(err, component, op, "unmarshal context")
		}
		if c.Contains(t) {
			return &c, nil
		}
	}

	return nil, errors.NotFound(errors.ErrContextNotFound, component, op)
}

// History returns all context versions of a sensor ordered by start
// date ascending.
func (s *Store) History(ctx context.Context, sensorID string) ([]Context, error) {
	const op = "History"

	keys, err := s.docs.Keys(ctx, contextPrefix(sensorID))
	if err != nil {
		return nil, errors.WrapStore(err, component, op, "list context documents")
	}

	versions := make([]Context, 0, len(keys))
	for _, key := range keys {
		entry, err := s.docs.Get(ctx, key)
		if err != nil {
			if store.IsNotFound(err) {
				continue
			}
			return nil, errors.WrapStore(err, component, op, "read context document")
		}
		var c Context
		if err := json.Unmarshal(entry.Value, &c); err != nil {
			return nil, errors.WrapStore(err, component, op, "unmarshal context")
		}
		versions = append(versions, c)
	}

	sort.Slice(versions, func(i, j int) bool {
		if versions[i].StartDate != versions[j].StartDate {
			return versions[i].StartDate < versions[j].StartDate
		}
		// A superseded version shares its successor's start when both
		// sides of the cut land in the same millisecond; the closed
		// one comes first, the live one last.
		if versions[i].Live() != versions[j].Live() {
			return versions[j].Live()
		}
		return versions[i].EndDate < versions[j].EndDate
	})
	return versions, nil
}

func (s *Store) get(ctx context.Context, op, sensorID, contextID string) (*Context, error) {
	entry, err := s.docs.Get(ctx, contextKey(sensorID, contextID))
	if err != nil {
		if store.IsNotFound(err) {
			return nil, errors.NotFound(errors.ErrContextNotFound, component, op)
		}
		return nil, errors.WrapStore(err, component, op, "read context document")
	}
	var c Context
	if err := json.Unmarshal(entry.Value, &c); err != nil {
		return nil, errors.WrapStore(err, component, op, "unmarshal context")
	}
	return &c, nil
}

func liveKey(sensorID string) string {
	return store.Key("live", sensorID)
}

func contextKey(sensorID, contextID string) string {
	return store.Key("ctx", sensorID, contextID)
}

func contextPrefix(sensorID string) string {
	return store.Key("ctx", sensorID) + "."
}

