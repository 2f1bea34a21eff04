package platform

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/errors"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/store"
)

const component = "platform"

// Store persists platform rows, keyed by platform id.
type Store struct {
	docs   store.Documents
	logger *slog.Logger
}

// NewStore creates a platform store over the given document bucket.
func NewStore(docs store.Documents, logger *slog.Logger) *Store {
	return &Store{
		docs:   docs,
		logger: logger.With("component", component),
	}
}

// Get returns an active platform by id.
func (s *Store) Get(ctx context.Context, id string) (*Platform, error) {
	const op = "Get"

	p, _, err := s.getWithRevision(ctx, op, id)
	return p, err
}

func (s *Store) getWithRevision(ctx context.Context, op, id string) (*Platform, uint64, error) {
	entry, err := s.docs.Get(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, 0, errors.NotFound(errors.ErrPlatformNotFound, component, op)
		}
		return nil, 0, errors.WrapStore(err, component, op, "read platform document")
	}

	var p Platform
	if err := json.Unmarshal(entry.Value, &p); err != nil {
		return nil, 0, errors.WrapStore(err, component, op, "unmarshal platform")
	}
	if p.Status == store.StatusDeleted {
		return nil, 0, errors.NotFound(errors.ErrPlatformNotFound, component, op)
	}
	return &p, entry.Revision, nil
}

// create writes a new platform row; duplicate ids surface as Conflict.
func (s *Store) create(ctx context.Context, op string, p Platform) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return errors.WrapStore(err, component, op, "marshal platform")
	}
	if _, err := s.docs.Create(ctx, p.ID, doc); err != nil {
		if store.IsConflict(err) {
			return errors.Conflictf(component, op, "platform %s already exists", p.ID)
		}
		return errors.WrapStore(err, component, op, "create platform document")
	}
	return nil
}

// update rewrites a platform row with CAS; a concurrent change surfaces
// as Conflict and is not retried here.
func (s *Store) update(ctx context.Context, op string, p Platform, revision uint64) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return errors.WrapStore(err, component, op, "marshal platform")
	}
	if _, err := s.docs.Update(ctx, p.ID, doc, revision); err != nil {
		if store.IsConflict(err) {
			return errors.Conflict(errors.ErrRevisionConflict, component, op)
		}
		return errors.WrapStore(err, component, op, "update platform document")
	}
	return nil
}

// List returns every active platform.
func (s *Store) List(ctx context.Context) ([]Platform, error) {
	const op = "List"

	keys, err := s.docs.Keys(ctx, "")
	if err != nil {
		return nil, errors.WrapStore(err, component, op, "list platform documents")
	}

	platforms := make([]Platform, 0, len(keys))
	for _, key := range keys {
		entry, err := s.docs.Get(ctx, key)
		if err != nil {
			if store.IsNotFound(err) {
				continue
			}
			return nil, errors.WrapStore(err, component, op, "read platform document")
		}
		var p Platform
		if err := json.Unmarshal(entry.Value, &p); err != nil {
			return nil, errors.WrapStore(err, component, op, "unmarshal platform")
		}
		if p.Status == store.StatusDeleted {
			continue
		}
		platforms = append(platforms, p)
	}
	return platforms, nil
}

// Descendants returns every active platform whose ancestor chain
// contains id, i.e. the whole subtree below it.
func (s *Store) Descendants(ctx context.Context, id string) ([]Platform, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var descendants []Platform
	for _, p := range all {
		if p.HasAncestor(id) {
			descendants = append(descendants, p)
		}
	}
	return descendants, nil
}
