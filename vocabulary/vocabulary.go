// Package vocabulary manages the reference entities sensor configs
// point at: disciplines, units, observable properties, procedures and
// features of interest. All five kinds share one store shape (plain
// soft-delete CRUD) and one bucket, partitioned by a per-kind key
// prefix.
package vocabulary

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/errors"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/pkg/timestamp"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/store"
)

const component = "vocabulary"

// Kind identifies one vocabulary family.
type Kind string

const (
	KindDiscipline         Kind = "discipline"
	KindUnit               Kind = "unit"
	KindObservableProperty Kind = "observableproperty"
	KindProcedure          Kind = "procedure"
	KindFeatureOfInterest  Kind = "featureofinterest"
)

// Kinds lists every vocabulary family.
var Kinds = []Kind{
	KindDiscipline,
	KindUnit,
	KindObservableProperty,
	KindProcedure,
	KindFeatureOfInterest,
}

// Term is one vocabulary entry. The same shape serves all kinds.
type Term struct {
	ID          string `json:"id"`
	Kind        Kind   `json:"kind"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`

	Status    store.Status `json:"status"`
	CreatedAt int64        `json:"createdAt"`
	UpdatedAt int64        `json:"updatedAt"`
}

// Store persists all vocabulary kinds in one bucket, keyed
// "<kind>.<id>".
type Store struct {
	docs   store.Documents
	logger *slog.Logger
}

// NewStore creates a vocabulary store over the given bucket.
func NewStore(docs store.Documents, logger *slog.Logger) *Store {
	return &Store{
		docs:   docs,
		logger: logger.With("component", component),
	}
}

// Get returns an active term.
func (s *Store) Get(ctx context.Context, kind Kind, id string) (*Term, error) {
	const op = "Get"

	term, _, err := s.get(ctx, op, kind, id)
	return term, err
}

// Exists reports term existence as nil-or-NotFound.
func (s *Store) Exists(ctx context.Context, kind Kind, id string) error {
	const op = "Exists"

	_, _, err := s.get(ctx, op, kind, id)
	return err
}

func (s *Store) get(ctx context.Context, op string, kind Kind, id string) (*Term, uint64, error) {
	entry, err := s.docs.Get(ctx, termKey(kind, id))
	if err != nil {
		if store.IsNotFound(err) {
			return nil, 0, errors.NotFoundf(component, op, "%s %s not found", kind, id)
		}
		return nil, 0, errors.WrapStore(err, component, op, "read vocabulary term")
	}
	var term Term
	if err := json.Unmarshal(entry.Value, &term); err != nil {
		return nil, 0, errors.WrapStore(err, component, op, "unmarshal vocabulary term")
	}
	if term.Status == store.StatusDeleted {
		return nil, 0, errors.NotFoundf(component, op, "%s %s not found", kind, id)
	}
	return &term, entry.Revision, nil
}

// Create persists a new term.
func (s *Store) Create(ctx context.Context, term Term) (*Term, error) {
	const op = "Create"

	if !validKind(term.Kind) {
		return nil, errors.Validationf(component, op, "unknown vocabulary kind %q", term.Kind)
	}
	if !store.ValidID(term.ID) {
		return nil, errors.Validationf(component, op, "invalid %s id %q", term.Kind, term.ID)
	}

	now := timestamp.Now()
	term.Status = store.StatusActive
	term.CreatedAt = now
	term.UpdatedAt = now

	doc, err := json.Marshal(term)
	if err != nil {
		return nil, errors.WrapStore(err, component, op, "marshal vocabulary term")
	}
	if _, err := s.docs.Create(ctx, termKey(term.Kind, term.ID), doc); err != nil {
		if store.IsConflict(err) {
			return nil, errors.Conflictf(component, op, "%s %s already exists", term.Kind, term.ID)
		}
		return nil, errors.WrapStore(err, component, op, "create vocabulary term")
	}
	return &term, nil
}

// Update changes a term's label or description.
func (s *Store) Update(ctx context.Context, kind Kind, id string, label, description *string) (*Term, error) {
	const op = "Update"

	term, revision, err := s.get(ctx, op, kind, id)
	if err != nil {
		return nil, err
	}
	if label != nil {
		term.Label = *label
	}
	if description != nil {
		term.Description = *description
	}
	term.UpdatedAt = timestamp.Now()

	if err := s.write(ctx, op, *term, revision); err != nil {
		return nil, err
	}
	return term, nil
}

// Delete soft-deletes a term. Existing sensor configs that reference
// it keep working; only new references are rejected.
func (s *Store) Delete(ctx context.Context, kind Kind, id string) error {
	const op = "Delete"

	term, revision, err := s.get(ctx, op, kind, id)
	if err != nil {
		return err
	}
	term.Status = store.StatusDeleted
	term.UpdatedAt = timestamp.Now()
	return s.write(ctx, op, *term, revision)
}

// List returns every active term of a kind.
func (s *Store) List(ctx context.Context, kind Kind) ([]Term, error) {
	const op = "List"

	keys, err := s.docs.Keys(ctx, string(kind)+".")
	if err != nil {
		return nil, errors.WrapStore(err, component, op, "list vocabulary terms")
	}
	terms := make([]Term, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimPrefix(key, string(kind)+".")
		term, _, err := s.get(ctx, op, kind, id)
		if err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		terms = append(terms, *term)
	}
	return terms, nil
}

func (s *Store) write(ctx context.Context, op string, term Term, revision uint64) error {
	doc, err := json.Marshal(term)
	if err != nil {
		return errors.WrapStore(err, component, op, "marshal vocabulary term")
	}
	if _, err := s.docs.Update(ctx, termKey(term.Kind, term.ID), doc, revision); err != nil {
		if store.IsConflict(err) {
			return errors.Conflict(errors.ErrRevisionConflict, component, op)
		}
		return errors.WrapStore(err, component, op, "update vocabulary term")
	}
	return nil
}

func validKind(kind Kind) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func termKey(kind Kind, id string) string {
	return fmt.Sprintf("%s.%s", kind, id)
}
