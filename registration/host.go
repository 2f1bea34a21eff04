package registration

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/errors"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/message"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/pkg/timestamp"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/store"
)

const component = "registration"

// PermanentHost is a physical hardware unit owning one or more
// sensors. It is bound into a deployment as a whole via its
// registration key rather than sensor by sensor.
type PermanentHost struct {
	ID          string `json:"id"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`

	// RegistrationKey is the fixed-length secret a deployment admin
	// presents to claim the unit. Unique across hosts.
	RegistrationKey string `json:"registrationKey"`

	// RegisteredAs holds the platform id once the unit is bound.
	RegisteredAs string `json:"registeredAs,omitempty"`

	Static                   bool              `json:"static"`
	Location                 *message.Location `json:"location,omitempty"`
	UpdateLocationWithSensor string            `json:"updateLocationWithSensor,omitempty"`

	Status    store.Status `json:"status"`
	CreatedAt int64        `json:"createdAt"`
	UpdatedAt int64        `json:"updatedAt"`
}

// HostStore persists permanent hosts plus a registration-key index.
// The index row is created with a store Create so key uniqueness is a
// store-level constraint, not a read-then-write race.
type HostStore struct {
	docs   store.Documents
	logger *slog.Logger
}

// NewHostStore creates a permanent-host store over the given bucket.
func NewHostStore(docs store.Documents, logger *slog.Logger) *HostStore {
	return &HostStore{
		docs:   docs,
		logger: logger.With("component", component),
	}
}

type keyIndex struct {
	Host string `json:"host"`
}

// NewRegistrationKey returns a fresh fixed-length registration key.
func NewRegistrationKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Create persists a new permanent host, generating a registration key
// when the caller supplies none.
func (s *HostStore) Create(ctx context.Context, h PermanentHost) (*PermanentHost, error) {
	const op = "Create"

	if !store.ValidID(h.ID) {
		return nil, errors.Validationf(component, op, "invalid permanent host id %q", h.ID)
	}
	if h.RegisteredAs != "" {
		return nil, errors.Validationf(component, op, "registeredAs cannot be set on creation")
	}
	if h.RegistrationKey == "" {
		h.RegistrationKey = NewRegistrationKey()
	}

	now := timestamp.Now()
	h.Status = store.StatusActive
	h.CreatedAt = now
	h.UpdatedAt = now

	index, err := json.Marshal(keyIndex{Host: h.ID})
	if err != nil {
		return nil, errors.WrapStore(err, component, op, "marshal key index")
	}
	doc, err := json.Marshal(h)
	if err != nil {
		return nil, errors.WrapStore(err, component, op, "marshal permanent host")
	}

	// The index create is the uniqueness gate for the key.
	if _, err := s.docs.Create(ctx, indexKey(h.RegistrationKey), index); err != nil {
		if store.IsConflict(err) {
			return nil, errors.Conflictf(component, op, "registration key already in use")
		}
		return nil, errors.WrapStore(err, component, op, "create key index")
	}
	if _, err := s.docs.Create(ctx, hostKey(h.ID), doc); err != nil {
		if delErr := s.docs.Delete(ctx, indexKey(h.RegistrationKey)); delErr != nil {
			s.logger.Error("key index rollback failed", "host", h.ID, "error", delErr)
		}
		if store.IsConflict(err) {
			return nil, errors.Conflictf(component, op, "permanent host %s already exists", h.ID)
		}
		return nil, errors.WrapStore(err, component, op, "create permanent host document")
	}

	s.logger.Info("permanent host created", "host", h.ID)
	return &h, nil
}

// Get returns an active permanent host by id.
func (s *HostStore) Get(ctx context.Context, id string) (*PermanentHost, error) {
	const op = "Get"

	h, _, err := s.get(ctx, op, id)
	return h, err
}

// GetByKey resolves a registration key to its permanent host.
func (s *HostStore) GetByKey(ctx context.Context, registrationKey string) (*PermanentHost, error) {
	const op = "GetByKey"

	entry, err := s.docs.Get(ctx, indexKey(registrationKey))
	if err != nil {
		if store.IsNotFound(err) {
			return nil, errors.NotFound(errors.ErrPermanentHostNotFound, component, op)
		}
		return nil, errors.WrapStore(err, component, op, "read key index")
	}
	var index keyIndex
	if err := json.Unmarshal(entry.Value, &index); err != nil {
		return nil, errors.WrapStore(err, component, op, "unmarshal key index")
	}
	h, _, err := s.get(ctx, op, index.Host)
	return h, err
}

func (s *HostStore) get(ctx context.Context, op, id string) (*PermanentHost, uint64, error) {
	entry, err := s.docs.Get(ctx, hostKey(id))
	if err != nil {
		if store.IsNotFound(err) {
			return nil, 0, errors.NotFound(errors.ErrPermanentHostNotFound, component, op)
		}
		return nil, 0, errors.WrapStore(err, component, op, "read permanent host document")
	}
	var h PermanentHost
	if err := json.Unmarshal(entry.Value, &h); err != nil {
		return nil, 0, errors.WrapStore(err, component, op, "unmarshal permanent host")
	}
	if h.Status == store.StatusDeleted {
		return nil, 0, errors.NotFound(errors.ErrPermanentHostNotFound, component, op)
	}
	return &h, entry.Revision, nil
}

// MarkRegistered records the platform the host was bound to.
func (s *HostStore) MarkRegistered(ctx context.Context, id, platformID string) error {
	const op = "MarkRegistered"

	return s.mutate(ctx, op, id, func(h *PermanentHost) {
		h.RegisteredAs = platformID
	})
}

// ClearRegistration removes the platform binding, making the host
// registerable again.
func (s *HostStore) ClearRegistration(ctx context.Context, id string) error {
	const op = "ClearRegistration"

	return s.mutate(ctx, op, id, func(h *PermanentHost) {
		h.RegisteredAs = ""
	})
}

// DetachLocationSensor clears the updateLocationWithSensor pointer of
// every host where it names the given sensor.
func (s *HostStore) DetachLocationSensor(ctx context.Context, sensorID string) error {
	const op = "DetachLocationSensor"

	keys, err := s.docs.Keys(ctx, hostPrefix)
	if err != nil {
		return errors.WrapStore(err, component, op, "list permanent host documents")
	}
	for _, key := range keys {
		id := strings.TrimPrefix(key, hostPrefix)
		h, _, err := s.get(ctx, op, id)
		if err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			return err
		}
		if h.UpdateLocationWithSensor != sensorID {
			continue
		}
		if err := s.mutate(ctx, op, id, func(h *PermanentHost) {
			h.UpdateLocationWithSensor = ""
		}); err != nil {
			return err
		}
		s.logger.Info("location sensor detached", "host", id, "sensor", sensorID)
	}
	return nil
}

func (s *HostStore) mutate(ctx context.Context, op, id string, change func(*PermanentHost)) error {
	h, revision, err := s.get(ctx, op, id)
	if err != nil {
		return err
	}
	change(h)
	h.UpdatedAt = timestamp.Now()

	doc, err := json.Marshal(h)
	if err != nil {
		return errors.WrapStore(err, component, op, "marshal permanent host")
	}
	if _, err := s.docs.Update(ctx, hostKey(id), doc, revision); err != nil {
		if store.IsConflict(err) {
			return errors.Conflict(errors.ErrRevisionConflict, component, op)
		}
		return errors.WrapStore(err, component, op, "update permanent host document")
	}
	return nil
}

const hostPrefix = "host."

func hostKey(id string) string {
	return hostPrefix + id
}

func indexKey(registrationKey string) string {
	return "key." + registrationKey
}
