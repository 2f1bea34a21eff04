package deployment

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/errors"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/testutil"
)

func newTestStore() *Store {
	return NewStore(testutil.NewMemoryBucket(), slog.Default())
}

func strptr(s string) *string { return &s }

func TestCreateGetUpdate(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	created, err := s.Create(ctx, Deployment{ID: "dep-1", Label: "Air quality"})
	require.NoError(t, err)
	assert.NotZero(t, created.CreatedAt)

	got, err := s.Get(ctx, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, "Air quality", got.Label)
	require.NoError(t, s.Exists(ctx, "dep-1"))

	updated, err := s.Update(ctx, "dep-1", Updates{Label: strptr("Air quality network")})
	require.NoError(t, err)
	assert.Equal(t, "Air quality network", updated.Label)
	// Untouched fields survive a partial update.
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
}

func TestCreateDuplicateConflicts(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	_, err := s.Create(ctx, Deployment{ID: "dep-1"})
	require.NoError(t, err)
	_, err = s.Create(ctx, Deployment{ID: "dep-1"})
	assert.True(t, errors.IsConflict(err))
}

func TestCreateRejectsBadID(t *testing.T) {
	s := newTestStore()

	_, err := s.Create(context.Background(), Deployment{ID: "Not Valid!"})
	assert.True(t, errors.IsValidation(err))
}

func TestSoftDeleteHidesDeployment(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	_, err := s.Create(ctx, Deployment{ID: "dep-1"})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "dep-1"))

	_, err = s.Get(ctx, "dep-1")
	assert.True(t, errors.IsNotFound(err))
	assert.True(t, errors.IsNotFound(s.Exists(ctx, "dep-1")))
	assert.True(t, errors.IsNotFound(s.Delete(ctx, "dep-1")))
}

func TestStoreFailureIsWrapped(t *testing.T) {
	bucket := testutil.NewMemoryBucket()
	s := NewStore(bucket, slog.Default())
	ctx := context.Background()

	bucket.FailNext = errors.New("connection reset")
	_, err := s.Get(ctx, "dep-1")
	assert.True(t, errors.IsStore(err))
}
