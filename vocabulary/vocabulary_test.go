package vocabulary

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

func TestCreateGetDelete(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	_, err := s.Create(ctx, Term{ID: "meteorology", Kind: KindDiscipline, Label: "Meteorology"})
	require.NoError(t, err)

	got, err := s.Get(ctx, KindDiscipline, "meteorology")
	require.NoError(t, err)
	assert.Equal(t, "Meteorology", got.Label)
	require.NoError(t, s.Exists(ctx, KindDiscipline, "meteorology"))

	require.NoError(t, s.Delete(ctx, KindDiscipline, "meteorology"))
	_, err = s.Get(ctx, KindDiscipline, "meteorology")
	assert.True(t, errors.IsNotFound(err))
}

func TestKindsDoNotCollide(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	// Same id under two kinds is two distinct terms.
	_, err := s.Create(ctx, Term{ID: "degree-celsius", Kind: KindUnit})
	require.NoError(t, err)
	_, err = s.Create(ctx, Term{ID: "degree-celsius", Kind: KindObservableProperty})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, KindUnit, "degree-celsius"))
	require.NoError(t, s.Exists(ctx, KindObservableProperty, "degree-celsius"))
}

func TestCreateRejections(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	_, err := s.Create(ctx, Term{ID: "x", Kind: "planet"})
	assert.True(t, errors.IsValidation(err))

	_, err = s.Create(ctx, Term{ID: "Bad ID", Kind: KindUnit})
	assert.True(t, errors.IsValidation(err))

	_, err = s.Create(ctx, Term{ID: "metre", Kind: KindUnit})
	require.NoError(t, err)
	_, err = s.Create(ctx, Term{ID: "metre", Kind: KindUnit})
	assert.True(t, errors.IsConflict(err))
}

func TestUpdate(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	_, err := s.Create(ctx, Term{ID: "metre", Kind: KindUnit})
	require.NoError(t, err)

	label := "Metre"
	updated, err := s.Update(ctx, KindUnit, "metre", &label, nil)
	require.NoError(t, err)
	assert.Equal(t, "Metre", updated.Label)
}

func TestList(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	_, err := s.Create(ctx, Term{ID: "metre", Kind: KindUnit})
	require.NoError(t, err)
	_, err = s.Create(ctx, Term{ID: "second", Kind: KindUnit})
	require.NoError(t, err)
	_, err = s.Create(ctx, Term{ID: "meteorology", Kind: KindDiscipline})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, KindUnit, "second"))

	units, err := s.List(ctx, KindUnit)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "metre", units[0].ID)
}

func TestCheckRefs(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	_, err := s.Create(ctx, Term{ID: "air-temperature", Kind: KindObservableProperty})
	require.NoError(t, err)
	_, err = s.Create(ctx, Term{ID: "degree-celsius", Kind: KindUnit})
	require.NoError(t, err)

	require.NoError(t, s.CheckRefs(ctx, ConfigRefs{
		ObservedProperty: "air-temperature",
		Unit:             "degree-celsius",
	}))

	err = s.CheckRefs(ctx, ConfigRefs{ObservedProperty: "air-temperature", Disciplines: []string{"astrology"}})
	assert.True(t, errors.IsNotFound(err))
}
