package sensorcontext

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/errors"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/testutil"
)

func newTestStore() *Store {
	return NewStore(testutil.NewMemoryBucket(), slog.Default())
}

func liveContext(sensor, id string, start int64) Context {
	return Context{
		ID:        id,
		Sensor:    sensor,
		StartDate: start,
		ToAdd: ToAdd{
			InDeployments: []string{"dep-1"},
		},
	}
}

func TestCreateAndGetLive(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, liveContext("sensor-1", "c1", 1000)))

	live, err := s.GetLive(ctx, "sensor-1")
	require.NoError(t, err)
	assert.Equal(t, "c1", live.ID)
	assert.True(t, live.Live())
	assert.Equal(t, []string{"dep-1"}, live.ToAdd.InDeployments)
}

func TestCreateRejectsSecondLiveContext(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, liveContext("sensor-1", "c1", 1000)))

	err := s.Create(ctx, liveContext("sensor-1", "c2", 2000))
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	assert.True(t, errors.Is(err, errors.ErrLiveContextExists))
}

func TestCreateValidation(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	assert.True(t, errors.IsValidation(s.Create(ctx, liveContext("", "c1", 1000))))
	assert.True(t, errors.IsValidation(s.Create(ctx, liveContext("sensor-1", "", 1000))))
	assert.True(t, errors.IsValidation(s.Create(ctx, liveContext("sensor-1", "c1", 0))))

	closed := liveContext("sensor-1", "c1", 1000)
	closed.EndDate = 2000
	assert.True(t, errors.IsValidation(s.Create(ctx, closed)))
}

func TestConcurrentCreateExactlyOneWins(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Create(ctx, liveContext("sensor-1", "c1", 1000))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.True(t, errors.IsConflict(err))
		}
	}
	assert.Equal(t, 1, winners)
}

func TestEndLiveThenCreateNewVersion(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, liveContext("sensor-1", "c1", 1000)))
	require.NoError(t, s.EndLive(ctx, "sensor-1", 5000))

	_, err := s.GetLive(ctx, "sensor-1")
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, s.Create(ctx, liveContext("sensor-1", "c2", 5000)))

	live, err := s.GetLive(ctx, "sensor-1")
	require.NoError(t, err)
	assert.Equal(t, "c2", live.ID)

	// The closed version is still there with its end date set
	history, err := s.History(ctx, "sensor-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "c1", history[0].ID)
	assert.Equal(t, int64(5000), history[0].EndDate)
	assert.True(t, history[1].Live())
}

func TestHistoryOrdersSameMillisecondCut(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	// End and successor share a start when both sides of a cut land in
	// the same millisecond; the closed version must still sort first.
	const cut = int64(5000)
	require.NoError(t, s.Create(ctx, liveContext("sensor-1", "c1", 1000)))
	require.NoError(t, s.EndLive(ctx, "sensor-1", cut))
	require.NoError(t, s.Create(ctx, liveContext("sensor-1", "c2", cut)))
	require.NoError(t, s.EndLive(ctx, "sensor-1", cut))
	require.NoError(t, s.Create(ctx, liveContext("sensor-1", "c3", cut)))

	history, err := s.History(ctx, "sensor-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "c1", history[0].ID)
	assert.Equal(t, "c2", history[1].ID)
	assert.False(t, history[1].Live())
	assert.Equal(t, "c3", history[2].ID)
	assert.True(t, history[2].Live())
}

func TestEndLiveWithoutLiveContext(t *testing.T) {
	s := newTestStore()
	err := s.EndLive(context.Background(), "sensor-1", 5000)
	assert.True(t, errors.IsNotFound(err))
}

func TestEndLiveRejectsEndBeforeStart(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, liveContext("sensor-1", "c1", 1000)))
	err := s.EndLive(ctx, "sensor-1", 500)
	assert.True(t, errors.IsValidation(err))
}

func TestGetAt(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, liveContext("sensor-1", "c1", 1000)))
	require.NoError(t, s.EndLive(ctx, "sensor-1", 5000))
	require.NoError(t, s.Create(ctx, liveContext("sensor-1", "c2", 5000)))

	// Inside the closed interval
	c, err := s.GetAt(ctx, "sensor-1", 3000)
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)

	// Interval start is inclusive
	c, err = s.GetAt(ctx, "sensor-1", 1000)
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)

	// End is exclusive: the boundary belongs to the successor
	c, err = s.GetAt(ctx, "sensor-1", 5000)
	require.NoError(t, err)
	assert.Equal(t, "c2", c.ID)

	// Live context is open-ended
	c, err = s.GetAt(ctx, "sensor-1", 99999999)
	require.NoError(t, err)
	assert.Equal(t, "c2", c.ID)

	// Before the earliest version
	_, err = s.GetAt(ctx, "sensor-1", 999)
	assert.True(t, errors.IsNotFound(err))

	// Unknown sensor
	_, err = s.GetAt(ctx, "sensor-2", 3000)
	assert.True(t, errors.IsNotFound(err))
}

func TestGetLiveAtLiveStartDate(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, liveContext("sensor-1", "c1", 7000)))

	c, err := s.GetAt(ctx, "sensor-1", 7000)
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
}

func TestStoreFailureIsWrapped(t *testing.T) {
	bucket := testutil.NewMemoryBucket()
	s := NewStore(bucket, slog.Default())
	ctx := context.Background()

	bucket.FailNext = assert.AnError
	_, err := s.GetLive(ctx, "sensor-1")
	require.Error(t, err)
	assert.True(t, errors.IsStore(err))
	// Public message is safe, detail stays on the chain
	assert.NotContains(t, err.Error(), assert.AnError.Error())
	assert.True(t, errors.Is(err, assert.AnError))
}
