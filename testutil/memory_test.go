package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/store"
)

func TestCreateRejectsExistingKey(t *testing.T) {
	b := NewMemoryBucket()
	ctx := context.Background()

	_, err := b.Create(ctx, "k", []byte("v1"))
	require.NoError(t, err)

	_, err = b.Create(ctx, "k", []byte("v2"))
	assert.ErrorIs(t, err, store.ErrKeyExists)
}

func TestUpdateRequiresCurrentRevision(t *testing.T) {
	b := NewMemoryBucket()
	ctx := context.Background()

	rev, err := b.Create(ctx, "k", []byte("v1"))
	require.NoError(t, err)

	_, err = b.Update(ctx, "k", []byte("v2"), rev+1)
	assert.ErrorIs(t, err, store.ErrRevisionMismatch)

	newRev, err := b.Update(ctx, "k", []byte("v2"), rev)
	require.NoError(t, err)
	assert.Greater(t, newRev, rev)

	entry, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), entry.Value)
}

func TestKeysFiltersByPrefix(t *testing.T) {
	b := NewMemoryBucket()
	ctx := context.Background()

	for _, k := range []string{"ctx.s1.a", "ctx.s1.b", "ctx.s2.a", "live.s1"} {
		_, err := b.Put(ctx, k, []byte("{}"))
		require.NoError(t, err)
	}

	keys, err := b.Keys(ctx, "ctx.s1.")
	require.NoError(t, err)
	assert.Equal(t, []string{"ctx.s1.a", "ctx.s1.b"}, keys)
}

func TestConcurrentCreateExactlyOneWins(t *testing.T) {
	b := NewMemoryBucket()
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = b.Create(ctx, "live.s1", []byte("{}"))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, store.ErrKeyExists)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestFailNext(t *testing.T) {
	b := NewMemoryBucket()
	ctx := context.Background()
	boom := assert.AnError

	b.FailNext = boom
	_, err := b.Get(ctx, "k")
	assert.ErrorIs(t, err, boom)

	// Failure is one-shot
	_, err = b.Put(ctx, "k", []byte("v"))
	assert.NoError(t, err)
}
