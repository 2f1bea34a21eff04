package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindValidation, "validation"},
		{KindConflict, "conflict"},
		{KindNotFound, "not-found"},
		{KindForbidden, "forbidden"},
		{KindStore, "store-failure"},
		{Kind(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}

func TestForbiddenf(t *testing.T) {
	err := Forbiddenf("sensor", "Update", "cannot set hasDeployment on a sensor with a permanent host (fields: permanentHost, hasDeployment)")

	assert.True(t, IsForbidden(err))
	assert.False(t, IsNotFound(err))
	assert.False(t, IsConflict(err))
	assert.False(t, IsStore(err))
	assert.Equal(t, KindForbidden, KindOf(err))
	assert.Contains(t, err.Error(), "sensor.Update:")
	assert.Contains(t, err.Error(), "permanentHost")
}

func TestNotFoundSentinels(t *testing.T) {
	err := NotFound(ErrSensorNotFound, "sensor", "Get")

	assert.True(t, IsNotFound(err))
	assert.True(t, Is(err, ErrSensorNotFound))
	assert.True(t, IsExpected(err))

	// Bare sentinel also classifies
	assert.True(t, IsNotFound(ErrContextNotFound))
}

func TestConflictSentinels(t *testing.T) {
	err := Conflict(ErrLiveContextExists, "contextstore", "Create")

	assert.True(t, IsConflict(err))
	assert.True(t, Is(err, ErrLiveContextExists))
	assert.True(t, IsExpected(err))
	assert.False(t, IsStore(err))

	assert.True(t, IsConflict(ErrRevisionConflict))
}

func TestWrapStoreHidesDetail(t *testing.T) {
	raw := fmt.Errorf("nats: connection refused at 10.0.0.3:4222")
	err := WrapStore(raw, "platform", "Create", "write platform document")
	require.Error(t, err)

	// The public message never carries the raw store error
	assert.NotContains(t, err.Error(), "10.0.0.3")
	assert.Contains(t, err.Error(), "platform.Create")

	// The raw error stays reachable on the chain for logging
	assert.True(t, Is(err, raw))
	assert.True(t, IsStore(err))
	assert.False(t, IsExpected(err))
}

func TestWrapStoreNil(t *testing.T) {
	assert.NoError(t, WrapStore(nil, "sensor", "Get", "read"))
}

func TestUnclassifiedErrorsAreStoreFailures(t *testing.T) {
	err := fmt.Errorf("something unexpected")

	assert.True(t, IsStore(err))
	assert.False(t, IsExpected(err))
	assert.Equal(t, KindStore, KindOf(err))
}

func TestClassifiedUnwrap(t *testing.T) {
	inner := New("inner")
	err := WrapStore(inner, "a", "B", "c")

	var c *Classified
	require.True(t, As(err, &c))
	assert.Equal(t, inner, c.Unwrap())
	assert.Equal(t, "a", c.Component)
	assert.Equal(t, "B", c.Operation)
}

func TestValidationf(t *testing.T) {
	err := Validationf("schema", "ValidateCreateSensor", "id: does not match pattern")

	assert.True(t, IsValidation(err))
	assert.True(t, IsExpected(err))
	assert.Equal(t, KindValidation, KindOf(err))
}
