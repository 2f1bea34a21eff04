package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	want := time.Date(2023, 1, 15, 12, 30, 45, 123000000, time.UTC)
	ms := ToUnixMs(want)
	assert.Equal(t, int64(1673785845123), ms)
	assert.Equal(t, want, FromUnixMs(ms).UTC())
}

func TestZeroMeansUnset(t *testing.T) {
	assert.Equal(t, int64(0), ToUnixMs(time.Time{}))
	assert.True(t, FromUnixMs(0).IsZero())
	assert.Equal(t, "", Format(0))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "2023-01-15T12:30:45Z", Format(1673785845123))
}

func TestParse(t *testing.T) {
	assert.Equal(t, int64(1673785845000), Parse("2023-01-15T12:30:45Z"))
	assert.Equal(t, int64(1673785845123), Parse("2023-01-15T12:30:45.123Z"))
	assert.Equal(t, int64(0), Parse(""))
	assert.Equal(t, int64(0), Parse("not a timestamp"))
	assert.Equal(t, int64(0), Parse("2023-01-15")) // date only is rejected
}
