package id

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Not parallel: NewAt with another timestamp resets the monotonic entropy.
func TestNewIsMonotonic(t *testing.T) {
	ids := make([]string, 1000)
	for i := range ids {
		ids[i] = New()
	}
	assert.True(t, sort.StringsAreSorted(ids))
	assert.Len(t, ids[0], 26)
}

func TestNewAtRoundTrip(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)
	s := NewAt(at)

	got, err := Time(s)
	require.NoError(t, err)
	assert.True(t, got.Equal(at))

	_, err = Time("not-a-ulid")
	assert.Error(t, err)
}
