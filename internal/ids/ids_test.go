package ids

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IsSortableWithinMillisecond(t *testing.T) {
	now := time.Now()
	prev := NewAt(now)
	for i := 0; i < 100; i++ {
		next := NewAt(now)
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestTime_RoundTripsMillisecond(t *testing.T) {
	now := time.UnixMilli(time.Now().UnixMilli())
	got, err := Time(NewAt(now))
	require.NoError(t, err)
	assert.True(t, now.Equal(got))
}

func TestTime_RejectsGarbage(t *testing.T) {
	_, err := Time("not-a-ulid")
	assert.Error(t, err)
}
