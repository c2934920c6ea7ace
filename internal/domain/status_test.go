package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveStatus(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s := LiveStatus(now)

	assert.Equal(t, ToneLive, s.Tone)
	assert.Equal(t, "Live", s.Message)
	require.NotNil(t, s.LastUpdatedAt)
	assert.Equal(t, now, *s.LastUpdatedAt)
}

func TestErrorStatus_HasNoTimestamp(t *testing.T) {
	s := ErrorStatus()

	assert.Equal(t, ToneError, s.Tone)
	assert.Equal(t, "Reconnecting...", s.Message)
	assert.Nil(t, s.LastUpdatedAt)
}

func TestStatus_Effective(t *testing.T) {
	updated := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	live := LiveStatus(updated)

	t.Run("fresh stays live", func(t *testing.T) {
		got := live.Effective(updated.Add(2*time.Minute), 3*time.Minute)
		assert.Equal(t, ToneLive, got.Tone)
	})

	t.Run("old becomes stale", func(t *testing.T) {
		got := live.Effective(updated.Add(4*time.Minute), 3*time.Minute)
		assert.Equal(t, ToneStale, got.Tone)
		assert.Equal(t, "Stale", got.Message)
		assert.Equal(t, live.LastUpdatedAt, got.LastUpdatedAt)
	})

	t.Run("error unchanged", func(t *testing.T) {
		got := ErrorStatus().Effective(updated.Add(time.Hour), time.Minute)
		assert.Equal(t, ErrorStatus(), got)
	})

	t.Run("disabled", func(t *testing.T) {
		got := live.Effective(updated.Add(time.Hour), 0)
		assert.Equal(t, ToneLive, got.Tone)
	})
}
