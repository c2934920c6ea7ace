package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFeedWindow(t *testing.T) {
	tests := []struct {
		in   string
		want FeedWindow
	}{
		{"hour", WindowHour},
		{"DAY", WindowDay},
		{" week ", WindowWeek},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFeedWindow(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFeedWindow_Unknown(t *testing.T) {
	_, err := ParseFeedWindow("month")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "month")
}

func TestDataUpdate_NewIDs(t *testing.T) {
	u := DataUpdate{
		Events:    []Event{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		NewEvents: []Event{{ID: "b"}},
	}

	assert.Equal(t, map[string]bool{"b": true}, u.NewIDs())
	assert.Empty(t, DataUpdate{}.NewIDs())
}

func TestEvent_OccurredAt(t *testing.T) {
	e := Event{Time: 1700000000123}
	assert.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 123_000_000, time.UTC), e.OccurredAt())
}
