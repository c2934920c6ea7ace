package domain

import (
	"fmt"
	"strings"
	"time"
)

// UnknownPlace is the label substituted when the feed omits a place.
const UnknownPlace = "Unknown location"

// Event is a single normalized earthquake.
type Event struct {
	ID    string  `json:"id"`
	Lon   float64 `json:"lon"`
	Lat   float64 `json:"lat"`
	Depth float64 `json:"depth"`
	Mag   float64 `json:"mag"`
	Place string  `json:"place"`
	Time  int64   `json:"time"` // epoch millis

	// OnLand is nil until the renderer has tested the epicenter against the
	// land features.
	OnLand *bool `json:"onLand,omitempty"`
}

// OccurredAt returns the origin time as a UTC time.Time.
func (e Event) OccurredAt() time.Time {
	return time.UnixMilli(e.Time).UTC()
}

// FeedWindow selects which upstream summary feed is polled.
type FeedWindow string

const (
	WindowHour FeedWindow = "hour"
	WindowDay  FeedWindow = "day"
	WindowWeek FeedWindow = "week"
)

// FeedWindows lists the supported windows from narrowest to widest.
var FeedWindows = []FeedWindow{WindowHour, WindowDay, WindowWeek}

// ParseFeedWindow converts a case-insensitive name into a FeedWindow.
func ParseFeedWindow(s string) (FeedWindow, error) {
	w := FeedWindow(strings.ToLower(strings.TrimSpace(s)))
	if !w.Valid() {
		return "", fmt.Errorf("unknown feed window %q", s)
	}
	return w, nil
}

// Valid reports whether w is one of the supported windows.
func (w FeedWindow) Valid() bool {
	switch w {
	case WindowHour, WindowDay, WindowWeek:
		return true
	}
	return false
}

func (w FeedWindow) String() string { return string(w) }

// DataUpdate is emitted after every successful reconciliation.
type DataUpdate struct {
	Events     []Event    `json:"events"` // newest first
	NewEvents  []Event    `json:"newEvents"`
	FeedWindow FeedWindow `json:"feedWindow"`
}

// NewIDs returns the identities first observed in this update.
func (u DataUpdate) NewIDs() map[string]bool {
	ids := make(map[string]bool, len(u.NewEvents))
	for _, e := range u.NewEvents {
		ids[e.ID] = true
	}
	return ids
}
