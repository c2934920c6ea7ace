package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mockGeocoder struct {
	result GeocodingResult
	err    error
	calls  int
}

func (m *mockGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (GeocodingResult, error) {
	m.calls++
	return m.result, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnrichPlace_ReplacesPlaceholder(t *testing.T) {
	g := &mockGeocoder{result: GeocodingResult{FormattedAddress: "Ridgecrest, California, United States"}}
	e := Event{ID: "a", Place: UnknownPlace, Lat: 35.6, Lon: -117.7}

	got := EnrichPlace(context.Background(), e, g, discardLogger())

	assert.Equal(t, "Near Ridgecrest, California, United States", got.Place)
	assert.Equal(t, 1, g.calls)
}

func TestEnrichPlace_SkipsLabelledEvents(t *testing.T) {
	g := &mockGeocoder{result: GeocodingResult{FormattedAddress: "ignored"}}
	e := Event{ID: "a", Place: "5 km N of Anza, CA"}

	got := EnrichPlace(context.Background(), e, g, discardLogger())

	assert.Equal(t, e, got)
	assert.Zero(t, g.calls)
}

func TestEnrichPlace_NilGeocoder(t *testing.T) {
	e := Event{ID: "a", Place: UnknownPlace}
	assert.Equal(t, e, EnrichPlace(context.Background(), e, nil, discardLogger()))
}

func TestEnrichPlace_ErrorKeepsPlaceholder(t *testing.T) {
	g := &mockGeocoder{err: errors.New("boom")}
	e := Event{ID: "a", Place: UnknownPlace}

	got := EnrichPlace(context.Background(), e, g, discardLogger())

	assert.Equal(t, UnknownPlace, got.Place)
}

func TestEnrichPlace_EmptyResultKeepsPlaceholder(t *testing.T) {
	g := &mockGeocoder{}
	e := Event{ID: "a", Place: UnknownPlace}

	got := EnrichPlace(context.Background(), e, g, discardLogger())

	assert.Equal(t, UnknownPlace, got.Place)
}
