package domain

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func point(coords ...float64) *RawPointShape {
	return &RawPointShape{Type: "Point", Coordinates: coords}
}

func TestNormalize_MapsFields(t *testing.T) {
	features := []RawFeature{
		{
			ID:         "ci40712345",
			Properties: RawProperties{Mag: ptr(4.2), Place: ptr("12 km SSW of Ridgecrest, CA"), Time: 1700000000000},
			Geometry:   point(-117.7, 35.5, 8.1),
		},
	}

	got, dropped := Normalize(features)

	want := []Event{{
		ID:    "ci40712345",
		Lon:   -117.7,
		Lat:   35.5,
		Depth: 8.1,
		Mag:   4.2,
		Place: "12 km SSW of Ridgecrest, CA",
		Time:  1700000000000,
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
	assert.Zero(t, dropped)
}

func TestNormalize_DropsMalformed(t *testing.T) {
	features := []RawFeature{
		{ID: "null-mag", Properties: RawProperties{Time: 1}, Geometry: point(1, 2, 3)},
		{ID: "nan-mag", Properties: RawProperties{Mag: ptr(math.NaN())}, Geometry: point(1, 2, 3)},
		{ID: "inf-mag", Properties: RawProperties{Mag: ptr(math.Inf(1))}, Geometry: point(1, 2, 3)},
		{ID: "no-geometry", Properties: RawProperties{Mag: ptr(2.0)}},
		{ID: "short-coords", Properties: RawProperties{Mag: ptr(2.0)}, Geometry: point(1)},
		{ID: "ok", Properties: RawProperties{Mag: ptr(0.0)}, Geometry: point(1, 2, 3)},
	}

	got, dropped := Normalize(features)

	assert.Equal(t, 5, dropped)
	if assert.Len(t, got, 1) {
		assert.Equal(t, "ok", got[0].ID)
		assert.Zero(t, got[0].Mag)
	}
}

func TestNormalize_PlaceholderPlace(t *testing.T) {
	features := []RawFeature{
		{ID: "a", Properties: RawProperties{Mag: ptr(1.0)}, Geometry: point(1, 2, 3)},
		{ID: "b", Properties: RawProperties{Mag: ptr(1.0), Place: ptr("")}, Geometry: point(1, 2, 3)},
	}

	got, _ := Normalize(features)

	for _, e := range got {
		assert.Equal(t, UnknownPlace, e.Place, e.ID)
	}
}

func TestNormalize_MissingDepthDefaultsToZero(t *testing.T) {
	got, _ := Normalize([]RawFeature{
		{ID: "a", Properties: RawProperties{Mag: ptr(1.0)}, Geometry: point(10, 20)},
	})

	if assert.Len(t, got, 1) {
		assert.Zero(t, got[0].Depth)
		assert.Equal(t, 10.0, got[0].Lon)
		assert.Equal(t, 20.0, got[0].Lat)
	}
}

func TestNormalize_PreservesOrderAndIsPure(t *testing.T) {
	features := []RawFeature{
		{ID: "c", Properties: RawProperties{Mag: ptr(1.0)}, Geometry: point(0, 0, 0)},
		{ID: "a", Properties: RawProperties{Mag: ptr(2.0)}, Geometry: point(0, 0, 0)},
		{ID: "b", Properties: RawProperties{Mag: ptr(3.0)}, Geometry: point(0, 0, 0)},
	}

	first, _ := Normalize(features)
	second, _ := Normalize(features)

	ids := make([]string, len(first))
	for i, e := range first {
		ids[i] = e.ID
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
	assert.Equal(t, first, second)
}
