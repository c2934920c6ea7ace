package mapview

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/quakewatch-service/internal/geo"
)

func TestTransform_ApplyInvert(t *testing.T) {
	tr := Transform{X: -120, Y: 40, K: 2.5}
	p := geo.Point{X: 310, Y: 95}

	back := tr.Invert(tr.Apply(p))
	assert.InDelta(t, p.X, back.X, 1e-9)
	assert.InDelta(t, p.Y, back.Y, 1e-9)
	assert.Equal(t, p, Identity.Apply(p))
}

func TestTransform_ScaleAroundKeepsAnchor(t *testing.T) {
	tr := Transform{X: 15, Y: -30, K: 1.5}
	anchor := geo.Point{X: 400, Y: 250}

	scaled := tr.ScaleAround(anchor, 3)
	assert.InDelta(t, 3.0, scaled.K, 1e-9)

	before := tr.Invert(anchor)
	after := scaled.Invert(anchor)
	assert.InDelta(t, before.X, after.X, 1e-9)
	assert.InDelta(t, before.Y, after.Y, 1e-9)
}

func TestTransform_String(t *testing.T) {
	assert.Equal(t, "translate(0,0) scale(1)", Identity.String())
	assert.Equal(t, "translate(-1500,-900.5) scale(4)", Transform{X: -1500, Y: -900.5, K: 4}.String())
}

func TestTransform_Zoomed(t *testing.T) {
	assert.False(t, Identity.Zoomed())
	assert.False(t, Transform{K: 1.05}.Zoomed())
	assert.True(t, Transform{K: 1.06}.Zoomed())
}

func TestFocusTransform_CentresPoint(t *testing.T) {
	p := geo.Point{X: 700, Y: 120}
	tr := FocusTransform(p, 6, 1000, 600)

	c := tr.Apply(p)
	assert.InDelta(t, 500.0, c.X, 1e-9)
	assert.InDelta(t, 300.0, c.Y, 1e-9)
	assert.InDelta(t, 6.0, tr.K, 1e-9)
}

func TestClampScale(t *testing.T) {
	assert.InDelta(t, MinScale, ClampScale(0.1), 1e-9)
	assert.InDelta(t, 2.0, ClampScale(2), 1e-9)
	assert.InDelta(t, MaxScale, ClampScale(40), 1e-9)
}

func TestMarkerTransform(t *testing.T) {
	assert.Equal(t, "translate(-9999 -9999)", MarkerTransform(geo.Point{X: 5, Y: 5}, false, Identity))
	assert.Equal(t, "translate(120.5 80) scale(0.25)", MarkerTransform(geo.Point{X: 120.5, Y: 80}, true, Transform{K: 4}))
}

func TestInterpolate_Endpoints(t *testing.T) {
	a := Identity
	b := Transform{X: -1500, Y: -900, K: 4}

	assert.Equal(t, a, interpolate(a, b, 0, 1000, 600))
	assert.Equal(t, b, interpolate(a, b, 1, 1000, 600))

	mid := interpolate(a, b, 0.5, 1000, 600)
	assert.InDelta(t, 2.0, mid.K, 1e-9)
}

func TestEaseCubicInOut(t *testing.T) {
	assert.InDelta(t, 0.0, easeCubicInOut(0), 1e-9)
	assert.InDelta(t, 0.5, easeCubicInOut(0.5), 1e-9)
	assert.InDelta(t, 1.0, easeCubicInOut(1), 1e-9)
	assert.Less(t, easeCubicInOut(0.25), 0.25)
	assert.Greater(t, easeCubicInOut(0.75), 0.75)
}
