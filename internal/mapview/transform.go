package mapview

import (
	"fmt"
	"math"

	"github.com/couchcryptid/quakewatch-service/internal/geo"
)

// Zoom limits and thresholds.
const (
	MinScale        = 0.8
	MaxScale        = 12
	ZoomedThreshold = 1.05
)

// Transform is a zoom/pan state: canvas = map*K + (X, Y).
type Transform struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	K float64 `json:"k"`
}

// Identity is the unzoomed transform.
var Identity = Transform{K: 1}

// Apply maps a point in map space to canvas space.
func (t Transform) Apply(p geo.Point) geo.Point {
	return geo.Point{X: p.X*t.K + t.X, Y: p.Y*t.K + t.Y}
}

// Invert maps a canvas point back to map space.
func (t Transform) Invert(p geo.Point) geo.Point {
	return geo.Point{X: (p.X - t.X) / t.K, Y: (p.Y - t.Y) / t.K}
}

// Translate returns t shifted by dx, dy canvas pixels.
func (t Transform) Translate(dx, dy float64) Transform {
	return Transform{X: t.X + dx, Y: t.Y + dy, K: t.K}
}

// ScaleAround returns t rescaled to k while keeping the canvas point p fixed.
func (t Transform) ScaleAround(p geo.Point, k float64) Transform {
	m := t.Invert(p)
	return Transform{X: p.X - m.X*k, Y: p.Y - m.Y*k, K: k}
}

// Zoomed reports whether the map is noticeably zoomed in.
func (t Transform) Zoomed() bool { return t.K > ZoomedThreshold }

// String renders t as an SVG transform attribute.
func (t Transform) String() string {
	return fmt.Sprintf("translate(%s,%s) scale(%s)",
		geo.FormatFloat(t.X), geo.FormatFloat(t.Y), formatScale(t.K))
}

// FocusTransform centres p on a width x height canvas at scale k.
func FocusTransform(p geo.Point, k, width, height float64) Transform {
	return Transform{X: width/2 - p.X*k, Y: height/2 - p.Y*k, K: k}
}

// ClampScale bounds k to [MinScale, MaxScale].
func ClampScale(k float64) float64 {
	return math.Max(MinScale, math.Min(MaxScale, k))
}

// ScreenPosition projects an event location to canvas space under t.
func ScreenPosition(proj *geo.Projection, lon, lat float64, t Transform) (geo.Point, bool) {
	p, ok := proj.Project(lon, lat)
	if !ok {
		return geo.Point{}, false
	}
	return t.Apply(p), true
}

// MarkerTransform positions a marker inside the zoom group and counter-scales
// it so its on-screen size does not change with zoom. Markers that cannot be
// projected are parked off-canvas.
func MarkerTransform(p geo.Point, ok bool, t Transform) string {
	if !ok {
		return "translate(-9999 -9999)"
	}
	return fmt.Sprintf("translate(%s %s) scale(%s)",
		geo.FormatFloat(p.X), geo.FormatFloat(p.Y), formatScale(1/t.K))
}

func formatScale(k float64) string {
	return fmt.Sprintf("%.4g", k)
}

// interpolate blends two transforms at f in [0,1]. The view centre moves
// linearly and the scale geometrically, which keeps the motion even across
// large scale changes.
func interpolate(a, b Transform, f, width, height float64) Transform {
	if f <= 0 {
		return a
	}
	if f >= 1 {
		return b
	}
	c := geo.Point{X: width / 2, Y: height / 2}
	ca, cb := a.Invert(c), b.Invert(c)
	k := a.K * math.Pow(b.K/a.K, f)
	m := geo.Point{X: ca.X + (cb.X-ca.X)*f, Y: ca.Y + (cb.Y-ca.Y)*f}
	return Transform{X: c.X - m.X*k, Y: c.Y - m.Y*k, K: k}
}

// easeCubicInOut matches the default easing of d3 transitions.
func easeCubicInOut(t float64) float64 {
	t *= 2
	if t <= 1 {
		return t * t * t / 2
	}
	t -= 2
	return (t*t*t + 2) / 2
}
