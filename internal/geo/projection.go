// Package geo projects geographic coordinates onto the map canvas and tests
// points against land geometry.
package geo

import (
	"fmt"
	"math"
)

// Point is a projected canvas position in pixels, y down.
type Point struct {
	X, Y float64
}

// RawProjection maps longitude and latitude in radians to unscaled plane
// coordinates with y up.
type RawProjection func(lambda, phi float64) (x, y float64)

// Projection is a raw projection fitted to a canvas.
type Projection struct {
	name   string
	raw    RawProjection
	scale  float64
	tx, ty float64
}

// Supported projection names.
const (
	NaturalEarth = "natural-earth"
	Mollweide    = "mollweide"
)

// NewProjection returns an unfitted projection by name.
func NewProjection(name string) (*Projection, error) {
	switch name {
	case NaturalEarth:
		return &Projection{name: name, raw: naturalEarth1, scale: 1}, nil
	case Mollweide:
		return &Projection{name: name, raw: mollweide, scale: 1}, nil
	default:
		return nil, fmt.Errorf("unknown projection %q", name)
	}
}

// Name returns the projection name.
func (p *Projection) Name() string { return p.name }

// Scale returns the fitted scale factor.
func (p *Projection) Scale() float64 { return p.scale }

// FitExtent scales and translates the projection so the whole sphere fits
// inside the rectangle [x0,x1] x [y0,y1], centred.
func (p *Projection) FitExtent(x0, y0, x1, y1 float64) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, ll := range sphereOutline() {
		x, y := p.raw(radians(ll[0]), radians(ll[1]))
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}

	w, h := x1-x0, y1-y0
	p.scale = math.Min(w/(maxX-minX), h/(maxY-minY))
	p.tx = x0 + (w-p.scale*(maxX+minX))/2
	p.ty = y0 + (h+p.scale*(maxY+minY))/2
}

// Project converts a longitude/latitude in degrees to canvas pixels. ok is
// false for coordinates outside the valid range.
func (p *Projection) Project(lon, lat float64) (Point, bool) {
	if math.IsNaN(lon) || math.IsNaN(lat) || math.Abs(lon) > 180 || math.Abs(lat) > 90 {
		return Point{}, false
	}
	x, y := p.raw(radians(lon), radians(lat))
	return Point{X: p.tx + p.scale*x, Y: p.ty - p.scale*y}, true
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// naturalEarth1 is the polynomial Natural Earth I projection
// (Šavrič, Jenny, Patterson, Petrovič and Hurni, 2011).
func naturalEarth1(lambda, phi float64) (float64, float64) {
	phi2 := phi * phi
	phi4 := phi2 * phi2
	x := lambda * (0.8707 - 0.131979*phi2 + phi4*(-0.013791+phi4*(0.003971*phi2-0.001529*phi4)))
	y := phi * (1.007226 + phi2*(0.015085+phi4*(-0.044475+0.028874*phi2-0.005916*phi4)))
	return x, y
}

// mollweide solves 2θ + sin 2θ = π sin φ by Newton iteration.
func mollweide(lambda, phi float64) (float64, float64) {
	theta := phi
	if math.Abs(phi) < math.Pi/2 {
		for range 20 {
			denom := 2 + 2*math.Cos(2*theta)
			if math.Abs(denom) < 1e-9 {
				break
			}
			delta := (2*theta + math.Sin(2*theta) - math.Pi*math.Sin(phi)) / denom
			theta -= delta
			if math.Abs(delta) < 1e-9 {
				break
			}
		}
	}
	return (2 * math.Sqrt2 / math.Pi) * lambda * math.Cos(theta), math.Sqrt2 * math.Sin(theta)
}

// sphereOutline returns the boundary of the projected globe as lon/lat
// pairs: down the east edge and up the west edge.
func sphereOutline() [][2]float64 {
	out := make([][2]float64, 0, 362)
	for lat := 90.0; lat >= -90; lat-- {
		out = append(out, [2]float64{180, lat})
	}
	for lat := -90.0; lat <= 90; lat++ {
		out = append(out, [2]float64{-180, lat})
	}
	return out
}

// SphereOutline returns the projected globe boundary as a closed ring.
func (p *Projection) SphereOutline() []Point {
	lonlat := sphereOutline()
	ring := make([]Point, 0, len(lonlat))
	for _, ll := range lonlat {
		pt, _ := p.Project(ll[0], ll[1])
		ring = append(ring, pt)
	}
	return ring
}
