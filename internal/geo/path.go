package geo

import (
	"math"
	"strconv"
	"strings"

	geojson "github.com/paulmach/go.geojson"
)

// PathBuilder accumulates projected line work as SVG path data.
type PathBuilder struct {
	proj *Projection
	sb   strings.Builder
}

// NewPathBuilder returns an empty builder for proj.
func NewPathBuilder(proj *Projection) *PathBuilder {
	return &PathBuilder{proj: proj}
}

// String returns the accumulated path data.
func (b *PathBuilder) String() string { return b.sb.String() }

// Geometry appends a GeoJSON geometry. Points are ignored.
func (b *PathBuilder) Geometry(g *geojson.Geometry) {
	if g == nil {
		return
	}
	switch {
	case g.IsLineString():
		b.Line(g.LineString, false)
	case g.IsMultiLineString():
		for _, line := range g.MultiLineString {
			b.Line(line, false)
		}
	case g.IsPolygon():
		b.Polygon(g.Polygon)
	case g.IsMultiPolygon():
		for _, poly := range g.MultiPolygon {
			b.Polygon(poly)
		}
	case g.IsCollection():
		for _, child := range g.Geometries {
			b.Geometry(child)
		}
	}
}

// Polygon appends every ring of a polygon as a closed subpath.
func (b *PathBuilder) Polygon(rings [][][]float64) {
	for _, ring := range rings {
		b.Line(ring, true)
	}
}

// Line appends a sequence of [lon, lat] positions. The line is split where
// it crosses the antimeridian so no segment spans the whole canvas. When
// closed, every resulting subpath is closed.
func (b *PathBuilder) Line(positions [][]float64, closed bool) {
	start := true
	prevLon := 0.0
	segments := 0
	for _, pos := range positions {
		if len(pos) < 2 {
			continue
		}
		pt, ok := b.proj.Project(pos[0], pos[1])
		if !ok {
			start = true
			continue
		}
		if !start && math.Abs(pos[0]-prevLon) > 180 {
			start = true
		}
		if start {
			if closed && segments > 0 {
				b.sb.WriteByte('Z')
			}
			b.move(pt)
			segments++
			start = false
		} else {
			b.line(pt)
		}
		prevLon = pos[0]
	}
	if closed && segments > 0 {
		b.sb.WriteByte('Z')
	}
}

// LonLatLine appends a line given as [lon, lat] pairs.
func (b *PathBuilder) LonLatLine(points [][2]float64) {
	positions := make([][]float64, len(points))
	for i := range points {
		positions[i] = points[i][:]
	}
	b.Line(positions, false)
}

// Ring appends a closed ring of already projected points.
func (b *PathBuilder) Ring(ring []Point) {
	for i, pt := range ring {
		if i == 0 {
			b.move(pt)
			continue
		}
		b.line(pt)
	}
	if len(ring) > 0 {
		b.sb.WriteByte('Z')
	}
}

func (b *PathBuilder) move(pt Point) {
	b.sb.WriteByte('M')
	b.coord(pt)
}

func (b *PathBuilder) line(pt Point) {
	b.sb.WriteByte('L')
	b.coord(pt)
}

func (b *PathBuilder) coord(pt Point) {
	b.sb.WriteString(FormatFloat(pt.X))
	b.sb.WriteByte(',')
	b.sb.WriteString(FormatFloat(pt.Y))
}

// FormatFloat renders a pixel value with one decimal place, trimming a
// trailing ".0".
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(math.Round(v*10)/10, 'f', 1, 64)
	s = strings.TrimSuffix(s, ".0")
	if s == "-0" {
		return "0"
	}
	return s
}
