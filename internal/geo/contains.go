package geo

import (
	geojson "github.com/paulmach/go.geojson"
)

type bbox struct {
	minLon, minLat, maxLon, maxLat float64
}

func (b bbox) contains(lon, lat float64) bool {
	return lon >= b.minLon && lon <= b.maxLon && lat >= b.minLat && lat <= b.maxLat
}

type polygon struct {
	rings [][][]float64
	box   bbox
}

// LandIndex answers point-in-land queries against polygon features.
type LandIndex struct {
	polygons []polygon
}

// NewLandIndex indexes every Polygon and MultiPolygon feature in fc.
func NewLandIndex(fc *geojson.FeatureCollection) *LandIndex {
	idx := &LandIndex{}
	if fc == nil {
		return idx
	}
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		switch {
		case f.Geometry.IsPolygon():
			idx.add(f.Geometry.Polygon)
		case f.Geometry.IsMultiPolygon():
			for _, poly := range f.Geometry.MultiPolygon {
				idx.add(poly)
			}
		}
	}
	return idx
}

func (idx *LandIndex) add(rings [][][]float64) {
	if len(rings) == 0 || len(rings[0]) < 3 {
		return
	}
	box := bbox{minLon: 180, minLat: 90, maxLon: -180, maxLat: -90}
	for _, pos := range rings[0] {
		if len(pos) < 2 {
			continue
		}
		box.minLon = min(box.minLon, pos[0])
		box.maxLon = max(box.maxLon, pos[0])
		box.minLat = min(box.minLat, pos[1])
		box.maxLat = max(box.maxLat, pos[1])
	}
	idx.polygons = append(idx.polygons, polygon{rings: rings, box: box})
}

// Len returns the number of indexed polygons.
func (idx *LandIndex) Len() int { return len(idx.polygons) }

// Contains reports whether lon/lat falls inside any indexed polygon. Holes
// are honoured by even-odd counting across all rings of a polygon.
func (idx *LandIndex) Contains(lon, lat float64) bool {
	for _, p := range idx.polygons {
		if !p.box.contains(lon, lat) {
			continue
		}
		inside := false
		for _, ring := range p.rings {
			if ringContains(ring, lon, lat) {
				inside = !inside
			}
		}
		if inside {
			return true
		}
	}
	return false
}

// ringContains is the standard ray casting test on the lon/lat plane.
func ringContains(ring [][]float64, x, y float64) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if len(ring[i]) < 2 || len(ring[j]) < 2 {
			continue
		}
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// PointInRing reports whether pt lies inside a projected ring.
func PointInRing(ring []Point, pt Point) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].X, ring[i].Y
		xj, yj := ring[j].X, ring[j].Y
		if (yi > pt.Y) != (yj > pt.Y) && pt.X < (xj-xi)*(pt.Y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}
