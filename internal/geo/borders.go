package geo

import (
	"math"

	geojson "github.com/paulmach/go.geojson"
)

// vertexKey is a position snapped to a micro-degree grid.
type vertexKey [2]int64

func keyOf(pos []float64) vertexKey {
	return vertexKey{int64(math.Round(pos[0] * 1e6)), int64(math.Round(pos[1] * 1e6))}
}

// edgeKey identifies an undirected edge independent of winding.
type edgeKey [2]vertexKey

func edgeOf(a, b []float64) edgeKey {
	ka, kb := keyOf(a), keyOf(b)
	if kb[0] < ka[0] || (kb[0] == ka[0] && kb[1] < ka[1]) {
		ka, kb = kb, ka
	}
	return edgeKey{ka, kb}
}

// SharedBorders returns the polygon edges that belong to two or more
// distinct features, joined into lon/lat polylines. Edges used by a single
// feature (coastlines) are left out. Each shared edge is emitted once.
func SharedBorders(fc *geojson.FeatureCollection) [][][2]float64 {
	if fc == nil {
		return nil
	}
	rings := make([][][][]float64, len(fc.Features))
	for i, f := range fc.Features {
		rings[i] = featureRings(f.Geometry, nil)
	}

	// owner holds the first feature seen on an edge, or -1 once a second
	// feature claims it.
	owner := make(map[edgeKey]int)
	for i, fr := range rings {
		for _, ring := range fr {
			eachEdge(ring, func(a, b []float64) {
				k := edgeOf(a, b)
				if first, seen := owner[k]; !seen {
					owner[k] = i
				} else if first != i {
					owner[k] = -1
				}
			})
		}
	}

	emitted := make(map[edgeKey]bool)
	var lines [][][2]float64
	for _, fr := range rings {
		for _, ring := range fr {
			var run [][2]float64
			eachEdge(ring, func(a, b []float64) {
				k := edgeOf(a, b)
				if owner[k] != -1 || emitted[k] {
					if len(run) > 0 {
						lines = append(lines, run)
						run = nil
					}
					return
				}
				emitted[k] = true
				if len(run) == 0 {
					run = append(run, [2]float64{a[0], a[1]})
				}
				run = append(run, [2]float64{b[0], b[1]})
			})
			if len(run) > 0 {
				lines = append(lines, run)
			}
		}
	}
	return lines
}

func featureRings(g *geojson.Geometry, dst [][][]float64) [][][]float64 {
	if g == nil {
		return dst
	}
	switch {
	case g.IsPolygon():
		dst = append(dst, g.Polygon...)
	case g.IsMultiPolygon():
		for _, poly := range g.MultiPolygon {
			dst = append(dst, poly...)
		}
	case g.IsCollection():
		for _, child := range g.Geometries {
			dst = featureRings(child, dst)
		}
	}
	return dst
}

// eachEdge calls fn for consecutive valid positions of ring, skipping
// degenerate edges.
func eachEdge(ring [][]float64, fn func(a, b []float64)) {
	for i := 1; i < len(ring); i++ {
		a, b := ring[i-1], ring[i]
		if len(a) < 2 || len(b) < 2 || keyOf(a) == keyOf(b) {
			continue
		}
		fn(a, b)
	}
}
