package domain

import "math"

// Normalize maps raw feed records to events, preserving input order.
// Records without a finite magnitude or without a coordinate pair are
// dropped. The second return value is the number of dropped records.
func Normalize(features []RawFeature) ([]Event, int) {
	events := make([]Event, 0, len(features))
	dropped := 0
	for _, f := range features {
		e, ok := normalizeFeature(f)
		if !ok {
			dropped++
			continue
		}
		events = append(events, e)
	}
	return events, dropped
}

func normalizeFeature(f RawFeature) (Event, bool) {
	if f.Properties.Mag == nil || !isFinite(*f.Properties.Mag) {
		return Event{}, false
	}
	if f.Geometry == nil || len(f.Geometry.Coordinates) < 2 {
		return Event{}, false
	}
	coords := f.Geometry.Coordinates

	e := Event{
		ID:    f.ID,
		Lon:   coords[0],
		Lat:   coords[1],
		Mag:   *f.Properties.Mag,
		Place: UnknownPlace,
		Time:  f.Properties.Time,
	}
	if len(coords) > 2 {
		e.Depth = coords[2]
	}
	if f.Properties.Place != nil && *f.Properties.Place != "" {
		e.Place = *f.Properties.Place
	}
	return e, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
