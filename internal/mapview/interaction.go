package mapview

import (
	"math"

	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/couchcryptid/quakewatch-service/internal/geo"
)

// HitSlop extends a marker's hit area beyond its core radius so the active
// ring is also clickable.
const HitSlop = ActiveRingOffset

// PointerMove hit-tests canvas position (x, y). Over a marker it reports a
// hover with the pointer position; moving off a marker reports a hover-out.
func (m *Map) PointerMove(x, y float64) {
	m.mu.Lock()
	e, hit := m.hitTestLocked(x, y)
	var fire []func()
	switch {
	case hit:
		m.hoverID = e.ID
		if cb := m.callbacks.OnHover; cb != nil {
			fire = append(fire, func() { cb(e, x, y) })
		}
	case m.hoverID != "":
		m.hoverID = ""
		fire = m.hoverOutLocked()
	}
	m.mu.Unlock()
	run(fire)
}

// PointerLeave reports that the pointer left the canvas.
func (m *Map) PointerLeave() {
	m.mu.Lock()
	m.hoverID = ""
	fire := m.hoverOutLocked()
	m.mu.Unlock()
	run(fire)
}

func (m *Map) hoverOutLocked() []func() {
	if cb := m.callbacks.OnHoverOut; cb != nil {
		return []func(){cb}
	}
	return nil
}

// Click zooms onto the marker under (x, y). A click elsewhere on the globe
// resets the zoom; clicks outside the globe are ignored.
func (m *Map) Click(x, y float64) {
	m.mu.Lock()
	var fire []func()
	if e, hit := m.hitTestLocked(x, y); hit {
		m.zoomToQuakeLocked(e)
		if cb := m.callbacks.OnQuakeClick; cb != nil {
			fire = append(fire, func() { cb(e) })
		}
	} else if m.onSphereLocked(x, y) {
		m.resetZoomLocked()
		if cb := m.callbacks.OnBackgroundClick; cb != nil {
			fire = append(fire, cb)
		}
	}
	m.mu.Unlock()
	run(fire)
}

// Zoom scales the view by factor around canvas point (x, y), clamped to
// [MinScale, MaxScale]. It cancels any running zoom animation.
func (m *Map) Zoom(x, y, factor float64) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return
	}
	m.mu.Lock()
	m.anim = nil
	k := ClampScale(m.transform.K * factor)
	fire := m.setTransformLocked(m.transform.ScaleAround(geo.Point{X: x, Y: y}, k))
	m.mu.Unlock()
	run(fire)
}

// Pan shifts the view by (dx, dy) canvas pixels. It cancels any running zoom
// animation.
func (m *Map) Pan(dx, dy float64) {
	m.mu.Lock()
	m.anim = nil
	fire := m.setTransformLocked(m.transform.Translate(dx, dy))
	m.mu.Unlock()
	run(fire)
}

// hitTestLocked returns the topmost live marker whose hit area contains the
// canvas point. Markers are counter-scaled, so their screen radius does not
// depend on zoom.
func (m *Map) hitTestLocked(x, y float64) (domain.Event, bool) {
	if !m.initialized || m.heatmapOn {
		return domain.Event{}, false
	}
	order := m.markers.order
	for i := len(order) - 1; i >= 0; i-- {
		el := m.markers.elements[order[i]]
		if el.exiting() {
			continue
		}
		p, ok := ScreenPosition(m.proj, el.event.Lon, el.event.Lat, m.transform)
		if !ok {
			continue
		}
		r := MarkerRadius(el.event.Mag) + HitSlop
		if math.Hypot(p.X-x, p.Y-y) <= r {
			return el.event, true
		}
	}
	return domain.Event{}, false
}

func (m *Map) onSphereLocked(x, y float64) bool {
	if !m.initialized {
		return false
	}
	return geo.PointInRing(m.sphere, m.transform.Invert(geo.Point{X: x, Y: y}))
}
