package mapview

import (
	"time"

	"github.com/couchcryptid/quakewatch-service/internal/domain"
)

// element is one keyed item of a layer.
type element struct {
	event     domain.Event
	onLand    bool
	isNew     bool
	enteredAt time.Time
	exitingAt time.Time // zero while present in the data
}

func (e *element) exiting() bool { return !e.exitingAt.IsZero() }

// layer reconciles a keyed collection of elements against successive event
// snapshots. Elements that disappear from the data linger while they fade
// out and are removed by prune.
type layer struct {
	enter, exit time.Duration
	order       []string
	elements    map[string]*element
}

func newLayer(enter, exit time.Duration) *layer {
	return &layer{enter: enter, exit: exit, elements: make(map[string]*element)}
}

type joinStats struct {
	entered, updated, exited int
}

// join updates matching elements in place, enters new identities, and starts
// the exit of identities missing from events. Exiting elements draw beneath
// the live ones; live elements keep the order of events.
func (l *layer) join(events []domain.Event, onLand map[string]bool, newIDs map[string]bool, now time.Time) joinStats {
	var stats joinStats
	seen := make(map[string]bool, len(events))
	live := make([]string, 0, len(events))

	for _, ev := range events {
		if seen[ev.ID] {
			continue
		}
		seen[ev.ID] = true
		live = append(live, ev.ID)

		el, ok := l.elements[ev.ID]
		if !ok {
			l.elements[ev.ID] = &element{
				event:     ev,
				onLand:    onLand[ev.ID],
				isNew:     newIDs[ev.ID],
				enteredAt: now,
			}
			stats.entered++
			continue
		}
		el.event = ev
		el.onLand = onLand[ev.ID]
		el.isNew = newIDs[ev.ID]
		el.exitingAt = time.Time{}
		stats.updated++
	}

	var leaving []string
	for _, id := range l.order {
		if seen[id] {
			continue
		}
		el := l.elements[id]
		if !el.exiting() {
			el.exitingAt = now
			stats.exited++
		}
		leaving = append(leaving, id)
	}

	l.order = append(leaving, live...)
	return stats
}

// prune drops elements whose exit transition has finished and returns their
// identities.
func (l *layer) prune(now time.Time) []string {
	var removed []string
	kept := l.order[:0]
	for _, id := range l.order {
		el := l.elements[id]
		if el.exiting() && now.Sub(el.exitingAt) >= l.exit {
			delete(l.elements, id)
			removed = append(removed, id)
			continue
		}
		kept = append(kept, id)
	}
	l.order = kept
	return removed
}

// progress returns how far an element is through its visibility at now:
// 0 is invisible, 1 fully shown. Entering and exiting elements are eased.
func (l *layer) progress(el *element, now time.Time) float64 {
	if el.exiting() {
		return 1 - easeCubicInOut(fraction(now.Sub(el.exitingAt), l.exit))
	}
	return easeCubicInOut(fraction(now.Sub(el.enteredAt), l.enter))
}

// animating reports whether any element is still mid-transition.
func (l *layer) animating(now time.Time) bool {
	for _, el := range l.elements {
		if el.exiting() || now.Sub(el.enteredAt) < l.enter {
			return true
		}
	}
	return false
}

func (l *layer) each(fn func(*element)) {
	for _, id := range l.order {
		fn(l.elements[id])
	}
}

func (l *layer) len() int { return len(l.order) }

func fraction(elapsed, total time.Duration) float64 {
	if total <= 0 || elapsed >= total {
		return 1
	}
	if elapsed <= 0 {
		return 0
	}
	return float64(elapsed) / float64(total)
}
