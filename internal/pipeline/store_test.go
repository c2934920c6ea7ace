package pipeline

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quakewatch-service/internal/domain"
)

var testHorizons = map[domain.FeedWindow]time.Duration{
	domain.WindowHour: 10 * time.Minute,
	domain.WindowDay:  24 * time.Hour,
	domain.WindowWeek: 7 * 24 * time.Hour,
}

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func quake(id string, age time.Duration, mag float64) domain.Event {
	return domain.Event{
		ID:    id,
		Lon:   -117.5,
		Lat:   35.7,
		Depth: 8,
		Mag:   mag,
		Place: "10 km NE of Ridgecrest, CA",
		Time:  baseTime.Add(-age).UnixMilli(),
	}
}

func ids(events []domain.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func TestStore_Reconcile_InitialHasNoNewEvents(t *testing.T) {
	s := NewStore(domain.WindowHour, testHorizons)

	res := s.Reconcile([]domain.Event{quake("a", time.Minute, 2), quake("b", 2*time.Minute, 3)}, true, baseTime)

	assert.Empty(t, res.New)
	assert.Equal(t, []string{"a", "b"}, ids(res.Snapshot))
}

func TestStore_Reconcile_NewEventsAreIncomingMinusPrior(t *testing.T) {
	s := NewStore(domain.WindowHour, testHorizons)
	s.Reconcile([]domain.Event{quake("a", time.Minute, 2)}, true, baseTime)

	res := s.Reconcile([]domain.Event{quake("a", time.Minute, 2), quake("b", 30*time.Second, 3)}, false, baseTime)

	assert.Equal(t, []string{"b"}, ids(res.New))
	assert.Equal(t, []string{"b", "a"}, ids(res.Snapshot))

	// The hour feed carries events older than the hour horizon. A first
	// sighting is still new even though it is evicted in the same cycle.
	res = s.Reconcile([]domain.Event{quake("a", time.Minute, 2), quake("c", 30*time.Minute, 3)}, false, baseTime)

	assert.Equal(t, []string{"c"}, ids(res.New))
	assert.Equal(t, []string{"a"}, ids(res.Snapshot))
	assert.Equal(t, 1, res.Evicted)
}

func TestStore_Reconcile_IsIdempotentAndOverwrites(t *testing.T) {
	s := NewStore(domain.WindowHour, testHorizons)
	s.Reconcile([]domain.Event{quake("a", time.Minute, 2)}, true, baseTime)

	revised := quake("a", time.Minute, 2.7)
	revised.Place = "revised"
	res := s.Reconcile([]domain.Event{revised}, false, baseTime)
	res = s.Reconcile([]domain.Event{revised}, false, baseTime)

	require.Len(t, res.Snapshot, 1)
	assert.Equal(t, 2.7, res.Snapshot[0].Mag)
	assert.Equal(t, "revised", res.Snapshot[0].Place)
	assert.Empty(t, res.New)
	assert.Equal(t, 1, s.Len())
}

func TestStore_Reconcile_DuplicateIdentityInOneBatch(t *testing.T) {
	s := NewStore(domain.WindowHour, testHorizons)

	res := s.Reconcile([]domain.Event{quake("a", time.Minute, 1), quake("a", time.Minute, 4)}, false, baseTime)

	require.Len(t, res.Snapshot, 1)
	assert.Equal(t, 4.0, res.Snapshot[0].Mag)
	assert.Equal(t, []string{"a"}, ids(res.New))
}

func TestStore_Reconcile_EvictsAgedEventAbsentFromPayload(t *testing.T) {
	s := NewStore(domain.WindowHour, testHorizons)
	s.Reconcile([]domain.Event{quake("old", 11*time.Minute, 3)}, true, baseTime.Add(-2*time.Minute))
	require.Equal(t, 1, s.Len())

	res := s.Reconcile([]domain.Event{quake("fresh", time.Minute, 1)}, false, baseTime)

	assert.Equal(t, []string{"fresh"}, ids(res.Snapshot))
	assert.Equal(t, 1, res.Evicted)
}

func TestStore_Reconcile_EvictsAgedEventStillUpstream(t *testing.T) {
	s := NewStore(domain.WindowHour, testHorizons)

	res := s.Reconcile([]domain.Event{quake("stale", 11*time.Minute, 3), quake("ok", 10*time.Minute, 3)}, false, baseTime)

	assert.Equal(t, []string{"ok"}, ids(res.Snapshot))
	assert.Equal(t, []string{"stale", "ok"}, ids(res.New), "first sightings are new even when evicted")
}

func TestStore_Reconcile_NeverExceedsHorizon(t *testing.T) {
	for _, w := range domain.FeedWindows {
		t.Run(w.String(), func(t *testing.T) {
			s := NewStore(w, testHorizons)
			var incoming []domain.Event
			for i := range 50 {
				age := time.Duration(i) * testHorizons[w] / 25
				incoming = append(incoming, quake(fmt.Sprintf("%s-%d", w, i), age, 1))
			}

			res := s.Reconcile(incoming, false, baseTime)

			cutoff := baseTime.Add(-testHorizons[w]).UnixMilli()
			for _, e := range res.Snapshot {
				assert.GreaterOrEqual(t, e.Time, cutoff, e.ID)
			}
			assert.Len(t, res.Snapshot, 26)
		})
	}
}

func TestStore_Snapshot_NewestFirstWithStableTies(t *testing.T) {
	s := NewStore(domain.WindowDay, testHorizons)
	s.Reconcile([]domain.Event{
		quake("c", time.Hour, 1),
		quake("b", time.Minute, 1),
		quake("a", time.Hour, 1),
		quake("d", 3*time.Hour, 1),
	}, true, baseTime)

	assert.Equal(t, []string{"b", "a", "c", "d"}, ids(s.Snapshot()))
}

func TestStore_Reset_SwitchesWindowAndClears(t *testing.T) {
	s := NewStore(domain.WindowHour, testHorizons)
	s.Reconcile([]domain.Event{quake("hour-1", time.Minute, 1)}, true, baseTime)

	s.Reset(domain.WindowDay)
	res := s.Reconcile([]domain.Event{quake("day-1", 5*time.Hour, 1)}, true, baseTime)

	assert.Equal(t, domain.WindowDay, s.Window())
	assert.Equal(t, []string{"day-1"}, ids(res.Snapshot))
}

func TestStore_Snapshot_ReturnsCopy(t *testing.T) {
	s := NewStore(domain.WindowHour, testHorizons)
	s.Reconcile([]domain.Event{quake("a", time.Minute, 1)}, true, baseTime)

	snap := s.Snapshot()
	snap[0].Mag = 99

	assert.Equal(t, 1.0, s.Snapshot()[0].Mag)
}
