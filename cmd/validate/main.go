// Command validate checks a saved USGS GeoJSON summary document against the
// rules the poller applies to live data: document shape, record
// normalization, an independent GeoJSON decode, reconciliation idempotency
// and, when a world file is given, land classification.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -feed testdata/all_day.geojson \
//	  -world testdata/ne_110m_admin_0_countries.geojson
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	geojson "github.com/paulmach/go.geojson"

	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/couchcryptid/quakewatch-service/internal/geo"
	"github.com/couchcryptid/quakewatch-service/internal/pipeline"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	feedPath := flag.String("feed", "", "path to a saved USGS GeoJSON summary document")
	worldPath := flag.String("world", "", "optional countries GeoJSON for land classification")
	window := flag.String("window", "week", "feed window the document was taken from")
	flag.Parse()

	if *feedPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*feedPath, *worldPath, *window); code != 0 {
		os.Exit(code)
	}
}

func run(feedPath, worldPath, windowName string) int {
	fmt.Println("=== Earthquake Feed Validation ===")
	fmt.Println()

	window, err := domain.ParseFeedWindow(windowName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	data, err := os.ReadFile(feedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read feed: %v\n", err)
		return 1
	}

	var doc domain.FeedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: decode feed: %v\n", err)
		return 1
	}
	events, dropped := domain.Normalize(doc.Features)

	phases := []*phase{
		validateDocument(doc),
		validateNormalization(doc, events, dropped),
		validateGeoJSON(data, events),
		validateReconcile(events, window),
	}
	if worldPath != "" {
		phases = append(phases, validateLand(worldPath, events))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d features, %d events, %d dropped\n", len(doc.Features), len(events), dropped)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phases ──

func validateDocument(doc domain.FeedDocument) *phase {
	p := &phase{name: "Document structure"}
	if doc.Type != "FeatureCollection" {
		p.errorf("type is %q (expected \"FeatureCollection\")", doc.Type)
	}
	if doc.Metadata == nil {
		p.errorf("metadata is missing")
		return p
	}
	if doc.Metadata.Count != len(doc.Features) {
		p.errorf("metadata.count %d does not match %d features", doc.Metadata.Count, len(doc.Features))
	}
	if doc.Metadata.Generated == 0 {
		p.errorf("metadata.generated is zero")
	}
	return p
}

// validateNormalization checks that every kept record is well formed and
// that exactly the malformed records were dropped.
func validateNormalization(doc domain.FeedDocument, events []domain.Event, dropped int) *phase {
	p := &phase{name: "Record normalization"}

	seen := make(map[string]int, len(events))
	for i, e := range events {
		pf := func(format string, args ...any) {
			p.errorf("event %d (%s): %s", i, e.ID, fmt.Sprintf(format, args...))
		}
		if e.ID == "" {
			pf("id is empty")
		}
		if e.Lon < -180 || e.Lon > 180 {
			pf("longitude %g out of range", e.Lon)
		}
		if e.Lat < -90 || e.Lat > 90 {
			pf("latitude %g out of range", e.Lat)
		}
		if e.Time <= 0 {
			pf("origin time is not set")
		}
		if e.Place == "" {
			pf("place is empty")
		}
		seen[e.ID]++
	}
	for id, n := range seen {
		if n > 1 {
			p.errorf("id %s appears %d times", id, n)
		}
	}

	expectDropped := 0
	for i, f := range doc.Features {
		if reason := dropReason(f); reason != "" {
			expectDropped++
			fmt.Printf("Dropped feature %d (%s): %s\n", i, f.ID, reason)
		}
	}
	if expectDropped != dropped {
		p.errorf("dropped %d records, expected %d", dropped, expectDropped)
	}
	return p
}

// validateGeoJSON decodes the document with a general GeoJSON parser and
// checks that it agrees with the feed-specific decode on every kept event.
func validateGeoJSON(data []byte, events []domain.Event) *phase {
	p := &phase{name: "GeoJSON cross-check"}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		p.errorf("decode: %v", err)
		return p
	}

	byID := make(map[string]*geojson.Feature, len(fc.Features))
	for _, f := range fc.Features {
		if id, ok := f.ID.(string); ok {
			byID[id] = f
		}
	}

	for _, e := range events {
		f, ok := byID[e.ID]
		if !ok {
			p.errorf("event %s missing from GeoJSON decode", e.ID)
			continue
		}
		if f.Geometry == nil || !f.Geometry.IsPoint() || len(f.Geometry.Point) < 2 {
			p.errorf("event %s geometry is not a point", e.ID)
			continue
		}
		if !floatEq(f.Geometry.Point[0], e.Lon) || !floatEq(f.Geometry.Point[1], e.Lat) {
			p.errorf("event %s position (%g,%g) != (%g,%g)", e.ID,
				e.Lon, e.Lat, f.Geometry.Point[0], f.Geometry.Point[1])
		}
		if mag, err := f.PropertyFloat64("mag"); err != nil || !floatEq(mag, e.Mag) {
			p.errorf("event %s magnitude %g does not match property mag", e.ID, e.Mag)
		}
	}
	return p
}

// validateReconcile replays the document through a store twice: the initial
// load must report nothing new and a repeat must change nothing.
func validateReconcile(events []domain.Event, window domain.FeedWindow) *phase {
	p := &phase{name: "Reconciliation"}

	newest := int64(0)
	for _, e := range events {
		newest = max(newest, e.Time)
	}
	now := time.UnixMilli(newest)
	if newest == 0 {
		now = time.Now()
	}

	// Horizons wide enough that nothing in a saved document ages out.
	horizon := 30 * 24 * time.Hour
	store := pipeline.NewStore(window, map[domain.FeedWindow]time.Duration{
		domain.WindowHour: horizon,
		domain.WindowDay:  horizon,
		domain.WindowWeek: horizon,
	})

	first := store.Reconcile(events, true, now)
	if len(first.New) != 0 {
		p.errorf("initial load reported %d new events", len(first.New))
	}
	second := store.Reconcile(events, false, now)
	if len(second.New) != 0 {
		p.errorf("repeat reconcile reported %d new events", len(second.New))
	}
	if len(second.Snapshot) != len(first.Snapshot) {
		p.errorf("repeat reconcile changed store size %d -> %d", len(first.Snapshot), len(second.Snapshot))
	}
	for i := 1; i < len(second.Snapshot); i++ {
		if second.Snapshot[i-1].Time < second.Snapshot[i].Time {
			p.errorf("snapshot not newest first at index %d", i)
			break
		}
	}
	return p
}

func validateLand(worldPath string, events []domain.Event) *phase {
	p := &phase{name: "Land classification"}

	fc, err := geo.NewLoader(30*time.Second).FeatureCollection(context.Background(), worldPath)
	if err != nil {
		p.errorf("load world: %v", err)
		return p
	}
	land := geo.NewLandIndex(fc)
	if land.Len() == 0 {
		p.errorf("world file has no polygons")
		return p
	}

	onLand := 0
	for _, e := range events {
		if land.Contains(e.Lon, e.Lat) {
			onLand++
		}
	}
	fmt.Printf("Land: %d of %d events on land\n", onLand, len(events))
	if len(events) > 0 && onLand == len(events) {
		p.errorf("every event classified on land; check polygon orientation")
	}
	return p
}

// ── Helpers ──

func dropReason(f domain.RawFeature) string {
	switch {
	case f.Properties.Mag == nil:
		return "magnitude is null"
	case math.IsNaN(*f.Properties.Mag) || math.IsInf(*f.Properties.Mag, 0):
		return "magnitude is not finite"
	case f.Geometry == nil:
		return "geometry is null"
	case len(f.Geometry.Coordinates) < 2:
		return "coordinates are incomplete"
	}
	return ""
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
