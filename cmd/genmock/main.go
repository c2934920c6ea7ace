// Command genmock writes a synthetic USGS GeoJSON summary document for local
// development and demos. Point the service at the output with
// FEED_URL_HOUR/FEED_URL_DAY/FEED_URL_WEEK served from any static file server.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -window day -count 250 -seed 42 \
//	  -out testdata/all_day.geojson
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	geojson "github.com/paulmach/go.geojson"

	"github.com/couchcryptid/quakewatch-service/internal/domain"
)

// zone is a seismically active region events are scattered around.
type zone struct {
	name     string
	lon, lat float64
	spread   float64 // degrees
	maxDepth float64 // km
	weight   int
}

var zones = []zone{
	{name: "Northern California", lon: -122.8, lat: 38.8, spread: 1.5, maxDepth: 15, weight: 8},
	{name: "Southern California", lon: -116.8, lat: 33.9, spread: 1.5, maxDepth: 20, weight: 8},
	{name: "Alaska", lon: -150.5, lat: 61.2, spread: 4, maxDepth: 120, weight: 6},
	{name: "Hawaii", lon: -155.3, lat: 19.4, spread: 0.6, maxDepth: 40, weight: 4},
	{name: "Honshu, Japan", lon: 142.4, lat: 38.3, spread: 3, maxDepth: 300, weight: 3},
	{name: "Sumatra, Indonesia", lon: 97.0, lat: 2.0, spread: 4, maxDepth: 200, weight: 2},
	{name: "Chile", lon: -71.5, lat: -30.0, spread: 4, maxDepth: 250, weight: 2},
	{name: "Mid-Atlantic Ridge", lon: -28.0, lat: 0.5, spread: 8, maxDepth: 10, weight: 1},
	{name: "Tonga", lon: -175.0, lat: -20.0, spread: 3, maxDepth: 600, weight: 2},
}

// document mirrors the USGS summary layout: a FeatureCollection with a
// metadata member that go.geojson does not model.
type document struct {
	Type     string              `json:"type"`
	Metadata domain.FeedMetadata `json:"metadata"`
	Features []*geojson.Feature  `json:"features"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	windowName := flag.String("window", "day", "feed window to simulate: hour, day or week")
	count := flag.Int("count", 100, "number of valid events")
	broken := flag.Int("broken", 2, "number of malformed records to include")
	seed := flag.Uint64("seed", 1, "random seed")
	at := flag.String("at", "2026-04-26T15:10:00Z", "generation time (RFC 3339)")
	out := flag.String("out", "", "output path for the GeoJSON document")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	window, err := domain.ParseFeedWindow(*windowName)
	if err != nil {
		return err
	}
	generated, err := time.Parse(time.RFC3339, *at)
	if err != nil {
		return fmt.Errorf("parse -at: %w", err)
	}

	// A fixed clock keeps the output reproducible for a given seed.
	clock := clockwork.NewFakeClockAt(generated)
	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))

	features := make([]*geojson.Feature, 0, *count+*broken)
	for i := range *count {
		features = append(features, randomFeature(rng, clock.Now(), windowSpan(window), i))
	}
	for i := range *broken {
		features = append(features, brokenFeature(clock.Now(), i))
	}
	sort.SliceStable(features, func(i, j int) bool {
		return featureTime(features[i]) > featureTime(features[j])
	})

	doc := document{
		Type: "FeatureCollection",
		Metadata: domain.FeedMetadata{
			Generated: clock.Now().UnixMilli(),
			Title:     fmt.Sprintf("USGS All Earthquakes, Past %s (synthetic)", titleCase(window)),
			Count:     len(features),
		},
		Features: features,
	}
	if err := writeJSON(*out, doc); err != nil {
		return fmt.Errorf("writing feed fixture: %w", err)
	}
	log.Printf("wrote %d features (%d malformed) to %s", len(features), *broken, *out)
	return nil
}

func randomFeature(rng *rand.Rand, now time.Time, span time.Duration, i int) *geojson.Feature {
	z := pickZone(rng)
	lon := wrapLon(z.lon + rng.NormFloat64()*z.spread)
	lat := clamp(z.lat+rng.NormFloat64()*z.spread, -89.9, 89.9)
	depth := round(rng.Float64()*z.maxDepth, 2)

	// Gutenberg-Richter: small events are far more frequent.
	mag := round(math.Min(-0.5+rng.ExpFloat64()/math.Ln10, 8.5), 1)

	f := geojson.NewPointFeature([]float64{round(lon, 4), round(lat, 4), depth})
	f.ID = fmt.Sprintf("mk%08d", i)
	f.SetProperty("mag", mag)
	f.SetProperty("place", fmt.Sprintf("%d km from %s", 1+rng.IntN(80), z.name))
	f.SetProperty("time", now.Add(-time.Duration(rng.Int64N(int64(span)))).UnixMilli())
	return f
}

// brokenFeature returns records the poller must drop: alternately a null
// magnitude and a missing geometry.
func brokenFeature(now time.Time, i int) *geojson.Feature {
	f := geojson.NewPointFeature([]float64{0, 0, 0})
	f.ID = fmt.Sprintf("bad%04d", i)
	f.SetProperty("place", nil)
	f.SetProperty("time", now.Add(-time.Duration(i)*time.Minute).UnixMilli())
	if i%2 == 0 {
		f.SetProperty("mag", nil)
	} else {
		f.SetProperty("mag", 1.0)
		f.Geometry = nil
	}
	return f
}

func pickZone(rng *rand.Rand) zone {
	total := 0
	for _, z := range zones {
		total += z.weight
	}
	n := rng.IntN(total)
	for _, z := range zones {
		if n < z.weight {
			return z
		}
		n -= z.weight
	}
	return zones[len(zones)-1]
}

func windowSpan(w domain.FeedWindow) time.Duration {
	switch w {
	case domain.WindowHour:
		return time.Hour
	case domain.WindowWeek:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

func featureTime(f *geojson.Feature) int64 {
	switch v := f.Properties["time"].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func titleCase(w domain.FeedWindow) string {
	s := w.String()
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

func wrapLon(lon float64) float64 {
	return math.Mod(lon+540, 360) - 180
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
