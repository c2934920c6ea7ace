// Package mapview renders earthquake events onto a projected world map and
// tracks the zoom, layer and pointer state a viewer interacts with.
//
// The scene is kept server-side and encoded as SVG on demand. Enter and exit
// transitions and zoom animations are time-boxed against an injected clock
// and advanced by Tick.
package mapview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	geojson "github.com/paulmach/go.geojson"

	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/couchcryptid/quakewatch-service/internal/geo"
	"github.com/couchcryptid/quakewatch-service/internal/observability"
)

// Transition timings.
const (
	MarkerEnterDuration = 300 * time.Millisecond
	MarkerExitDuration  = 2 * time.Second
	HeatEnterDuration   = 400 * time.Millisecond
	HeatExitDuration    = 700 * time.Millisecond
	ZoomDuration        = 750 * time.Millisecond
)

// GraticuleStep is the spacing of graticule lines in degrees.
const GraticuleStep = 10

// ErrNotInitialized is returned by operations that need the base map.
var ErrNotInitialized = errors.New("map not initialized")

// GeoLoader fetches GeoJSON documents for the base map and overlays.
type GeoLoader interface {
	FeatureCollection(ctx context.Context, src string) (*geojson.FeatureCollection, error)
}

// Options configures the canvas and data sources.
type Options struct {
	Width       int
	Height      int
	Margin      int
	Projection  string
	WorldURL    string
	TectonicURL string // empty disables the overlay
}

// Callbacks notify the host of viewer interaction. Any may be nil. They are
// invoked without the map lock held, so they may call back into the map.
type Callbacks struct {
	OnHover           func(e domain.Event, x, y float64)
	OnHoverOut        func()
	OnQuakeClick      func(e domain.Event)
	OnBackgroundClick func()
	OnZoomStateChange func(zoomed bool)
}

type zoomAnimation struct {
	from, to Transform
	start    time.Time
}

type landEntry struct {
	lon, lat float64
	onLand   bool
}

// Map is the rendering and interaction engine. All methods are safe for
// concurrent use.
type Map struct {
	opts      Options
	loader    GeoLoader
	clock     clockwork.Clock
	callbacks Callbacks
	logger    *slog.Logger
	metrics   *observability.Metrics

	overlays sync.WaitGroup

	mu          sync.Mutex
	initialized bool
	proj        *geo.Projection
	land        *geo.LandIndex
	sphere      []geo.Point
	paths       basePaths
	tectonic    string

	markers    *layer
	heat       *layer
	landCache  map[string]landEntry
	activeID   string
	hoverID    string
	heatmapOn  bool
	tectonicOn bool

	transform Transform
	anim      *zoomAnimation
	zoomed    bool
}

type basePaths struct {
	sphere    string
	graticule string
	countries string
	borders   string
}

// New creates an uninitialized map. Call Init before rendering.
func New(opts Options, loader GeoLoader, clock clockwork.Clock, callbacks Callbacks, logger *slog.Logger, metrics *observability.Metrics) *Map {
	return &Map{
		opts:      opts,
		loader:    loader,
		clock:     clock,
		callbacks: callbacks,
		logger:    logger,
		metrics:   metrics,
		markers:   newLayer(MarkerEnterDuration, MarkerExitDuration),
		heat:      newLayer(HeatEnterDuration, HeatExitDuration),
		landCache: make(map[string]landEntry),
		transform: Identity,
	}
}

// SetCallbacks replaces the interaction callbacks. It lets a host that
// needs the map to build its callbacks wire them after New.
func (m *Map) SetCallbacks(callbacks Callbacks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = callbacks
}

// Init loads the world boundaries, fits the projection to the canvas and
// builds the static layers. A failure leaves the map uninitialized and Init
// may be retried. The tectonic overlay loads in the background; its failure
// only leaves that layer empty.
func (m *Map) Init(ctx context.Context) error {
	proj, err := geo.NewProjection(m.opts.Projection)
	if err != nil {
		return err
	}
	margin := float64(m.opts.Margin)
	proj.FitExtent(margin, margin, float64(m.opts.Width)-margin, float64(m.opts.Height)-margin)

	world, err := m.loader.FeatureCollection(ctx, m.opts.WorldURL)
	if err != nil {
		m.metrics.MapLayerFailures.WithLabelValues("world").Inc()
		return fmt.Errorf("load world: %w", err)
	}

	sphere := proj.SphereOutline()
	paths := basePaths{
		sphere:    ringPath(proj, sphere),
		graticule: graticulePath(proj),
		countries: featuresPath(proj, world),
		borders:   bordersPath(proj, world),
	}
	land := geo.NewLandIndex(world)

	m.mu.Lock()
	first := !m.initialized
	m.proj = proj
	m.land = land
	m.sphere = sphere
	m.paths = paths
	m.initialized = true
	clear(m.landCache)
	m.mu.Unlock()

	m.logger.Info("base map loaded", "projection", proj.Name(), "polygons", land.Len())

	if first && m.opts.TectonicURL != "" {
		m.overlays.Add(1)
		go m.loadTectonic(ctx, proj)
	}
	return nil
}

func (m *Map) loadTectonic(ctx context.Context, proj *geo.Projection) {
	defer m.overlays.Done()

	fc, err := m.loader.FeatureCollection(ctx, m.opts.TectonicURL)
	if err != nil {
		m.metrics.MapLayerFailures.WithLabelValues("tectonic").Inc()
		m.logger.Warn("tectonic overlay unavailable", "error", err)
		return
	}
	path := featuresPath(proj, fc)

	m.mu.Lock()
	m.tectonic = path
	m.mu.Unlock()
	m.logger.Debug("tectonic overlay loaded", "features", len(fc.Features))
}

// WaitOverlays blocks until background overlay loads have finished.
func (m *Map) WaitOverlays() {
	m.overlays.Wait()
}

// Render reconciles the marker and heat layers with events, newest first.
// Events in newIDs get the attention animation. The returned events carry
// OnLand once the base map is loaded.
func (m *Map) Render(events []domain.Event, newIDs map[string]bool) []domain.Event {
	start := time.Now()
	defer func() { m.metrics.RenderDuration.Observe(time.Since(start).Seconds()) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	annotated := make([]domain.Event, len(events))
	onLand := make(map[string]bool, len(events))
	for i, e := range events {
		if land, ok := m.onLandLocked(e); ok {
			e.OnLand = &land
			onLand[e.ID] = land
		}
		annotated[i] = e
	}

	now := m.clock.Now()
	stats := m.markers.join(annotated, onLand, newIDs, now)
	m.heat.join(annotated, onLand, newIDs, now)
	m.pruneCacheLocked()

	m.logger.Debug("map rendered",
		"events", len(events),
		"entered", stats.entered,
		"updated", stats.updated,
		"exited", stats.exited,
	)
	return annotated
}

// onLandLocked resolves land membership, trusting a value already on the
// event and caching computed results per identity and location.
func (m *Map) onLandLocked(e domain.Event) (bool, bool) {
	if e.OnLand != nil {
		return *e.OnLand, true
	}
	if m.land == nil {
		return false, false
	}
	if c, ok := m.landCache[e.ID]; ok && c.lon == e.Lon && c.lat == e.Lat {
		return c.onLand, true
	}
	land := m.land.Contains(e.Lon, e.Lat)
	m.landCache[e.ID] = landEntry{lon: e.Lon, lat: e.Lat, onLand: land}
	return land, true
}

func (m *Map) pruneCacheLocked() {
	for id := range m.landCache {
		if _, ok := m.markers.elements[id]; !ok {
			delete(m.landCache, id)
		}
	}
}

// SetHeatmapEnabled switches between the heat layer and the marker layer.
func (m *Map) SetHeatmapEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heatmapOn = enabled
	if enabled {
		m.hoverID = ""
	}
}

// SetTectonicEnabled shows or hides the plate boundary overlay.
func (m *Map) SetTectonicEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tectonicOn = enabled
}

// ZoomToQuake animates the view onto e and marks it active. Events that
// cannot be projected are ignored.
func (m *Map) ZoomToQuake(e domain.Event) {
	m.mu.Lock()
	m.zoomToQuakeLocked(e)
	m.mu.Unlock()
}

func (m *Map) zoomToQuakeLocked(e domain.Event) {
	if !m.initialized {
		return
	}
	p, ok := m.proj.Project(e.Lon, e.Lat)
	if !ok {
		return
	}
	m.activeID = e.ID
	target := FocusTransform(p, ZoomScaleFor(e.Mag), float64(m.opts.Width), float64(m.opts.Height))
	m.anim = &zoomAnimation{from: m.transform, to: target, start: m.clock.Now()}
}

// ResetZoom animates back to the identity transform and clears the active
// event.
func (m *Map) ResetZoom() {
	m.mu.Lock()
	m.resetZoomLocked()
	m.mu.Unlock()
}

func (m *Map) resetZoomLocked() {
	m.activeID = ""
	m.anim = &zoomAnimation{from: m.transform, to: Identity, start: m.clock.Now()}
}

// Tick advances the zoom animation and removes layer elements whose exit
// transition has finished. It reports whether anything is still animating.
func (m *Map) Tick() bool {
	m.mu.Lock()
	now := m.clock.Now()

	var fire []func()
	if m.anim != nil {
		f := fraction(now.Sub(m.anim.start), ZoomDuration)
		t := interpolate(m.anim.from, m.anim.to, easeCubicInOut(f), float64(m.opts.Width), float64(m.opts.Height))
		if f >= 1 {
			t = m.anim.to
			m.anim = nil
		}
		fire = m.setTransformLocked(t)
	}

	m.markers.prune(now)
	m.heat.prune(now)
	busy := m.anim != nil || m.markers.animating(now) || m.heat.animating(now)
	m.mu.Unlock()

	run(fire)
	return busy
}

// setTransformLocked stores t and returns the zoom state notification to
// deliver once the lock is released.
func (m *Map) setTransformLocked(t Transform) []func() {
	m.transform = t
	zoomed := t.Zoomed()
	if zoomed == m.zoomed {
		return nil
	}
	m.zoomed = zoomed
	if cb := m.callbacks.OnZoomStateChange; cb != nil {
		return []func(){func() { cb(zoomed) }}
	}
	return nil
}

// View is a snapshot of the interactive state.
type View struct {
	Initialized     bool      `json:"initialized"`
	Projection      string    `json:"projection"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	Transform       Transform `json:"transform"`
	Zoomed          bool      `json:"zoomed"`
	Animating       bool      `json:"animating"`
	ActiveID        string    `json:"activeId,omitempty"`
	HoverID         string    `json:"hoverId,omitempty"`
	HeatmapEnabled  bool      `json:"heatmapEnabled"`
	TectonicEnabled bool      `json:"tectonicEnabled"`
	TectonicLoaded  bool      `json:"tectonicLoaded"`
	Markers         int       `json:"markers"`
}

// View returns the current interactive state.
func (m *Map) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return View{
		Initialized:     m.initialized,
		Projection:      m.opts.Projection,
		Width:           m.opts.Width,
		Height:          m.opts.Height,
		Transform:       m.transform,
		Zoomed:          m.zoomed,
		Animating:       m.anim != nil,
		ActiveID:        m.activeID,
		HoverID:         m.hoverID,
		HeatmapEnabled:  m.heatmapOn,
		TectonicEnabled: m.tectonicOn,
		TectonicLoaded:  m.tectonic != "",
		Markers:         m.markers.len(),
	}
}

func run(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

func ringPath(proj *geo.Projection, ring []geo.Point) string {
	b := geo.NewPathBuilder(proj)
	b.Ring(ring)
	return b.String()
}

func graticulePath(proj *geo.Projection) string {
	b := geo.NewPathBuilder(proj)
	for _, line := range geo.Graticule(GraticuleStep) {
		b.LonLatLine(line)
	}
	return b.String()
}

func bordersPath(proj *geo.Projection, fc *geojson.FeatureCollection) string {
	b := geo.NewPathBuilder(proj)
	for _, line := range geo.SharedBorders(fc) {
		b.LonLatLine(line)
	}
	return b.String()
}

func featuresPath(proj *geo.Projection, fc *geojson.FeatureCollection) string {
	b := geo.NewPathBuilder(proj)
	for _, f := range fc.Features {
		b.Geometry(f.Geometry)
	}
	return b.String()
}
