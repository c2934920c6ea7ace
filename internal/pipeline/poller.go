package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/couchcryptid/quakewatch-service/internal/observability"
)

// FeedFetcher downloads the raw feed document for a window.
type FeedFetcher interface {
	Fetch(ctx context.Context, window domain.FeedWindow, initial bool) (domain.FeedDocument, error)
}

// EventPublisher forwards newly observed events to a downstream system.
type EventPublisher interface {
	Publish(ctx context.Context, events []domain.Event) error
}

// Callbacks receive the outcome of every poll. Either may be nil.
type Callbacks struct {
	OnUpdate func(domain.DataUpdate)
	OnStatus func(domain.Status)
}

// Poller polls the feed on a fixed interval and reconciles each result into
// the store. At most one poll is in flight at a time; ticks that arrive while
// a poll is outstanding or while paused are dropped.
type Poller struct {
	fetcher   FeedFetcher
	store     *Store
	geocoder  domain.Geocoder
	publisher EventPublisher
	callbacks Callbacks
	interval  time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	tracer    trace.Tracer

	polling atomic.Bool
	paused  atomic.Bool
	ready   atomic.Bool

	mu             sync.Mutex
	window         domain.FeedWindow
	generation     uint64
	pendingInitial bool
	running        bool
	runCtx         context.Context
	cancel         context.CancelFunc
	status         domain.Status
	wg             sync.WaitGroup
}

// NewPoller creates a stopped poller. geocoder and publisher may be nil.
func NewPoller(fetcher FeedFetcher, store *Store, interval time.Duration, clock clockwork.Clock, callbacks Callbacks, logger *slog.Logger, metrics *observability.Metrics) *Poller {
	return &Poller{
		fetcher:   fetcher,
		store:     store,
		callbacks: callbacks,
		interval:  interval,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		tracer:    otel.Tracer("github.com/couchcryptid/quakewatch-service/internal/pipeline"),
		window:    store.Window(),
		status:    domain.Status{Tone: domain.ToneStale, Message: domain.MessageConnecting},
	}
}

// WithGeocoder enables reverse geocoding of events without a place label.
func (p *Poller) WithGeocoder(g domain.Geocoder) *Poller {
	p.geocoder = g
	return p
}

// WithPublisher forwards every batch of new events to pub.
func (p *Poller) WithPublisher(pub EventPublisher) *Poller {
	p.publisher = pub
	return p
}

// Start begins polling window: one immediate initial poll, then one poll per
// interval until Stop is called or ctx is cancelled. A running schedule is
// stopped first. The store is cleared when window differs from the store's.
func (p *Poller) Start(ctx context.Context, window domain.FeedWindow) {
	p.Stop()

	if p.store.Window() != window {
		p.store.Reset(window)
	}

	runCtx, cancel := context.WithCancel(ctx)
	ticker := p.clock.NewTicker(p.interval)

	p.mu.Lock()
	p.window = window
	p.generation++
	p.pendingInitial = true
	p.running = true
	p.runCtx = runCtx
	p.cancel = cancel
	p.mu.Unlock()

	p.metrics.PollerRunning.Set(1)
	p.logger.Info("poller started", "window", window, "interval", p.interval)

	p.wg.Add(1)
	go p.loop(runCtx, ticker)

	p.trigger(runCtx)
}

// Stop cancels the schedule. A poll still in flight is aborted and its
// result discarded. Stored events are kept.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.generation++
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	p.metrics.PollerRunning.Set(0)
	p.logger.Info("poller stopped")
}

// SetFeedWindow switches to window, clearing the store and forcing an
// immediate initial poll. It is a no-op when window is already active.
func (p *Poller) SetFeedWindow(window domain.FeedWindow) {
	p.mu.Lock()
	if p.window == window {
		p.mu.Unlock()
		return
	}
	p.window = window
	p.generation++
	p.pendingInitial = true
	p.store.Reset(window)
	running := p.running
	ctx := p.runCtx
	p.mu.Unlock()

	p.logger.Info("feed window changed", "window", window)
	if running {
		p.trigger(ctx)
	}
}

// SetPaused suspends or resumes polling. The schedule keeps running.
func (p *Poller) SetPaused(paused bool) {
	p.paused.Store(paused)
}

// Paused reports whether polling is suspended.
func (p *Poller) Paused() bool {
	return p.paused.Load()
}

// Window returns the active feed window.
func (p *Poller) Window() domain.FeedWindow {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.window
}

// Status returns the most recently reported status.
func (p *Poller) Status() domain.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// CheckReadiness returns nil once a poll has succeeded.
func (p *Poller) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no successful feed poll yet")
	}
	return nil
}

func (p *Poller) loop(ctx context.Context, ticker clockwork.Ticker) {
	defer p.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.trigger(ctx)
		}
	}
}

// trigger starts a poll unless one is already in flight or polling is paused.
func (p *Poller) trigger(ctx context.Context) {
	if p.paused.Load() || !p.polling.CompareAndSwap(false, true) {
		p.metrics.PollsTotal.WithLabelValues(p.Window().String(), "skipped").Inc()
		return
	}
	p.wg.Add(1)
	go p.run(ctx)
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		if !p.running {
			p.mu.Unlock()
			p.polling.Store(false)
			return
		}
		window, gen, initial := p.window, p.generation, p.pendingInitial
		p.pendingInitial = false
		p.mu.Unlock()

		p.pollOnce(ctx, window, gen, initial)
		p.polling.Store(false)

		// A window switch during the poll left an initial poll pending that
		// the in-flight guard refused; run it now rather than on the next tick.
		p.mu.Lock()
		rerun := p.running && p.pendingInitial
		p.mu.Unlock()
		if !rerun || p.paused.Load() || !p.polling.CompareAndSwap(false, true) {
			return
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context, window domain.FeedWindow, gen uint64, initial bool) {
	ctx, span := p.tracer.Start(ctx, "poller.poll", trace.WithAttributes(
		attribute.String("feed.window", window.String()),
		attribute.Bool("feed.initial", initial),
	))
	defer span.End()

	doc, err := p.fetcher.Fetch(ctx, window, initial)
	if !p.current(gen) {
		p.metrics.PollsTotal.WithLabelValues(window.String(), "discarded").Inc()
		span.SetAttributes(attribute.Bool("feed.discarded", true))
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "feed fetch failed")
		p.metrics.PollsTotal.WithLabelValues(window.String(), "error").Inc()
		p.logger.Error("feed poll failed", "window", window, "initial", initial, "error", err)
		p.reportStatus(gen, domain.ErrorStatus())
		return
	}

	incoming, dropped := domain.Normalize(doc.Features)
	p.metrics.RecordsDropped.Add(float64(dropped))
	incoming = p.enrich(ctx, incoming)

	now := p.clock.Now()
	p.mu.Lock()
	if gen != p.generation || !p.running {
		p.mu.Unlock()
		p.metrics.PollsTotal.WithLabelValues(window.String(), "discarded").Inc()
		return
	}
	result := p.store.Reconcile(incoming, initial, now)
	p.mu.Unlock()

	p.metrics.PollsTotal.WithLabelValues(window.String(), "success").Inc()
	p.metrics.EventsNew.Add(float64(len(result.New)))
	p.metrics.EventsEvicted.Add(float64(result.Evicted))
	p.metrics.StoreSize.Set(float64(len(result.Snapshot)))
	p.ready.Store(true)
	span.SetAttributes(
		attribute.Int("feed.events", len(result.Snapshot)),
		attribute.Int("feed.new", len(result.New)),
		attribute.Int("feed.evicted", result.Evicted),
	)
	p.logger.Debug("feed poll complete",
		"window", window,
		"initial", initial,
		"events", len(result.Snapshot),
		"new", len(result.New),
		"evicted", result.Evicted,
		"dropped", dropped,
	)

	if p.callbacks.OnUpdate != nil {
		p.callbacks.OnUpdate(domain.DataUpdate{
			Events:     result.Snapshot,
			NewEvents:  result.New,
			FeedWindow: window,
		})
	}
	p.reportStatus(gen, domain.LiveStatus(now))
	p.publish(ctx, result.New)
}

func (p *Poller) enrich(ctx context.Context, events []domain.Event) []domain.Event {
	if p.geocoder == nil {
		return events
	}
	for i := range events {
		events[i] = domain.EnrichPlace(ctx, events[i], p.geocoder, p.logger)
	}
	return events
}

func (p *Poller) publish(ctx context.Context, events []domain.Event) {
	if p.publisher == nil || len(events) == 0 {
		return
	}
	if err := p.publisher.Publish(ctx, events); err != nil {
		p.logger.Warn("publish new events failed", "count", len(events), "error", err)
		return
	}
	p.metrics.EventsPublished.Add(float64(len(events)))
}

func (p *Poller) reportStatus(gen uint64, status domain.Status) {
	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return
	}
	p.status = status
	p.mu.Unlock()

	if p.callbacks.OnStatus != nil {
		p.callbacks.OnStatus(status)
	}
}

func (p *Poller) current(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running && gen == p.generation
}
