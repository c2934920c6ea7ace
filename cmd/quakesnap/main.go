// Command quakesnap polls the earthquake feed once and writes the rendered
// map as a standalone SVG file.
//
//	quakesnap --window=day --out=quakes.svg
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quakewatch-service/internal/adapter/usgs"
	"github.com/couchcryptid/quakewatch-service/internal/config"
	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/couchcryptid/quakewatch-service/internal/geo"
	"github.com/couchcryptid/quakewatch-service/internal/mapview"
	"github.com/couchcryptid/quakewatch-service/internal/observability"
	"github.com/couchcryptid/quakewatch-service/internal/pipeline"
)

type cli struct {
	Window     string        `help:"Feed window to render." enum:"hour,day,week" default:"day"`
	Out        string        `help:"Output file, - for stdout." short:"o" default:"-"`
	Width      int           `help:"Canvas width in pixels." default:"1200"`
	Height     int           `help:"Canvas height in pixels." default:"720"`
	Margin     int           `help:"Canvas margin in pixels." default:"24"`
	Projection string        `help:"Map projection." enum:"natural-earth,mollweide" default:"natural-earth"`
	Heatmap    bool          `help:"Render the density layer instead of markers."`
	Tectonic   bool          `help:"Overlay tectonic plate boundaries."`
	Timeout    time.Duration `help:"Timeout for feed and base map downloads." default:"30s"`
	LogLevel   string        `help:"Log level." enum:"debug,info,warn,error" default:"warn"`
}

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("quakesnap"),
		kong.Description("Render a snapshot of the USGS earthquake feed as SVG."),
		kong.UsageOnError(),
	)
	kctx.FatalIfErrorf(c.run())
}

func (c *cli) run() error {
	// Reuse the service's env config for URLs, overridden by flags.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.LogLevel = c.LogLevel
	cfg.LogFormat = "text"
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	window, err := domain.ParseFeedWindow(c.Window)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	update, err := pollOnce(ctx, cfg, window, c.Timeout, metrics, logger)
	if err != nil {
		return err
	}

	// A fake clock lets the snapshot settle every transition instantly.
	clock := clockwork.NewFakeClock()
	opts := mapview.Options{
		Width:      c.Width,
		Height:     c.Height,
		Margin:     c.Margin,
		Projection: c.Projection,
		WorldURL:   cfg.WorldURL,
	}
	if c.Tectonic {
		opts.TectonicURL = cfg.TectonicURL
	}
	scene := mapview.New(opts, geo.NewLoader(c.Timeout), clock, mapview.Callbacks{}, logger, metrics)
	if err := scene.Init(ctx); err != nil {
		return err
	}
	scene.WaitOverlays()
	scene.SetHeatmapEnabled(c.Heatmap)
	scene.SetTectonicEnabled(c.Tectonic)
	scene.Render(update.Events, nil)
	clock.Advance(mapview.HeatEnterDuration)
	scene.Tick()

	if err := c.write(scene); err != nil {
		return err
	}
	logger.Info("snapshot written", "window", window, "events", len(update.Events), "out", c.Out)
	return nil
}

// pollOnce runs a single initial poll through the regular poller so the
// snapshot sees exactly what the live service would.
func pollOnce(ctx context.Context, cfg *config.Config, window domain.FeedWindow, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) (domain.DataUpdate, error) {
	fetcher := usgs.NewClient(map[domain.FeedWindow]string{
		domain.WindowHour: cfg.FeedURL(domain.WindowHour),
		domain.WindowDay:  cfg.FeedURL(domain.WindowDay),
		domain.WindowWeek: cfg.FeedURL(domain.WindowWeek),
	}, cfg.FeedFallbackURL, timeout, metrics, logger)
	store := pipeline.NewStore(window, map[domain.FeedWindow]time.Duration{
		domain.WindowHour: cfg.EvictAfter(domain.WindowHour),
		domain.WindowDay:  cfg.EvictAfter(domain.WindowDay),
		domain.WindowWeek: cfg.EvictAfter(domain.WindowWeek),
	})

	updates := make(chan domain.DataUpdate, 1)
	statuses := make(chan domain.Status, 1)
	poller := pipeline.NewPoller(fetcher, store, time.Hour, clockwork.NewRealClock(), pipeline.Callbacks{
		OnUpdate: func(u domain.DataUpdate) {
			select {
			case updates <- u:
			default:
			}
		},
		OnStatus: func(s domain.Status) {
			select {
			case statuses <- s:
			default:
			}
		},
	}, logger, metrics)
	poller.Start(ctx, window)
	defer poller.Stop()

	// The status follows the update on success and replaces it on failure.
	select {
	case s := <-statuses:
		if s.Tone == domain.ToneError {
			return domain.DataUpdate{}, errors.New("feed poll failed")
		}
		return <-updates, nil
	case <-ctx.Done():
		return domain.DataUpdate{}, fmt.Errorf("wait for feed: %w", ctx.Err())
	}
}

func (c *cli) write(scene *mapview.Map) error {
	if c.Out == "-" {
		return scene.WriteSVG(os.Stdout)
	}
	f, err := os.Create(c.Out)
	if err != nil {
		return fmt.Errorf("create %s: %w", c.Out, err)
	}
	if err := scene.WriteSVG(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
