package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/quakewatch-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/quakewatch-service/internal/adapter/kafka"
	"github.com/couchcryptid/quakewatch-service/internal/adapter/mapbox"
	"github.com/couchcryptid/quakewatch-service/internal/adapter/usgs"
	"github.com/couchcryptid/quakewatch-service/internal/config"
	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/couchcryptid/quakewatch-service/internal/geo"
	"github.com/couchcryptid/quakewatch-service/internal/mapview"
	"github.com/couchcryptid/quakewatch-service/internal/observability"
	"github.com/couchcryptid/quakewatch-service/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}

	// Map engine. The hub and the map reference each other, so callbacks are
	// wired once both exist.
	scene := mapview.New(mapview.Options{
		Width:       cfg.MapWidth,
		Height:      cfg.MapHeight,
		Margin:      cfg.MapMargin,
		Projection:  cfg.MapProjection,
		WorldURL:    cfg.WorldURL,
		TectonicURL: cfg.TectonicURL,
	}, geo.NewLoader(cfg.FeedTimeout), clock, mapview.Callbacks{}, logger, metrics)

	// Poller feeds the map and every connected viewer.
	fetcher := usgs.NewClient(map[domain.FeedWindow]string{
		domain.WindowHour: cfg.FeedURL(domain.WindowHour),
		domain.WindowDay:  cfg.FeedURL(domain.WindowDay),
		domain.WindowWeek: cfg.FeedURL(domain.WindowWeek),
	}, cfg.FeedFallbackURL, cfg.FeedTimeout, metrics, logger)
	store := pipeline.NewStore(cfg.Window(), map[domain.FeedWindow]time.Duration{
		domain.WindowHour: cfg.EvictAfter(domain.WindowHour),
		domain.WindowDay:  cfg.EvictAfter(domain.WindowDay),
		domain.WindowWeek: cfg.EvictAfter(domain.WindowWeek),
	})

	var hub *httpadapter.Hub
	poller := pipeline.NewPoller(fetcher, store, cfg.PollInterval, clock, pipeline.Callbacks{
		OnUpdate: func(u domain.DataUpdate) {
			u.Events = scene.Render(u.Events, u.NewIDs())
			hub.Broadcast(httpadapter.MsgUpdate, u)
			hub.Broadcast(httpadapter.MsgScene, scene.View())
		},
		OnStatus: func(s domain.Status) {
			hub.Broadcast(httpadapter.MsgStatus, s)
		},
	}, logger, metrics)
	hub = httpadapter.NewHub(scene, poller, clock, logger, metrics)
	scene.SetCallbacks(hub.MapCallbacks())

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	if cfg.MapboxIsEnabled() {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		poller.WithGeocoder(mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics))
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		poller.WithPublisher(writer)
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	if err := scene.Init(ctx); err != nil {
		logger.Error("failed to initialize map", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Feed:       poller,
		Events:     store,
		Scene:      scene,
		Hub:        hub,
		Clock:      clock,
		StaleAfter: cfg.StatusStaleAfter,
	}, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	poller.Start(ctx, cfg.Window())
	logger.Info("polling earthquake feed", "window", cfg.Window(), "interval", cfg.PollInterval)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	poller.Stop()
	<-hubDone
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
