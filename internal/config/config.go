package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/couchcryptid/quakewatch-service/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Feed polling.
	FeedWindow       string        `env:"FEED_WINDOW" envDefault:"hour"`
	PollInterval     time.Duration `env:"POLL_INTERVAL" envDefault:"60s"`
	FeedTimeout      time.Duration `env:"FEED_TIMEOUT" envDefault:"15s"`
	FeedURLHour      string        `env:"FEED_URL_HOUR" envDefault:"https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_hour.geojson"`
	FeedURLDay       string        `env:"FEED_URL_DAY" envDefault:"https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_day.geojson"`
	FeedURLWeek      string        `env:"FEED_URL_WEEK" envDefault:"https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_week.geojson"`
	FeedFallbackURL  string        `env:"FEED_FALLBACK_URL" envDefault:"https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_day.geojson"`
	EvictAfterHour   time.Duration `env:"EVICT_AFTER_HOUR" envDefault:"10m"`
	EvictAfterDay    time.Duration `env:"EVICT_AFTER_DAY" envDefault:"24h"`
	EvictAfterWeek   time.Duration `env:"EVICT_AFTER_WEEK" envDefault:"168h"`
	StatusStaleAfter time.Duration `env:"STATUS_STALE_AFTER" envDefault:"3m"`

	// Map rendering.
	WorldURL      string `env:"WORLD_URL" envDefault:"https://raw.githubusercontent.com/nvkelso/natural-earth-vector/master/geojson/ne_110m_admin_0_countries.geojson"`
	TectonicURL   string `env:"TECTONIC_URL" envDefault:"https://raw.githubusercontent.com/fraxen/tectonicplates/master/GeoJSON/PB2002_boundaries.json"`
	MapWidth      int    `env:"MAP_WIDTH" envDefault:"1200"`
	MapHeight     int    `env:"MAP_HEIGHT" envDefault:"720"`
	MapMargin     int    `env:"MAP_MARGIN" envDefault:"24"`
	MapProjection string `env:"MAP_PROJECTION" envDefault:"natural-earth"`

	// Kafka publishing of newly observed events.
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"earthquake-events"`

	// Mapbox reverse geocoding of unlabelled events.
	MapboxToken     string        `env:"MAPBOX_TOKEN"`
	MapboxEnabled   *bool         `env:"MAPBOX_ENABLED"`
	MapboxTimeout   time.Duration `env:"MAPBOX_TIMEOUT" envDefault:"5s"`
	MapboxCacheSize int           `env:"MAPBOX_CACHE_SIZE" envDefault:"1000"`

	// Tracing is opt-in: it stays off unless OTEL_ENDPOINT is set.
	OTELEndpoint string `env:"OTEL_ENDPOINT"`
	OTELEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.MapboxEnabled == nil {
		enabled := cfg.MapboxToken != ""
		cfg.MapboxEnabled = &enabled
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	if _, err := domain.ParseFeedWindow(c.FeedWindow); err != nil {
		return fmt.Errorf("invalid FEED_WINDOW: %w", err)
	}
	if c.PollInterval <= 0 {
		return errors.New("POLL_INTERVAL must be positive")
	}
	if c.FeedTimeout <= 0 {
		return errors.New("FEED_TIMEOUT must be positive")
	}
	for name, raw := range map[string]string{
		"FEED_URL_HOUR":     c.FeedURLHour,
		"FEED_URL_DAY":      c.FeedURLDay,
		"FEED_URL_WEEK":     c.FeedURLWeek,
		"FEED_FALLBACK_URL": c.FeedFallbackURL,
	} {
		if err := validateURL(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	// The world document may also be a local file.
	if c.WorldURL == "" {
		return errors.New("WORLD_URL is required")
	}
	for name, d := range map[string]time.Duration{
		"EVICT_AFTER_HOUR": c.EvictAfterHour,
		"EVICT_AFTER_DAY":  c.EvictAfterDay,
		"EVICT_AFTER_WEEK": c.EvictAfterWeek,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.MapWidth <= 0 || c.MapHeight <= 0 {
		return errors.New("MAP_WIDTH and MAP_HEIGHT must be positive")
	}
	if c.MapMargin < 0 || 2*c.MapMargin >= c.MapWidth || 2*c.MapMargin >= c.MapHeight {
		return errors.New("MAP_MARGIN must leave room for the map")
	}
	switch c.MapProjection {
	case "natural-earth", "mollweide":
	default:
		return fmt.Errorf("invalid MAP_PROJECTION %q", c.MapProjection)
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
		if c.KafkaTopic == "" {
			return errors.New("KAFKA_TOPIC is required")
		}
	}
	if c.MapboxIsEnabled() && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if c.MapboxTimeout <= 0 {
		return errors.New("invalid MAPBOX_TIMEOUT")
	}
	if c.MapboxCacheSize <= 0 {
		return errors.New("MAPBOX_CACHE_SIZE must be positive")
	}
	return nil
}

// MapboxIsEnabled reports whether reverse geocoding is switched on. It
// defaults to on whenever a token is configured.
func (c *Config) MapboxIsEnabled() bool {
	return c.MapboxEnabled != nil && *c.MapboxEnabled
}

// Window returns the configured initial feed window.
func (c *Config) Window() domain.FeedWindow {
	w, _ := domain.ParseFeedWindow(c.FeedWindow)
	return w
}

// FeedURL returns the upstream URL for a feed window.
func (c *Config) FeedURL(w domain.FeedWindow) string {
	switch w {
	case domain.WindowDay:
		return c.FeedURLDay
	case domain.WindowWeek:
		return c.FeedURLWeek
	default:
		return c.FeedURLHour
	}
}

// EvictAfter returns the eviction horizon for a feed window.
func (c *Config) EvictAfter(w domain.FeedWindow) time.Duration {
	switch w {
	case domain.WindowDay:
		return c.EvictAfterDay
	case domain.WindowWeek:
		return c.EvictAfterWeek
	default:
		return c.EvictAfterHour
	}
}

// TracingEnabled reports whether spans should be exported.
func (c *Config) TracingEnabled() bool {
	return c.OTELEnabled && c.OTELEndpoint != ""
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return nil
}
