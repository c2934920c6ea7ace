// Package usgs fetches USGS earthquake summary feeds.
package usgs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/couchcryptid/quakewatch-service/internal/observability"
)

// Client implements pipeline.FeedFetcher against the USGS summary feeds.
type Client struct {
	urls        map[domain.FeedWindow]string
	fallbackURL string
	httpClient  *http.Client
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewClient creates a feed client. urls maps every feed window to its
// primary document; fallbackURL is tried once when the initial hour poll
// fails. An empty fallbackURL disables the fallback.
func NewClient(urls map[domain.FeedWindow]string, fallbackURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		urls:        urls,
		fallbackURL: fallbackURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Fetch downloads the feed document for window. Only the initial poll of
// the hour window falls back to the wider feed, so a quiet or failing hour
// feed still produces a populated first paint.
func (c *Client) Fetch(ctx context.Context, window domain.FeedWindow, initial bool) (domain.FeedDocument, error) {
	start := time.Now()
	defer func() {
		c.metrics.FeedDuration.WithLabelValues(window.String()).Observe(time.Since(start).Seconds())
	}()

	primary, ok := c.urls[window]
	if !ok {
		return domain.FeedDocument{}, fmt.Errorf("no feed url for window %q", window)
	}

	doc, err := c.get(ctx, primary)
	if err == nil {
		return doc, nil
	}
	if !initial || window != domain.WindowHour || c.fallbackURL == "" || ctx.Err() != nil {
		return domain.FeedDocument{}, err
	}

	c.logger.Warn("primary feed failed, trying fallback",
		"window", window,
		"error", err,
	)
	doc, fbErr := c.get(ctx, c.fallbackURL)
	if fbErr != nil {
		return domain.FeedDocument{}, errors.Join(err, fmt.Errorf("fallback: %w", fbErr))
	}
	c.metrics.FeedFallbacks.Inc()
	return doc, nil
}

func (c *Client) get(ctx context.Context, url string) (domain.FeedDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.FeedDocument{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.FeedDocument{}, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.FeedDocument{}, fmt.Errorf("feed error: status %d: %s", resp.StatusCode, body)
	}

	var doc domain.FeedDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return domain.FeedDocument{}, fmt.Errorf("decode feed: %w", err)
	}
	return doc, nil
}
