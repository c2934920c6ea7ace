package geo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	geojson "github.com/paulmach/go.geojson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxDocumentSize bounds base map and overlay downloads.
const maxDocumentSize = 64 << 20

// Loader fetches GeoJSON documents over HTTP or from the local filesystem.
type Loader struct {
	httpClient *http.Client
}

// NewLoader creates a loader whose requests time out after timeout.
func NewLoader(timeout time.Duration) *Loader {
	return &Loader{httpClient: &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}}
}

// FeatureCollection loads a FeatureCollection from an http(s) URL, a
// file:// URL, or a plain filesystem path.
func (l *Loader) FeatureCollection(ctx context.Context, src string) (*geojson.FeatureCollection, error) {
	data, err := l.read(ctx, src)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode geojson %s: %w", src, err)
	}
	return fc, nil
}

func (l *Loader) read(ctx context.Context, src string) ([]byte, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		data, err := os.ReadFile(strings.TrimPrefix(src, "file://"))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", src, err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", src, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src, err)
	}
	return data, nil
}
