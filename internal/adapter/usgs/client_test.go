package usgs

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/couchcryptid/quakewatch-service/internal/observability"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"

	hourDoc = `{"type":"FeatureCollection","features":[
		{"id":"ci1","properties":{"mag":1.2,"place":"5 km N of Anza, CA","time":1700000000000},
		 "geometry":{"type":"Point","coordinates":[-116.6,33.6,10.2]}}]}`
	dayDoc = `{"type":"FeatureCollection","features":[
		{"id":"us1","properties":{"mag":5.1,"place":"Fiji region","time":1699990000000},
		 "geometry":{"type":"Point","coordinates":[178.1,-17.9,550]}},
		{"id":"us2","properties":{"mag":null,"place":null,"time":1699980000000},
		 "geometry":{"type":"Point","coordinates":[10,10,1]}}]}`
)

type feedServer struct {
	*httptest.Server
	hourStatus int
	hourHits   atomic.Int32
	dayHits    atomic.Int32
	lastHeader atomic.Pointer[http.Header]
}

func newFeedServer(t *testing.T, hourStatus int) *feedServer {
	t.Helper()
	fs := &feedServer{hourStatus: hourStatus}
	mux := http.NewServeMux()
	mux.HandleFunc("/hour", func(w http.ResponseWriter, r *http.Request) {
		fs.hourHits.Add(1)
		h := r.Header.Clone()
		fs.lastHeader.Store(&h)
		if fs.hourStatus != http.StatusOK {
			http.Error(w, "upstream unavailable", fs.hourStatus)
			return
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, hourDoc)
	})
	mux.HandleFunc("/day", func(w http.ResponseWriter, _ *http.Request) {
		fs.dayHits.Add(1)
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, dayDoc)
	})
	mux.HandleFunc("/week", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	mux.HandleFunc("/garbage", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"features": [`)
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func testClient(fs *feedServer, metrics *observability.Metrics) *Client {
	urls := map[domain.FeedWindow]string{
		domain.WindowHour: fs.URL + "/hour",
		domain.WindowDay:  fs.URL + "/day",
		domain.WindowWeek: fs.URL + "/week",
	}
	return NewClient(urls, fs.URL+"/day", 5*time.Second, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_Fetch_Success(t *testing.T) {
	fs := newFeedServer(t, http.StatusOK)
	c := testClient(fs, observability.NewMetricsForTesting())

	doc, err := c.Fetch(context.Background(), domain.WindowHour, true)
	require.NoError(t, err)

	require.Len(t, doc.Features, 1)
	f := doc.Features[0]
	assert.Equal(t, "ci1", f.ID)
	require.NotNil(t, f.Properties.Mag)
	assert.Equal(t, 1.2, *f.Properties.Mag)
	assert.Equal(t, int64(1700000000000), f.Properties.Time)
	assert.Equal(t, []float64{-116.6, 33.6, 10.2}, f.Geometry.Coordinates)
	header := *fs.lastHeader.Load()
	assert.Equal(t, "no-cache", header.Get("Cache-Control"))
	assert.Equal(t, "no-cache", header.Get("Pragma"))
	assert.Zero(t, fs.dayHits.Load())
}

func TestClient_Fetch_NullFieldsDecode(t *testing.T) {
	fs := newFeedServer(t, http.StatusOK)
	c := testClient(fs, observability.NewMetricsForTesting())

	doc, err := c.Fetch(context.Background(), domain.WindowDay, false)
	require.NoError(t, err)

	require.Len(t, doc.Features, 2)
	assert.Nil(t, doc.Features[1].Properties.Mag)
	assert.Nil(t, doc.Features[1].Properties.Place)
}

func TestClient_Fetch_InitialHourFallsBack(t *testing.T) {
	fs := newFeedServer(t, http.StatusServiceUnavailable)
	metrics := observability.NewMetricsForTesting()
	c := testClient(fs, metrics)

	doc, err := c.Fetch(context.Background(), domain.WindowHour, true)
	require.NoError(t, err)

	assert.Len(t, doc.Features, 2)
	assert.Equal(t, int32(1), fs.hourHits.Load())
	assert.Equal(t, int32(1), fs.dayHits.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FeedFallbacks))
}

func TestClient_Fetch_NonInitialHourDoesNotFallBack(t *testing.T) {
	fs := newFeedServer(t, http.StatusServiceUnavailable)
	c := testClient(fs, observability.NewMetricsForTesting())

	_, err := c.Fetch(context.Background(), domain.WindowHour, false)
	require.Error(t, err)

	assert.Contains(t, err.Error(), "status 503")
	assert.Zero(t, fs.dayHits.Load())
}

func TestClient_Fetch_OtherWindowsDoNotFallBack(t *testing.T) {
	fs := newFeedServer(t, http.StatusOK)
	c := testClient(fs, observability.NewMetricsForTesting())

	_, err := c.Fetch(context.Background(), domain.WindowWeek, true)
	require.Error(t, err)

	assert.Contains(t, err.Error(), "status 502")
	assert.Zero(t, fs.dayHits.Load())
}

func TestClient_Fetch_FallbackFailureJoinsErrors(t *testing.T) {
	fs := newFeedServer(t, http.StatusInternalServerError)
	c := testClient(fs, observability.NewMetricsForTesting())
	c.fallbackURL = fs.URL + "/week"

	_, err := c.Fetch(context.Background(), domain.WindowHour, true)
	require.Error(t, err)

	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "fallback")
}

func TestClient_Fetch_MalformedJSON(t *testing.T) {
	fs := newFeedServer(t, http.StatusOK)
	c := testClient(fs, observability.NewMetricsForTesting())
	c.urls[domain.WindowDay] = fs.URL + "/garbage"

	_, err := c.Fetch(context.Background(), domain.WindowDay, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode feed")
}

func TestClient_Fetch_ContextCancelled(t *testing.T) {
	fs := newFeedServer(t, http.StatusOK)
	c := testClient(fs, observability.NewMetricsForTesting())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Fetch(ctx, domain.WindowHour, true)
	require.Error(t, err)
	assert.Zero(t, fs.dayHits.Load())
}
