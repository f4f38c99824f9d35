package nominatim

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeocodeFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "12 Elm St, Newton, Ma, USA", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "dev_pipeline", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"lat":"42.3370","lon":"-71.2090","display_name":"Newton"}]`)) //nolint:errcheck
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "dev_pipeline")
	lat, lon, found, err := c.Geocode(context.Background(), "12 Elm St, Newton, Ma, USA", time.Second)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 42.337, lat)
	assert.Equal(t, -71.209, lon)
}

func TestGeocodeNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`)) //nolint:errcheck
	}))
	defer ts.Close()

	_, _, found, err := NewClient(ts.URL, "ua").Geocode(context.Background(), "nowhere", time.Second)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGeocodeServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, _, found, err := NewClient(ts.URL, "ua").Geocode(context.Background(), "x", time.Second)
	require.Error(t, err)
	assert.False(t, found)
}

func TestGeocodeTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()

	_, _, _, err := NewClient(ts.URL, "ua").Geocode(context.Background(), "x", 20*time.Millisecond)
	require.Error(t, err)
}
