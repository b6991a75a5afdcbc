package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, mutate func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		BaseURL:   url,
		UserAgent: "toolbox-api-test",
		Timeout:   2 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

func TestGeocode_Found(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Eiffel Tower", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "toolbox-api-test", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"lat":"48.8582599","lon":"2.2945006","display_name":"Tour Eiffel, Paris"}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/", nil)
	loc, err := c.Geocode(context.Background(), "Eiffel Tower")
	require.NoError(t, err)

	assert.InDelta(t, 48.8582599, loc.Latitude, 1e-9)
	assert.InDelta(t, 2.2945006, loc.Longitude, 1e-9)
	assert.Equal(t, "Tour Eiffel, Paris", loc.DisplayName)
}

func TestGeocode_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	_, err := c.Geocode(context.Background(), "xqzzvplk nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGeocode_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond })
	_, err := c.Geocode(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestGeocode_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{"server error", http.StatusInternalServerError, "boom", http.StatusInternalServerError},
		{"rate limited", http.StatusTooManyRequests, "slow down", http.StatusTooManyRequests},
		{"invalid json", http.StatusOK, "<html>", http.StatusOK},
		{"invalid latitude", http.StatusOK, `[{"lat":"north","lon":"1"}]`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL, nil)
			_, err := c.Geocode(context.Background(), "anywhere")

			var svcErr *ServiceError
			require.ErrorAs(t, err, &svcErr)
			assert.Equal(t, tt.wantStatus, svcErr.StatusCode)
		})
	}
}

func TestGeocode_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url, nil)
	_, err := c.Geocode(context.Background(), "anywhere")

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, 0, svcErr.StatusCode)
}

func TestGeocode_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(cfg *Config) {
		cfg.BreakerFailures = 2
		cfg.BreakerTimeout = time.Minute
	})

	for i := 0; i < 2; i++ {
		_, err := c.Geocode(context.Background(), "anywhere")
		var svcErr *ServiceError
		require.ErrorAs(t, err, &svcErr)
	}

	_, err := c.Geocode(context.Background(), "anywhere")
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState), "expected open breaker, got %v", err)
	assert.Equal(t, int32(2), hits.Load(), "open breaker must not reach the service")
}

func TestGeocode_NotFoundDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(cfg *Config) { cfg.BreakerFailures = 1 })
	for i := 0; i < 3; i++ {
		_, err := c.Geocode(context.Background(), "nothing")
		assert.ErrorIs(t, err, ErrNotFound)
	}
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{Timeout: time.Second})
	assert.Error(t, err, "empty base URL")

	_, err = NewClient(Config{BaseURL: "http://localhost", Timeout: 0})
	assert.Error(t, err, "zero timeout")
}

func TestServiceError_Message(t *testing.T) {
	err := &ServiceError{StatusCode: 503, Err: errors.New("unavailable")}
	assert.Equal(t, "HTTP 503: unavailable", err.Error())

	err = &ServiceError{Err: errors.New("connection refused")}
	assert.Equal(t, "connection refused", err.Error())
}
