// Package geocode resolves place names to coordinates through a
// Nominatim-compatible search API.
//
// Each lookup runs under its own timeout. Consecutive service failures trip
// a circuit breaker, after which lookups fail fast with a *ServiceError until
// the breaker's cool-down elapses. Results are never cached and failed
// lookups are never retried.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

var (
	// ErrNotFound means the service answered but matched nothing.
	ErrNotFound = errors.New("location not found")

	// ErrTimeout means the service did not answer within the timeout.
	ErrTimeout = errors.New("geocoding service timed out")
)

// ServiceError reports a failure on the service side: transport errors,
// non-2xx responses, unparseable payloads, or an open circuit breaker.
type ServiceError struct {
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return e.Err.Error()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Location is a resolved coordinate pair.
type Location struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"-"`
}

// Config configures a Client.
type Config struct {
	// BaseURL of the service, e.g. https://nominatim.openstreetmap.org.
	BaseURL string

	// UserAgent is sent with every request. Nominatim's usage policy
	// rejects requests without one.
	UserAgent string

	// Timeout bounds each lookup.
	Timeout time.Duration

	// BreakerFailures is the number of consecutive service failures that
	// opens the breaker. Zero selects 5.
	BreakerFailures uint32

	// BreakerTimeout is how long the breaker stays open. Zero selects 30s.
	BreakerTimeout time.Duration

	// HTTPClient overrides the transport. Nil selects a new http.Client.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client is a Nominatim search client. It is safe for concurrent use.
type Client struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker
	logger    *slog.Logger
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("geocoding base URL must not be empty")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid geocoding base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("geocoding timeout must be positive, got %s", cfg.Timeout)
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		http:      cfg.HTTPClient,
		logger:    cfg.Logger,
	}

	failures := cfg.BreakerFailures
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "geocoding",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// Only service-side trouble counts against the breaker.
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("geocoding breaker state changed", "from", from.String(), "to", to.String())
		},
	})

	return c, nil
}

// searchResult is one element of Nominatim's JSON array response.
type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode resolves query to a single location.
//
// # Errors
//
//   - ErrNotFound when the service returns no match
//   - ErrTimeout when the lookup exceeds the configured timeout
//   - *ServiceError for transport failures, bad responses, or an open breaker
//   - any other error (e.g. a cancelled ctx) is returned wrapped as-is
func (c *Client) Geocode(ctx context.Context, query string) (*Location, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.search(ctx, query)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &ServiceError{Err: err}
		}
		return nil, err
	}
	return result.(*Location), nil
}

func (c *Client) search(ctx context.Context, query string) (*Location, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geocoding request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, ErrTimeout
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &ServiceError{Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("geocoding response", "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ServiceError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(body))),
		}
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		if isTimeout(err) {
			return nil, ErrTimeout
		}
		return nil, &ServiceError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid latitude %q", results[0].Lat)}
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid longitude %q", results[0].Lon)}
	}

	return &Location{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: results[0].DisplayName,
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
