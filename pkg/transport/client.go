// Package transport fetches JSON documents from an aircraft database server
// (dump1090, readsb or tar1090 style) with error classification, optional
// request pacing, optional retry, and an optional shared document store.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/aircraftdb/pkg/cache"
	"github.com/Sternrassler/aircraftdb/pkg/model"
	"github.com/Sternrassler/aircraftdb/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for document fetches.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aircraftdb_requests_total",
		Help: "Total database HTTP requests by document kind and status",
	}, []string{"kind", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aircraftdb_request_duration_seconds",
		Help:    "Database HTTP request duration in seconds by document kind",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	}, []string{"kind"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aircraftdb_errors_total",
		Help: "Total fetch errors by class",
	}, []string{"class"})
)

// Document paths relative to the base URL.
const (
	// TypeTablePath is the aggregate ICAO aircraft type table.
	TypeTablePath = "db/aircraft_types/icao_aircraft_types.json"

	// AircraftPath is the live aircraft list.
	AircraftPath = "data/aircraft.json"

	// ReceiverPath describes the receiver position.
	ReceiverPath = "data/receiver.json"
)

// ShardPath returns the path of the shard document for key.
func ShardPath(key string) string {
	return "db/" + key + ".json"
}

// Store keeps immutable documents across processes. *cache.Manager
// implements it.
type Store interface {
	Get(ctx context.Context, path string) (*cache.CacheEntry, error)
	Set(ctx context.Context, path string, entry *cache.CacheEntry) error
}

// Client fetches documents below one base URL.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *ratelimit.Limiter
	store      Store
	config     Config
	logger     zerolog.Logger
}

// Config holds the transport configuration.
type Config struct {
	// BaseURL of the server (REQUIRED). Trailing slashes are stripped.
	BaseURL string

	// User-Agent header
	UserAgent string

	// Timeout for a single HTTP request
	Timeout time.Duration

	// Rate limiting (requests per second, <= 0 disables)
	RateLimit float64
	RateBurst int

	// Retry for server and network errors
	Retry RetryConfig

	// Store is an optional shared document store for db/ documents
	Store Store

	// HTTPClient overrides the default client (for testing)
	HTTPClient *http.Client

	// Logger overrides the component logger
	Logger *zerolog.Logger
}

// DefaultConfig returns a default configuration for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "aircraftdb/0.1.0",
		Timeout:   30 * time.Second,
		Retry:     DefaultRetryConfig(),
	}
}

// New creates a new transport client.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}

	logger := log.With().Str("component", "aircraftdb-transport").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		limiter:    ratelimit.NewLimiter(cfg.RateLimit, cfg.RateBurst, logger),
		store:      cfg.Store,
		config:     cfg,
		logger:     logger,
	}, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchShard fetches and decodes the shard document for key.
func (c *Client) FetchShard(ctx context.Context, key string) (*model.Shard, error) {
	path := ShardPath(model.NormalizeKey(key))
	data, err := c.getDocument(ctx, path, "shard")
	if err != nil {
		return nil, err
	}

	var shard model.Shard
	if err := json.Unmarshal(data, &shard); err != nil {
		return nil, c.decodeError(path, "shard", err)
	}
	if len(shard.Skipped) > 0 {
		c.logger.Warn().Str("path", path).Strs("skipped", shard.Skipped).Msg("Shard has malformed entries")
	}
	return &shard, nil
}

// FetchTypeTable fetches and decodes the aggregate type table.
func (c *Client) FetchTypeTable(ctx context.Context) (model.TypeTable, error) {
	data, err := c.getDocument(ctx, TypeTablePath, "types")
	if err != nil {
		return nil, err
	}

	var table model.TypeTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, c.decodeError(TypeTablePath, "types", err)
	}
	return table, nil
}

// GetJSON fetches path and decodes it into v. The shared store is not used:
// live data under data/ changes every second.
func (c *Client) GetJSON(ctx context.Context, path string, v any) error {
	entry, err := c.fetch(ctx, path, "live")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(entry.Data, v); err != nil {
		return c.decodeError(path, "live", err)
	}
	return nil
}

// getDocument serves an immutable db document from the store when possible.
func (c *Client) getDocument(ctx context.Context, path, kind string) ([]byte, error) {
	if c.store != nil {
		entry, err := c.store.Get(ctx, path)
		switch {
		case err == nil:
			c.logger.Debug().Str("path", path).Msg("Document served from store")
			return entry.Data, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("path", path).Msg("Store get error")
		}
	}

	entry, err := c.fetch(ctx, path, kind)
	if err != nil {
		return nil, err
	}

	if c.store != nil {
		if err := c.store.Set(ctx, path, entry); err != nil {
			c.logger.Warn().Err(err).Str("path", path).Msg("Failed to store document")
		}
	}
	return entry.Data, nil
}

// fetch performs the HTTP GET with pacing and retry.
func (c *Client) fetch(ctx context.Context, path, kind string) (*cache.CacheEntry, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(kind).Observe(time.Since(startTime).Seconds())
	}()

	url := c.baseURL + "/" + strings.TrimLeft(path, "/")

	var entry *cache.CacheEntry
	err := retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return &FetchError{Path: path, Class: ErrorClassNetwork, Err: err}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return &FetchError{Path: path, Class: ErrorClassClient, Err: fmt.Errorf("create request: %w", err)}
		}
		if c.config.UserAgent != "" {
			req.Header.Set("User-Agent", c.config.UserAgent)
		}
		req.Header.Set("Accept", "application/json")

		c.logger.Debug().Str("path", path).Msg("Fetching document")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(kind, "network_error").Inc()
			c.logger.Warn().Err(err).Str("path", path).Msg("HTTP request failed")
			return &FetchError{Path: path, Class: ErrorClassNetwork, Err: err}
		}
		defer resp.Body.Close()

		requestsTotal.WithLabelValues(kind, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if class := classifyStatus(resp.StatusCode); class != "" {
			errorsTotal.WithLabelValues(string(class)).Inc()
			c.logger.Debug().
				Str("path", path).
				Int("status_code", resp.StatusCode).
				Str("error_class", string(class)).
				Msg("Document fetch error")
			io.Copy(io.Discard, resp.Body)
			return &FetchError{Path: path, StatusCode: resp.StatusCode, Class: class}
		}

		entry, err = cache.ResponseToEntry(resp, 0)
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return &FetchError{Path: path, StatusCode: resp.StatusCode, Class: ErrorClassNetwork, Err: fmt.Errorf("read body: %w", err)}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (c *Client) decodeError(path, kind string, err error) error {
	errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
	c.logger.Warn().Err(err).Str("path", path).Str("kind", kind).Msg("Document decode failed")
	return &FetchError{Path: path, StatusCode: http.StatusOK, Class: ErrorClassDecode, Err: err}
}

// classifyStatus categorizes a non-success status code. Empty means success.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 200 && status < 300:
		return ""
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}
