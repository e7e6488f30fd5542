// Package aircraftdb resolves ICAO 24-bit addresses to aircraft metadata
// from a sharded reference database served over HTTP.
//
// A Resolver owns every cache for one database endpoint: the shard fetch
// scheduler, the type table, and the per-identifier results. Nothing is ever
// evicted; memory grows with the number of distinct identifiers and shards
// seen, which is fine for the size of the reference database.
package aircraftdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Sternrassler/aircraftdb/internal/future"
	"github.com/Sternrassler/aircraftdb/pkg/enrich"
	"github.com/Sternrassler/aircraftdb/pkg/model"
	"github.com/Sternrassler/aircraftdb/pkg/shard"
	"github.com/Sternrassler/aircraftdb/pkg/transport"
	"github.com/Sternrassler/aircraftdb/pkg/trie"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Errors reported by lookups.
var (
	// ErrNotFound means the database holds no record for the identifier.
	// Invalid identifiers also match it.
	ErrNotFound = trie.ErrNotFound

	// ErrNetworkFailure means a shard fetch failed.
	ErrNetworkFailure = transport.ErrNetworkFailure

	// ErrEnrichmentUnavailable is logged when the type table cannot be
	// loaded. It never fails a lookup.
	ErrEnrichmentUnavailable = enrich.ErrEnrichmentUnavailable

	// ErrInvalidIdentifier is matched together with ErrNotFound for
	// identifiers that are not 1-6 hex characters.
	ErrInvalidIdentifier = model.ErrInvalidIdentifier
)

var lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aircraftdb_lookups_total",
	Help: "Identifier lookups by result",
}, []string{"result"}) // "found", "not_found", "error", "cached"

// Config holds resolver configuration.
type Config struct {
	// BaseURL of the database server (REQUIRED)
	BaseURL string

	// MaxConcurrentFetches bounds simultaneous shard fetches (default: 2)
	MaxConcurrentFetches int

	// FetchTimeout bounds one shard or type table fetch (0: no bound)
	FetchTimeout time.Duration

	// Transport settings
	UserAgent      string
	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int
	Retry          transport.RetryConfig

	// Store optionally shares immutable documents between processes
	Store transport.Store

	// HTTPClient overrides the default client (for testing)
	HTTPClient *http.Client

	// Logger overrides the component logger
	Logger *zerolog.Logger
}

// DefaultConfig returns the default configuration for baseURL.
func DefaultConfig(baseURL string) Config {
	tc := transport.DefaultConfig(baseURL)
	return Config{
		BaseURL:              baseURL,
		MaxConcurrentFetches: shard.DefaultMaxConcurrent,
		UserAgent:            tc.UserAgent,
		RequestTimeout:       tc.Timeout,
		Retry:                tc.Retry,
	}
}

// Stats is a snapshot of resolver state.
type Stats struct {
	Lookups          int
	Shards           shard.Stats
	EnrichmentLoaded bool
}

// Resolver looks up aircraft records for one database endpoint.
type Resolver struct {
	client  *transport.Client
	fetcher *shard.Fetcher
	walker  *trie.Walker
	types   *enrich.Cache
	logger  zerolog.Logger

	mu      sync.Mutex
	results map[string]*future.Future[*model.Record]
}

// New creates a resolver for cfg.BaseURL.
func New(cfg Config) (*Resolver, error) {
	logger := log.With().Str("component", "aircraftdb-resolver").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	tc := transport.DefaultConfig(cfg.BaseURL)
	if cfg.UserAgent != "" {
		tc.UserAgent = cfg.UserAgent
	}
	if cfg.RequestTimeout > 0 {
		tc.Timeout = cfg.RequestTimeout
	}
	if cfg.Retry.MaxAttempts > 0 {
		tc.Retry = cfg.Retry
	}
	tc.RateLimit = cfg.RateLimit
	tc.RateBurst = cfg.RateBurst
	tc.Store = cfg.Store
	tc.HTTPClient = cfg.HTTPClient
	tc.Logger = &logger

	client, err := transport.New(tc)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}

	fetcher := shard.NewFetcher(client, shard.Config{
		MaxConcurrent: cfg.MaxConcurrentFetches,
		FetchTimeout:  cfg.FetchTimeout,
	}, logger)

	return &Resolver{
		client:  client,
		fetcher: fetcher,
		walker:  trie.NewWalker(fetcher, logger),
		types:   enrich.NewCache(client, cfg.FetchTimeout, logger),
		logger:  logger,
		results: make(map[string]*future.Future[*model.Record]),
	}, nil
}

// Client returns the transport used by the resolver, for collaborators that
// read other documents from the same server.
func (r *Resolver) Client() *transport.Client {
	return r.client
}

// Lookup returns the result future for id. Calls for the same identifier,
// in any letter case, share one future; completed results are kept for the
// lifetime of the resolver. The returned future carries a record that must
// not be modified.
func (r *Resolver) Lookup(id string) *future.Future[*model.Record] {
	normalized, err := model.NormalizeIdentifier(id)
	if err != nil {
		lookupsTotal.WithLabelValues("not_found").Inc()
		return future.Rejected[*model.Record](fmt.Errorf("%w: %w", ErrNotFound, err))
	}

	r.mu.Lock()
	if existing, ok := r.results[normalized]; ok {
		r.mu.Unlock()
		lookupsTotal.WithLabelValues("cached").Inc()
		return existing
	}
	result := future.New[*model.Record]()
	r.results[normalized] = result
	r.mu.Unlock()

	go r.resolve(normalized, result)
	return result
}

// GetAircraftData resolves id and waits for the record. Giving up on ctx
// leaves the lookup running; a later call receives its result.
func (r *Resolver) GetAircraftData(ctx context.Context, id string) (*model.Record, error) {
	return r.Lookup(id).Wait(ctx)
}

func (r *Resolver) resolve(id string, result *future.Future[*model.Record]) {
	ctx := context.Background()

	rec, err := r.walker.Resolve(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			lookupsTotal.WithLabelValues("not_found").Inc()
			r.logger.Debug().Str("icao", id).Msg("Aircraft not found")
		} else {
			lookupsTotal.WithLabelValues("error").Inc()
			r.logger.Warn().Err(err).Str("icao", id).Msg("Aircraft lookup failed")
		}
		result.Reject(err)
		return
	}

	merged, err := r.types.Merge(ctx, rec)
	if err != nil {
		r.logger.Debug().Err(err).Str("icao", id).Msg("Record delivered without enrichment")
	}

	lookupsTotal.WithLabelValues("found").Inc()
	r.logger.Debug().Str("icao", id).Str("type", merged.TypeDesignator).Msg("Aircraft resolved")
	result.Resolve(merged)
}

// Stats returns a snapshot of resolver state.
func (r *Resolver) Stats() Stats {
	r.mu.Lock()
	lookups := len(r.results)
	r.mu.Unlock()

	return Stats{
		Lookups:          lookups,
		Shards:           r.fetcher.Stats(),
		EnrichmentLoaded: r.types.Loaded(),
	}
}

// PreloadTypes loads the type table ahead of the first lookup.
func (r *Resolver) PreloadTypes(ctx context.Context) error {
	return r.types.Preload(ctx)
}
