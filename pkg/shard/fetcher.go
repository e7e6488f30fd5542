// Package shard schedules shard document fetches: at most one fetch per
// shard key, a global bound on concurrent fetches, and a FIFO queue for
// fetches waiting on a free slot.
package shard

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/aircraftdb/internal/future"
	"github.com/Sternrassler/aircraftdb/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultMaxConcurrent is the default bound on simultaneous shard fetches.
const DefaultMaxConcurrent = 2

// Prometheus metrics for the shard scheduler.
var (
	activeFetches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aircraftdb_shard_fetches_active",
		Help: "Shard fetches currently in flight",
	})

	queuedFetches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aircraftdb_shard_fetches_queued",
		Help: "Shard fetches waiting for a free slot",
	})

	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aircraftdb_shard_fetches_total",
		Help: "Completed shard fetches by result",
	}, []string{"result"}) // "ok", "error"

	dedupTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aircraftdb_shard_dedup_total",
		Help: "Shard requests served by an existing pending or completed fetch",
	})
)

// Source performs the actual network fetch of one shard document.
// *transport.Client implements it.
type Source interface {
	FetchShard(ctx context.Context, key string) (*model.Shard, error)
}

// Config holds fetcher configuration.
type Config struct {
	// MaxConcurrent bounds simultaneous fetches (default: DefaultMaxConcurrent)
	MaxConcurrent int

	// FetchTimeout bounds one fetch. Zero leaves it to the source.
	FetchTimeout time.Duration
}

// DefaultConfig returns the default fetcher configuration.
func DefaultConfig() Config {
	return Config{MaxConcurrent: DefaultMaxConcurrent}
}

// Stats is a snapshot of scheduler state.
type Stats struct {
	Active int
	Queued int
	Known  int
}

// Fetcher deduplicates and schedules shard fetches. Outcomes, including
// failures, are kept for the lifetime of the Fetcher.
type Fetcher struct {
	source Source
	config Config
	logger zerolog.Logger

	mu      sync.Mutex
	active  int
	queue   []*request
	fetches map[string]*future.Future[*model.Shard]
}

type request struct {
	key    string
	result *future.Future[*model.Shard]
}

// NewFetcher creates a fetcher over source.
func NewFetcher(source Source, cfg Config, logger zerolog.Logger) *Fetcher {
	if source == nil {
		panic("shard source cannot be nil")
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	return &Fetcher{
		source:  source,
		config:  cfg,
		logger:  logger,
		fetches: make(map[string]*future.Future[*model.Shard]),
	}
}

// Fetch returns the future for the shard document of key. A key that is
// pending or already settled returns the same future; otherwise a fetch is
// started if a slot is free or queued behind earlier keys. Fetch never
// blocks on the network.
func (f *Fetcher) Fetch(key string) *future.Future[*model.Shard] {
	key = model.NormalizeKey(key)

	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.fetches[key]; ok {
		dedupTotal.Inc()
		return existing
	}

	req := &request{key: key, result: future.New[*model.Shard]()}
	f.fetches[key] = req.result

	if f.active < f.config.MaxConcurrent {
		f.active++
		activeFetches.Inc()
		f.logger.Debug().Str("shard_key", key).Int("active", f.active).Msg("Starting shard fetch")
		go f.run(req)
	} else {
		f.queue = append(f.queue, req)
		queuedFetches.Inc()
		f.logger.Debug().Str("shard_key", key).Int("queued", len(f.queue)).Msg("Queued shard fetch")
	}

	return req.result
}

// Get fetches key and waits for its document. Giving up on ctx leaves the
// fetch running for other waiters.
func (f *Fetcher) Get(ctx context.Context, key string) (*model.Shard, error) {
	return f.Fetch(key).Wait(ctx)
}

// Stats returns a snapshot of scheduler state.
func (f *Fetcher) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Stats{Active: f.active, Queued: len(f.queue), Known: len(f.fetches)}
}

// run performs one fetch in a slot, then hands the slot to the next queued
// request or frees it.
func (f *Fetcher) run(req *request) {
	for req != nil {
		f.execute(req)
		req = f.complete()
	}
}

func (f *Fetcher) execute(req *request) {
	// Fetches are detached from any waiter; only the configured timeout
	// can cut them short.
	ctx := context.Background()
	if f.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.FetchTimeout)
		defer cancel()
	}

	start := time.Now()
	doc, err := f.source.FetchShard(ctx, req.key)
	if err != nil {
		fetchesTotal.WithLabelValues("error").Inc()
		f.logger.Warn().Err(err).Str("shard_key", req.key).Dur("duration", time.Since(start)).Msg("Shard fetch failed")
		req.result.Reject(err)
		return
	}

	fetchesTotal.WithLabelValues("ok").Inc()
	f.logger.Debug().Str("shard_key", req.key).Dur("duration", time.Since(start)).Msg("Shard fetch complete")
	req.result.Resolve(doc)
}

// complete releases the current slot. If a request is queued, the slot
// passes to it and the active count is unchanged.
func (f *Fetcher) complete() *request {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		f.active--
		activeFetches.Dec()
		return nil
	}

	next := f.queue[0]
	f.queue[0] = nil
	f.queue = f.queue[1:]
	queuedFetches.Dec()
	f.logger.Debug().Str("shard_key", next.key).Int("queued", len(f.queue)).Msg("Promoting queued shard fetch")
	return next
}
