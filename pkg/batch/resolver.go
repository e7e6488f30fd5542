package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/aircraftdb/pkg/model"
	"github.com/Sternrassler/aircraftdb/pkg/trie"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds batch resolver configuration
type Config struct {
	// MaxConcurrency is the number of identifiers awaited in parallel.
	// Shard fetches stay bounded by the underlying resolver.
	MaxConcurrency int
	// Timeout per identifier
	Timeout time.Duration
}

// DefaultConfig returns the default batch configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 8,
		Timeout:        15 * time.Second,
	}
}

// Lookuper resolves one identifier. *aircraftdb.Resolver implements it.
type Lookuper interface {
	GetAircraftData(ctx context.Context, id string) (*model.Record, error)
}

// Resolver resolves many identifiers with a worker pool
type Resolver struct {
	lookuper Lookuper
	config   Config
	logger   zerolog.Logger
}

// NewResolver creates a new batch resolver
func NewResolver(lookuper Lookuper, config Config) *Resolver {
	defaults := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &Resolver{
		lookuper: lookuper,
		config:   config,
		logger:   log.With().Str("component", "aircraftdb-batch").Logger(),
	}
}

// ResolveAll resolves ids and returns normalized identifier -> record for
// those found. Identifiers that are not in the database, or not valid, are
// left out. The first other failure stops the batch and is returned with
// the records resolved so far.
func (b *Resolver) ResolveAll(ctx context.Context, ids []string) (map[string]*model.Record, error) {
	start := time.Now()
	unique := uniqueIdentifiers(ids)

	results := make(map[string]*model.Record, len(unique))
	var mu sync.Mutex
	if len(unique) == 0 {
		return results, nil
	}

	queue := make(chan string, len(unique))
	for _, id := range unique {
		queue <- id
	}
	close(queue)

	workers := b.config.MaxConcurrency
	if workers > len(unique) {
		workers = len(unique)
	}

	b.logger.Debug().Int("identifiers", len(unique)).Int("workers", workers).Msg("Starting batch resolve")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		workerID := i
		g.Go(func() error {
			return b.worker(gctx, workerID, queue, results, &mu)
		})
	}
	err := g.Wait()

	mu.Lock()
	found := len(results)
	mu.Unlock()

	if err != nil {
		b.logger.Warn().
			Err(err).
			Int("found", found).
			Int("total", len(unique)).
			Msg("Batch resolve failed - returning partial results")
		return results, fmt.Errorf("batch resolve (partial data: %d/%d): %w", found, len(unique), err)
	}

	b.logger.Info().
		Int("found", found).
		Int("total", len(unique)).
		Dur("duration", time.Since(start)).
		Msg("Batch resolve complete")
	return results, nil
}

// worker resolves identifiers from the queue until it is drained or the
// batch is cancelled
func (b *Resolver) worker(ctx context.Context, workerID int, queue <-chan string, results map[string]*model.Record, mu *sync.Mutex) error {
	processed := 0
	for id := range queue {
		if err := ctx.Err(); err != nil {
			b.logger.Debug().
				Int("worker_id", workerID).
				Int("processed", processed).
				Msg("Worker stopping (context cancelled)")
			return err
		}

		idCtx, cancel := context.WithTimeout(ctx, b.config.Timeout)
		rec, err := b.lookuper.GetAircraftData(idCtx, id)
		cancel()

		switch {
		case errors.Is(err, trie.ErrNotFound):
		case err != nil:
			return fmt.Errorf("resolve %s: %w", id, err)
		default:
			mu.Lock()
			results[id] = rec
			mu.Unlock()
		}
		processed++
	}

	b.logger.Debug().
		Int("worker_id", workerID).
		Int("processed", processed).
		Msg("Worker completed")
	return nil
}

// uniqueIdentifiers normalizes ids and drops duplicates and invalid entries,
// keeping first-seen order.
func uniqueIdentifiers(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		normalized, err := model.NormalizeIdentifier(id)
		if err != nil {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}
