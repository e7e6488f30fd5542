// Package enrich fills gaps in aircraft records from the aggregate ICAO type
// table. The table is loaded lazily, at most once per Cache.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/aircraftdb/internal/future"
	"github.com/Sternrassler/aircraftdb/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// ErrEnrichmentUnavailable is returned when the type table could not be
// loaded. Records are then delivered without enrichment.
var ErrEnrichmentUnavailable = errors.New("enrichment table unavailable")

var (
	tableLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aircraftdb_enrich_table_loads_total",
		Help: "Type table loads by result",
	}, []string{"result"})

	mergesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aircraftdb_enrich_merges_total",
		Help: "Record merges by outcome",
	}, []string{"outcome"}) // "filled", "unchanged", "unavailable"
)

// Source loads the aggregate type table. *transport.Client implements it.
type Source interface {
	FetchTypeTable(ctx context.Context) (model.TypeTable, error)
}

// Cache holds the type table for one database endpoint.
type Cache struct {
	source  Source
	timeout time.Duration
	logger  zerolog.Logger

	start sync.Once
	table *future.Future[model.TypeTable]
}

// NewCache creates a cache over source. timeout bounds the table load; zero
// leaves it to the source.
func NewCache(source Source, timeout time.Duration, logger zerolog.Logger) *Cache {
	if source == nil {
		panic("enrichment source cannot be nil")
	}
	return &Cache{
		source:  source,
		timeout: timeout,
		logger:  logger,
		table:   future.New[model.TypeTable](),
	}
}

// load starts the table fetch on first use. Every caller shares the same
// future; a failed load is kept and not retried.
func (c *Cache) load() *future.Future[model.TypeTable] {
	c.start.Do(func() {
		go c.fetch()
	})
	return c.table
}

func (c *Cache) fetch() {
	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	table, err := c.source.FetchTypeTable(ctx)
	if err != nil {
		tableLoads.WithLabelValues("error").Inc()
		c.logger.Warn().Err(err).Msg("Type table load failed, enrichment disabled")
		c.table.Reject(fmt.Errorf("%w: %w", ErrEnrichmentUnavailable, err))
		return
	}

	tableLoads.WithLabelValues("ok").Inc()
	c.logger.Info().Int("designators", len(table)).Dur("duration", time.Since(start)).Msg("Type table loaded")
	c.table.Resolve(table)
}

// Preload starts the table load if needed and waits for it.
func (c *Cache) Preload(ctx context.Context) error {
	_, err := c.load().Wait(ctx)
	return err
}

// Loaded reports whether the table load has finished, successfully or not.
func (c *Cache) Loaded() bool {
	return c.table.Settled()
}

// Lookup returns the descriptor for designator, or nil when the table has no
// entry for it.
func (c *Cache) Lookup(ctx context.Context, designator string) (*model.TypeDescriptor, error) {
	table, err := c.load().Wait(ctx)
	if err != nil {
		return nil, err
	}
	d, ok := table.Get(designator)
	if !ok {
		return nil, nil
	}
	return &d, nil
}

// Merge returns a copy of rec with absent fields filled from the type table.
// If the table is unavailable the copy is returned unchanged together with
// the error.
func (c *Cache) Merge(ctx context.Context, rec *model.Record) (*model.Record, error) {
	out := rec.Clone()
	if out == nil || out.TypeDesignator == "" {
		mergesTotal.WithLabelValues("unchanged").Inc()
		return out, nil
	}

	d, err := c.Lookup(ctx, out.TypeDesignator)
	if err != nil {
		mergesTotal.WithLabelValues("unavailable").Inc()
		return out, err
	}
	if d != nil && d.Apply(out) {
		mergesTotal.WithLabelValues("filled").Inc()
	} else {
		mergesTotal.WithLabelValues("unchanged").Inc()
	}
	return out, nil
}
