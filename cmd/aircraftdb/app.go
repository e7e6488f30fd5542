package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/aircraftdb/pkg/aircraftdb"
	"github.com/Sternrassler/aircraftdb/pkg/cache"
	"github.com/Sternrassler/aircraftdb/pkg/config"
	"github.com/Sternrassler/aircraftdb/pkg/feed"
	"github.com/Sternrassler/aircraftdb/pkg/logging"
	"github.com/Sternrassler/aircraftdb/pkg/transport"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// app wires the resolver, the optional Redis store, and the feed locator
// from one configuration.
type app struct {
	cfg      *config.Config
	redis    *redis.Client
	store    *cache.Manager
	resolver *aircraftdb.Resolver
	locator  *feed.Locator
	logger   zerolog.Logger
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, logger: logging.NewLogger(logging.ComponentServer)}

	rc := aircraftdb.DefaultConfig(cfg.BaseURL)
	rc.MaxConcurrentFetches = cfg.MaxConcurrentFetches
	rc.RequestTimeout = cfg.RequestTimeout
	rc.UserAgent = cfg.UserAgent
	rc.RateLimit = cfg.RateLimit
	rc.Retry = transport.DefaultRetryConfig()
	rc.Retry.MaxAttempts = cfg.RetryAttempts

	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.redis.Ping(pingCtx).Err(); err != nil {
			a.redis.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		a.logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
		a.store = cache.NewManager(a.redis, cfg.BaseURL, cfg.Redis.Prefix)
		rc.Store = a.store
	}

	resolverLogger := logging.NewLogger(logging.ComponentResolver)
	rc.Logger = &resolverLogger

	resolver, err := aircraftdb.New(rc)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.resolver = resolver
	a.locator = feed.NewLocator(resolver.Client(), resolver, feed.Config{
		Radius:      cfg.Feed.Radius,
		MaxAltitude: cfg.Feed.MaxAltitude,
	}, logging.NewLogger(logging.ComponentFeed))

	return a, nil
}

// readiness returns the store checked by /ready, or nil without one.
func (a *app) readiness() Pinger {
	if a.store == nil {
		return nil
	}
	return a.store
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
}
