// Package ratelimit paces outgoing requests to the aircraft database server.
// Reference data is served from small static hosts (often a Raspberry Pi
// running a feeder), so callers may cap the request rate independently of the
// fetch concurrency limit.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request pacing.
var (
	throttledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aircraftdb_rate_limit_throttles_total",
		Help: "Total number of requests delayed by the client-side rate limiter",
	})

	waitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "aircraftdb_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a rate limiter token",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// Limiter gates requests with a token bucket. A nil or unlimited Limiter
// never blocks.
type Limiter struct {
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewLimiter creates a limiter allowing perSecond requests per second with
// the given burst. perSecond <= 0 disables limiting.
func NewLimiter(perSecond float64, burst int, logger zerolog.Logger) *Limiter {
	if perSecond <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 0), logger: logger}
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		logger:  logger,
	}
}

// Unlimited reports whether the limiter never delays.
func (l *Limiter) Unlimited() bool {
	return l == nil || l.limiter.Limit() == rate.Inf
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.Unlimited() {
		return nil
	}

	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	waited := time.Since(start)
	waitSeconds.Observe(waited.Seconds())
	if waited > time.Millisecond {
		throttledTotal.Inc()
		l.logger.Debug().Dur("wait_duration", waited).Msg("Request throttled")
	}
	return nil
}
