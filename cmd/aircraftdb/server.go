package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/aircraftdb/pkg/aircraftdb"
	"github.com/Sternrassler/aircraftdb/pkg/feed"
	"github.com/Sternrassler/aircraftdb/pkg/metrics"
	"github.com/Sternrassler/aircraftdb/pkg/model"
	"github.com/rs/zerolog/log"
)

// lookupTimeout bounds how long a request waits for a lookup. The lookup
// itself keeps running and its result is cached for the next request.
const lookupTimeout = 30 * time.Second

// Lookuper resolves identifiers. *aircraftdb.Resolver implements it.
type Lookuper interface {
	GetAircraftData(ctx context.Context, id string) (*model.Record, error)
}

// Pinger checks a backing store. *cache.Manager implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NearestFinder selects the nearest aircraft. *feed.Locator implements it.
type NearestFinder interface {
	Nearest(ctx context.Context) (*feed.Match, error)
}

func newMux(lookuper Lookuper, finder NearestFinder, store Pinger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(store))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /aircraft/{icao}", aircraftHandler(lookuper))
	mux.HandleFunc("GET /nearest", nearestHandler(finder))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports ready when the optional store answers.
func readyHandler(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				http.Error(w, fmt.Sprintf("store unavailable: %v", err), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

func aircraftHandler(lookuper Lookuper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		icao := r.PathValue("icao")

		ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
		defer cancel()

		rec, err := lookuper.GetAircraftData(ctx, icao)
		if err != nil {
			http.Error(w, err.Error(), lookupStatus(err))
			return
		}
		respondJSON(w, rec)
	}
}

func nearestHandler(finder NearestFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
		defer cancel()

		match, err := finder.Nearest(ctx)
		if err != nil {
			http.Error(w, fmt.Sprintf("live data unavailable: %v", err), http.StatusBadGateway)
			return
		}
		if match == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		respondJSON(w, match)
	}
}

// lookupStatus maps a lookup error to an HTTP status.
func lookupStatus(err error) int {
	switch {
	case errors.Is(err, aircraftdb.ErrInvalidIdentifier):
		return http.StatusBadRequest
	case errors.Is(err, aircraftdb.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}
