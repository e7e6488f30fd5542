// Package trie resolves an identifier by walking the prefix trie of shard
// documents one level at a time.
package trie

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/aircraftdb/pkg/model"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when no shard on the identifier's path holds a
// record for it.
var ErrNotFound = errors.New("aircraft not found")

// Shards provides shard documents by key. *shard.Fetcher implements it.
type Shards interface {
	Get(ctx context.Context, key string) (*model.Shard, error)
}

// StepKind tags the outcome of evaluating one trie level.
type StepKind int

const (
	// StepMatch means the shard holds the record for the remaining suffix.
	StepMatch StepKind = iota + 1
	// StepDescend means the walk continues in the next child shard.
	StepDescend
	// StepNotFound ends the walk without a record.
	StepNotFound
)

func (k StepKind) String() string {
	switch k {
	case StepMatch:
		return "match"
	case StepDescend:
		return "descend"
	case StepNotFound:
		return "not_found"
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

// Step is the result of evaluating one level of the walk.
type Step struct {
	Kind   StepKind
	Level  int
	Key    string
	Record *model.Record // set for StepMatch
}

// Evaluate decides the next step for id given the shard document stored
// under id[:level]. It performs no I/O.
func Evaluate(doc *model.Shard, id string, level int) Step {
	key, suffix := id[:level], id[level:]
	step := Step{Level: level, Key: key}

	if rec, ok := doc.Lookup(suffix); ok && suffix != "" {
		step.Kind = StepMatch
		step.Record = rec
		return step
	}
	// A descend that would leave nothing to match ends the walk.
	if len(suffix) > 1 && doc.HasChild(key+suffix[:1]) {
		step.Kind = StepDescend
		return step
	}
	step.Kind = StepNotFound
	return step
}

// Walker walks the shard trie for single identifiers.
type Walker struct {
	shards Shards
	logger zerolog.Logger
}

// NewWalker creates a walker reading shards from shards.
func NewWalker(shards Shards, logger zerolog.Logger) *Walker {
	if shards == nil {
		panic("trie shards cannot be nil")
	}
	return &Walker{shards: shards, logger: logger}
}

// Resolve returns the stored record for id without enrichment. id must be
// normalized. The walk fetches at most len(id)-1 shards: an identifier of
// length one has no non-empty suffix and is never found.
func (w *Walker) Resolve(ctx context.Context, id string) (*model.Record, error) {
	for level := 1; level < len(id); level++ {
		key := id[:level]
		doc, err := w.shards.Get(ctx, key)
		if err != nil {
			w.logger.Debug().Err(err).Str("icao", id).Str("shard_key", key).Msg("Trie walk aborted")
			return nil, fmt.Errorf("fetch shard %s: %w", key, err)
		}

		step := Evaluate(doc, id, level)
		w.logger.Debug().
			Str("icao", id).
			Str("shard_key", key).
			Stringer("step", step.Kind).
			Msg("Trie step")

		switch step.Kind {
		case StepMatch:
			return step.Record, nil
		case StepDescend:
			continue
		default:
			return nil, fmt.Errorf("%w: %s (shard %s)", ErrNotFound, id, key)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}
