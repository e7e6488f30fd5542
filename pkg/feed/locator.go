// Package feed picks the nearest low-flying aircraft from a receiver's live
// data and labels it with its type from the reference database.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Sternrassler/aircraftdb/pkg/model"
	"github.com/Sternrassler/aircraftdb/pkg/transport"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Documents reads live JSON documents. *transport.Client implements it.
type Documents interface {
	GetJSON(ctx context.Context, path string, v any) error
}

// Lookuper resolves an identifier. *aircraftdb.Resolver implements it.
type Lookuper interface {
	GetAircraftData(ctx context.Context, id string) (*model.Record, error)
}

// Aircraft is one entry of data/aircraft.json.
type Aircraft struct {
	Hex     string          `json:"hex"`
	Flight  string          `json:"flight,omitempty"`
	Lat     *float64        `json:"lat,omitempty"`
	Lon     *float64        `json:"lon,omitempty"`
	AltBaro json.RawMessage `json:"alt_baro,omitempty"`
	Speed   *float64        `json:"gs,omitempty"`
	Track   *float64        `json:"track,omitempty"`
	Squawk  string          `json:"squawk,omitempty"`

	// Attributes holds every attribute of the entry as received, including
	// the ones decoded above. Match writes them back.
	Attributes map[string]json.RawMessage `json:"-"`
}

// aircraftFields has the fields of Aircraft without its methods.
type aircraftFields Aircraft

// UnmarshalJSON decodes an aircraft entry and keeps all of its attributes.
func (a *Aircraft) UnmarshalJSON(data []byte) error {
	var fields aircraftFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &fields.Attributes); err != nil {
		return err
	}
	*a = Aircraft(fields)
	return nil
}

// Altitude returns the barometric altitude in feet. It is false when the
// aircraft reports "ground" or no altitude.
func (a Aircraft) Altitude() (float64, bool) {
	if len(a.AltBaro) == 0 {
		return 0, false
	}
	var alt float64
	if err := json.Unmarshal(a.AltBaro, &alt); err != nil {
		return 0, false
	}
	return alt, true
}

type aircraftList struct {
	Now      float64    `json:"now"`
	Aircraft []Aircraft `json:"aircraft"`
}

// Match is the selected aircraft with its distance and direction from the
// receiver.
type Match struct {
	Aircraft
	Distance int    `json:"distance"`
	Bearing  string `json:"bearing"`
	Type     string `json:"type,omitempty"`
}

// Match keys added to the aircraft attributes.
const (
	fieldDistance = "distance"
	fieldBearing  = "bearing"
	fieldType     = "type"
)

// MarshalJSON writes the aircraft attributes as received, plus distance,
// bearing and type.
func (m Match) MarshalJSON() ([]byte, error) {
	typed, err := json.Marshal(aircraftFields(m.Aircraft))
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(m.Attributes)+3)
	if err := json.Unmarshal(typed, &out); err != nil {
		return nil, err
	}
	for name, raw := range m.Attributes {
		out[name] = raw
	}

	if out[fieldDistance], err = json.Marshal(m.Distance); err != nil {
		return nil, err
	}
	if out[fieldBearing], err = json.Marshal(m.Bearing); err != nil {
		return nil, err
	}
	delete(out, fieldType)
	if m.Type != "" {
		if out[fieldType], err = json.Marshal(m.Type); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a match written by MarshalJSON.
func (m *Match) UnmarshalJSON(data []byte) error {
	var a Aircraft
	if err := a.UnmarshalJSON(data); err != nil {
		return err
	}
	var extra struct {
		Distance int    `json:"distance"`
		Bearing  string `json:"bearing"`
		Type     string `json:"type"`
	}
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	for _, name := range []string{fieldDistance, fieldBearing, fieldType} {
		delete(a.Attributes, name)
	}
	*m = Match{Aircraft: a, Distance: extra.Distance, Bearing: extra.Bearing, Type: extra.Type}
	return nil
}

// Config holds the selection filter.
type Config struct {
	// Radius in metres; aircraft at or beyond it are ignored
	Radius float64
	// MaxAltitude in feet
	MaxAltitude float64
}

// Locator selects the nearest aircraft around a receiver.
type Locator struct {
	docs     Documents
	lookuper Lookuper
	config   Config
	logger   zerolog.Logger
}

// NewLocator creates a locator. lookuper may be nil, in which case matches
// carry no type.
func NewLocator(docs Documents, lookuper Lookuper, cfg Config, logger zerolog.Logger) *Locator {
	return &Locator{docs: docs, lookuper: lookuper, config: cfg, logger: logger}
}

// Nearest returns the closest aircraft inside the radius and below the
// altitude ceiling, or nil when there is none. A failed type lookup is logged
// and leaves Type empty.
func (l *Locator) Nearest(ctx context.Context) (*Match, error) {
	var (
		list     aircraftList
		receiver Position
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return l.docs.GetJSON(gctx, transport.AircraftPath, &list)
	})
	g.Go(func() error {
		return l.docs.GetJSON(gctx, transport.ReceiverPath, &receiver)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch live data: %w", err)
	}

	matches := l.filter(receiver, list.Aircraft)
	l.logger.Debug().Int("aircraft", len(list.Aircraft)).Int("matches", len(matches)).Msg("Filtered live aircraft")
	if len(matches) == 0 {
		return nil, nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	match := matches[0]
	match.Bearing = CompassDirection(receiver, Position{Lat: *match.Lat, Lon: *match.Lon})

	if l.lookuper != nil && match.Hex != "" {
		rec, err := l.lookuper.GetAircraftData(ctx, match.Hex)
		if err != nil {
			l.logger.Warn().Err(err).Str("icao", match.Hex).Msg("Type lookup failed")
		} else {
			match.Type = rec.TypeDesignator
		}
	}
	return &match, nil
}

func (l *Locator) filter(receiver Position, aircraft []Aircraft) []Match {
	var matches []Match
	for _, a := range aircraft {
		if a.Lat == nil || a.Lon == nil {
			continue
		}
		distance := Distance(receiver, Position{Lat: *a.Lat, Lon: *a.Lon})
		if float64(distance) >= l.config.Radius {
			continue
		}
		alt, ok := a.Altitude()
		if !ok || alt > l.config.MaxAltitude {
			continue
		}
		matches = append(matches, Match{Aircraft: a, Distance: distance})
	}
	return matches
}
