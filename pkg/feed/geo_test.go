package feed

import "testing"

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b Position
		want int
	}{
		{name: "same point", a: Position{52.5, 13.4}, b: Position{52.5, 13.4}, want: 0},
		{name: "one degree of latitude", a: Position{0, 0}, b: Position{1, 0}, want: 111319},
		{name: "one degree of longitude at equator", a: Position{0, 0}, b: Position{0, 1}, want: 111319},
		{name: "symmetric", a: Position{1, 0}, b: Position{0, 0}, want: 111319},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); got != tt.want {
				t.Errorf("Distance() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCompassDirection(t *testing.T) {
	origin := Position{0, 0}
	tests := []struct {
		name string
		to   Position
		from Position
		want string
	}{
		{name: "north", from: origin, to: Position{1, 0}, want: "N"},
		{name: "east", from: origin, to: Position{0, 1}, want: "E"},
		{name: "south", from: origin, to: Position{-1, 0}, want: "S"},
		{name: "west", from: origin, to: Position{0, -1}, want: "W"},
		{name: "north east", from: origin, to: Position{1, 1}, want: "NE"},
		{name: "south west", from: origin, to: Position{-1, -1}, want: "SW"},
		{name: "across antimeridian", from: Position{0, 179}, to: Position{0, -179}, want: "E"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompassDirection(tt.from, tt.to); got != tt.want {
				t.Errorf("CompassDirection() = %q, want %q", got, tt.want)
			}
		})
	}
}
