package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DescriptionLength is the length of a valid ICAO aircraft description code
// such as "L2J".
const DescriptionLength = 3

// TypeDescriptor holds per type designator defaults.
type TypeDescriptor struct {
	Description    *string `json:"desc,omitempty"`
	WakeTurbulence *string `json:"wtc,omitempty"`
}

// TypeTable maps an uppercase type designator to its defaults.
type TypeTable map[string]TypeDescriptor

// UnmarshalJSON decodes the aggregate type table, uppercasing designators.
// Rows that are not objects are dropped; the rest of the table stays usable.
func (t *TypeTable) UnmarshalJSON(data []byte) error {
	var rows map[string]json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("decode type table: %w", err)
	}
	out := make(TypeTable, len(rows))
	for designator, raw := range rows {
		var d TypeDescriptor
		if err := json.Unmarshal(raw, &d); err != nil {
			continue
		}
		out[strings.ToUpper(designator)] = d
	}
	*t = out
	return nil
}

// UnmarshalJSON decodes one type table row. A desc or wtc that is not a
// string is treated as absent.
func (d *TypeDescriptor) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode type descriptor: %w", err)
	}
	*d = TypeDescriptor{}
	if raw, ok := fields[fieldDescription]; ok {
		d.Description, _ = decodeOptional(raw)
	}
	if raw, ok := fields[fieldWTC]; ok {
		d.WakeTurbulence, _ = decodeOptional(raw)
	}
	return nil
}

// Get returns the descriptor for designator, compared case-insensitively.
func (t TypeTable) Get(designator string) (TypeDescriptor, bool) {
	d, ok := t[strings.ToUpper(designator)]
	return d, ok
}

// Apply fills gaps in rec from d. Fields already present on rec are never
// overwritten. A description is only taken when it is a 3-character code.
// It reports whether any field changed.
func (d TypeDescriptor) Apply(rec *Record) bool {
	changed := false
	if rec.Description == nil && d.Description != nil && len(*d.Description) == DescriptionLength {
		rec.Description = StringPtr(*d.Description)
		changed = true
	}
	if rec.WakeTurbulence == nil && d.WakeTurbulence != nil {
		rec.WakeTurbulence = StringPtr(*d.WakeTurbulence)
		changed = true
	}
	return changed
}
