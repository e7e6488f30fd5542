package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// childrenField lists the shard keys one level deeper than the current shard.
const childrenField = "children"

// Shard is the decoded document for one shard key: aircraft records keyed by
// the identifier suffix remaining after the shard prefix, plus the set of
// child shards that exist below it.
type Shard struct {
	Records  map[string]*Record
	Children []string

	// Skipped lists entries that are not aircraft records (a suffix whose
	// value is not an object, or a children value that is not a list).
	// They are left out so the rest of the document stays usable.
	Skipped []string
}

// UnmarshalJSON decodes a shard document. Suffixes and child keys are
// uppercased so lookups can compare normalized identifiers directly. Only a
// document that is not a JSON object is an error; malformed entries are
// listed in Skipped.
func (s *Shard) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode shard: %w", err)
	}

	*s = Shard{Records: make(map[string]*Record, len(fields))}
	for name, raw := range fields {
		if name == childrenField {
			if !s.decodeChildren(raw) {
				s.Skipped = append(s.Skipped, name)
			}
			continue
		}

		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			s.Skipped = append(s.Skipped, name)
			continue
		}
		s.Records[strings.ToUpper(name)] = &rec
	}
	sort.Strings(s.Skipped)
	return nil
}

// decodeChildren keeps the string elements of a children list. It reports
// false when the value is not a list.
func (s *Shard) decodeChildren(raw json.RawMessage) bool {
	if isNull(raw) {
		return true
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return false
	}
	for _, item := range items {
		var c string
		if json.Unmarshal(item, &c) == nil && c != "" {
			s.Children = append(s.Children, NormalizeKey(c))
		}
	}
	return true
}

// Lookup returns the record stored under suffix.
func (s *Shard) Lookup(suffix string) (*Record, bool) {
	if s == nil {
		return nil, false
	}
	rec, ok := s.Records[suffix]
	return rec, ok
}

// HasChild reports whether key is listed as a child shard. A shard without a
// children list has no children.
func (s *Shard) HasChild(key string) bool {
	if s == nil {
		return false
	}
	for _, c := range s.Children {
		if c == key {
			return true
		}
	}
	return false
}
