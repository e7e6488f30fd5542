package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is one aircraft entry from a shard document.
//
// Description and WakeTurbulence are nil when the field is absent or null in
// the source document. Attributes this type does not model are kept in Extra
// and written back unchanged by MarshalJSON.
type Record struct {
	TypeDesignator string
	Registration   string
	Flags          string
	Description    *string
	WakeTurbulence *string
	Extra          map[string]json.RawMessage
}

const (
	fieldType         = "t"
	fieldRegistration = "r"
	fieldFlags        = "f"
	fieldDescription  = "desc"
	fieldWTC          = "wtc"
)

// UnmarshalJSON decodes a record object, keeping unknown attributes. A
// known attribute that is not a string (or null) is kept in Extra unchanged
// and its typed field stays empty.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}

	*r = Record{}
	for name, raw := range fields {
		var err error
		switch name {
		case fieldType:
			err = decodeString(raw, &r.TypeDesignator)
		case fieldRegistration:
			err = decodeString(raw, &r.Registration)
		case fieldFlags:
			err = decodeString(raw, &r.Flags)
		case fieldDescription:
			r.Description, err = decodeOptional(raw)
		case fieldWTC:
			r.WakeTurbulence, err = decodeOptional(raw)
		default:
			r.keep(name, raw)
		}
		if err != nil {
			r.keep(name, raw)
		}
	}
	return nil
}

func (r *Record) keep(name string, raw json.RawMessage) {
	if r.Extra == nil {
		r.Extra = make(map[string]json.RawMessage)
	}
	r.Extra[name] = raw
}

// MarshalJSON encodes the record with its pass-through attributes.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+5)
	for name, raw := range r.Extra {
		out[name] = raw
	}
	if r.TypeDesignator != "" {
		out[fieldType] = r.TypeDesignator
	}
	if r.Registration != "" {
		out[fieldRegistration] = r.Registration
	}
	if r.Flags != "" {
		out[fieldFlags] = r.Flags
	}
	if r.Description != nil {
		out[fieldDescription] = *r.Description
	}
	if r.WakeTurbulence != nil {
		out[fieldWTC] = *r.WakeTurbulence
	}
	return json.Marshal(out)
}

// Clone returns a copy that shares no mutable state with r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Description != nil {
		d := *r.Description
		c.Description = &d
	}
	if r.WakeTurbulence != nil {
		w := *r.WakeTurbulence
		c.WakeTurbulence = &w
	}
	if r.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

func decodeString(raw json.RawMessage, dst *string) error {
	if isNull(raw) {
		*dst = ""
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func decodeOptional(raw json.RawMessage) (*string, error) {
	if isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
