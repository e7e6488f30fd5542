package model

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestNormalizeIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "lowercase", in: "abcdef", want: "ABCDEF"},
		{name: "mixed case with spaces", in: "  4ca7B3 ", want: "4CA7B3"},
		{name: "short", in: "a", want: "A"},
		{name: "empty", in: "", wantErr: true},
		{name: "too long", in: "ABCDEF0", wantErr: true},
		{name: "non hex", in: "~ABCDE", wantErr: true},
		{name: "letter outside hex", in: "ABCDEG", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeIdentifier(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidIdentifier) {
					t.Errorf("NormalizeIdentifier(%q) error = %v, want ErrInvalidIdentifier", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeIdentifier(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestShard_Unmarshal(t *testing.T) {
	data := []byte(`{
		"cdef": {"t": "B738", "r": "N123AB", "desc": null, "year": "2004"},
		"CD00": {"t": "A320", "wtc": "M"},
		"children": ["ab", "AC"]
	}`)

	var s Shard
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	rec, ok := s.Lookup("CDEF")
	if !ok {
		t.Fatal("suffix CDEF not found after normalization")
	}
	if rec.TypeDesignator != "B738" || rec.Registration != "N123AB" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Description != nil {
		t.Errorf("null desc should decode as nil, got %q", *rec.Description)
	}
	if string(rec.Extra["year"]) != `"2004"` {
		t.Errorf("pass-through attribute lost: %v", rec.Extra)
	}

	if _, ok := s.Lookup("children"); ok {
		t.Error("children must not be treated as a record")
	}
	if !s.HasChild("AB") || !s.HasChild("AC") {
		t.Errorf("children = %v, want AB and AC", s.Children)
	}
	if s.HasChild("AD") {
		t.Error("AD is not a child")
	}
}

func TestShard_NoChildren(t *testing.T) {
	var s Shard
	if err := json.Unmarshal([]byte(`{"1234": {"t": "C172"}}`), &s); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if s.HasChild("A1") {
		t.Error("shard without children list has no children")
	}

	var nilShard *Shard
	if nilShard.HasChild("A") {
		t.Error("nil shard has no children")
	}
}

func TestShard_InvalidDocument(t *testing.T) {
	for _, data := range []string{`[1,2,3]`, `"AB"`, `not json`} {
		var s Shard
		if err := json.Unmarshal([]byte(data), &s); err == nil {
			t.Errorf("Unmarshal(%s) expected decode error", data)
		}
	}
}

func TestShard_MalformedEntriesSkipped(t *testing.T) {
	tests := []struct {
		name         string
		data         string
		wantSuffix   string
		wantSkipped  []string
		wantChildren []string
	}{
		{
			name:        "array sibling",
			data:        `{"CDEF": {"t": "B738"}, "CD00": ["N1", "A320"]}`,
			wantSuffix:  "CDEF",
			wantSkipped: []string{"CD00"},
		},
		{
			name:        "scalar siblings",
			data:        `{"BCDEF": {"t": "C172"}, "BCD00": 12, "BCD01": "x"}`,
			wantSuffix:  "BCDEF",
			wantSkipped: []string{"BCD00", "BCD01"},
		},
		{
			name:        "children not a list",
			data:        `{"CDEF": {"t": "B738"}, "children": "AB"}`,
			wantSuffix:  "CDEF",
			wantSkipped: []string{"children"},
		},
		{
			name:         "non-string child ignored",
			data:         `{"CDEF": {"t": "B738"}, "children": ["ab", 7, null]}`,
			wantSuffix:   "CDEF",
			wantChildren: []string{"AB"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Shard
			if err := json.Unmarshal([]byte(tt.data), &s); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if _, ok := s.Lookup(tt.wantSuffix); !ok {
				t.Errorf("valid record %s lost next to malformed entries", tt.wantSuffix)
			}
			if !reflect.DeepEqual(s.Skipped, tt.wantSkipped) {
				t.Errorf("Skipped = %v, want %v", s.Skipped, tt.wantSkipped)
			}
			if !reflect.DeepEqual(s.Children, tt.wantChildren) {
				t.Errorf("Children = %v, want %v", s.Children, tt.wantChildren)
			}
		})
	}
}

func TestRecord_NonStringFieldsPassThrough(t *testing.T) {
	var rec Record
	if err := json.Unmarshal([]byte(`{"t": 7, "r": "N1", "desc": ["L2J"], "wtc": "M"}`), &rec); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if rec.TypeDesignator != "" || rec.Description != nil {
		t.Errorf("non-string values must not populate typed fields: %+v", rec)
	}
	if rec.Registration != "N1" || rec.WakeTurbulence == nil || *rec.WakeTurbulence != "M" {
		t.Errorf("string fields lost: %+v", rec)
	}

	out, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var got map[string]json.RawMessage
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("re-decode failed: %v", err)
	}
	if string(got["t"]) != `7` || string(got["desc"]) != `["L2J"]` {
		t.Errorf("original values not written back: %s", out)
	}
}

func TestRecord_MarshalKeepsExtra(t *testing.T) {
	var rec Record
	if err := json.Unmarshal([]byte(`{"t":"B738","ownOp":"Ryanair","desc":"L2J"}`), &rec); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	out, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("re-decode failed: %v", err)
	}
	if got["t"] != "B738" || got["desc"] != "L2J" || got["ownOp"] != "Ryanair" {
		t.Errorf("unexpected encoding: %s", out)
	}
	if _, ok := got["wtc"]; ok {
		t.Errorf("absent wtc must stay absent: %s", out)
	}
}

func TestRecord_Clone(t *testing.T) {
	rec := &Record{
		TypeDesignator: "B738",
		Description:    StringPtr("L2J"),
		Extra:          map[string]json.RawMessage{"x": json.RawMessage(`1`)},
	}
	c := rec.Clone()
	*c.Description = "XXX"
	c.Extra["y"] = json.RawMessage(`2`)

	if *rec.Description != "L2J" {
		t.Error("Clone shares description")
	}
	if _, ok := rec.Extra["y"]; ok {
		t.Error("Clone shares extra map")
	}
	if (*Record)(nil).Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestTypeDescriptor_Apply(t *testing.T) {
	tests := []struct {
		name     string
		rec      Record
		desc     TypeDescriptor
		wantDesc *string
		wantWTC  *string
		changed  bool
	}{
		{
			name:     "fills both gaps",
			desc:     TypeDescriptor{Description: StringPtr("L2J"), WakeTurbulence: StringPtr("M")},
			wantDesc: StringPtr("L2J"),
			wantWTC:  StringPtr("M"),
			changed:  true,
		},
		{
			name:     "never overwrites present fields",
			rec:      Record{Description: StringPtr("L4J"), WakeTurbulence: StringPtr("H")},
			desc:     TypeDescriptor{Description: StringPtr("L2J"), WakeTurbulence: StringPtr("M")},
			wantDesc: StringPtr("L4J"),
			wantWTC:  StringPtr("H"),
		},
		{
			name:    "rejects description that is not 3 characters",
			desc:    TypeDescriptor{Description: StringPtr("L2"), WakeTurbulence: StringPtr("L")},
			wantWTC: StringPtr("L"),
			changed: true,
		},
		{
			name:    "empty wtc is still a value",
			desc:    TypeDescriptor{WakeTurbulence: StringPtr("")},
			wantWTC: StringPtr(""),
			changed: true,
		},
		{
			name: "nil candidates",
			desc: TypeDescriptor{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.rec
			changed := tt.desc.Apply(&rec)
			if changed != tt.changed {
				t.Errorf("Apply() changed = %v, want %v", changed, tt.changed)
			}
			if !equalPtr(rec.Description, tt.wantDesc) {
				t.Errorf("Description = %v, want %v", deref(rec.Description), deref(tt.wantDesc))
			}
			if !equalPtr(rec.WakeTurbulence, tt.wantWTC) {
				t.Errorf("WakeTurbulence = %v, want %v", deref(rec.WakeTurbulence), deref(tt.wantWTC))
			}

			// Applying twice changes nothing further.
			if tt.desc.Apply(&rec) {
				t.Error("second Apply() must be a no-op")
			}
		})
	}
}

func TestTypeTable_Unmarshal(t *testing.T) {
	var table TypeTable
	if err := json.Unmarshal([]byte(`{"b738": {"desc": "L2J", "wtc": "M"}, "GLID": {"desc": null}}`), &table); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	d, ok := table.Get("B738")
	if !ok || *d.Description != "L2J" || *d.WakeTurbulence != "M" {
		t.Errorf("B738 = %+v, %v", d, ok)
	}
	if _, ok := table.Get("glid"); !ok {
		t.Error("lookup should be case-insensitive")
	}
	if _, ok := table.Get("ZZZZ"); ok {
		t.Error("unknown designator should not be found")
	}
}

func TestTypeTable_MalformedRows(t *testing.T) {
	var table TypeTable
	data := `{"B738": {"desc": "L2J", "wtc": "M"}, "ZZZ": {"desc": 3, "wtc": "L"}, "BAD": ["L2J"], "N1": null}`
	if err := json.Unmarshal([]byte(data), &table); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	d, ok := table.Get("B738")
	if !ok || *d.Description != "L2J" || *d.WakeTurbulence != "M" {
		t.Errorf("valid row lost next to malformed rows: %+v, %v", d, ok)
	}
	z, ok := table.Get("ZZZ")
	if !ok || z.Description != nil || z.WakeTurbulence == nil || *z.WakeTurbulence != "L" {
		t.Errorf("ZZZ = %+v, %v; want desc absent and wtc L", z, ok)
	}
	if _, ok := table.Get("BAD"); ok {
		t.Error("non-object row should be dropped")
	}
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
