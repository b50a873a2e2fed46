package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	gojson "github.com/goccy/go-json"
)

// Map is a string-keyed mapping that remembers insertion order. Records and
// the tag taxonomy are both served with their keys in a caller-visible order,
// which a plain Go map cannot provide.
type Map[V any] struct {
	keys   []string
	values map[string]V
}

// Record is a single dataset-description row of the catalog.
type Record = Map[Value]

// Tags maps a tag category to its permissible values.
type Tags = Map[[]Value]

// Field is a key/value pair used to build a Record.
type Field struct {
	Name  string
	Value Value
}

// NewRecord builds a Record from fields in order. A repeated name keeps its
// first position and its last value.
func NewRecord(fields ...Field) Record {
	r := Record{values: make(map[string]Value, len(fields))}
	for _, f := range fields {
		r.Set(f.Name, f.Value)
	}
	return r
}

// Set adds or replaces key. New keys are appended.
func (m *Map[V]) Set(key string, v V) {
	if m.values == nil {
		m.values = make(map[string]V)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

func (m Map[V]) Get(key string) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m Map[V]) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Keys returns the keys in order. The returned slice must not be modified.
func (m Map[V]) Keys() []string { return m.keys }

func (m Map[V]) Len() int { return len(m.keys) }

func (m Map[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := gojson.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := gojson.Marshal(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the order its keys appear in.
func (m *Map[V]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	out := Map[V]{values: make(map[string]V)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
		var v V
		if err := gojson.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
		out.Set(key, v)
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return err
	}
	*m = out
	return nil
}

// Schema is the ordered field-name set shared by every record of a snapshot.
type Schema []string

// InferSchema returns the keys of the first record, or nil when records is
// empty.
func InferSchema(records []Record) Schema {
	if len(records) == 0 {
		return nil
	}
	return append(Schema(nil), records[0].Keys()...)
}

func (s Schema) Has(name string) bool {
	for _, n := range s {
		if n == name {
			return true
		}
	}
	return false
}

// SchemaMismatch describes a record whose field set disagrees with the
// snapshot schema. Index is 1-based.
type SchemaMismatch struct {
	Index   int      `json:"index"`
	Missing []string `json:"missing,omitempty"`
	Extra   []string `json:"extra,omitempty"`
}

func (m SchemaMismatch) String() string {
	return fmt.Sprintf("record %d: missing %v, extra %v", m.Index, m.Missing, m.Extra)
}

// Check compares every record against s.
func (s Schema) Check(records []Record) []SchemaMismatch {
	var out []SchemaMismatch
	for i, r := range records {
		var mm SchemaMismatch
		for _, name := range s {
			if !r.Has(name) {
				mm.Missing = append(mm.Missing, name)
			}
		}
		for _, name := range r.Keys() {
			if !s.Has(name) {
				mm.Extra = append(mm.Extra, name)
			}
		}
		if len(mm.Missing) > 0 || len(mm.Extra) > 0 {
			mm.Index = i + 1
			out = append(out, mm)
		}
	}
	return out
}

// Snapshot is the immutable unit served by every read path. It is swapped as
// a whole and never modified after it is published.
type Snapshot struct {
	Records    []Record
	Tags       Tags
	Schema     Schema
	Mismatches []SchemaMismatch
	Version    uint64
	LoadedAt   time.Time
}

// Len returns the number of records, treating a nil snapshot as empty.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// Status is the body of the health endpoint.
type Status struct {
	Loaded     bool      `json:"loaded"`
	Version    uint64    `json:"version"`
	Datasets   int       `json:"datasets"`
	Tags       int       `json:"tags"`
	Mismatches int       `json:"schema_mismatches"`
	LoadedAt   time.Time `json:"loaded_at,omitempty"`
}
