package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// PathPackageName is the gjson path of the preferred identity field
	PathPackageName = "package.name"

	// PathShortname is the gjson path of the fallback identity field
	PathShortname = "shortname"

	// PathUpdatedAt is the gjson path of the last update timestamp
	PathUpdatedAt = "updatedAt"
)

// Epoch is the timestamp assigned to records without a usable updatedAt
var Epoch = time.Unix(0, 0).UTC()

// TimestampLayout is the ISO 8601 form used for generated timestamps:
// UTC with millisecond precision
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp formats t in UTC using TimestampLayout
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// updatedAtLayouts are tried in order when parsing updatedAt strings
var updatedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Record is a single upstream plugin catalog entry.
// The zero value is an empty object.
type Record struct {
	raw json.RawMessage
}

// NewRecord wraps raw JSON bytes as a Record. The bytes must hold a JSON object.
func NewRecord(raw []byte) (Record, error) {
	if !gjson.ValidBytes(raw) {
		return Record{}, fmt.Errorf("record is not valid JSON")
	}
	if !gjson.ParseBytes(raw).IsObject() {
		return Record{}, fmt.Errorf("record is not a JSON object")
	}
	return Record{raw: bytes.Clone(raw)}, nil
}

// RecordFromValue marshals v and wraps the result as a Record
func RecordFromValue(v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Record{}, fmt.Errorf("failed to marshal record: %w", err)
	}
	return NewRecord(data)
}

// Raw returns the JSON bytes of the record
func (r Record) Raw() json.RawMessage {
	if len(r.raw) == 0 {
		return json.RawMessage("{}")
	}
	return r.raw
}

// Get returns the value at the given gjson path
func (r Record) Get(path string) gjson.Result {
	return gjson.GetBytes(r.raw, path)
}

// Key returns the identity key of the record and whether one could be derived
func (r Record) Key() (string, bool) {
	if name := r.Get(PathPackageName); name.Type == gjson.String && name.Str != "" {
		return name.Str, true
	}
	if short := r.Get(PathShortname); short.Type == gjson.String && short.Str != "" {
		return short.Str, true
	}
	return "", false
}

// UpdatedAt returns the parsed updatedAt timestamp, or Epoch when the field is
// missing or cannot be parsed. Numeric values are read as Unix milliseconds.
// Timestamps without a zone designator are read as UTC, not local time.
func (r Record) UpdatedAt() time.Time {
	field := r.Get(PathUpdatedAt)
	switch field.Type {
	case gjson.String:
		return parseTimestamp(field.Str)
	case gjson.Number:
		return time.UnixMilli(field.Int()).UTC()
	default:
		return Epoch
	}
}

// MarshalJSON emits the original record bytes
func (r Record) MarshalJSON() ([]byte, error) {
	return r.Raw(), nil
}

// UnmarshalJSON stores a copy of the given JSON object
func (r *Record) UnmarshalJSON(data []byte) error {
	rec, err := NewRecord(data)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

func parseTimestamp(value string) time.Time {
	for _, layout := range updatedAtLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return Epoch
}
