package trigger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// Record is one pending action request.
type Record struct {
	Action    string         `json:"action"`
	Timestamp float64        `json:"timestamp"` // seconds since epoch
	Data      map[string]any `json:"data"`      // action specific
}

// Delivery is a parsed trigger file handed to a watcher handler.
type Delivery struct {
	Name   string // base file name, e.g. trigger_import_object_1000.json
	Path   string // full path inside the watched folder
	Record Record
}

// NewRecord builds a record stamped with t.
// A nil payload becomes an empty object.
func NewRecord(action string, t time.Time, payload map[string]any) Record {
	data := make(map[string]any, len(payload))
	maps.Copy(data, payload)
	return Record{
		Action:    action,
		Timestamp: Timestamp(t),
		Data:      data,
	}
}

// Timestamp converts t to fractional seconds since the epoch.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Time converts the record timestamp back to a time.Time.
func (r Record) Time() time.Time {
	sec := int64(r.Timestamp)
	nsec := int64((r.Timestamp - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// Parse decodes the JSON form of a trigger file.
//
// The action field is required and must be a non-empty string. A missing
// timestamp decodes as zero and a missing or null data field as an empty
// object, since older producers omit both.
func Parse(data []byte) (Record, error) {
	var raw struct {
		Action    *string        `json:"action"`
		Timestamp *float64       `json:"timestamp"`
		Data      map[string]any `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}, fmt.Errorf("parse trigger: %w", err)
	}
	if raw.Action == nil || *raw.Action == "" {
		return Record{}, fmt.Errorf("parse trigger: action is required")
	}

	rec := Record{Action: *raw.Action, Data: raw.Data}
	if raw.Timestamp != nil {
		rec.Timestamp = *raw.Timestamp
	}
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}
	return rec, nil
}

// Encode produces the on-disk JSON form: two-space indentation, no HTML
// escaping, no trailing newline.
func Encode(r Record) ([]byte, error) {
	if r.Data == nil {
		r.Data = map[string]any{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // paths may contain & and friends
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode trigger: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
