// Package props converts the free-form property bag attached to adventures,
// nodes and links between its wire form (a JSON string, possibly empty) and an
// addressable record, and provides the path operations used by the editor.
//
// All functions are pure: input records are never mutated, results share
// untouched branches with their input.
package props

import (
	"errors"
	"reflect"
	"strings"

	"github.com/goccy/go-json"
)

// Record is a decoded property bag. Values are the shapes produced by JSON
// decoding: string, float64, bool, nil, []interface{} and nested records.
type Record = map[string]interface{}

var (
	// ErrNotObject is returned when the input decodes to something other than an object.
	ErrNotObject = errors.New("props JSON must be an object")
	// ErrInvalidJSON is returned for malformed JSON strings.
	ErrInvalidJSON = errors.New("props JSON is invalid")
	// ErrUnsupported is returned for inputs that are neither a string nor a record.
	ErrUnsupported = errors.New("props value must be an object or JSON string")
)

// ParseStrict decodes input and reports why it could not be used.
// nil and blank strings decode to an empty record.
func ParseStrict(input interface{}) (Record, error) {
	switch v := input.(type) {
	case nil:
		return Record{}, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return Record{}, nil
		}
		var decoded interface{}
		if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
			return nil, ErrInvalidJSON
		}
		rec, ok := decoded.(map[string]interface{})
		if !ok {
			return nil, ErrNotObject
		}
		return rec, nil
	case []byte:
		return ParseStrict(string(v))
	case map[string]interface{}:
		if v == nil {
			return Record{}, nil
		}
		return v, nil
	case map[string]string:
		rec := make(Record, len(v))
		for k, s := range v {
			rec[k] = s
		}
		return rec, nil
	}
	return nil, ErrUnsupported
}

// Parse is ParseStrict that degrades every failure to an empty record.
func Parse(input interface{}) Record {
	rec, err := ParseStrict(input)
	if err != nil {
		return Record{}
	}
	return rec
}

// Serialize encodes rec as JSON with keys sorted. An empty or nil record
// serializes to "{}".
func Serialize(rec Record) string {
	if len(rec) == 0 {
		return "{}"
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// SerializeOrEmpty is Serialize, but returns "" for a nil record. The wire
// format uses "" for "no properties".
func SerializeOrEmpty(rec Record) string {
	if rec == nil {
		return ""
	}
	return Serialize(rec)
}

// Clone deep-copies rec, including nested records and arrays.
func Clone(rec Record) Record {
	if rec == nil {
		return nil
	}
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return Clone(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	}
	return v
}

// Equal reports whether two prop values are the same. Arrays compare
// element-wise, numbers compare by value regardless of Go type.
func Equal(a, b interface{}) bool {
	as, aIsList := asList(a)
	bs, bIsList := asList(b)
	if aIsList || bIsList {
		if !aIsList || !bIsList || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !Equal(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	if an, ok := toFloat(a); ok {
		bn, ok := toFloat(b)
		return ok && an == bn
	}
	return reflect.DeepEqual(a, b)
}

// IsEmpty reports nil, blank strings and empty arrays.
func IsEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	if list, ok := asList(v); ok {
		return len(list) == 0
	}
	return false
}

func asList(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case []interface{}:
		return t, true
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]interface{}, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out, true
	}
	return nil, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func isRecord(v interface{}) (Record, bool) {
	rec, ok := v.(map[string]interface{})
	return rec, ok && rec != nil
}
