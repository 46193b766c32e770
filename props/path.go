package props

import (
	"maps"
	"slices"
	"strings"
)

// Mode selects how a path string addresses a record.
type Mode int

const (
	// Flat treats the whole path as a single key, e.g. "settings.mode".
	Flat Mode = iota
	// Nested splits the path on "." and walks nested records.
	Nested
)

// Options control path writes.
type Options struct {
	Mode          Mode
	RemoveIfEmpty bool
	// EmptyValue is the sentinel written by SetStringArraySelect for an
	// empty selection when RemoveIfEmpty is false.
	EmptyValue string
}

// Result is the outcome of a path operation. Next is the input record itself
// when Changed is false.
type Result struct {
	Next    Record
	Changed bool
}

func unchanged(rec Record) Result { return Result{Next: rec} }

func splitPath(path string, mode Mode) []string {
	if mode != Nested {
		return []string{path}
	}
	parts := strings.Split(path, ".")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

// GetPath returns the value stored at path and whether it exists.
func GetPath(rec Record, path string, mode Mode) (interface{}, bool) {
	segments := splitPath(path, mode)
	if len(segments) == 0 {
		return nil, false
	}
	var current interface{} = rec
	for _, segment := range segments {
		m, ok := isRecord(current)
		if !ok {
			return nil, false
		}
		v, exists := m[segment]
		if !exists {
			return nil, false
		}
		current = v
	}
	return current, true
}

// SetPath writes value at path. Writing a value equal to the current one
// reports Changed=false and returns rec untouched. Only the records on the
// written branch are copied.
func SetPath(rec Record, path string, value interface{}, opts Options) Result {
	if rec == nil {
		rec = Record{}
	}
	segments := splitPath(path, opts.Mode)
	if len(segments) == 0 {
		return unchanged(rec)
	}
	if current, _ := GetPath(rec, path, opts.Mode); Equal(current, value) {
		return unchanged(rec)
	}

	next := shallowCopy(rec)
	cursor := next
	var source interface{} = rec
	for _, key := range segments[:len(segments)-1] {
		var child Record
		if sm, ok := isRecord(source); ok {
			if sc, ok := isRecord(sm[key]); ok {
				child = sc
			}
		}
		var nextChild Record
		if child != nil {
			nextChild = shallowCopy(child)
		} else {
			nextChild = Record{}
		}
		cursor[key] = nextChild
		cursor = nextChild
		source = child
	}
	cursor[segments[len(segments)-1]] = value
	return Result{Next: next, Changed: true}
}

// UnsetPath removes path. Records left empty along the path are pruned.
func UnsetPath(rec Record, path string, opts Options) Result {
	segments := splitPath(path, opts.Mode)
	if len(segments) == 0 {
		return unchanged(rec)
	}
	if _, exists := GetPath(rec, path, opts.Mode); !exists {
		return unchanged(rec)
	}

	type frame struct {
		parent Record
		key    string
	}
	next := shallowCopy(rec)
	cursor := next
	source := rec
	stack := make([]frame, 0, len(segments)-1)
	for _, key := range segments[:len(segments)-1] {
		child, ok := isRecord(source[key])
		if !ok {
			return unchanged(rec)
		}
		nextChild := shallowCopy(child)
		cursor[key] = nextChild
		stack = append(stack, frame{parent: cursor, key: key})
		cursor = nextChild
		source = child
	}
	delete(cursor, segments[len(segments)-1])

	for i := len(stack) - 1; i >= 0; i-- {
		f := stack[i]
		child, ok := isRecord(f.parent[f.key])
		if !ok || len(child) > 0 {
			break
		}
		delete(f.parent, f.key)
	}
	return Result{Next: next, Changed: true}
}

// ApplyUpdates writes every path in updates, in key order.
func ApplyUpdates(rec Record, updates map[string]interface{}, opts Options) Result {
	result := unchanged(rec)
	for _, path := range slices.Sorted(maps.Keys(updates)) {
		r := SetPath(result.Next, path, updates[path], opts)
		if r.Changed {
			result = Result{Next: r.Next, Changed: true}
		}
	}
	return result
}

// SetStringArraySelect stores a single-choice select value using the legacy
// one-element array convention. An empty selection is removed when
// RemoveIfEmpty is set, otherwise EmptyValue is stored.
func SetStringArraySelect(rec Record, path, selected string, opts Options) Result {
	if opts.RemoveIfEmpty && strings.TrimSpace(selected) == "" {
		return UnsetPath(rec, path, opts)
	}
	value := selected
	if value == "" {
		value = opts.EmptyValue
	}
	return SetPath(rec, path, []interface{}{value}, opts)
}

// SetMultiSelect stores the trimmed, non-empty values as an array.
func SetMultiSelect(rec Record, path string, values []string, opts Options) Result {
	filtered := make([]interface{}, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			filtered = append(filtered, v)
		}
	}
	if opts.RemoveIfEmpty && len(filtered) == 0 {
		return UnsetPath(rec, path, opts)
	}
	return SetPath(rec, path, filtered, opts)
}

// SetAny writes value, or removes the path when value is empty and
// RemoveIfEmpty is set.
func SetAny(rec Record, path string, value interface{}, opts Options) Result {
	if opts.RemoveIfEmpty && IsEmpty(value) {
		return UnsetPath(rec, path, opts)
	}
	return SetPath(rec, path, value, opts)
}

// Updater is a path operation bound to its arguments.
type Updater func(Record) Result

// Update parses input, applies fn and returns the resulting record with its
// serialized form.
func Update(input interface{}, fn Updater) (Record, string, bool, error) {
	rec, err := ParseStrict(input)
	if err != nil {
		return nil, "", false, err
	}
	r := fn(rec)
	return r.Next, Serialize(r.Next), r.Changed, nil
}

func shallowCopy(rec Record) Record {
	out := make(Record, len(rec)+1)
	for k, v := range rec {
		out[k] = v
	}
	return out
}
