package props

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// ============================================
// Legacy key lookup
// ============================================

// KeyVariants returns key followed by the "_" and "-" spellings of its dots.
// Legacy content stores the same setting under all three.
func KeyVariants(key string) []string {
	variants := []string{key}
	if strings.Contains(key, ".") {
		variants = append(variants,
			strings.ReplaceAll(key, ".", "_"),
			strings.ReplaceAll(key, ".", "-"),
		)
	}
	return variants
}

// ReadRaw returns the value of the first key (or key variant) present in rec.
func ReadRaw(rec Record, keys ...string) (interface{}, bool) {
	if rec == nil {
		return nil, false
	}
	for _, key := range keys {
		for _, variant := range KeyVariants(key) {
			if v, ok := rec[variant]; ok {
				return v, true
			}
		}
	}
	return nil, false
}

// ============================================
// Value decoding
// ============================================

var tokenSeparator = regexp.MustCompile(`[,\s]+`)

// Tokenize splits a legacy list value into trimmed, non-empty tokens.
// Arrays are taken element by element, strings are split on commas and
// whitespace.
func Tokenize(v interface{}) []string {
	if list, ok := asList(v); ok {
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s := strings.TrimSpace(stringify(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		out := []string{}
		for _, part := range tokenSeparator.Split(t, -1) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	if s := strings.TrimSpace(stringify(v)); s != "" {
		return []string{s}
	}
	return nil
}

// FirstString returns the trimmed string value, or the first non-blank string
// of an array. The second result is false when nothing usable is found.
func FirstString(v interface{}) (string, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	if list, ok := asList(v); ok {
		for _, item := range list {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s), true
			}
		}
	}
	return "", false
}

// FirstValue returns the string form of a scalar, or of the first element of
// an array, without skipping blanks.
func FirstValue(v interface{}) string {
	if list, ok := asList(v); ok {
		if len(list) == 0 {
			return ""
		}
		return strings.TrimSpace(stringify(list[0]))
	}
	if v == nil {
		return ""
	}
	return strings.TrimSpace(stringify(v))
}

// IsFlagEnabled decodes legacy boolean settings such as ["on"], "true", 1
// or true.
func IsFlagEnabled(v interface{}) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	if list, ok := asList(v); ok {
		for _, item := range list {
			if IsFlagEnabled(item) {
				return true
			}
		}
		return false
	}
	if n, ok := toFloat(v); ok {
		return n == 1
	}
	switch strings.ToLower(FirstValue(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// ParseNodeID accepts numbers and numeric strings with an optional "#" prefix.
func ParseNodeID(v interface{}) (int, bool) {
	if n, ok := toFloat(v); ok {
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// ParseNodeIDList decodes a node id list stored as an array, a JSON array
// string, or a comma/space separated string. Entries that are not numeric
// are dropped.
func ParseNodeIDList(v interface{}) []int {
	if list, ok := asList(v); ok {
		out := make([]int, 0, len(list))
		for _, item := range list {
			if id, ok := ParseNodeID(item); ok {
				out = append(out, id)
			}
		}
		return out
	}
	switch t := v.(type) {
	case string:
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			return nil
		}
		if strings.HasPrefix(trimmed, "[") {
			var decoded []interface{}
			if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
				return nil
			}
			return ParseNodeIDList(decoded)
		}
		out := []int{}
		for _, part := range tokenSeparator.Split(trimmed, -1) {
			if id, ok := ParseNodeID(part); ok {
				out = append(out, id)
			}
		}
		return out
	}
	if id, ok := ParseNodeID(v); ok {
		return []int{id}
	}
	return nil
}

// AlphaPercent decodes an opacity stored either as a percentage (0-100) or,
// when it has a decimal point, as a 0-1 fraction. The result is clamped to
// [0, 100]; fallback is used for missing or non-numeric values.
func AlphaPercent(v interface{}, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	primary := v
	if list, ok := asList(v); ok {
		if len(list) == 0 {
			return fallback
		}
		primary = list[0]
	}
	var numeric float64
	var hasDecimal bool
	if n, ok := toFloat(primary); ok {
		numeric = n
		hasDecimal = n != math.Trunc(n)
	} else if s, ok := primary.(string); ok {
		f, ok := leadingFloat(s)
		if !ok {
			return fallback
		}
		numeric = f
		hasDecimal = strings.Contains(s, ".")
	} else {
		return fallback
	}
	if numeric >= 0 && numeric <= 1 && hasDecimal {
		numeric *= 100
	}
	return math.Min(math.Max(numeric, 0), 100)
}

var leadingNumber = regexp.MustCompile(`^\s*[-+]?(\d+\.?\d*|\.\d+)`)

func leadingFloat(s string) (float64, bool) {
	m := leadingNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(m), 64)
	return f, err == nil
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(t)
	}
	if n, ok := toFloat(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
