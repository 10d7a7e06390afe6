package types

import "strings"

// BoolFromAny coerces a JSON-decoded value into a bool. Accepts real
// booleans and their string spellings ("true"/"false", case-insensitive);
// anything else yields the fallback.
func BoolFromAny(v any, fallback bool) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true":
			return true
		case "false":
			return false
		}
	}
	return fallback
}

// StringFromAny returns v as a trimmed string, or "" for non-strings.
func StringFromAny(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// StringListFromAny coerces a JSON-decoded value into a string slice.
// A bare string becomes a one-element slice; non-string list members are
// dropped.
func StringListFromAny(v any) []string {
	switch val := v.(type) {
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
	case []string:
		return val
	case []any:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}

// StringPtr returns a pointer to the given string.
func StringPtr(s string) *string {
	return &s
}
