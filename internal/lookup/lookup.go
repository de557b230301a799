// Package lookup reads values out of loosely-shaped JSON objects by trying
// an ordered list of field names. Backend payloads drift between snake_case,
// camelCase and legacy names; every accessor returns the first candidate
// that matches the expected type.
package lookup

// Str returns the first string value found under the given keys.
func Str(m map[string]any, keys ...string) (string, bool) {
	if m == nil {
		return "", false
	}
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// Float returns the first numeric value found under the given keys.
// JSON numbers decode as float64; integer values are accepted as well.
func Float(m map[string]any, keys ...string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		}
	}
	return 0, false
}

// Bool returns the first boolean value found under the given keys.
func Bool(m map[string]any, keys ...string) (bool, bool) {
	if m == nil {
		return false, false
	}
	for _, k := range keys {
		if v, ok := m[k].(bool); ok {
			return v, true
		}
	}
	return false, false
}

// Strings returns the first value under the given keys that is a list of
// strings. Mixed-type lists contribute their string elements only.
func Strings(m map[string]any, keys ...string) []string {
	if m == nil {
		return nil
	}
	for _, k := range keys {
		raw, ok := m[k].([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(raw))
		for _, e := range raw {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Map returns the first nested object found under the given keys.
func Map(m map[string]any, keys ...string) map[string]any {
	if m == nil {
		return nil
	}
	for _, k := range keys {
		if v, ok := m[k].(map[string]any); ok {
			return v
		}
	}
	return nil
}

// Maps returns the first value under the given keys that is a list of
// objects. Non-object elements are skipped.
func Maps(m map[string]any, keys ...string) []map[string]any {
	if m == nil {
		return nil
	}
	for _, k := range keys {
		raw, ok := m[k].([]any)
		if !ok {
			continue
		}
		out := make([]map[string]any, 0, len(raw))
		for _, e := range raw {
			if obj, ok := e.(map[string]any); ok {
				out = append(out, obj)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}
