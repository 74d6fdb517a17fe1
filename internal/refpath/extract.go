package refpath

import (
	"encoding/json"
	"reflect"
)

// Extract walks value along p. The boolean is false when any segment is
// missing, an intermediate value is not an object, or an index is out of
// range. Extract never panics.
func Extract(value any, p Path) (any, bool) {
	cur := value
	for _, segment := range p {
		next, ok := lookupKey(cur, segment.Name)
		if !ok {
			return nil, false
		}
		cur = next
		for _, idx := range segment.Indices {
			next, ok := lookupIndex(cur, idx)
			if !ok {
				return nil, false
			}
			cur = next
		}
	}
	return cur, true
}

// ExtractValue parses raw and extracts it from value. An empty path returns
// value itself; a malformed path or any miss returns nil.
func ExtractValue(value any, raw string) any {
	if raw == "" {
		return value
	}
	p, err := Parse(raw)
	if err != nil {
		return nil
	}
	v, _ := Extract(value, p)
	return v
}

func lookupKey(v any, key string) (any, bool) {
	switch m := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		out, ok := m[key]
		return out, ok
	case map[string]string:
		out, ok := m[key]
		return out, ok
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		out := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !out.IsValid() {
			return nil, false
		}
		return out.Interface(), true
	case reflect.Struct, reflect.Pointer:
		normalized, ok := Normalize(v)
		if !ok {
			return nil, false
		}
		if _, isMap := normalized.(map[string]any); !isMap {
			return nil, false
		}
		return lookupKey(normalized, key)
	}
	return nil, false
}

func lookupIndex(v any, idx int) (any, bool) {
	if idx < 0 {
		return nil, false
	}
	if s, ok := v.([]any); ok {
		if idx >= len(s) {
			return nil, false
		}
		return s[idx], true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if idx >= rv.Len() {
			return nil, false
		}
		return rv.Index(idx).Interface(), true
	case reflect.Pointer:
		normalized, ok := Normalize(v)
		if !ok {
			return nil, false
		}
		if _, isSlice := normalized.([]any); !isSlice {
			return nil, false
		}
		return lookupIndex(normalized, idx)
	}
	return nil, false
}

// Normalize converts an arbitrary Go value into its JSON-like form
// (map[string]any, []any, float64, string, bool, nil) so that struct
// results can be walked the same way as decoded JSON.
func Normalize(v any) (any, bool) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}
