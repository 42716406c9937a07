package deepmerge

import (
	"io"
	"net/url"
	"reflect"
	"time"
)

// IsPlainObject reports whether v is a plain key/value structure: a map with
// string keys or a struct (or pointer to one) with no special identity.
// Byte slices, times, url.Values and readers are never plain.
func IsPlainObject(v any) bool {
	if v == nil {
		return false
	}
	switch v.(type) {
	case time.Time, *time.Time, url.Values, []byte, io.Reader:
		return false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		return rv.Type().Key().Kind() == reflect.String
	case reflect.Struct:
		return true
	default:
		return false
	}
}

// AsMap converts any map with string keys into a freshly allocated
// map[string]any. Values are not copied; use Clone for that.
func AsMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	if rv.IsNil() {
		return nil, false
	}

	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// Merge combines the given maps left to right into a new map. Nested maps
// merge key by key; any other value from a later map replaces the earlier
// one. Arguments that are not string-keyed maps are ignored. The result
// never shares a map with any argument.
func Merge(objs ...any) map[string]any {
	result := make(map[string]any)

	for _, obj := range objs {
		m, ok := AsMap(obj)
		if !ok {
			continue
		}
		for key, val := range m {
			nested, ok := plainMap(val)
			if !ok {
				result[key] = val
				continue
			}
			if prev, ok := result[key].(map[string]any); ok {
				result[key] = Merge(prev, nested)
			} else {
				result[key] = Merge(nested)
			}
		}
	}

	return result
}

// Clone returns a deep copy of v when v is a string-keyed map, otherwise v
// itself.
func Clone(v any) any {
	if _, ok := plainMap(v); ok {
		return Merge(v)
	}
	return v
}

func plainMap(v any) (map[string]any, bool) {
	if !IsPlainObject(v) {
		return nil, false
	}
	return AsMap(v)
}
