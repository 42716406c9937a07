package kurir

import (
	"encoding/json"
	"reflect"

	"github.com/ambiyansyah-risyal/kurir/internal/deepmerge"
)

// Transform feeds data through fns left to right. Each function sees the
// same headers. The first error stops the pipeline and is returned as is.
func Transform(data any, headers Headers, fns ...Transformer) (any, error) {
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		var err error
		data, err = fn(data, headers)
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

// DefaultTransformRequest encodes plain objects and slices as JSON text and
// leaves any other payload untouched.
func DefaultTransformRequest(data any, headers Headers) (any, error) {
	if !isJSONBody(data) {
		return data, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// DefaultTransformResponse parses textual data as JSON, keeping the
// original text when it does not parse.
func DefaultTransformResponse(data any, headers Headers) (any, error) {
	text, ok := data.(string)
	if !ok {
		return data, nil
	}
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return data, nil
	}
	return parsed, nil
}

func isJSONBody(data any) bool {
	if deepmerge.IsPlainObject(data) {
		return true
	}
	if data == nil {
		return false
	}
	if _, ok := data.([]byte); ok {
		return false
	}
	kind := reflect.TypeOf(data).Kind()
	return kind == reflect.Slice || kind == reflect.Array
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
