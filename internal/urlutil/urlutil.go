package urlutil

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ambiyansyah-risyal/kurir/internal/deepmerge"
)

// isoLayout matches the millisecond UTC form used for date parameters.
const isoLayout = "2006-01-02T15:04:05.000Z"

var absoluteURL = regexp.MustCompile(`(?i)^([a-z][a-z\d+\-.]*:)?//`)

// url.QueryEscape is stricter than conventional query aesthetics; these
// characters are put back after escaping.
var relaxedEscapes = strings.NewReplacer(
	"%40", "@",
	"%3A", ":",
	"%24", "$",
	"%2C", ",",
	"%5B", "[",
	"%5D", "]",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// Serializer fully replaces the default query serialization.
type Serializer func(params any) string

func encode(s string) string {
	return relaxedEscapes.Replace(url.QueryEscape(s))
}

// BuildURL appends params to rawURL as a query string. Any fragment is
// dropped when the serialized query is non-empty.
func BuildURL(rawURL string, params any, serializer Serializer) (string, error) {
	if isNil(params) {
		return rawURL, nil
	}

	var serialized string
	if serializer != nil {
		serialized = serializer(params)
	} else {
		var err error
		serialized, err = Serialize(params)
		if err != nil {
			return "", err
		}
	}

	if serialized == "" {
		return rawURL, nil
	}

	if idx := strings.IndexByte(rawURL, '#'); idx != -1 {
		rawURL = rawURL[:idx]
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + serialized, nil
}

// Serialize renders params using the default rules: keys sorted, nil values
// skipped, sequences under a "[]"-suffixed key, times as ISO-8601 and plain
// objects as JSON. url.Values keep their repeated-key form.
func Serialize(params any) (string, error) {
	if values, ok := params.(url.Values); ok {
		return serializeValues(values), nil
	}

	m, ok := deepmerge.AsMap(params)
	if !ok {
		if !deepmerge.IsPlainObject(params) {
			return "", fmt.Errorf("unsupported params type %T", params)
		}
		// Structs go through their JSON form so field tags are honoured.
		b, err := json.Marshal(params)
		if err != nil {
			return "", err
		}
		if err := json.Unmarshal(b, &m); err != nil {
			return "", err
		}
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		val := m[key]
		if isNil(val) {
			continue
		}

		values := []any{val}
		if seq, ok := asSequence(val); ok {
			values = seq
			key += "[]"
		}

		for _, v := range values {
			if isNil(v) {
				continue
			}
			s, err := formatValue(v)
			if err != nil {
				return "", err
			}
			parts = append(parts, encode(key)+"="+encode(s))
		}
	}

	return strings.Join(parts, "&"), nil
}

func serializeValues(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		for _, v := range values[k] {
			parts = append(parts, encode(k)+"="+encode(v))
		}
	}
	return strings.Join(parts, "&")
}

func formatValue(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case time.Time:
		return x.UTC().Format(isoLayout), nil
	case *time.Time:
		return x.UTC().Format(isoLayout), nil
	}

	if deepmerge.IsPlainObject(v) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return fmt.Sprint(v), nil
}

func asSequence(v any) ([]any, bool) {
	if _, ok := v.([]byte); ok {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func isNil(v any) bool {
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

// IsAbsoluteURL reports whether u has a scheme or is protocol-relative.
func IsAbsoluteURL(u string) bool {
	return absoluteURL.MatchString(u)
}

// CombineURL joins base and relative with exactly one slash between them.
func CombineURL(base, relative string) string {
	if relative == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(relative, "/")
}

// IsSameOrigin reports whether target shares scheme and host with origin.
// With no origin, only relative targets count as same-origin.
func IsSameOrigin(target string, origin *url.URL) bool {
	parsed, err := url.Parse(target)
	if err != nil {
		return false
	}
	if origin == nil {
		return parsed.Host == "" && parsed.Scheme == ""
	}
	resolved := origin.ResolveReference(parsed)
	return strings.EqualFold(resolved.Scheme, origin.Scheme) &&
		strings.EqualFold(resolved.Host, origin.Host)
}
