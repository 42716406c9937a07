package kurir

import (
	"fmt"
	"strings"

	"github.com/ambiyansyah-risyal/kurir/internal/deepmerge"
)

const (
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json;charset=utf-8"
)

// headerGroups are the keys removed from headers after flattening.
var headerGroups = []string{
	MethodDelete, MethodGet, MethodHead, MethodOptions,
	MethodPost, MethodPut, MethodPatch, "common",
}

func normalizeMethod(method string) string {
	if method == "" {
		return "GET"
	}
	return strings.ToUpper(method)
}

// normalizeHeaderName renames any case-insensitive duplicate of name to
// its canonical spelling.
func normalizeHeaderName(headers Headers, name string) {
	for key, val := range headers {
		if key != name && strings.EqualFold(key, name) {
			headers[name] = val
			delete(headers, key)
		}
	}
}

// processHeaders canonicalizes the Content-Type name and defaults it to JSON
// when data is a plain object. It must run before data is transformed.
func processHeaders(headers Headers, data any) Headers {
	if headers == nil {
		headers = Headers{}
	}
	normalizeHeaderName(headers, headerContentType)

	if deepmerge.IsPlainObject(data) {
		if _, ok := headers[headerContentType]; !ok {
			headers[headerContentType] = contentTypeJSON
		}
	}
	return headers
}

// flattenHeaders merges the common group, the group of method and the top
// level into one mapping and drops every group key.
func flattenHeaders(headers Headers, method string) Headers {
	if headers == nil {
		return nil
	}

	flat := Headers(deepmerge.Merge(headers["common"], headers[strings.ToLower(method)], headers))
	for _, group := range headerGroups {
		delete(flat, group)
	}
	normalizeHeaderName(flat, headerContentType)
	return flat
}

// ParseHeaders turns a raw CRLF separated header block into a map keyed by
// lower-case name. Repeated names keep the last value.
func ParseHeaders(raw string) map[string]string {
	parsed := make(map[string]string)
	if raw == "" {
		return parsed
	}

	for _, line := range strings.Split(raw, "\r\n") {
		key, val, _ := strings.Cut(line, ":")
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		parsed[key] = strings.TrimSpace(val)
	}
	return parsed
}

// headerString renders a flattened header value for transmission.
func headerString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []string:
		return strings.Join(x, ", ")
	default:
		return fmt.Sprint(x)
	}
}
