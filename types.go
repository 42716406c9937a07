package kurir

import (
	"context"
	"time"
)

// Headers holds request headers. Values are either header values (strings,
// or anything fmt can print) or nested groups keyed by "common" or a
// lower-case method name. Groups are flattened away before transmission.
type Headers map[string]any

// ResponseType hints how the adapter should shape the response body.
type ResponseType string

const (
	ResponseTypeDefault     ResponseType = ""
	ResponseTypeText        ResponseType = "text"
	ResponseTypeJSON        ResponseType = "json"
	ResponseTypeArrayBuffer ResponseType = "arraybuffer"
	ResponseTypeBlob        ResponseType = "blob"
)

// Lower-case method names, also used as header group keys.
const (
	MethodGet     = "get"
	MethodDelete  = "delete"
	MethodHead    = "head"
	MethodOptions = "options"
	MethodPost    = "post"
	MethodPut     = "put"
	MethodPatch   = "patch"
)

// Transformer rewrites a request or response payload. Headers may be
// inspected or edited in place but not replaced.
type Transformer func(data any, headers Headers) (any, error)

// ProgressEvent reports transferred bytes. Total is -1 when unknown.
type ProgressEvent struct {
	Loaded int64
	Total  int64
}

// ProgressFunc receives upload or download progress.
type ProgressFunc func(ProgressEvent)

// BasicCredentials are sent as an Authorization: Basic header.
type BasicCredentials struct {
	Username string
	Password string
}

// NoTimeout disables the timeout for one call even when the instance
// defaults set one.
const NoTimeout time.Duration = -1

// RequestConfig describes a single request, or a set of instance defaults.
//
// A config handed to Client.Request is merged with the client defaults into
// a fresh value; the pipeline then rewrites that value in place (URL
// resolved, headers flattened, body transformed). Interceptors and
// transformers observe those rewrites.
type RequestConfig struct {
	URL     string
	Method  string
	BaseURL string

	Data             any
	Params           any
	ParamsSerializer func(params any) string

	Headers      Headers
	ResponseType ResponseType
	// Timeout bounds the adapter call. Zero means unset and falls back to
	// the instance default; a negative value (NoTimeout) disables it.
	Timeout time.Duration
	Auth    *BasicCredentials

	TransformRequest  []Transformer
	TransformResponse []Transformer

	CancelToken    *CancelToken
	ValidateStatus func(status int) bool

	OnUploadProgress   ProgressFunc
	OnDownloadProgress ProgressFunc

	// WithCredentials is OR-merged: a call cannot switch off a default of
	// true.
	WithCredentials bool
	XSRFCookieName  string
	XSRFHeaderName  string

	// Extra carries caller-defined keys. The pipeline never reads it; it is
	// merged like any other default and handed through to interceptors,
	// transformers and adapters.
	Extra map[string]any
}

// Response is the normalized result of a request.
type Response struct {
	Data       any
	Status     int
	StatusText string
	// Headers are keyed by lower-case header name.
	Headers map[string]string
	Config  *RequestConfig
	// Request is the transport handle, *http.Request for HTTPAdapter.
	Request any
}

// withData returns a copy of r carrying data.
func (r *Response) withData(data any) *Response {
	cp := *r
	cp.Data = data
	return &cp
}

// Adapter performs the transport operation for a fully processed config.
// Cancelling ctx aborts the operation; after that the adapter's result is
// ignored. Errors that are not *ClientError are reported as network
// failures.
type Adapter interface {
	RoundTrip(ctx context.Context, config *RequestConfig) (*Response, error)
}

// AdapterFunc is a helper type for function adapters.
type AdapterFunc func(ctx context.Context, config *RequestConfig) (*Response, error)

// RoundTrip calls f(ctx, config).
func (f AdapterFunc) RoundTrip(ctx context.Context, config *RequestConfig) (*Response, error) {
	return f(ctx, config)
}

// Option represents a configuration option
type Option func(*Client)
