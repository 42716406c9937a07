package kurir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ambiyansyah-risyal/kurir/internal/urlutil"
)

// Client dispatches requests through an interceptor chain around a single
// adapter call. A Client is safe for concurrent use; interceptors may be
// registered or ejected while requests are in flight, each call working on
// the chain as it was when the call began.
type Client struct {
	// Interceptors run around every request made through this client.
	Interceptors Interceptors

	defaults   atomic.Pointer[RequestConfig]
	adapter    Adapter
	httpClient *http.Client
	origin     *url.URL
	metrics    *MetricsCollector
	debug      *DebugConfig
	logger     Logger

	// defaultsFile and fileBase record the defaults file loaded at
	// construction and the defaults it was merged onto.
	defaultsFile string
	fileBase     *RequestConfig

	validationError error
}

// New constructs a Client using the provided functional options. A best effort
// validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	client := &Client{
		Interceptors: Interceptors{
			Request:  NewInterceptorManager[*RequestConfig](),
			Response: NewInterceptorManager[*Response](),
		},
		httpClient: &http.Client{},
		debug:      DefaultDebugConfig(),
		logger:     nil,
		metrics:    nil,
	}
	client.defaults.Store(DefaultConfig())

	for _, option := range options {
		option(client)
	}

	if client.adapter == nil {
		client.adapter = NewHTTPAdapter(client.httpClient, client.origin)
	}
	client.watchInterceptors()

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// Create returns a new client whose defaults are this client's defaults
// merged with config. The adapter, metrics and logging are shared; the
// interceptor registries start empty.
func (c *Client) Create(config *RequestConfig) *Client {
	child := &Client{
		Interceptors: Interceptors{
			Request:  NewInterceptorManager[*RequestConfig](),
			Response: NewInterceptorManager[*Response](),
		},
		adapter:    c.adapter,
		httpClient: c.httpClient,
		origin:     c.origin,
		metrics:    c.metrics,
		debug:      c.debug,
		logger:     c.logger,
	}
	child.defaults.Store(MergeConfig(c.defaults.Load(), config))
	child.watchInterceptors()

	if err := child.ValidateConfiguration(); err != nil {
		child.validationError = err
	}
	return child
}

// Defaults returns a copy of the instance defaults.
func (c *Client) Defaults() *RequestConfig {
	return MergeConfig(nil, c.defaults.Load())
}

// SetDefaults replaces the instance defaults. Calls already in flight keep
// the defaults they started with.
func (c *Client) SetDefaults(config *RequestConfig) {
	c.defaults.Store(MergeConfig(nil, config))
}

// Request sends config through the interceptor chain and the adapter.
func (c *Client) Request(ctx context.Context, config *RequestConfig) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	merged := MergeConfig(c.defaults.Load(), config)
	method := normalizeMethod(merged.Method)
	endpoint := getEndpointFromConfig(merged)

	var requestID string
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
	}

	if c.debug != nil && c.debug.Enabled && c.debug.LogRequests && c.logger != nil {
		c.logger.Debug("Starting request", "requestID", requestID, "method", method, "url", merged.URL, "endpoint", endpoint)
	}

	// A token that was already used refuses the call before anything runs.
	if reason := merged.CancelToken.Err(); reason != nil {
		err := newCancelError(merged, merged.CancelToken.Reason())
		err.RequestID = requestID
		c.logCancel(requestID, reason)
		c.metrics.RecordError(ErrorTypeCancel, method, endpoint)
		return nil, err
	}

	c.metrics.RecordRequestStart(method, endpoint)
	resp, err := c.runChain(ctx, merged, requestID)
	c.metrics.RecordRequestEnd(method, endpoint)

	duration := time.Since(start)
	statusCode := 0
	if resp != nil {
		statusCode = resp.Status
	}
	c.metrics.RecordRequest(method, endpoint, statusCode, duration)

	if err != nil {
		errorType := "Unknown"
		var ce *ClientError
		if errors.As(err, &ce) {
			errorType = ce.Type
			if ce.RequestID == "" {
				ce.RequestID = requestID
			}
			if ce.Duration == 0 {
				ce.Duration = duration
			}
		}
		c.metrics.RecordError(errorType, method, endpoint)

		if c.debug != nil && c.debug.Enabled && c.debug.LogRequests && c.logger != nil {
			c.logger.Warn("Request failed", "requestID", requestID, "endpoint", endpoint, "error", err, "duration", duration)
		}
		return nil, err
	}

	if c.debug != nil && c.debug.Enabled && c.debug.LogRequests && c.logger != nil {
		c.logger.Debug("Request completed", "requestID", requestID, "status", resp.Status, "duration", duration)
	}
	return resp, nil
}

// RequestURL is Request with the URL given separately. config may be nil
// and is not modified.
func (c *Client) RequestURL(ctx context.Context, url string, config *RequestConfig) (*Response, error) {
	cfg := copyConfig(config)
	cfg.URL = url
	return c.Request(ctx, cfg)
}

// Get performs a GET request. config may be nil.
func (c *Client) Get(ctx context.Context, url string, config *RequestConfig) (*Response, error) {
	return c.requestWithoutData(ctx, MethodGet, url, config)
}

// Delete performs a DELETE request. config may be nil.
func (c *Client) Delete(ctx context.Context, url string, config *RequestConfig) (*Response, error) {
	return c.requestWithoutData(ctx, MethodDelete, url, config)
}

// Head performs a HEAD request. config may be nil.
func (c *Client) Head(ctx context.Context, url string, config *RequestConfig) (*Response, error) {
	return c.requestWithoutData(ctx, MethodHead, url, config)
}

// Options performs an OPTIONS request. config may be nil.
func (c *Client) Options(ctx context.Context, url string, config *RequestConfig) (*Response, error) {
	return c.requestWithoutData(ctx, MethodOptions, url, config)
}

// Post performs a POST request with data as the body. config may be nil.
func (c *Client) Post(ctx context.Context, url string, data any, config *RequestConfig) (*Response, error) {
	return c.requestWithData(ctx, MethodPost, url, data, config)
}

// Put performs a PUT request with data as the body. config may be nil.
func (c *Client) Put(ctx context.Context, url string, data any, config *RequestConfig) (*Response, error) {
	return c.requestWithData(ctx, MethodPut, url, data, config)
}

// Patch performs a PATCH request with data as the body. config may be nil.
func (c *Client) Patch(ctx context.Context, url string, data any, config *RequestConfig) (*Response, error) {
	return c.requestWithData(ctx, MethodPatch, url, data, config)
}

// GetJSON performs a GET and decodes the response data into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	resp, err := c.Get(ctx, url, nil)
	if err != nil {
		return err
	}
	return resp.Decode(v)
}

// PostJSON posts body and decodes the response data into v.
func (c *Client) PostJSON(ctx context.Context, url string, body, v any) error {
	resp, err := c.Post(ctx, url, body, nil)
	if err != nil {
		return err
	}
	return resp.Decode(v)
}

// Decode unmarshals the response data into v. Textual data is parsed as
// JSON; already parsed data is re-encoded first.
func (r *Response) Decode(v any) error {
	switch data := r.Data.(type) {
	case nil:
		return nil
	case string:
		return json.Unmarshal([]byte(data), v)
	case []byte:
		return json.Unmarshal(data, v)
	default:
		b, err := json.Marshal(data)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, v)
	}
}

func (c *Client) requestWithoutData(ctx context.Context, method, url string, config *RequestConfig) (*Response, error) {
	cfg := copyConfig(config)
	cfg.Method = method
	cfg.URL = url
	return c.Request(ctx, cfg)
}

func (c *Client) requestWithData(ctx context.Context, method, url string, data any, config *RequestConfig) (*Response, error) {
	cfg := copyConfig(config)
	cfg.Method = method
	cfg.URL = url
	cfg.Data = data
	return c.Request(ctx, cfg)
}

func copyConfig(config *RequestConfig) *RequestConfig {
	if config == nil {
		return &RequestConfig{}
	}
	cp := *config
	return &cp
}

// chainLink is one step of the fold: a request interceptor, the dispatch
// step or a response interceptor.
type chainLink struct {
	fulfilled func(ctx context.Context, value any) (any, error)
	rejected  func(ctx context.Context, err error) (any, error)
}

func linkOf[T any](i Interceptor[T]) chainLink {
	link := chainLink{
		fulfilled: func(ctx context.Context, value any) (any, error) {
			if i.Fulfilled == nil {
				return value, nil
			}
			typed, ok := value.(T)
			if !ok {
				return nil, fmt.Errorf("%w: got %T", ErrUnexpectedValue, value)
			}
			return i.Fulfilled(ctx, typed)
		},
	}
	if i.Rejected != nil {
		link.rejected = func(ctx context.Context, err error) (any, error) {
			return i.Rejected(ctx, err)
		}
	}
	return link
}

// buildChain snapshots the registries. Request interceptors are prepended
// so the last registered runs first; response interceptors run in
// registration order.
func (c *Client) buildChain(requestID string) []chainLink {
	chain := []chainLink{{
		fulfilled: func(ctx context.Context, value any) (any, error) {
			config, ok := value.(*RequestConfig)
			if !ok || config == nil {
				return nil, fmt.Errorf("%w: got %T", ErrUnexpectedValue, value)
			}
			return c.dispatchRequest(ctx, config, requestID)
		},
	}}

	c.Interceptors.Request.ForEach(func(i Interceptor[*RequestConfig]) {
		chain = append([]chainLink{linkOf(i)}, chain...)
	})
	c.Interceptors.Response.ForEach(func(i Interceptor[*Response]) {
		chain = append(chain, linkOf(i))
	})
	return chain
}

func (c *Client) runChain(ctx context.Context, config *RequestConfig, requestID string) (*Response, error) {
	chain := c.buildChain(requestID)

	if c.debug != nil && c.debug.Enabled && c.debug.LogInterceptors && c.logger != nil {
		c.logger.Debug("Running interceptor chain", "requestID", requestID, "links", len(chain),
			"requestInterceptors", c.Interceptors.Request.Len(), "responseInterceptors", c.Interceptors.Response.Len())
	}

	var value any = config
	var err error
	for _, link := range chain {
		if err == nil {
			value, err = link.fulfilled(ctx, value)
		} else if link.rejected != nil {
			value, err = link.rejected(ctx, err)
		}
	}
	if err != nil {
		return nil, err
	}

	resp, ok := value.(*Response)
	if !ok || resp == nil {
		return nil, fmt.Errorf("%w: chain produced %T", ErrUnexpectedValue, value)
	}
	return resp, nil
}

// watchInterceptors feeds registration changes into the interceptor gauge
// as deltas, so clients sharing a collector add up instead of overwriting
// each other.
func (c *Client) watchInterceptors() {
	if c.metrics == nil {
		return
	}
	metrics := c.metrics
	requests := c.Interceptors.Request.watch(func(delta int) { metrics.AddInterceptors("request", delta) })
	responses := c.Interceptors.Response.watch(func(delta int) { metrics.AddInterceptors("response", delta) })
	metrics.AddInterceptors("request", requests)
	metrics.AddInterceptors("response", responses)
}

func (c *Client) logCancel(requestID string, reason error) {
	if c.debug != nil && c.debug.Enabled && c.debug.LogCancellation && c.logger != nil {
		c.logger.Info("Request cancelled", "requestID", requestID, "reason", reason.Error())
	}
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

func getEndpointFromConfig(config *RequestConfig) string {
	target := config.URL
	if config.BaseURL != "" && !urlutil.IsAbsoluteURL(target) {
		target = urlutil.CombineURL(config.BaseURL, target)
	}

	u, err := url.Parse(target)
	if err != nil {
		return "unknown"
	}

	var builder strings.Builder
	builder.WriteString(u.Host)
	if u.Path != "" && u.Path != "/" {
		if !strings.HasPrefix(u.Path, "/") {
			builder.WriteByte('/')
		}
		builder.WriteString(u.Path)
	} else {
		builder.WriteByte('/')
	}
	return builder.String()
}
