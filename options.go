package kurir

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// WithDefaults merges config into the instance defaults.
func WithDefaults(config *RequestConfig) Option {
	return func(c *Client) {
		c.updateDefaults(func(d *RequestConfig) { *d = *MergeConfig(d, config) })
	}
}

// WithBaseURL sets the base URL prepended to relative request URLs
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.updateDefaults(func(d *RequestConfig) { d.BaseURL = baseURL })
	}
}

// WithTimeout sets the default request timeout. Zero or NoTimeout means none.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.updateDefaults(func(defaults *RequestConfig) { defaults.Timeout = d })
	}
}

// WithHeader sets a header sent with every request
func WithHeader(name string, value any) Option {
	return WithMethodHeader("common", name, value)
}

// WithMethodHeader sets a header sent with requests of one method, or with
// all of them when group is "common".
func WithMethodHeader(group, name string, value any) Option {
	return func(c *Client) {
		c.updateDefaults(func(defaults *RequestConfig) {
			if defaults.Headers == nil {
				defaults.Headers = Headers{}
			}
			section, ok := defaults.Headers[group].(map[string]any)
			if !ok {
				section = map[string]any{}
				defaults.Headers[group] = section
			}
			section[name] = value
		})
	}
}

// WithBasicAuth sets default basic auth credentials
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.updateDefaults(func(d *RequestConfig) {
			d.Auth = &BasicCredentials{Username: username, Password: password}
		})
	}
}

// WithValidateStatus sets the default status validator
func WithValidateStatus(fn func(status int) bool) Option {
	return func(c *Client) {
		c.updateDefaults(func(d *RequestConfig) { d.ValidateStatus = fn })
	}
}

// updateDefaults applies fn to the instance defaults during construction,
// and to the pre-file defaults kept for WatchDefaultsFile when a defaults
// file was loaded.
func (c *Client) updateDefaults(fn func(*RequestConfig)) {
	fn(c.defaults.Load())
	if c.fileBase != nil {
		fn(c.fileBase)
	}
}

// WithAdapter sets the transport adapter. It replaces the default HTTP adapter.
func WithAdapter(adapter Adapter) Option {
	return func(c *Client) {
		c.adapter = adapter
	}
}

// WithHTTPClient sets the http.Client used by the default adapter
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithCookieJar sets the cookie jar used by the default adapter. XSRF tokens
// are read from it.
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = &http.Client{}
		}
		c.httpClient.Jar = jar
	}
}

// WithOrigin sets the origin relative URLs are resolved against and the
// XSRF same-origin check compares with.
func WithOrigin(origin string) Option {
	return func(c *Client) {
		u, err := url.Parse(origin)
		if err != nil {
			c.validationError = &ClientError{
				Type:    ErrorTypeValidation,
				Message: "invalid origin",
				Cause:   err,
			}
			return
		}
		c.origin = u
	}
}

// WithRequestInterceptor registers a request interceptor at construction.
func WithRequestInterceptor(fulfilled FulfilledFunc[*RequestConfig], rejected RejectedFunc[*RequestConfig]) Option {
	return func(c *Client) {
		c.Interceptors.Request.Use(fulfilled, rejected)
	}
}

// WithResponseInterceptor registers a response interceptor at construction.
func WithResponseInterceptor(fulfilled FulfilledFunc[*Response], rejected RejectedFunc[*Response]) Option {
	return func(c *Client) {
		c.Interceptors.Response.Use(fulfilled, rejected)
	}
}

// WithRateLimit throttles every request to rps requests per second with the
// given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.Interceptors.Request.Use(RateLimitInterceptor(NewLimiter(rps, burst)), nil)
	}
}

// WithRateLimiterRegistry throttles requests through registry.
func WithRateLimiterRegistry(registry *RateLimiterRegistry) Option {
	return func(c *Client) {
		c.Interceptors.Request.Use(registry.Interceptor(), nil)
	}
}

// WithMetrics enables Prometheus metrics collection
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithDebug enables debug logging with default configuration
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets custom debug configuration
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithLogger sets a custom logger for debug output
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a simple console logger
func WithSimpleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// ValidateConfiguration validates the client configuration and returns an error if invalid
func (c *Client) ValidateConfiguration() error {
	var errors []string

	errors = append(errors, c.validateDefaultsConfig()...)
	errors = append(errors, c.validateAdapterConfig()...)
	errors = append(errors, c.validateDebugConfig()...)

	if len(errors) > 0 {
		return &ClientError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", errors),
		}
	}

	return nil
}

// validateDefaultsConfig validates the instance defaults
func (c *Client) validateDefaultsConfig() []string {
	var errors []string

	defaults := c.defaults.Load()
	if defaults == nil {
		return append(errors, "defaults cannot be nil")
	}

	if defaults.BaseURL != "" {
		if _, err := url.Parse(defaults.BaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("baseURL is invalid: %v", err))
		}
	}

	if defaults.XSRFCookieName != "" && defaults.XSRFHeaderName == "" {
		errors = append(errors, "XSRF header name must be set when an XSRF cookie name is set")
	}

	return errors
}

// validateAdapterConfig validates the transport setup
func (c *Client) validateAdapterConfig() []string {
	var errors []string

	if c.adapter == nil {
		errors = append(errors, "adapter cannot be nil")
	}

	if c.httpClient == nil {
		errors = append(errors, "HTTP client cannot be nil")
	}

	return errors
}

// validateDebugConfig validates debug configuration
func (c *Client) validateDebugConfig() []string {
	var errors []string

	if c.debug != nil && c.debug.Enabled {
		if c.debug.RequestIDGen == nil {
			errors = append(errors, "debug RequestIDGen must be set when debug is enabled")
		}
		if c.logger == nil {
			errors = append(errors, "logger must be set when debug is enabled")
		}
	}

	return errors
}
