// Package kurir is a promise-free HTTP request client built around an
// interceptor chain:
//
//   - Layered configuration: library defaults, instance defaults and per-call
//     config merged field by field (headers deep-merged per method group)
//   - Request interceptors (last registered runs first) and response
//     interceptors (first registered runs first), each with an optional
//     rejection handler that can recover a failure
//   - Request and response transformers (JSON encoding and parsing by default)
//   - Cancellation through one-shot CancelTokens, timeouts and the caller's
//     context, whichever fires first
//   - A pluggable transport Adapter; the default one is backed by net/http
//   - Prometheus metrics and structured debug logging through zerolog
//
// Every call blocks until the chain settles. Run calls in goroutines for
// concurrency; a single *Client is safe for concurrent use.
//
// Typical usage:
//
//	client := kurir.New(
//	    kurir.WithBaseURL("https://api.example.com"),
//	    kurir.WithTimeout(5*time.Second),
//	)
//	client.Interceptors.Request.Use(func(ctx context.Context, cfg *kurir.RequestConfig) (*kurir.RequestConfig, error) {
//	    cfg.Headers["Authorization"] = "Bearer " + token
//	    return cfg, nil
//	}, nil)
//	resp, err := client.Get(ctx, "/users", &kurir.RequestConfig{Params: map[string]any{"page": 2}})
//
// Failures are *ClientError values of type Network, Timeout, Cancel or
// Status; match them with IsNetworkError, IsTimeout, IsCancel and
// IsStatusError or errors.Is against the sentinel errors.
package kurir
