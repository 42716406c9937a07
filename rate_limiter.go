package kurir

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ambiyansyah-risyal/kurir/internal/urlutil"
)

// KeyFunc derives a rate limiter key from a request config.
type KeyFunc func(config *RequestConfig) string

// RateLimiterRegistry selects a limiter per key, falling back to a shared
// limiter for keys without one.
type RateLimiterRegistry struct {
	limiters map[string]*rate.Limiter
	keyFunc  KeyFunc
	fallback *rate.Limiter
	mutex    sync.RWMutex
}

// NewLimiter creates a token bucket refilled at rps tokens per second.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// NewRateLimiterRegistry creates a new rate limiter registry with the given key function and fallback limiter.
func NewRateLimiterRegistry(keyFunc KeyFunc, fallback *rate.Limiter) *RateLimiterRegistry {
	return &RateLimiterRegistry{
		limiters: make(map[string]*rate.Limiter),
		keyFunc:  keyFunc,
		fallback: fallback,
	}
}

// RegisterLimiter adds a limiter for the given key.
func (r *RateLimiterRegistry) RegisterLimiter(key string, limiter *rate.Limiter) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.limiters[key] = limiter
}

// GetLimiter returns the limiter for config and the key it was found under.
// If no specific limiter is found, returns the fallback limiter.
func (r *RateLimiterRegistry) GetLimiter(config *RequestConfig) (*rate.Limiter, string) {
	if r.keyFunc == nil {
		return r.fallback, "default"
	}

	key := r.keyFunc(config)

	r.mutex.RLock()
	limiter, exists := r.limiters[key]
	r.mutex.RUnlock()

	if exists {
		return limiter, key
	}
	if r.fallback != nil {
		return r.fallback, "default"
	}
	return nil, key
}

// Wait blocks until config may proceed or ctx is done.
func (r *RateLimiterRegistry) Wait(ctx context.Context, config *RequestConfig) error {
	limiter, _ := r.GetLimiter(config)
	if limiter == nil {
		return nil
	}

	if err := limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return contextError(config, ctxErr)
		}
		return newClientError(ErrorTypeTimeout, "rate limit wait exceeds deadline", err, config, nil)
	}
	return nil
}

// Interceptor returns a request interceptor that waits for the limiter.
func (r *RateLimiterRegistry) Interceptor() FulfilledFunc[*RequestConfig] {
	return func(ctx context.Context, config *RequestConfig) (*RequestConfig, error) {
		if err := r.Wait(ctx, config); err != nil {
			return nil, err
		}
		return config, nil
	}
}

// RateLimitInterceptor returns a request interceptor throttled by limiter.
func RateLimitInterceptor(limiter *rate.Limiter) FulfilledFunc[*RequestConfig] {
	return NewRateLimiterRegistry(nil, limiter).Interceptor()
}

// DefaultHostKeyFunc keys on the target host.
func DefaultHostKeyFunc(config *RequestConfig) string {
	if u := targetURL(config); u != nil && u.Host != "" {
		return "host:" + u.Host
	}
	return "host:unknown"
}

// DefaultRouteKeyFunc keys on method and path.
func DefaultRouteKeyFunc(config *RequestConfig) string {
	path := ""
	if u := targetURL(config); u != nil {
		path = u.Path
	}
	return "route:" + normalizeMethod(config.Method) + ":" + path
}

// DefaultHostRouteKeyFunc keys on host, method and path.
func DefaultHostRouteKeyFunc(config *RequestConfig) string {
	host, path := "unknown", ""
	if u := targetURL(config); u != nil {
		if u.Host != "" {
			host = u.Host
		}
		path = u.Path
	}
	return "host_route:" + host + ":" + normalizeMethod(config.Method) + ":" + path
}

// targetURL resolves config.URL against config.BaseURL without params.
// Request interceptors run before the dispatch step resolves the URL.
func targetURL(config *RequestConfig) *url.URL {
	target := config.URL
	if config.BaseURL != "" && !urlutil.IsAbsoluteURL(target) {
		target = urlutil.CombineURL(config.BaseURL, target)
	}
	if strings.HasPrefix(target, "//") {
		target = "http:" + target
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil
	}
	return u
}
