package kurir

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// slowAdapter answers after delay unless its context is cancelled first.
func slowAdapter(delay time.Duration, aborted *int32) AdapterFunc {
	return func(ctx context.Context, config *RequestConfig) (*Response, error) {
		select {
		case <-time.After(delay):
			return &Response{Data: "late", Status: 200}, nil
		case <-ctx.Done():
			if aborted != nil {
				atomic.StoreInt32(aborted, 1)
			}
			return nil, ctx.Err()
		}
	}
}

func TestTimeoutBeatsSlowAdapter(t *testing.T) {
	var aborted int32
	client := New(WithAdapter(slowAdapter(time.Second, &aborted)))

	start := time.Now()
	_, err := client.Get(context.Background(), testURL, &RequestConfig{Timeout: 20 * time.Millisecond})
	if !IsTimeout(err) {
		t.Fatalf("Expected timeout error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Expected the call to fail near the timeout, took %v", elapsed)
	}

	var ce *ClientError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected *ClientError, got %T", err)
	}
	if ce.Code != CodeConnAborted {
		t.Errorf("Expected code %s, got %s", CodeConnAborted, ce.Code)
	}
	if ce.Message != "timeout of 20ms exceeded" {
		t.Errorf("Expected timeout message, got %q", ce.Message)
	}
	if ce.Config == nil || ce.Config.URL != testURL {
		t.Error("Expected the error to carry the config")
	}

	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&aborted) != 1 {
		t.Error("Expected the adapter context to be cancelled")
	}
}

func TestFastAdapterBeatsTimeout(t *testing.T) {
	client := New(WithAdapter(slowAdapter(time.Millisecond, nil)))

	resp, err := client.Get(context.Background(), testURL, &RequestConfig{Timeout: time.Second})
	if err != nil {
		t.Fatalf(unexpectedErrorMsg, err)
	}
	if resp.Data != "late" {
		t.Errorf("Expected adapter data, got %v", resp.Data)
	}
}

func TestZeroTimeoutWaits(t *testing.T) {
	client := New(WithAdapter(slowAdapter(30*time.Millisecond, nil)))

	if _, err := client.Get(context.Background(), testURL, nil); err != nil {
		t.Fatalf("Expected no timeout without a deadline, got %v", err)
	}
}

func TestCancelledTokenRefusesBeforeDispatch(t *testing.T) {
	adapter := &recorder{}
	client := New(WithAdapter(adapter))

	interceptorRan := false
	client.Interceptors.Request.Use(func(ctx context.Context, config *RequestConfig) (*RequestConfig, error) {
		interceptorRan = true
		return config, nil
	}, nil)

	source := NewCancelSource()
	source.Cancel("stop")

	_, err := client.Get(context.Background(), testURL, &RequestConfig{CancelToken: source.Token})
	if !IsCancel(err) {
		t.Fatalf("Expected cancel error, got %v", err)
	}
	if !strings.Contains(err.Error(), "stop") {
		t.Errorf("Expected the reason in the error, got %v", err)
	}
	if atomic.LoadInt32(&adapter.calls) != 0 {
		t.Error("Expected adapter not to be called")
	}
	if interceptorRan {
		t.Error("Expected interceptors not to run")
	}
}

func TestCancelledByInterceptorBeforeDispatch(t *testing.T) {
	adapter := &recorder{}
	client := New(WithAdapter(adapter))
	source := NewCancelSource()

	client.Interceptors.Request.Use(func(ctx context.Context, config *RequestConfig) (*RequestConfig, error) {
		source.Cancel("from interceptor")
		return config, nil
	}, nil)

	_, err := client.Get(context.Background(), testURL, &RequestConfig{CancelToken: source.Token})
	if !IsCancel(err) {
		t.Fatalf("Expected cancel error, got %v", err)
	}
	if atomic.LoadInt32(&adapter.calls) != 0 {
		t.Error("Expected adapter not to be called")
	}
}

func TestCancelInFlight(t *testing.T) {
	var aborted int32
	client := New(WithAdapter(slowAdapter(time.Second, &aborted)))
	source := NewCancelSource()

	go func() {
		time.Sleep(20 * time.Millisecond)
		source.Cancel("user abort")
		source.Cancel("ignored")
	}()

	_, err := client.Get(context.Background(), testURL, &RequestConfig{CancelToken: source.Token})
	if !IsCancel(err) {
		t.Fatalf("Expected cancel error, got %v", err)
	}
	var reason *Cancel
	if !errors.As(err, &reason) || reason.Message != "user abort" {
		t.Errorf("Expected first reason to win, got %v", reason)
	}

	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&aborted) != 1 {
		t.Error("Expected the adapter context to be cancelled")
	}
}

func TestCallerContextCancelled(t *testing.T) {
	client := New(WithAdapter(slowAdapter(time.Second, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := client.Get(ctx, testURL, nil)
	if !IsCancel(err) {
		t.Errorf("Expected cancel error, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled in the chain, got %v", err)
	}
}

func TestCallerContextDeadline(t *testing.T) {
	client := New(WithAdapter(slowAdapter(time.Second, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, testURL, nil)
	if !IsTimeout(err) {
		t.Errorf("Expected timeout error, got %v", err)
	}
}

func TestAdapterErrorBecomesNetworkError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	client := New(WithAdapter(AdapterFunc(func(ctx context.Context, config *RequestConfig) (*Response, error) {
		return nil, cause
	})))

	_, err := client.Get(context.Background(), testURL, nil)
	if !IsNetworkError(err) {
		t.Fatalf("Expected network error, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("Expected the transport error as cause")
	}
	var ce *ClientError
	if errors.As(err, &ce) && ce.Message != "Network Error" {
		t.Errorf("Expected Network Error message, got %q", ce.Message)
	}
}

func TestAdapterClientErrorKept(t *testing.T) {
	client := New(WithAdapter(AdapterFunc(func(ctx context.Context, config *RequestConfig) (*Response, error) {
		return nil, newTimeoutError(config, time.Second, nil)
	})))

	_, err := client.Get(context.Background(), testURL, nil)
	if !IsTimeout(err) {
		t.Errorf("Expected adapter classification to be kept, got %v", err)
	}
}

func TestValidateStatusRejects(t *testing.T) {
	client := New(WithAdapter(AdapterFunc(func(ctx context.Context, config *RequestConfig) (*Response, error) {
		return &Response{Data: `{"error":"missing"}`, Status: 404, StatusText: "Not Found"}, nil
	})))

	_, err := client.Get(context.Background(), testURL, nil)
	if !IsStatusError(err) {
		t.Fatalf("Expected status error, got %v", err)
	}

	var ce *ClientError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected *ClientError, got %T", err)
	}
	if ce.StatusCode != 404 || ce.Response == nil || ce.Response.Status != 404 {
		t.Errorf("Expected the 404 response on the error, got %+v", ce.Response)
	}
	if ce.Message != "request failed with status code 404" {
		t.Errorf("Unexpected message %q", ce.Message)
	}
	if data, ok := ce.Response.Data.(map[string]any); !ok || data["error"] != "missing" {
		t.Errorf("Expected transformed error body, got %v", ce.Response.Data)
	}
}

func TestValidateStatusOverride(t *testing.T) {
	client := New(WithAdapter(AdapterFunc(func(ctx context.Context, config *RequestConfig) (*Response, error) {
		return &Response{Status: 500}, nil
	})))

	resp, err := client.Get(context.Background(), testURL, &RequestConfig{
		ValidateStatus: func(status int) bool { return status < 600 },
	})
	if err != nil {
		t.Fatalf(unexpectedErrorMsg, err)
	}
	if resp.Status != 500 {
		t.Errorf("Expected status 500, got %d", resp.Status)
	}
}

func TestNilValidateStatusAcceptsAll(t *testing.T) {
	client := New(
		WithValidateStatus(nil),
		WithAdapter(AdapterFunc(func(ctx context.Context, config *RequestConfig) (*Response, error) {
			return &Response{Status: 418}, nil
		})),
	)

	if _, err := client.Get(context.Background(), testURL, nil); err != nil {
		t.Errorf("Expected any status to be accepted, got %v", err)
	}
}

func TestNilResponseFromAdapter(t *testing.T) {
	client := New(WithAdapter(AdapterFunc(func(ctx context.Context, config *RequestConfig) (*Response, error) {
		return nil, nil
	})))

	if _, err := client.Get(context.Background(), testURL, nil); !IsNetworkError(err) {
		t.Errorf("Expected network error, got %v", err)
	}
}

func TestProcessConfig(t *testing.T) {
	adapter := &recorder{}
	client := New(WithAdapter(adapter), WithBaseURL("https://api.example.com/v1/"))

	_, err := client.Post(context.Background(), "/users", map[string]any{"name": "a"}, &RequestConfig{
		Params:  map[string]any{"tags": []any{"x", "y"}, "skip": nil},
		Headers: Headers{"content-type": "application/vnd.custom+json", "post": map[string]any{"X-Post": "1"}},
	})
	if err != nil {
		t.Fatalf(unexpectedErrorMsg, err)
	}

	sent := adapter.last()
	if sent.URL != "https://api.example.com/v1/users?tags[]=x&tags[]=y" {
		t.Errorf("Unexpected URL %s", sent.URL)
	}
	if sent.Data != `{"name":"a"}` {
		t.Errorf("Expected JSON body, got %v", sent.Data)
	}
	if sent.Headers[headerContentType] != "application/vnd.custom+json" {
		t.Errorf("Expected caller content type to win, got %v", sent.Headers[headerContentType])
	}
	if _, ok := sent.Headers["content-type"]; ok {
		t.Error("Expected content-type to be canonicalized")
	}
	if sent.Headers["X-Post"] != "1" {
		t.Errorf("Expected post group header, got %v", sent.Headers["X-Post"])
	}
	for _, group := range headerGroups {
		if _, ok := sent.Headers[group]; ok {
			t.Errorf("Expected group %s to be flattened away", group)
		}
	}
}

func TestAbsoluteURLIgnoresBaseURL(t *testing.T) {
	adapter := &recorder{}
	client := New(WithAdapter(adapter), WithBaseURL("https://api.example.com"))

	if _, err := client.Get(context.Background(), "http://other.example.com/x", nil); err != nil {
		t.Fatalf(unexpectedErrorMsg, err)
	}
	if got := adapter.last().URL; got != "http://other.example.com/x" {
		t.Errorf("Expected absolute URL untouched, got %s", got)
	}
}

func TestTransformRequestOrderAndError(t *testing.T) {
	adapter := &recorder{}
	client := New(WithAdapter(adapter))

	upper := func(data any, headers Headers) (any, error) { return strings.ToUpper(data.(string)), nil }
	suffix := func(data any, headers Headers) (any, error) { return data.(string) + "!", nil }

	if _, err := client.Post(context.Background(), testURL, "hi", &RequestConfig{
		TransformRequest: []Transformer{upper, suffix},
	}); err != nil {
		t.Fatalf(unexpectedErrorMsg, err)
	}
	if got := adapter.last().Data; got != "HI!" {
		t.Errorf("Expected HI!, got %v", got)
	}

	broken := errors.New("cannot encode")
	_, err := client.Post(context.Background(), testURL, "hi", &RequestConfig{
		TransformRequest: []Transformer{func(data any, headers Headers) (any, error) { return nil, broken }},
	})
	if !errors.Is(err, broken) {
		t.Errorf("Expected transformer error, got %v", err)
	}
	if atomic.LoadInt32(&adapter.calls) != 1 {
		t.Error("Expected adapter not to be called after a transform failure")
	}
}

func TestCustomParamsSerializer(t *testing.T) {
	adapter := &recorder{}
	client := New(WithAdapter(adapter))

	_, err := client.Get(context.Background(), testURL+"#frag", &RequestConfig{
		Params:           map[string]any{"a": 1},
		ParamsSerializer: func(params any) string { return "custom=1" },
	})
	if err != nil {
		t.Fatalf(unexpectedErrorMsg, err)
	}
	if got := adapter.last().URL; got != testURL+"?custom=1" {
		t.Errorf("Expected serializer output without fragment, got %s", got)
	}
}

func TestCancelAfterCompletionIsNoop(t *testing.T) {
	adapter := &recorder{}
	client := New(WithAdapter(adapter))
	source := NewCancelSource()

	resp, err := client.Get(context.Background(), testURL, &RequestConfig{CancelToken: source.Token})
	if err != nil {
		t.Fatalf(unexpectedErrorMsg, err)
	}

	source.Cancel("too late")

	if resp == nil || resp.Status != 200 || resp.Data != "ok" {
		t.Errorf("Expected the completed response to stand, got %+v", resp)
	}
	if calls := atomic.LoadInt32(&adapter.calls); calls != 1 {
		t.Errorf("Expected exactly one adapter call, got %d", calls)
	}
	if !source.Token.Requested() {
		t.Error("Expected the token to record the late cancellation")
	}
}

func TestNoTimeoutOverridesDefault(t *testing.T) {
	client := New(WithAdapter(slowAdapter(60*time.Millisecond, nil)), WithTimeout(10*time.Millisecond))

	if _, err := client.Get(context.Background(), testURL, nil); !IsTimeout(err) {
		t.Fatalf("Expected the default timeout to apply, got %v", err)
	}

	resp, err := client.Get(context.Background(), testURL, &RequestConfig{Timeout: NoTimeout})
	if err != nil {
		t.Fatalf("Expected NoTimeout to disable the default, got %v", err)
	}
	if resp.Data != "late" {
		t.Errorf("Expected the slow response, got %v", resp.Data)
	}

	if _, err := client.Get(context.Background(), testURL, &RequestConfig{Timeout: 0}); !IsTimeout(err) {
		t.Errorf("Expected a zero timeout to fall back to the default, got %v", err)
	}
}
