package kurir

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

const (
	expectedStatus200Msg   = "Expected status 200, got %d"
	failedWriteResponseMsg = "Failed to write response: %v"
	failedCreateJarMsg     = "Failed to create cookie jar: %v"
)

func TestHTTPGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET method, got %s", r.Method)
		}
		if got := r.Header.Get("Accept"); got != "application/json, text/plain, */*" {
			t.Errorf("Expected default Accept header, got %q", got)
		}
		if got := r.URL.RawQuery; got != "page=2&q=go" {
			t.Errorf("Expected query page=2&q=go, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Add("X-Multi", "a")
		w.Header().Add("X-Multi", "b")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"id":7}`)); err != nil {
			t.Fatalf(failedWriteResponseMsg, err)
		}
	}))
	defer server.Close()

	client := New()
	resp, err := client.Get(context.Background(), server.URL+"/items", &RequestConfig{
		Params: map[string]any{"q": "go", "page": 2},
	})
	if err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}

	if resp.Status != http.StatusOK {
		t.Errorf(expectedStatus200Msg, resp.Status)
	}
	if resp.StatusText != "OK" {
		t.Errorf("Expected status text OK, got %q", resp.StatusText)
	}
	if resp.Headers["content-type"] != "application/json" {
		t.Errorf("Expected lower-case content-type header, got %v", resp.Headers)
	}
	if resp.Headers["x-multi"] != "a, b" {
		t.Errorf("Expected joined header values, got %q", resp.Headers["x-multi"])
	}
	data, ok := resp.Data.(map[string]any)
	if !ok || data["id"] != float64(7) {
		t.Errorf("Expected parsed JSON body, got %#v", resp.Data)
	}
	if _, ok := resp.Request.(*http.Request); !ok {
		t.Errorf("Expected *http.Request handle, got %T", resp.Request)
	}
}

func TestHTTPPostBodies(t *testing.T) {
	tests := []struct {
		name        string
		data        any
		contentType string
		body        string
	}{
		{"plain object", map[string]any{"a": 1}, "application/json;charset=utf-8", `{"a":1}`},
		{"form values", url.Values{"a": {"1"}, "b": {"2"}}, "application/x-www-form-urlencoded", "a=1&b=2"},
		{"string", "raw text", "application/x-www-form-urlencoded", "raw text"},
		{"reader", strings.NewReader("streamed"), "application/x-www-form-urlencoded", "streamed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("Expected POST method, got %s", r.Method)
				}
				if got := r.Header.Get("Content-Type"); got != tt.contentType {
					t.Errorf("Expected Content-Type %q, got %q", tt.contentType, got)
				}
				b, _ := io.ReadAll(r.Body)
				if string(b) != tt.body {
					t.Errorf("Expected body %q, got %q", tt.body, string(b))
				}
				w.WriteHeader(http.StatusCreated)
			}))
			defer server.Close()

			resp, err := New().Post(context.Background(), server.URL, tt.data, nil)
			if err != nil {
				t.Fatalf("Post() returned error: %v", err)
			}
			if resp.Status != http.StatusCreated {
				t.Errorf("Expected status 201, got %d", resp.Status)
			}
		})
	}
}

func TestHTTPContentTypeDroppedWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Type"); got != "" {
			t.Errorf("Expected no Content-Type without a body, got %q", got)
		}
		if got := r.Header.Get("X-Kept"); got != "yes" {
			t.Errorf("Expected other headers to be sent, got %q", got)
		}
	}))
	defer server.Close()

	_, err := New().Post(context.Background(), server.URL, nil, &RequestConfig{
		Headers: Headers{"Content-Type": "application/json", "X-Kept": "yes"},
	})
	if err != nil {
		t.Fatalf("Post() returned error: %v", err)
	}
}

func TestHTTPBasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "alice" || pass != "secret" {
			t.Errorf("Expected basic auth alice/secret, got %q/%q (%v)", user, pass, ok)
		}
	}))
	defer server.Close()

	client := New(WithBasicAuth("alice", "secret"))
	if _, err := client.Get(context.Background(), server.URL, nil); err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
}

func TestHTTPStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := New().Get(context.Background(), server.URL, nil)
	if !IsStatusError(err) {
		t.Fatalf("Expected status error, got %v", err)
	}
	if ce := err.(*ClientError); ce.Response.Status != http.StatusNotFound {
		t.Errorf("Expected 404 on the error response, got %d", ce.Response.Status)
	}
}

func TestHTTPNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := server.URL
	server.Close()

	_, err := New().Get(context.Background(), target, nil)
	if !IsNetworkError(err) {
		t.Errorf("Expected network error, got %v", err)
	}
}

func TestHTTPXSRFSameOrigin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-XSRF-TOKEN"); got != "tok en" {
			t.Errorf("Expected XSRF header %q, got %q", "tok en", got)
		}
	}))
	defer server.Close()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf(failedCreateJarMsg, err)
	}
	origin, _ := url.Parse(server.URL)
	jar.SetCookies(origin, []*http.Cookie{{Name: "XSRF-TOKEN", Value: "tok%20en"}})

	client := New(WithCookieJar(jar), WithOrigin(server.URL))
	if _, err := client.Get(context.Background(), "/relative", nil); err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
}

func TestHTTPXSRFCrossOrigin(t *testing.T) {
	var header string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("X-XSRF-TOKEN")
	}))
	defer server.Close()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf(failedCreateJarMsg, err)
	}
	origin, _ := url.Parse("http://app.example.com")
	jar.SetCookies(origin, []*http.Cookie{{Name: "XSRF-TOKEN", Value: "abc"}})

	client := New(WithCookieJar(jar), WithOrigin(origin.String()))

	if _, err := client.Get(context.Background(), server.URL, nil); err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	if header != "" {
		t.Errorf("Expected no XSRF header cross-origin, got %q", header)
	}

	if _, err := client.Get(context.Background(), server.URL, &RequestConfig{WithCredentials: true}); err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	if header != "abc" {
		t.Errorf("Expected XSRF header with credentials, got %q", header)
	}
}

func TestHTTPResponseTypes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte(`{"a":1}`)); err != nil {
			t.Fatalf(failedWriteResponseMsg, err)
		}
	}))
	defer server.Close()

	resp, err := New().Get(context.Background(), server.URL, &RequestConfig{ResponseType: ResponseTypeArrayBuffer})
	if err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	if b, ok := resp.Data.([]byte); !ok || string(b) != `{"a":1}` {
		t.Errorf("Expected raw bytes, got %#v", resp.Data)
	}
}

func TestHTTPProgress(t *testing.T) {
	payload := strings.Repeat("x", 4096)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Length", "4096")
		if _, err := w.Write([]byte(payload)); err != nil {
			t.Fatalf(failedWriteResponseMsg, err)
		}
	}))
	defer server.Close()

	var upload, download ProgressEvent
	_, err := New().Post(context.Background(), server.URL, "hello", &RequestConfig{
		OnUploadProgress:   func(e ProgressEvent) { upload = e },
		OnDownloadProgress: func(e ProgressEvent) { download = e },
	})
	if err != nil {
		t.Fatalf("Post() returned error: %v", err)
	}

	if upload.Loaded != 5 || upload.Total != 5 {
		t.Errorf("Expected upload 5/5, got %+v", upload)
	}
	if download.Loaded != 4096 || download.Total != 4096 {
		t.Errorf("Expected download 4096/4096, got %+v", download)
	}
}

func TestRequestBodyUnsupported(t *testing.T) {
	if _, _, err := requestBody(42); err == nil {
		t.Error("Expected an error for an unsupported body type")
	}
}
