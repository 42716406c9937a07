package kurir

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/ambiyansyah-risyal/kurir/internal/urlutil"
)

// HTTPAdapter is the default Adapter, backed by an http.Client.
type HTTPAdapter struct {
	client *http.Client
	origin *url.URL
}

// NewHTTPAdapter creates an adapter sending requests through client. Relative
// URLs are resolved against origin, which also decides whether a request is
// same-origin for XSRF purposes. Both may be nil.
func NewHTTPAdapter(client *http.Client, origin *url.URL) *HTTPAdapter {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPAdapter{client: client, origin: origin}
}

// RoundTrip sends config and reads the whole response body.
func (a *HTTPAdapter) RoundTrip(ctx context.Context, config *RequestConfig) (*Response, error) {
	body, length, err := requestBody(config.Data)
	if err != nil {
		return nil, newClientError(ErrorTypeConfig, "unsupported request body", err, config, nil)
	}
	if body != nil && config.OnUploadProgress != nil {
		body = &progressReader{r: body, total: length, fn: config.OnUploadProgress}
	}

	target, err := a.resolve(config.URL)
	if err != nil {
		return nil, newClientError(ErrorTypeConfig, "invalid request URL", err, config, nil)
	}

	req, err := http.NewRequestWithContext(ctx, normalizeMethod(config.Method), target, body)
	if err != nil {
		return nil, newClientError(ErrorTypeConfig, "invalid request", err, config, nil)
	}
	if length > 0 {
		req.ContentLength = length
	}

	for name, value := range config.Headers {
		if _, group := value.(map[string]any); group {
			continue
		}
		// Content-Type is meaningless without a body.
		if config.Data == nil && strings.EqualFold(name, headerContentType) {
			continue
		}
		req.Header.Set(name, headerString(value))
	}

	a.setXSRFHeader(req, config)

	if config.Auth != nil {
		req.SetBasicAuth(config.Auth.Username, config.Auth.Password)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if config.OnDownloadProgress != nil {
		reader = &progressReader{r: resp.Body, total: resp.ContentLength, fn: config.OnDownloadProgress}
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	var data any = string(raw)
	if config.ResponseType == ResponseTypeArrayBuffer || config.ResponseType == ResponseTypeBlob {
		data = raw
	}

	return &Response{
		Data:       data,
		Status:     resp.StatusCode,
		StatusText: strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "),
		Headers:    ParseHeaders(rawHeaders(resp.Header)),
		Config:     config,
		Request:    req,
	}, nil
}

func (a *HTTPAdapter) resolve(target string) (string, error) {
	if a.origin == nil || urlutil.IsAbsoluteURL(target) {
		return target, nil
	}
	ref, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	return a.origin.ResolveReference(ref).String(), nil
}

// setXSRFHeader copies the XSRF cookie into its header for credentialed or
// same-origin requests.
func (a *HTTPAdapter) setXSRFHeader(req *http.Request, config *RequestConfig) {
	if a.client.Jar == nil || config.XSRFCookieName == "" || config.XSRFHeaderName == "" {
		return
	}
	if !config.WithCredentials && !urlutil.IsSameOrigin(config.URL, a.origin) {
		return
	}

	cookieURL := req.URL
	if a.origin != nil {
		cookieURL = a.origin
	}
	for _, cookie := range a.client.Jar.Cookies(cookieURL) {
		if cookie.Name != config.XSRFCookieName {
			continue
		}
		value, err := url.QueryUnescape(cookie.Value)
		if err != nil {
			value = cookie.Value
		}
		req.Header.Set(config.XSRFHeaderName, value)
		return
	}
}

// requestBody turns transformed request data into a reader. length is -1
// when unknown.
func requestBody(data any) (io.Reader, int64, error) {
	switch v := data.(type) {
	case nil:
		return nil, 0, nil
	case string:
		return strings.NewReader(v), int64(len(v)), nil
	case []byte:
		return bytes.NewReader(v), int64(len(v)), nil
	case url.Values:
		encoded := v.Encode()
		return strings.NewReader(encoded), int64(len(encoded)), nil
	case io.Reader:
		return v, -1, nil
	default:
		return nil, 0, fmt.Errorf("cannot send %T as a request body", data)
	}
}

// rawHeaders renders h as CRLF separated "Name: value" lines, joining
// repeated values.
func rawHeaders(h http.Header) string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(strings.Join(h[name], ", "))
		b.WriteString("\r\n")
	}
	return b.String()
}

type progressReader struct {
	r      io.Reader
	loaded int64
	total  int64
	fn     ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		p.fn(ProgressEvent{Loaded: p.loaded, Total: p.total})
	}
	return n, err
}
