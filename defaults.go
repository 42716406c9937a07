package kurir

const (
	defaultXSRFCookieName = "XSRF-TOKEN"
	defaultXSRFHeaderName = "X-XSRF-TOKEN"
)

// DefaultConfig returns the defaults every Client starts from.
func DefaultConfig() *RequestConfig {
	formContentType := func() map[string]any {
		return map[string]any{headerContentType: "application/x-www-form-urlencoded"}
	}

	return &RequestConfig{
		Method: MethodGet,
		Headers: Headers{
			"common": map[string]any{
				"Accept": "application/json, text/plain, */*",
			},
			MethodDelete:  map[string]any{},
			MethodGet:     map[string]any{},
			MethodHead:    map[string]any{},
			MethodOptions: map[string]any{},
			MethodPost:    formContentType(),
			MethodPut:     formContentType(),
			MethodPatch:   formContentType(),
		},
		TransformRequest:  []Transformer{DefaultTransformRequest},
		TransformResponse: []Transformer{DefaultTransformResponse},
		ValidateStatus:    DefaultValidateStatus,
		XSRFCookieName:    defaultXSRFCookieName,
		XSRFHeaderName:    defaultXSRFHeaderName,
	}
}

// DefaultValidateStatus accepts 2xx statuses.
func DefaultValidateStatus(status int) bool {
	return status >= 200 && status < 300
}
