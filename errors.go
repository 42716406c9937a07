package kurir

import (
	"errors"
	"fmt"
	"time"
)

// Error types. A failed call carries exactly one of Network, Timeout,
// Cancel or Status.
const (
	ErrorTypeNetwork    = "Network"
	ErrorTypeTimeout    = "Timeout"
	ErrorTypeCancel     = "Cancel"
	ErrorTypeStatus     = "Status"
	ErrorTypeConfig     = "Config"
	ErrorTypeValidation = "Validation"
)

// CodeConnAborted marks a request that hit its deadline.
const CodeConnAborted = "ECONNABORTED"

// Sentinel errors matched through errors.Is against the error Type.
var (
	ErrNetwork   = &ClientError{Type: ErrorTypeNetwork}
	ErrTimeout   = &ClientError{Type: ErrorTypeTimeout}
	ErrCancelled = &ClientError{Type: ErrorTypeCancel}
	ErrStatus    = &ClientError{Type: ErrorTypeStatus}

	// ErrUnexpectedValue is returned when an interceptor hands the wrong
	// kind of value down the chain.
	ErrUnexpectedValue = errors.New("kurir: unexpected value in interceptor chain")
)

// ClientError represents an error from the client
type ClientError struct {
	Type    string
	Message string
	Cause   error
	// Code is a machine-readable marker such as CodeConnAborted.
	Code string

	Config *RequestConfig
	// Request is the transport handle, when the adapter produced one.
	Request any
	// Response is set when the transport completed before the failure.
	Response *Response

	RequestID  string
	Method     string
	URL        string
	StatusCode int
	Timestamp  time.Time
	Duration   time.Duration
}

// Error implements error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.Code != "" {
		info += fmt.Sprintf("Code: %s\n", e.Code)
	}
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// IsTimeout reports whether err is a timeout failure.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsNetworkError reports whether err is a transport failure.
func IsNetworkError(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// IsStatusError reports whether err is a status validation failure.
func IsStatusError(err error) bool {
	return errors.Is(err, ErrStatus)
}

func newClientError(errorType, message string, cause error, config *RequestConfig, response *Response) *ClientError {
	e := &ClientError{
		Type:      errorType,
		Message:   message,
		Cause:     cause,
		Config:    config,
		Response:  response,
		Timestamp: time.Now(),
	}
	if config != nil {
		e.Method = normalizeMethod(config.Method)
		e.URL = config.URL
	}
	if response != nil {
		e.StatusCode = response.Status
		e.Request = response.Request
	}
	if errorType == ErrorTypeTimeout {
		e.Code = CodeConnAborted
	}
	return e
}

func newTimeoutError(config *RequestConfig, timeout time.Duration, cause error) *ClientError {
	return newClientError(ErrorTypeTimeout, fmt.Sprintf("timeout of %v exceeded", timeout), cause, config, nil)
}

func newCancelError(config *RequestConfig, reason *Cancel) *ClientError {
	if reason == nil {
		reason = &Cancel{}
	}
	return newClientError(ErrorTypeCancel, "request cancelled", reason, config, nil)
}

func newStatusError(config *RequestConfig, response *Response) *ClientError {
	return newClientError(ErrorTypeStatus, fmt.Sprintf("request failed with status code %d", response.Status), nil, config, response)
}
