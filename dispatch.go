package kurir

import (
	"context"
	"errors"
	"time"

	"github.com/ambiyansyah-risyal/kurir/internal/urlutil"
)

// dispatchRequest is the middle link of the chain: it prepares the config,
// runs the adapter against the cancellation signals and shapes the result.
func (c *Client) dispatchRequest(ctx context.Context, config *RequestConfig, requestID string) (*Response, error) {
	if reason := config.CancelToken.Err(); reason != nil {
		c.logCancel(requestID, reason)
		return nil, newCancelError(config, config.CancelToken.Reason())
	}

	if err := processConfig(config); err != nil {
		return nil, err
	}

	resp, err := c.transport(ctx, config, requestID)
	if err != nil {
		var ce *ClientError
		if errors.As(err, &ce) && ce.Response != nil {
			if data, terr := Transform(ce.Response.Data, responseHeaders(ce.Response), config.TransformResponse...); terr == nil {
				ce.Response = ce.Response.withData(data)
			}
		}
		return nil, err
	}

	data, err := Transform(resp.Data, responseHeaders(resp), config.TransformResponse...)
	if err != nil {
		return nil, err
	}
	return resp.withData(data), nil
}

// processConfig resolves the URL, fills header defaults from the raw body,
// runs the request transformers and then flattens the header groups.
func processConfig(config *RequestConfig) error {
	target := config.URL
	if config.BaseURL != "" && !urlutil.IsAbsoluteURL(target) {
		target = urlutil.CombineURL(config.BaseURL, target)
	}

	built, err := urlutil.BuildURL(target, config.Params, config.ParamsSerializer)
	if err != nil {
		return newClientError(ErrorTypeConfig, "invalid request params", err, config, nil)
	}
	config.URL = built

	config.Headers = processHeaders(config.Headers, config.Data)

	data, err := Transform(config.Data, config.Headers, config.TransformRequest...)
	if err != nil {
		return err
	}
	config.Data = data

	config.Headers = flattenHeaders(config.Headers, config.Method)
	return nil
}

type adapterResult struct {
	resp *Response
	err  error
}

// transport runs the adapter and settles on whichever comes first: the
// adapter result, the cancel token, the timeout or the caller's context.
// The losers are ignored; the adapter context is cancelled on return.
func (c *Client) transport(ctx context.Context, config *RequestConfig, requestID string) (*Response, error) {
	adapterCtx, abort := context.WithCancel(ctx)
	defer abort()

	var deadline <-chan time.Time
	if config.Timeout > 0 {
		timer := time.NewTimer(config.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	var cancelled <-chan struct{}
	if config.CancelToken != nil {
		cancelled = config.CancelToken.Done()
	}

	done := make(chan adapterResult, 1)
	go func() {
		resp, err := c.adapter.RoundTrip(adapterCtx, config)
		done <- adapterResult{resp: resp, err: err}
	}()

	select {
	case result := <-done:
		if result.err != nil {
			return nil, classifyAdapterError(ctx, config, result.err)
		}
		if result.resp == nil {
			return nil, newClientError(ErrorTypeNetwork, "Network Error", errors.New("adapter returned no response"), config, nil)
		}
		return settle(config, result.resp)

	case <-cancelled:
		reason := config.CancelToken.Reason()
		c.logCancel(requestID, reason)
		return nil, newCancelError(config, reason)

	case <-deadline:
		if c.debug != nil && c.debug.Enabled && c.debug.LogCancellation && c.logger != nil {
			c.logger.Info("Request timed out", "requestID", requestID, "timeout", config.Timeout)
		}
		return nil, newTimeoutError(config, config.Timeout, nil)

	case <-ctx.Done():
		return nil, contextError(config, ctx.Err())
	}
}

// settle applies the status validator. A nil validator accepts everything.
func settle(config *RequestConfig, resp *Response) (*Response, error) {
	if resp.Config == nil {
		cp := *resp
		cp.Config = config
		resp = &cp
	}
	if config.ValidateStatus == nil || config.ValidateStatus(resp.Status) {
		return resp, nil
	}
	return nil, newStatusError(config, resp)
}

// classifyAdapterError keeps errors the adapter already classified and
// reports everything else as a network failure.
func classifyAdapterError(ctx context.Context, config *RequestConfig, err error) error {
	var ce *ClientError
	if errors.As(err, &ce) {
		if ce.Config == nil {
			ce.Config = config
		}
		return ce
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return contextError(config, ctxErr)
	}
	return newClientError(ErrorTypeNetwork, "Network Error", err, config, nil)
}

func contextError(config *RequestConfig, err error) *ClientError {
	if errors.Is(err, context.DeadlineExceeded) {
		return newClientError(ErrorTypeTimeout, "context deadline exceeded", err, config, nil)
	}
	return newClientError(ErrorTypeCancel, "request cancelled", err, config, nil)
}

func responseHeaders(resp *Response) Headers {
	headers := make(Headers, len(resp.Headers))
	for k, v := range resp.Headers {
		headers[k] = v
	}
	return headers
}
