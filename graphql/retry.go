package graphql

import (
	"bytes"
	"context"
	"net/http"
	"time"
)

// execute runs params against the transport, retrying on transport failure
// and on 429/503 responses up to maxRetries additional attempts, with a
// fixed backoff between attempts. It never generalizes to exponential or
// jittered backoff (see SPEC_FULL.md §9) and it preserves the throw-vs-
// return asymmetry: transport exhaustion returns an error (there is no
// response to surface), HTTP exhaustion returns the last response
// unmodified (the caller has something to classify).
func (c *Client) execute(ctx context.Context, params *RequestParams, startAttempt, maxRetries int) (*http.Response, error) {
	for attempt := startAttempt + 1; ; attempt++ {
		attemptCtx, span := c.startAttemptSpan(ctx, attempt)
		req, err := newHTTPRequest(attemptCtx, params)
		if err != nil {
			span.End()
			return nil, err
		}

		resp, doErr := c.httpClient.Do(req)
		span.End()

		if doErr != nil {
			if attempt <= maxRetries {
				c.loggers.emit(LogEvent{
					Type: LogEventHTTPRetry,
					Retry: &RetryEventContent{
						RequestParams: *params,
						LastResponse:  nil,
						RetryAttempt:  attempt,
						MaxRetries:    maxRetries,
					},
				})
				c.metrics.RecordRetry(RetryReasonNetwork)
				if !c.sleep(ctx) {
					return nil, ctx.Err()
				}
				continue
			}
			return nil, &errNetworkExhausted{maxRetries: maxRetries, lastErr: doErr}
		}

		if isRetriableStatus(resp.StatusCode) && attempt <= maxRetries {
			c.loggers.emit(LogEvent{
				Type: LogEventHTTPRetry,
				Retry: &RetryEventContent{
					RequestParams: *params,
					LastResponse:  resp,
					RetryAttempt:  attempt,
					MaxRetries:    maxRetries,
				},
			})
			c.metrics.RecordRetry(retryReasonForStatus(resp.StatusCode))
			resp.Body.Close()
			if !c.sleep(ctx) {
				return nil, ctx.Err()
			}
			continue
		}

		// Either a successful/terminal response, or a retriable status
		// with the budget exhausted (passed through, not retried
		// further; no HTTP-Response event on exhaustion, per
		// SPEC_FULL.md §9's Open Question).
		if !isRetriableStatus(resp.StatusCode) {
			c.loggers.emit(LogEvent{
				Type: LogEventHTTPResponse,
				Response: &ResponseEventContent{
					RequestParams: *params,
					Response:      resp,
				},
			})
		}
		return resp, nil
	}
}

// isRetriableStatus reports whether status is one of the HTTP-level
// transient failures the executor retries: 429 Too Many Requests and 503
// Service Unavailable.
func isRetriableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

func retryReasonForStatus(status int) string {
	if status == http.StatusTooManyRequests {
		return RetryReason429
	}
	return RetryReason503
}

// sleep waits retryWaitTime, respecting context cancellation. Returns false
// if ctx was cancelled before the wait elapsed.
func (c *Client) sleep(ctx context.Context) bool {
	timer := time.NewTimer(c.retryWaitTime)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// newHTTPRequest builds a fresh *http.Request from params. A retry is a
// fresh request with identical parameters, so this is called once per
// attempt rather than reused.
func newHTTPRequest(ctx context.Context, params *RequestParams) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, params.Method, params.URL, bytes.NewReader(params.Body))
	if err != nil {
		return nil, err
	}
	req.Header = params.Headers.Clone()
	return req, nil
}
