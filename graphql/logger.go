package graphql

import (
	"net/http"

	"go.uber.org/zap"
)

// LogEventType tags the two event shapes a Logger can receive.
type LogEventType string

const (
	// LogEventHTTPRetry is emitted once per retried attempt.
	LogEventHTTPRetry LogEventType = "HTTP-Retry"
	// LogEventHTTPResponse is emitted at most once per logical request,
	// when the executor ultimately returns a response other than a
	// 429/503 whose retry budget ran out. It is never emitted on
	// transport-exhaustion, per the retry executor's throw/return
	// asymmetry.
	LogEventHTTPResponse LogEventType = "HTTP-Response"
)

// RequestParams is the shape of the request the executor attempted;
// attached to every log event for correlation.
type RequestParams struct {
	CorrelationID string
	URL           string
	Method        string
	Headers       http.Header
	Body          []byte
}

// RetryEventContent is the payload of a LogEventHTTPRetry event.
type RetryEventContent struct {
	RequestParams RequestParams
	LastResponse  *http.Response
	RetryAttempt  int
	MaxRetries    int
}

// ResponseEventContent is the payload of a LogEventHTTPResponse event.
type ResponseEventContent struct {
	RequestParams RequestParams
	Response      *http.Response
}

// LogEvent is the single shape passed to a Logger; exactly one of Retry or
// Response is populated, matching Type.
type LogEvent struct {
	Type     LogEventType
	Retry    *RetryEventContent
	Response *ResponseEventContent
}

// Logger receives structured log events. A nil Logger is silent.
type Logger func(LogEvent)

// multiLogger fans one event out to every registered Logger, so WithLogger
// and WithZapLogger compose instead of overwriting each other.
type multiLogger []Logger

func (m multiLogger) emit(ev LogEvent) {
	for _, l := range m {
		if l != nil {
			l(ev)
		}
	}
}

// WithZapLogger adapts a *zap.Logger into the HTTP-Retry/HTTP-Response event
// stream, logging each event with structured fields instead of the raw
// event struct. It supplements, never replaces, a caller-supplied Logger:
// combine it with WithLogger to get both.
func WithZapLogger(z *zap.Logger) ClientOption {
	return WithLogger(func(ev LogEvent) {
		switch ev.Type {
		case LogEventHTTPRetry:
			z.Info("graphql retry",
				zap.String("correlation_id", ev.Retry.RequestParams.CorrelationID),
				zap.Int("attempt", ev.Retry.RetryAttempt),
				zap.Int("max_retries", ev.Retry.MaxRetries),
				zap.Int("status", statusOf(ev.Retry.LastResponse)),
			)
		case LogEventHTTPResponse:
			z.Info("graphql response",
				zap.String("correlation_id", ev.Response.RequestParams.CorrelationID),
				zap.Int("status", statusOf(ev.Response.Response)),
			)
		}
	})
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
