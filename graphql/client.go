package graphql

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"
)

// DefaultRetryWaitTime is the fixed backoff between retry attempts. It is
// deliberately not exponential and not jittered (see SPEC_FULL.md §9). Each
// Client copies it into its own wait time, which tests override via
// WithRetryWaitTime.
const DefaultRetryWaitTime = 1000 * time.Millisecond

// deferPattern is the textual, non-parsing @defer detector. Matching
// spec.md's instruction: this stays a regex against the raw operation
// string, never a GraphQL parse.
var deferPattern = regexp.MustCompile(`(?i)@\s*defer\b`)

// Doer is the minimal transport contract the client needs; *http.Client
// satisfies it, and so does any RoundTripper-backed stand-in a caller
// wants to substitute in tests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for interacting with a GraphQL-over-HTTP API.
type Client struct {
	url           string
	headers       http.Header
	retries       int
	httpClient    Doer
	loggers       multiLogger
	metrics       Metrics
	tracer        trace.Tracer
	retryWaitTime time.Duration
}

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

// NewClient makes a new Client capable of making GraphQL requests against
// url. retries is the default retry budget, validated against
// [MinRetries, MaxRetries] immediately.
func NewClient(url string, retries int, opts ...ClientOption) (*Client, error) {
	if err := validateRetries(retries); err != nil {
		return nil, err
	}
	c := &Client{
		url:           url,
		headers:       http.Header{},
		retries:       retries,
		httpClient:    http.DefaultClient,
		metrics:       noopMetrics{},
		retryWaitTime: DefaultRetryWaitTime,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient specifies the underlying transport to use when making
// requests.
func WithHTTPClient(httpClient Doer) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithHeaders sets default headers sent with every request. Per-call
// headers passed to Request/RequestStream/Fetch are merged over these,
// with the per-call value winning on key collision.
func WithHeaders(headers http.Header) ClientOption {
	return func(c *Client) { c.headers = headers.Clone() }
}

// WithLogger registers a Logger; multiple calls compose (every registered
// Logger receives every event), rather than the last call winning.
func WithLogger(l Logger) ClientOption {
	return func(c *Client) { c.loggers = append(c.loggers, l) }
}

// WithMetrics wires an operational Metrics sink.
func WithMetrics(m Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// WithTracer overrides the OpenTelemetry tracer used for spans. Absent a
// call to this option, the client resolves otel.Tracer(tracerName) lazily
// per call, which is a safe no-op when no SDK is configured.
func WithTracer(t trace.Tracer) ClientOption {
	return func(c *Client) { c.tracer = t }
}

// WithRetryWaitTime overrides the fixed backoff between retry attempts.
// Production callers should never need this; it exists so tests can shrink
// DefaultRetryWaitTime the way the spec's source suite does.
func WithRetryWaitTime(d time.Duration) ClientOption {
	return func(c *Client) { c.retryWaitTime = d }
}

// RequestOptions carries the per-call overrides accepted by Fetch, Request,
// and RequestStream.
type RequestOptions struct {
	Variables map[string]interface{}
	URL       string
	Headers   http.Header
	// Retries, when non-nil, overrides the client's default retry budget
	// for this one call.
	Retries *int
}

func (o *RequestOptions) urlOrDefault(def string) string {
	if o == nil || o.URL == "" {
		return def
	}
	return o.URL
}

func (o *RequestOptions) variables() map[string]interface{} {
	if o == nil {
		return nil
	}
	return o.Variables
}

func (c *Client) mergedHeaders(o *RequestOptions) http.Header {
	merged := c.headers.Clone()
	if merged == nil {
		merged = http.Header{}
	}
	if o == nil || o.Headers == nil {
		return merged
	}
	for k, v := range o.Headers {
		merged[http.CanonicalHeaderKey(k)] = v
	}
	return merged
}

func (c *Client) resolveRetries(o *RequestOptions) (int, error) {
	retries := c.retries
	if o != nil && o.Retries != nil {
		retries = *o.Retries
	}
	if err := validateRetries(retries); err != nil {
		return 0, err
	}
	return retries, nil
}

// Fetch builds the request envelope and returns the raw HTTP response with
// no parsing or classification beyond what the retry executor itself does.
// Invalid Retries is returned synchronously without issuing any request.
func (c *Client) Fetch(ctx context.Context, operation string, opts *RequestOptions) (*http.Response, error) {
	retries, err := c.resolveRetries(opts)
	if err != nil {
		return nil, err
	}
	params, err := c.buildRequestParams(operation, opts)
	if err != nil {
		return nil, err
	}
	ctx, span := c.startRequestSpan(ctx, "fetch", params.CorrelationID)
	defer span.End()
	return c.execute(ctx, params, 0, retries)
}

var errStreamableOperation = errors.New(formatErrorMessage(
	"This operation will result in a streamable response — use the streaming entry point instead.",
))

var errNonStreamableOperation = errors.New(formatErrorMessage(
	"operation does not result in a streamable response",
))

// Request runs operation and returns a fully classified single response.
// It synchronously rejects @defer-bearing operations: no request is made.
func (c *Client) Request(ctx context.Context, operation string, opts *RequestOptions) (*ClientResponse, error) {
	if deferPattern.MatchString(operation) {
		return nil, errStreamableOperation
	}
	retries, err := c.resolveRetries(opts)
	if err != nil {
		return nil, err
	}
	params, err := c.buildRequestParams(operation, opts)
	if err != nil {
		return nil, err
	}
	ctx, span := c.startRequestSpan(ctx, "request", params.CorrelationID)
	defer span.End()

	start := time.Now()
	resp, execErr := c.execute(ctx, params, 0, retries)
	if execErr != nil {
		c.metrics.RecordRequest(OutcomeRetriableError, time.Since(start))
		return &ClientResponse{Errors: newClientError(execErr.Error(), execErr)}, nil
	}
	defer resp.Body.Close()

	out := classifySingleResponse(resp)
	if out.Errors != nil {
		c.metrics.RecordRequest(OutcomeTerminalError, time.Since(start))
	} else {
		c.metrics.RecordRequest(OutcomeSuccess, time.Since(start))
	}
	return out, nil
}

// RequestStream runs a @defer-bearing operation and returns a
// ResponseStream of successive snapshots. It synchronously rejects
// operations that do not contain @defer.
func (c *Client) RequestStream(ctx context.Context, operation string, opts *RequestOptions) (*ResponseStream, error) {
	if !deferPattern.MatchString(operation) {
		return nil, errNonStreamableOperation
	}
	retries, err := c.resolveRetries(opts)
	if err != nil {
		return nil, err
	}
	params, err := c.buildRequestParams(operation, opts)
	if err != nil {
		return nil, err
	}
	ctx, span := c.startRequestSpan(ctx, "request_stream", params.CorrelationID)

	resp, execErr := c.execute(ctx, params, 0, retries)
	if execErr != nil {
		span.End()
		return newSingleSnapshotStream(ClientStreamResponse{
			Errors:  newClientError(execErr.Error(), execErr),
			HasNext: false,
		}), nil
	}
	return c.newStreamFromResponse(ctx, span, resp), nil
}

func (c *Client) buildRequestParams(operation string, opts *RequestOptions) (*RequestParams, error) {
	body, err := encodeRequestBody(operation, opts.variables())
	if err != nil {
		return nil, errors.Wrap(err, formatErrorMessage("failed to encode request body"))
	}
	headers := c.mergedHeaders(opts)
	// List values go out as a single comma-joined header line.
	for k, v := range headers {
		if len(v) > 1 {
			headers[k] = []string{strings.Join(v, ", ")}
		}
	}
	if headers.Get("Content-Type") == "" {
		headers.Set("Content-Type", "application/json")
	}
	if headers.Get("Accept") == "" {
		headers.Set("Accept", "application/json")
	}
	return &RequestParams{
		CorrelationID: uuid.NewString(),
		URL:           opts.urlOrDefault(c.url),
		Method:        http.MethodPost,
		Headers:       headers,
		Body:          body,
	}, nil
}
