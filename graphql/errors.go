package graphql

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// ClientLabel prefixes every user-visible error message produced by this
// package, the way veritone-graphql's "graphql:" prefix does for its own
// aggregate errors.
const ClientLabel = "GraphQL Client"

// MinRetries and MaxRetries bound the valid Retries range.
const (
	MinRetries = 0
	MaxRetries = 3
)

// GraphQLError mirrors one entry of a GraphQL response's top-level "errors"
// array.
type GraphQLError struct {
	Message    string                 `json:"message"`
	Path       []interface{}          `json:"path,omitempty"`
	Locations  []GraphQLErrorLocation `json:"locations,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// GraphQLErrorLocation is the line/column of a GraphQL syntax/validation error.
type GraphQLErrorLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// ClientError is the error shape surfaced by Request and RequestStream.
// It is intentionally a plain struct (not wrapped further) so callers can
// type-assert and inspect NetworkStatusCode/GraphQLErrors directly.
type ClientError struct {
	// NetworkStatusCode is the HTTP status code observed, when applicable.
	NetworkStatusCode int
	// Message is the formatted, ClientLabel-prefixed message.
	Message string
	// GraphQLErrors holds the payload's "errors" array, when applicable.
	GraphQLErrors []GraphQLError
	// Response is the raw HTTP response that produced this error, when one exists.
	Response *http.Response
	// cause is the underlying error, if any, returned by Unwrap.
	cause error
}

func (e *ClientError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error, for the standard library's
// errors.Is/errors.As/errors.Unwrap.
func (e *ClientError) Unwrap() error {
	return e.cause
}

func newClientError(msg string, cause error) *ClientError {
	return &ClientError{Message: formatErrorMessage(msg), cause: cause}
}

// formatErrorMessage prepends "<ClientLabel>: " unless msg is already
// prefixed with it.
func formatErrorMessage(msg string) string {
	prefix := ClientLabel + ": "
	if strings.HasPrefix(msg, prefix) {
		return msg
	}
	return prefix + msg
}

// validateRetries requires retries to be in [MinRetries, MaxRetries].
func validateRetries(retries int) error {
	if retries < MinRetries || retries > MaxRetries {
		return errors.New(formatErrorMessage(fmt.Sprintf(
			`The provided "retries" value (%d) is invalid - it cannot be less than %d or greater than %d`,
			retries, MinRetries, MaxRetries,
		)))
	}
	return nil
}

// errNetworkExhausted is the sentinel class of error raised by the retry
// executor once every transport-level attempt has thrown/aborted.
type errNetworkExhausted struct {
	maxRetries int
	lastErr    error
}

func (e *errNetworkExhausted) Error() string {
	// maxRetries=0 means no retry was ever attempted; the source
	// implementation special-cases this to surface the bare underlying
	// message rather than the "Attempted maximum..." wrapper, which
	// reads oddly for a budget of zero.
	if e.maxRetries == 0 {
		return formatErrorMessage(e.lastErr.Error())
	}
	return formatErrorMessage(fmt.Sprintf(
		"Attempted maximum number of %d network retries. Last message - %s",
		e.maxRetries, e.lastErr,
	))
}

func (e *errNetworkExhausted) Unwrap() error {
	return e.lastErr
}
