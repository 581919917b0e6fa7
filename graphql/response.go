package graphql

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ClientResponse is the classified result of Request.
type ClientResponse struct {
	Data       map[string]interface{}
	Extensions map[string]interface{}
	Errors     *ClientError
}

// ClientStreamResponse is one snapshot yielded by a ResponseStream.
type ClientStreamResponse struct {
	Data       map[string]interface{}
	Extensions map[string]interface{}
	HasNext    bool
	Errors     *ClientError
}

// rawGraphQLPayload is the wire shape of a single JSON or multipart-part
// GraphQL response body.
type rawGraphQLPayload struct {
	Data       map[string]interface{} `json:"data,omitempty"`
	Path       []interface{}          `json:"path,omitempty"`
	Errors     []GraphQLError         `json:"errors,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
	HasNext    *bool                  `json:"hasNext,omitempty"`
}

func isJSONContentType(contentType string) bool {
	return strings.Contains(contentType, "application/json")
}

func isMultipartContentType(contentType string) bool {
	return strings.Contains(contentType, "multipart/mixed")
}

// classifySingleResponse implements the non-streaming branch of §4.2.2:
// not-ok, unexpected content-type, or JSON success/error.
func classifySingleResponse(resp *http.Response) *ClientResponse {
	if !isOK(resp) {
		return &ClientResponse{Errors: &ClientError{
			NetworkStatusCode: resp.StatusCode,
			Message:           formatErrorMessage(http.StatusText(resp.StatusCode)),
			Response:          resp,
		}}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isJSONContentType(contentType) {
		return &ClientResponse{Errors: &ClientError{
			NetworkStatusCode: resp.StatusCode,
			Message:           formatErrorMessage(fmt.Sprintf("Response returned unexpected Content-Type: %s", contentType)),
			Response:          resp,
		}}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ClientResponse{Errors: &ClientError{
			NetworkStatusCode: resp.StatusCode,
			Message:           formatErrorMessage(err.Error()),
			Response:          resp,
		}}
	}

	var payload rawGraphQLPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return &ClientResponse{Errors: &ClientError{
			NetworkStatusCode: resp.StatusCode,
			Message:           formatErrorMessage(err.Error()),
			Response:          resp,
		}}
	}

	out := &ClientResponse{}
	if payload.Data != nil {
		out.Data = payload.Data
	}
	if payload.Extensions != nil {
		out.Extensions = payload.Extensions
	}

	if len(payload.Errors) > 0 || payload.Data == nil {
		message := "An unknown error has occurred. The API did not return a data object or any errors in its response."
		if len(payload.Errors) > 0 {
			message = "An error occurred while fetching from the API. Review 'graphQLErrors' for details."
		}
		out.Errors = &ClientError{
			NetworkStatusCode: resp.StatusCode,
			Message:           formatErrorMessage(message),
			Response:          resp,
		}
		if len(payload.Errors) > 0 {
			out.Errors.GraphQLErrors = payload.Errors
		}
	}
	return out
}

// isOK reports whether resp represents a successful HTTP outcome. We treat
// 2xx as ok, matching the JS fetch `ok` flag this spec is ported from.
func isOK(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
