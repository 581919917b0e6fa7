package graphql

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// accumulator is the incremental-delivery merge state for one stream. It is
// owned by exactly one stream's producer goroutine and never shared, per
// SPEC_FULL.md §9 ("accumulator as owned value").
type accumulator struct {
	combinedData map[string]interface{}
	extensions   map[string]interface{}
	hasNext      bool
	errors       []GraphQLError
}

func newAccumulator() *accumulator {
	return &accumulator{combinedData: map[string]interface{}{}}
}

// processBatch folds one batch of raw JSON part bodies (as produced by the
// multipart framer) into the accumulator and returns the snapshot to yield,
// or an error that should terminate the stream.
func (a *accumulator) processBatch(rawParts []string) (ClientStreamResponse, error) {
	payloads := make([]rawGraphQLPayload, 0, len(rawParts))
	for _, raw := range rawParts {
		var payload rawGraphQLPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return ClientStreamResponse{}, errors.Wrap(err, "Error in parsing multipart response")
		}
		payloads = append(payloads, payload)
	}

	var batchErrors []GraphQLError
	for i, payload := range payloads {
		effective := effectiveData(payload)
		a.combinedData = deepMergeObject(a.combinedData, effective)

		if len(payload.Extensions) > 0 {
			a.extensions = payload.Extensions
		}
		if len(payload.Errors) > 0 {
			batchErrors = append(batchErrors, payload.Errors...)
		}
		if payload.HasNext != nil {
			a.hasNext = *payload.HasNext
		} else if i == len(payloads)-1 {
			a.hasNext = false
		}
	}

	if len(batchErrors) > 0 {
		a.errors = append(a.errors, batchErrors...)
		return ClientStreamResponse{}, &graphQLBatchError{graphQLErrors: batchErrors}
	}

	if len(a.combinedData) == 0 && len(a.errors) == 0 {
		return ClientStreamResponse{}, errors.New("no data or errors")
	}

	return a.snapshot(), nil
}

// snapshot returns the current view of the accumulator. The caller must
// treat this as already-consumed before the next batch is processed: the
// underlying map keeps growing in place, matching the source's mutate-and-
// hand-back accumulator model.
func (a *accumulator) snapshot() ClientStreamResponse {
	resp := ClientStreamResponse{HasNext: a.hasNext}
	if len(a.combinedData) > 0 {
		resp.Data = a.combinedData
	}
	if a.extensions != nil {
		resp.Extensions = a.extensions
	}
	return resp
}

// graphQLBatchError carries the GraphQL "errors" array collected from one
// batch, so the stream can surface it with the accumulator's current
// partial data alongside it.
type graphQLBatchError struct {
	graphQLErrors []GraphQLError
}

func (e *graphQLBatchError) Error() string {
	return "An error occurred while fetching from the API. Review 'graphQLErrors' for details."
}

// effectiveData computes the data a single payload contributes to the
// merge: a path-lifted nested structure when both data and path are
// present, the raw data otherwise, or an empty object when data is absent.
func effectiveData(payload rawGraphQLPayload) map[string]interface{} {
	if payload.Data != nil && len(payload.Path) > 0 {
		lifted := liftByPath(payload.Path, toInterfaceMap(payload.Data))
		if m, ok := lifted.(map[string]interface{}); ok {
			return m
		}
		return map[string]interface{}{}
	}
	if payload.Data != nil {
		return payload.Data
	}
	return map[string]interface{}{}
}

func toInterfaceMap(m map[string]interface{}) interface{} {
	return m
}

// liftByPath builds a nested object/array so that data ends up living at
// path. path segments are either strings (object keys) or numbers (array
// indices, decoded as float64 by encoding/json).
func liftByPath(path []interface{}, data interface{}) interface{} {
	if len(path) == 0 {
		return data
	}
	child := liftByPath(path[1:], data)
	switch key := path[0].(type) {
	case string:
		return map[string]interface{}{key: child}
	case float64:
		idx := int(key)
		arr := make([]interface{}, idx+1)
		arr[idx] = child
		return arr
	case int:
		arr := make([]interface{}, key+1)
		arr[key] = child
		return arr
	default:
		return data
	}
}

// deepMergeObject merges src into dst key-by-key, recursing into nested
// objects and arrays so that e.g. a later chunk's [0].name enriches the
// existing [0] object rather than replacing it. Scalars are overwritten.
func deepMergeObject(dst, src map[string]interface{}) map[string]interface{} {
	if dst == nil {
		dst = map[string]interface{}{}
	}
	for k, v := range src {
		if existing, ok := dst[k]; ok {
			dst[k] = deepMergeValue(existing, v)
		} else {
			dst[k] = v
		}
	}
	return dst
}

func deepMergeValue(dst, src interface{}) interface{} {
	switch s := src.(type) {
	case map[string]interface{}:
		d, _ := dst.(map[string]interface{})
		return deepMergeObject(d, s)
	case []interface{}:
		d, _ := dst.([]interface{})
		return deepMergeArray(d, s)
	default:
		return src
	}
}

func deepMergeArray(dst, src []interface{}) []interface{} {
	size := len(dst)
	if len(src) > size {
		size = len(src)
	}
	result := make([]interface{}, size)
	copy(result, dst)
	for i, v := range src {
		if v == nil {
			// A nil slot is liftByPath's array padding, not an
			// explicit null from the server: it contributes
			// nothing, so the existing value (if any) survives.
			continue
		}
		if result[i] != nil {
			result[i] = deepMergeValue(result[i], v)
		} else {
			result[i] = v
		}
	}
	return result
}
