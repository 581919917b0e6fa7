package graphql

import (
	"bytes"
	"encoding/json"
)

// requestEnvelope is the wire-level request body. Variables is a plain
// map so that an absent map serializes as an absent field rather than
// "variables": null — mirroring the spec's "omitted, not null" rule via
// the omitempty tag plus a nil check in encodeRequestBody.
type requestEnvelope struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// encodeRequestBody serializes operation/variables into the wire request
// body. variables is omitted from the JSON entirely when nil (never
// serialized as null).
func encodeRequestBody(operation string, variables map[string]interface{}) ([]byte, error) {
	env := requestEnvelope{Query: operation}
	if len(variables) > 0 {
		env.Variables = variables
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(env); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
