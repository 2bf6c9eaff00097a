package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxRequestBodyBytes caps the size of decoded request bodies.
const maxRequestBodyBytes = 1 << 20

// decodeRequest decodes the JSON body of r into v.
func decodeRequest(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("error decoding request body: %w", err)
	}
	return nil
}

// respondJSON writes v as a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// errorResponse is the body of every JSON error response. Error is either a
// message string or the provider's error payload.
type errorResponse struct {
	Error json.RawMessage `json:"error"`
}

func newErrorResponse(msg string) errorResponse {
	b, _ := json.Marshal(msg)
	return errorResponse{Error: b}
}
