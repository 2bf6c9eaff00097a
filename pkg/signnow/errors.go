package signnow

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ProviderError is a non-success response from the SignNow API, or a success
// response that lacks a value the operation needs.
type ProviderError struct {
	Op string // Operation that failed (e.g., "authenticate", "upload")

	// StatusCode is zero when the response was successful but unusable.
	StatusCode int

	// Payload is the response body. Bodies that are not JSON are stored as a
	// JSON string so Payload is always valid JSON when non-empty.
	Payload json.RawMessage

	// Reason describes what was wrong with a successful response.
	Reason string
}

func (e *ProviderError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("signnow %s failed: %s", e.Op, e.Reason)
	}
	if len(e.Payload) == 0 {
		return fmt.Sprintf("signnow %s failed with status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("signnow %s failed with status %d: %s", e.Op, e.StatusCode, string(e.Payload))
}

// TransportError wraps a failure to reach the SignNow API.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("signnow %s request failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// FileError is a failure to open or read the local file being uploaded.
type FileError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("error %s upload file %q: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// fileReader tags read errors from the upload file as *FileError so they
// survive being passed through the HTTP transport.
type fileReader struct {
	r    io.Reader
	path string
}

func (f *fileReader) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if err != nil && err != io.EOF {
		err = &FileError{Op: "reading", Path: f.path, Err: err}
	}
	return n, err
}

// PayloadOf returns the provider payload carried by err, if any.
func PayloadOf(err error) (json.RawMessage, bool) {
	var perr *ProviderError
	if errors.As(err, &perr) && len(perr.Payload) > 0 {
		return perr.Payload, true
	}
	return nil, false
}

func newProviderError(op string, status int, body []byte) *ProviderError {
	return &ProviderError{
		Op:         op,
		StatusCode: status,
		Payload:    rawPayload(body),
	}
}

// rawPayload returns body as-is when it is valid JSON, otherwise the body
// encoded as a JSON string.
func rawPayload(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, err := json.Marshal(string(body))
	if err != nil {
		return nil
	}
	return quoted
}
