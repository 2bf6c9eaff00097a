package signing

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/hashicorp-forge/signbridge/pkg/drive"
	"github.com/hashicorp-forge/signbridge/pkg/signnow"
)

// ErrorKind classifies why a run failed.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindTransport  ErrorKind = "transport"
	KindProvider   ErrorKind = "provider"
	KindLocalIO    ErrorKind = "local_io"
	KindInternal   ErrorKind = "internal"
)

// ErrNoMatchingRole is returned when the document roles cannot be mapped to
// the configured signer role.
var ErrNoMatchingRole = errors.New("no matching signer role")

// StepError is returned by Run when a state fails.
type StepError struct {
	State State
	Kind  ErrorKind
	Err   error

	// History is the states the run moved through, ending in StateFailed.
	History []State
}

func (e *StepError) Error() string {
	return fmt.Sprintf("signing failed while %s (%s): %v", e.State, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Detail returns the richest description of err for callers: the provider
// payload when SignNow returned one, otherwise the error message as a JSON
// string.
func Detail(err error) json.RawMessage {
	if payload, ok := signnow.PayloadOf(err); ok {
		return payload
	}

	msg := err.Error()
	var serr *StepError
	if errors.As(err, &serr) {
		msg = serr.Err.Error()
	}

	b, mErr := json.Marshal(msg)
	if mErr != nil {
		return json.RawMessage(`"internal error"`)
	}
	return b
}

// IsValidation reports whether err rejected the request before any remote
// call was made.
func IsValidation(err error) bool {
	var serr *StepError
	return errors.As(err, &serr) && serr.Kind == KindValidation
}

// classify maps an error from state s onto an ErrorKind.
func classify(s State, err error) ErrorKind {
	var (
		perr *signnow.ProviderError
		ferr *signnow.FileError
		terr *signnow.TransportError
		derr *drive.StatusError
		uerr *url.Error
		nerr net.Error
	)

	switch {
	case s == StateValidating:
		return KindValidation
	case errors.As(err, &perr), errors.Is(err, ErrNoMatchingRole):
		return KindProvider
	case errors.As(err, &ferr):
		return KindLocalIO
	case errors.As(err, &terr), errors.As(err, &derr), errors.As(err, &uerr), errors.As(err, &nerr):
		return KindTransport
	case s == StateDownloading:
		return KindLocalIO
	default:
		return KindInternal
	}
}
