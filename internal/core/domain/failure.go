package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type FailureKind int

const (
	// FailureServer covers unexpected failures; it is the zero value so an
	// unclassified failure is treated as opaque.
	FailureServer FailureKind = iota
	FailureTransport
	FailureUnauthorized
	FailureValidation
	FailureNotFound
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransport:
		return "transport"
	case FailureUnauthorized:
		return "unauthorized"
	case FailureValidation:
		return "validation"
	case FailureNotFound:
		return "not_found"
	default:
		return "server"
	}
}

const (
	transportMessage    = "could not reach the service, please try again"
	unauthorizedMessage = "must sign in"
	serverMessage       = "something went wrong"
)

// Failure is a classified remote or local failure. Status is the HTTP status
// when a response was obtained, zero otherwise.
type Failure struct {
	Kind    FailureKind
	Status  int
	Message string
	Err     error
}

func (f *Failure) Error() string {
	msg := f.Message
	if msg == "" {
		msg = DisplayMessage(f)
	}
	if f.Status != 0 {
		return fmt.Sprintf("%s failure (status %d): %s", f.Kind, f.Status, msg)
	}
	return fmt.Sprintf("%s failure: %s", f.Kind, msg)
}

func (f *Failure) Unwrap() error { return f.Err }

func NewValidationFailure(message string) *Failure {
	return &Failure{Kind: FailureValidation, Message: message}
}

func NewUnauthorizedFailure(message string) *Failure {
	return &Failure{Kind: FailureUnauthorized, Message: message}
}

func NewTransportFailure(err error) *Failure {
	return &Failure{Kind: FailureTransport, Err: err}
}

// AsFailure classifies err. Context and network errors are transport
// failures, anything unrecognised is an opaque server failure.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.As(err, &netErr) {
		return &Failure{Kind: FailureTransport, Err: err}
	}
	return &Failure{Kind: FailureServer, Err: err}
}

func IsKind(err error, kind FailureKind) bool {
	f := AsFailure(err)
	return f != nil && f.Kind == kind
}

// DisplayMessage turns any error into the text shown next to the control that
// triggered it.
func DisplayMessage(err error) string {
	f := AsFailure(err)
	if f == nil {
		return ""
	}
	switch f.Kind {
	case FailureTransport:
		return transportMessage
	case FailureUnauthorized:
		return unauthorizedMessage
	case FailureValidation, FailureNotFound:
		if f.Message != "" {
			return f.Message
		}
		if f.Kind == FailureNotFound {
			return "not found"
		}
		return "request was rejected"
	default:
		if f.Message != "" {
			return serverMessage + ": " + f.Message
		}
		return serverMessage
	}
}
