package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDecode     = errors.New("decode error")
	ErrValidation = errors.New("validation error")
	ErrTransport  = errors.New("transport error")
	ErrStoreWrite = errors.New("store write error")
)

// DecodeError means the payload does not parse against the expected schema.
type DecodeError struct {
	Schema string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Schema, e.Err)
}

func (e *DecodeError) Unwrap() error        { return e.Err }
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// ValidationError means the payload parsed but is semantically invalid.
type ValidationError struct {
	Field  string
	Reason string
	Index  int
}

func (e *ValidationError) Error() string {
	if e.Field == "items" {
		return fmt.Sprintf("invalid %s[%d]: %s", e.Field, e.Index, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type TransportErrorKind string

const (
	TransportConnectionRefused TransportErrorKind = "connection_refused"
	TransportTimeout           TransportErrorKind = "timeout"
	TransportRejected          TransportErrorKind = "rejected"
	TransportUnavailable       TransportErrorKind = "unavailable"
)

// TransportError is a failure talking to a remote channel. Every kind is retryable.
type TransportError struct {
	Kind TransportErrorKind
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error        { return e.Err }
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// StoreWriteError means an append to the durable store failed. It is fatal for the collector.
type StoreWriteError struct {
	Path string
	Err  error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("append to %s: %v", e.Path, e.Err)
}

func (e *StoreWriteError) Unwrap() error        { return e.Err }
func (e *StoreWriteError) Is(target error) bool { return target == ErrStoreWrite }
