package outcall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind is the terminal classification of one call outcome.
type Kind int

const (
	KindNone Kind = iota // success
	KindEncoding
	KindDecoding
	KindIdentifierMismatch
	KindApplication
	KindTransport
	KindCanceled
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindEncoding:
		return "encoding_error"
	case KindDecoding:
		return "decoding_error"
	case KindIdentifierMismatch:
		return "identifier_mismatch"
	case KindApplication:
		return "application_error"
	case KindTransport:
		return "transport_error"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// TransportKind refines a TransportError.
type TransportKind int

const (
	TransportUnknown TransportKind = iota
	TransportTimeout
	TransportNetwork
	TransportResponseTooLarge
	TransportStatus // non-success status with an unusable body
)

func (k TransportKind) String() string {
	switch k {
	case TransportTimeout:
		return "timeout"
	case TransportNetwork:
		return "network"
	case TransportResponseTooLarge:
		return "response_too_large"
	case TransportStatus:
		return "status"
	default:
		return "unknown"
	}
}

// TransportError is returned by transports and by layers that enforce deadlines.
type TransportError struct {
	Kind       TransportKind
	StatusCode int // set for TransportStatus
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	msg := "transport " + e.Kind.String()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the error is a deadline expiry (net.Error style).
func (e *TransportError) Timeout() bool { return e.Kind == TransportTimeout }

// Retryable reports whether re-issuing the call may succeed.
// Oversized responses need a larger byte budget, not a blind retry.
func (e *TransportError) Retryable() bool {
	switch e.Kind {
	case TransportTimeout, TransportNetwork:
		return true
	case TransportStatus:
		return e.StatusCode == 429 || e.StatusCode >= 500
	default:
		return false
	}
}

// NewTimeoutError builds a TransportError of kind TransportTimeout.
func NewTimeoutError(msg string, err error) *TransportError {
	return &TransportError{Kind: TransportTimeout, Message: msg, Err: err}
}

// EncodingError means the caller-built request cannot be represented on the wire.
type EncodingError struct {
	Reason string
	Err    error
}

func (e *EncodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("encoding error: %s: %v", e.Reason, e.Err)
	}
	return "encoding error: " + e.Reason
}

func (e *EncodingError) Unwrap() error { return e.Err }

// DecodingError means the response payload is malformed or unverifiable.
type DecodingError struct {
	Reason     string
	StatusCode int    // transport status, 0 if unknown
	Body       string // possibly truncated response body
	Err        error
}

func (e *DecodingError) Error() string {
	msg := "decoding error: " + e.Reason
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DecodingError) Unwrap() error { return e.Err }

// IdentifierMismatchError means a response answered a different request.
type IdentifierMismatchError struct {
	Expected string
	Got      string
}

func (e *IdentifierMismatchError) Error() string {
	return fmt.Sprintf("identifier mismatch: expected %s, got %s", e.Expected, e.Got)
}

// ApplicationError is a JSON-RPC error object returned by the remote service.
// It is propagated verbatim and never retried.
type ApplicationError struct {
	ID      string
	Code    int64
	Message string
	Data    json.RawMessage
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("application error %d: %s", e.Code, e.Message)
}

// KindOf classifies err. The most specific error in the chain wins.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var (
		appErr *ApplicationError
		encErr *EncodingError
		idErr  *IdentifierMismatchError
		decErr *DecodingError
		trErr  *TransportError
	)
	switch {
	case errors.As(err, &appErr):
		return KindApplication
	case errors.As(err, &encErr):
		return KindEncoding
	case errors.As(err, &idErr):
		return KindIdentifierMismatch
	case errors.As(err, &decErr):
		return KindDecoding
	case errors.As(err, &trErr):
		return KindTransport
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTransport
	default:
		return KindUnknown
	}
}

// Label is a low-cardinality label for err, e.g. "transport_error:timeout".
func Label(err error) string {
	k := KindOf(err)
	if k != KindTransport {
		return k.String()
	}
	var trErr *TransportError
	if errors.As(err, &trErr) {
		return k.String() + ":" + trErr.Kind.String()
	}
	return k.String() + ":" + TransportTimeout.String()
}

// IsRetryable reports whether err is a transport-class failure worth another
// attempt. Idempotency is checked by the retry layer, not here.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindDecoding, KindIdentifierMismatch:
		return true
	case KindTransport:
		var trErr *TransportError
		if errors.As(err, &trErr) {
			return trErr.Retryable()
		}
		return true // bare deadline exceeded on one attempt
	default:
		return false
	}
}

// AsTimeout converts a bare context deadline error into a TransportError so that
// expiry always surfaces as a classified outcome. Other errors pass through.
func AsTimeout(err error) error {
	if err == nil {
		return nil
	}
	var trErr *TransportError
	if errors.As(err, &trErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError("deadline exceeded", err)
	}
	return err
}
