package exchange

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the uniform classification every adapter maps venue and
// transport failures into. Upstream code branches on the kind and never on
// venue-specific payloads.
type ErrorKind string

const (
	// KindNetwork: no response was received at all.
	KindNetwork ErrorKind = "network_error"
	// KindUnauthorized: the venue rejected our authentication.
	KindUnauthorized ErrorKind = "unauthorized"
	// KindUnavailable: the venue explicitly signalled transient unavailability.
	KindUnavailable ErrorKind = "temporarily_unavailable"
	// KindAPIFailure: any other non-2xx response or venue business error.
	KindAPIFailure ErrorKind = "api_failure"
)

// Error is the classified failure an adapter returns. It wraps the
// underlying cause for logging while exposing exactly one Kind.
type Error struct {
	Venue string
	Kind  ErrorKind
	Op    string // adapter operation, e.g. "place_order"
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Venue, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Venue, e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified adapter error.
func NewError(venue string, kind ErrorKind, op string, err error) *Error {
	return &Error{Venue: venue, Kind: kind, Op: op, Err: err}
}

// KindOf extracts the classification from err. Unclassifiable errors report
// "unknown"; the orchestrator records that verbatim as the ledger error code.
func KindOf(err error) string {
	var ee *Error
	if errors.As(err, &ee) {
		return string(ee.Kind)
	}
	return "unknown"
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind ErrorKind) bool {
	var ee *Error
	return errors.As(err, &ee) && ee.Kind == kind
}

// ClassifyStatus maps an HTTP status code to an error kind. Venue adapters
// use it for responses whose body carries no more specific signal.
func ClassifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	case status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout:
		return KindUnavailable
	default:
		return KindAPIFailure
	}
}
