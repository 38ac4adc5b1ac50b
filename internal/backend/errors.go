package backend

import (
	"errors"
	"fmt"

	"github.com/sqlingo/sqlingo/internal/observability"
)

var ErrMalformedResponse = errors.New("malformed backend response")

// RejectedError is a non-2xx answer. Detail is empty when the body carried
// no string detail.
type RejectedError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *RejectedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s rejected: http %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s rejected: http %d: %s", e.Op, e.StatusCode, e.Detail)
}

// TransportError covers requests that never produced a usable answer:
// unreachable backend, broken connection, timeout or malformed body.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func outcomeOf(err error) string {
	if err == nil {
		return observability.OutcomeSuccess
	}
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return observability.OutcomeRejected
	}
	return observability.OutcomeTransport
}
