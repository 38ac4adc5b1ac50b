package session

import (
	"errors"
	"strings"

	"github.com/sqlingo/sqlingo/internal/backend"
)

var (
	ErrInFlight      = errors.New("operation already in flight")
	ErrNotConnected  = errors.New("connection is not established")
	ErrProfileLocked = errors.New("connection profile is locked once established")
	ErrUnknownField  = errors.New("unknown profile field")
)

type Kind string

const (
	KindValidation      Kind = "validation"
	KindBackendRejected Kind = "backend_rejected"
	KindTransportFault  Kind = "transport_fault"
)

// User-visible messages.
const (
	MsgFieldsRequired   = "All fields are required"
	MsgConnectRejected  = "Connection failed. Please check your credentials."
	MsgConnectTransport = "Error connecting to database. Please ensure the server is running."
	MsgQueryRequired    = "Please enter a query"
	MsgConvertRejected  = "Failed to convert query. Please try again."
	MsgConvertTransport = "Error processing query. Please ensure the server is running."
)

// Error is what submit and convert report. Message is the text for the
// user-visible slot; Err keeps the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Fields  []Field
	Err     error
}

func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		names := make([]string, 0, len(e.Fields))
		for _, field := range e.Fields {
			names = append(names, string(field))
		}
		return string(e.Kind) + ": " + e.Message + " (" + strings.Join(names, ", ") + ")"
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func IsKind(err error, kind Kind) bool {
	var sessionErr *Error
	return errors.As(err, &sessionErr) && sessionErr.Kind == kind
}

// classify maps a backend outcome onto a session error, using the detail
// verbatim when the backend supplied one.
func classify(err error, rejectedFallback, transportFallback string) *Error {
	var rejected *backend.RejectedError
	if errors.As(err, &rejected) {
		message := rejected.Detail
		if message == "" {
			message = rejectedFallback
		}
		return &Error{Kind: KindBackendRejected, Message: message, Err: err}
	}
	return &Error{Kind: KindTransportFault, Message: transportFallback, Err: err}
}
