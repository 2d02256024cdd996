package websocket

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies a failed event for the sender.
type ErrorKind string

const (
	// The event was malformed or not allowed; only that event is rejected.
	KindProtocolViolation ErrorKind = "PROTOCOL_VIOLATION"
	// The store rejected the write; nothing was broadcast.
	KindPersistenceFailure ErrorKind = "PERSISTENCE_FAILURE"
)

var (
	ErrTargetUnavailable = errors.New("target connection unavailable")
	ErrSendBufferFull    = errors.New("send buffer full")
	ErrRebindConflict    = errors.New("connection already bound to another user")
	ErrInvalidUser       = errors.New("invalid user id")
	ErrUnknownEvent      = errors.New("unknown event")
	ErrSenderMismatch    = errors.New("sender does not match the bound user")
	ErrReservedRoom      = errors.New("room cannot be joined directly")
)

// RelayError is returned by Relay.Dispatch for failures the sender should
// hear about. Delivery failures towards other connections never surface here.
type RelayError struct {
	Kind  ErrorKind
	Event EventType
	Err   error
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("%s on %s: %v", e.Kind, e.Event, e.Err)
}

func (e *RelayError) Unwrap() error {
	return e.Err
}

// Cause lets errors.Cause see through to the underlying error.
func (e *RelayError) Cause() error {
	return e.Err
}

func protocolViolation(event EventType, err error) error {
	return &RelayError{Kind: KindProtocolViolation, Event: event, Err: err}
}

func protocolViolationf(event EventType, format string, args ...interface{}) error {
	return protocolViolation(event, errors.Errorf(format, args...))
}

func persistenceFailure(event EventType, err error) error {
	return &RelayError{Kind: KindPersistenceFailure, Event: event, Err: errors.Wrap(err, "store write failed")}
}

// IsProtocolViolation reports whether err rejected a single malformed event.
func IsProtocolViolation(err error) bool {
	var re *RelayError
	return errors.As(err, &re) && re.Kind == KindProtocolViolation
}

// IsPersistenceFailure reports whether err aborted a send_message.
func IsPersistenceFailure(err error) bool {
	var re *RelayError
	return errors.As(err, &re) && re.Kind == KindPersistenceFailure
}

// errorData converts a dispatch error into the payload sent back to the
// client. Store details are not echoed.
func errorData(err error) ErrorData {
	var re *RelayError
	if !errors.As(err, &re) {
		return ErrorData{Code: "INTERNAL_ERROR", Message: "internal error"}
	}
	data := ErrorData{Code: string(re.Kind), Event: re.Event}
	switch re.Kind {
	case KindPersistenceFailure:
		data.Message = "message could not be saved"
	default:
		data.Message = re.Err.Error()
	}
	return data
}
