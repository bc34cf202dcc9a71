package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can tell bad data from bad call
// order from a flaky backend.
type ErrorKind string

const (
	KindInputMalformed     ErrorKind = "input_malformed"
	KindDataUnavailable    ErrorKind = "data_unavailable"
	KindNoResults          ErrorKind = "no_results"
	KindSchemaMismatch     ErrorKind = "schema_mismatch"
	KindGenerationTimeout  ErrorKind = "generation_timeout"
	KindGenerationRejected ErrorKind = "generation_rejected"
	KindGenerationFailed   ErrorKind = "generation_failed"
	KindStateOrder         ErrorKind = "state_order_violation"
	KindInvalidArgument    ErrorKind = "invalid_argument"
	KindNotFound           ErrorKind = "not_found"
)

var (
	// ErrInputMalformed marks unparseable input that was replaced by defaults
	ErrInputMalformed = &Error{Kind: KindInputMalformed}

	// ErrDataUnavailable is returned when the data store cannot be reached
	ErrDataUnavailable = &Error{Kind: KindDataUnavailable}

	// ErrNoResults is returned when a fetch matched zero rows
	ErrNoResults = &Error{Kind: KindNoResults}

	// ErrSchemaMismatch is returned when the college view does not have the expected shape
	ErrSchemaMismatch = &Error{Kind: KindSchemaMismatch}

	// ErrGenerationTimeout is returned when a model call ran out of time
	ErrGenerationTimeout = &Error{Kind: KindGenerationTimeout}

	// ErrGenerationRejected is returned when a backend refused to produce output
	ErrGenerationRejected = &Error{Kind: KindGenerationRejected}

	// ErrGenerationFailed is returned for any other backend failure
	ErrGenerationFailed = &Error{Kind: KindGenerationFailed}

	// ErrStateOrder is returned when a stage is invoked out of sequence
	ErrStateOrder = &Error{Kind: KindStateOrder}

	// ErrInvalidArgument is returned for out-of-range caller input
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}

	// ErrNotFound is returned for unknown sessions, content types or sections
	ErrNotFound = &Error{Kind: KindNotFound}
)

// Error is the typed error carried across stage boundaries.
type Error struct {
	Kind      ErrorKind
	Op        string // Operation that failed, e.g. "datafetch.Fetch"
	Msg       string
	Err       error
	Temporary bool // Backend signalled a transient condition (rate limit, 5xx)
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNoResults)
// works for wrapped instances.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Retryable reports whether a caller may reasonably try the same call again.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindGenerationTimeout:
		return true
	case KindGenerationFailed:
		return e.Temporary
	default:
		return false
	}
}

// Errorf builds a typed error with a formatted message.
func Errorf(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to err. A nil err stays nil.
func Wrap(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether err carries a retryable kind.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}
