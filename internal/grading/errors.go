package grading

import (
	"errors"
	"fmt"

	"github.com/noah-isme/exam-grader-api/pkg/ai"
)

// ErrAttemptInFlight is returned when a submission is made while another
// attempt for the same session is still running.
var ErrAttemptInFlight = errors.New("grading attempt already in progress")

// ErrInvalidTransition is returned for events that are not legal in the
// current state.
var ErrInvalidTransition = errors.New("invalid grading transition")

// ErrAttemptDiscarded is returned to the caller of Submit when the session
// was abandoned before the attempt finished.
var ErrAttemptDiscarded = errors.New("grading attempt discarded")

// EncodingError reports a file that could not be read or encoded.
type EncodingError struct {
	Name string
	Err  error
}

func (e *EncodingError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("encode file: %v", e.Err)
	}
	return fmt.Sprintf("encode %s: %v", e.Name, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// PreconditionError reports an input that must be present before a request
// can be sent.
type PreconditionError struct {
	Missing string
}

func (e *PreconditionError) Error() string {
	return "grading precondition failed: " + e.Missing + " is missing"
}

// MalformedResultError reports model output that is not a valid result.
type MalformedResultError struct {
	Reason string
	Err    error
}

func (e *MalformedResultError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed grading result: %s: %v", e.Reason, e.Err)
	}
	return "malformed grading result: " + e.Reason
}

func (e *MalformedResultError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a failure to store an accepted result.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store grading result: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// User-facing copy per failure kind.
const (
	MessageEncoding     = "We couldn't read that file. Please choose the image again."
	MessagePrecondition = "Please upload both student paper and ensure a model answer PDF is set."
	MessageTransport    = "We couldn't reach the grading service. Check your connection and try again."
	MessageEmpty        = "The grader didn't return a result. Please try again."
	MessageMalformed    = "The grader returned an unreadable result; try again."
	MessageInFlight     = "A grading attempt is already in progress."
	MessagePersistence  = "The result could not be saved. Please try again."
	MessageDiscarded    = "The grading attempt was cancelled."
	MessageUnexpected   = "Grading failed. Please try again."
)

// UserMessage maps an attempt failure to the copy shown to faculty.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		encoding     *EncodingError
		precondition *PreconditionError
		malformed    *MalformedResultError
		persistence  *PersistenceError
		transport    *ai.TransportError
		empty        *ai.EmptyResponseError
	)

	switch {
	case errors.As(err, &encoding):
		return MessageEncoding
	case errors.As(err, &precondition):
		return MessagePrecondition
	case errors.As(err, &malformed):
		return MessageMalformed
	case errors.As(err, &persistence):
		return MessagePersistence
	case errors.As(err, &empty):
		return MessageEmpty
	case errors.As(err, &transport):
		return MessageTransport
	case errors.Is(err, ErrAttemptInFlight):
		return MessageInFlight
	case errors.Is(err, ErrAttemptDiscarded):
		return MessageDiscarded
	default:
		return MessageUnexpected
	}
}
