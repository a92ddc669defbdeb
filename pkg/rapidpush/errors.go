package rapidpush

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrResponse is matched by every *ResponseError.
	ErrResponse = errors.New("rapidpush: service reported failure")
	// ErrTransport is matched by every *TransportError.
	ErrTransport = errors.New("rapidpush: transport failure")
	// ErrMalformedResponse is matched by every *MalformedResponseError.
	ErrMalformedResponse = errors.New("rapidpush: malformed response")
	// ErrInvalidPriority is matched by every *InvalidPriorityError.
	ErrInvalidPriority = errors.New("rapidpush: invalid priority")
	// ErrScheduleInPast is matched by every *ScheduleInPastError.
	ErrScheduleInPast = errors.New("rapidpush: schedule date must be in the future")
)

// ResponseError is a non-200 code reported by the service itself.
// APIKey is set when the failure belongs to one entry of a multi-key response.
type ResponseError struct {
	APIKey  string
	Code    int
	Message string
}

func (e *ResponseError) Error() string {
	if e.APIKey != "" {
		return fmt.Sprintf("rapidpush: api key %s: %s (%d)", e.APIKey, e.Message, e.Code)
	}
	return fmt.Sprintf("rapidpush: %s (%d)", e.Message, e.Code)
}

func (e *ResponseError) Is(target error) bool { return target == ErrResponse }

// TransportError is a network or protocol failure. The request never produced
// a body worth parsing.
type TransportError struct {
	Command string
	// StatusCode is the HTTP status when the server answered, zero otherwise.
	StatusCode int
	// RequestID matches the request_id of the transport's log lines, when known.
	RequestID string
	Cause     error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("rapidpush: %s: unexpected http status %d", e.Command, e.StatusCode)
	}
	return fmt.Sprintf("rapidpush: %s: %v", e.Command, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// MalformedResponseError means the body was not a decodable envelope.
type MalformedResponseError struct {
	Cause error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("rapidpush: malformed response: %v", e.Cause)
}

func (e *MalformedResponseError) Unwrap() error { return e.Cause }

func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }

// InvalidPriorityError rejects a priority outside 1..6 before anything is sent.
type InvalidPriorityError struct {
	Priority int
}

func (e *InvalidPriorityError) Error() string {
	return fmt.Sprintf("rapidpush: priority must be between %d and %d, got %d", MinPriority, MaxPriority, e.Priority)
}

func (e *InvalidPriorityError) Is(target error) bool { return target == ErrInvalidPriority }

// ScheduleInPastError rejects a schedule instant that does not fall in a later
// minute than now.
type ScheduleInPastError struct {
	At  time.Time
	Now time.Time
}

func (e *ScheduleInPastError) Error() string {
	return fmt.Sprintf("rapidpush: schedule date %s must be after %s",
		e.At.Format(minuteLayout), e.Now.Format(minuteLayout))
}

func (e *ScheduleInPastError) Is(target error) bool { return target == ErrScheduleInPast }
