package domain

// Error is a sentinel domain error with a stable code for logs.
type Error struct {
	code string
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Code returns the machine readable error code, e.g. "NOT_FOUND".
func (e *Error) Code() string { return e.code }

var (
	// ErrNotFound is returned when a record (order, request, service) does not exist.
	ErrNotFound = &Error{"NOT_FOUND", "not found"}

	// ErrUnauthorized is returned when a non-admin invokes a privileged operation.
	ErrUnauthorized = &Error{"UNAUTHORIZED", "unauthorized"}

	// ErrInvalidTransition is returned for an order status change that is not allowed.
	ErrInvalidTransition = &Error{"INVALID_TRANSITION", "invalid status transition"}

	// ErrAlreadyDecided is returned when an unban request was approved or rejected before.
	ErrAlreadyDecided = &Error{"ALREADY_DECIDED", "request already decided"}

	// ErrAlreadyPending is returned when an identity files a second open unban request.
	ErrAlreadyPending = &Error{"ALREADY_PENDING", "request already pending"}

	// ErrNoPendingChallenge is returned when an answer arrives with nothing to verify.
	ErrNoPendingChallenge = &Error{"NO_PENDING_CHALLENGE", "no pending challenge"}
)
