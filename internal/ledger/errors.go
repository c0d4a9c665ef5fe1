package ledger

import "errors"

var (
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrInvalidTicket    = errors.New("invalid ticket input")
	ErrEventNotFound    = errors.New("event not found")
	ErrAttendeeNotFound = errors.New("attendee not found")

	// ErrConflictUnresolved is returned when an insert lost a uniqueness race
	// but the winning row could not be read back.
	ErrConflictUnresolved = errors.New("uniqueness conflict could not be resolved")

	// ErrConflictRetriesExhausted is returned by RetryOnConflict once every
	// attempt hit a uniqueness violation.
	ErrConflictRetriesExhausted = errors.New("uniqueness conflict retries exhausted")

	// ErrStaleMovement means another movement was appended after the one the
	// caller based its decision on.
	ErrStaleMovement = errors.New("check-in state changed concurrently")
)
