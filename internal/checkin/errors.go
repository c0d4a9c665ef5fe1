package checkin

import (
	"errors"
	"fmt"
)

// Code is the machine readable reason a scan was rejected.
type Code string

const (
	CodeInvalidRequest Code = "INVALID_REQUEST"
	CodeTicketNotFound Code = "TICKET_NOT_FOUND"
	CodeNotPaid        Code = "NOT_PAID"
	CodeAlreadyIn      Code = "ALREADY_IN"
	CodeNotIn          Code = "NOT_IN"
)

// Error is a rejected scan. None of them should be retried automatically.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func reject(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

var (
	errTicketNotFound = reject(CodeTicketNotFound, "Ingresso não encontrado para este QR.")
	errNotPaid        = reject(CodeNotPaid, "Ingresso não está pago.")
	errAlreadyIn      = reject(CodeAlreadyIn, "Este ingresso já está dentro.")
	errNotIn          = reject(CodeNotIn, "Este ingresso não está dentro para fazer check-out.")
)

// CodeOf extracts the rejection code from err.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
