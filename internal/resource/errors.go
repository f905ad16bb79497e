package resource

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrConflict       = errors.New("unique constraint violated")
	ErrNoRowsAffected = errors.New("no rows affected")
)

// Error is a request outcome that the caller reports to the client as is.
type Error struct {
	Status  int
	Code    string
	Message string
	Missing []string
}

func (e *Error) Error() string {
	return e.Message
}

func invalid(code, message string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: code, Message: message}
}

func missing(fields []string) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    "missing_fields",
		Message: "Missing required fields: " + strings.Join(fields, ", "),
		Missing: fields,
	}
}

func notFound(singular string) *Error {
	return &Error{Status: http.StatusNotFound, Code: "not_found", Message: singular + " not found"}
}

func conflict(message string) *Error {
	return &Error{Status: http.StatusConflict, Code: "conflict", Message: message}
}

func failed(message string) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: "server_error", Message: message}
}
