package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// AppError standardizes application errors. Reason carries the short error
// label rendered in the response envelope alongside the status code.
type AppError struct {
	Status  int
	Reason  string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(status int, reason, message string) *AppError {
	return &AppError{Status: status, Reason: reason, Message: message}
}

func NewBadRequest(message string) error {
	return NewAppError(http.StatusBadRequest, "Bad Request", message)
}

func NewNotFound(message string) error {
	return NewAppError(http.StatusNotFound, "Not Found", message)
}

func NewUnauthorized(message string) error {
	return NewAppError(http.StatusUnauthorized, "Unauthorized", message)
}

func NewForbidden(message string) error {
	return NewAppError(http.StatusForbidden, "Forbidden", message)
}

func NewConflict(message string) error {
	return NewAppError(http.StatusConflict, "Conflict", message)
}

func NewInternalError(err error) error {
	return &AppError{
		Status:  http.StatusInternalServerError,
		Reason:  "Internal Server Error",
		Message: "internal server error",
		Err:     err,
	}
}

// ToAppError converts generic errors to AppError.
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if ae, ok := NewNotFound("resource not found").(*AppError); ok {
			return ae
		}
	}
	return &AppError{
		Status:  http.StatusInternalServerError,
		Reason:  "Internal Server Error",
		Message: "internal server error",
		Err:     err,
	}
}

// MapError converts generic errors to AppError.
func MapError(err error) error {
	return ToAppError(err)
}
