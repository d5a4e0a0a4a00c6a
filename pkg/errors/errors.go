package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes for the dialogue pipeline taxonomy. Every failure that can
// surface from the engine maps onto one of these.
const (
	CodeMalformedInput   = "MALFORMED_INPUT"
	CodeDuplicateMessage = "DUPLICATE_MESSAGE"
	CodeSessionExpired   = "SESSION_EXPIRED"
	CodeSessionNotFound  = "SESSION_NOT_FOUND"
	CodeAuthRequired     = "AUTH_REQUIRED"
	CodeHandlerFailure   = "HANDLER_FAILURE"
	CodeDeliveryFailure  = "DELIVERY_FAILURE"
	CodeServerError      = "SERVER_ERROR"
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// NewError creates a new application error
func NewError(statusCode int, code string, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}

// NewMalformedInputError marks a request whose required fields could not be
// extracted by a channel adapter. The request is rejected before any session
// is touched.
func NewMalformedInputError(message string) *AppError {
	return NewError(http.StatusBadRequest, CodeMalformedInput, message)
}

// NewDuplicateMessageError marks a message that was already admitted.
func NewDuplicateMessageError(messageID string) *AppError {
	return NewError(http.StatusOK, CodeDuplicateMessage, "message already processed").
		WithDetails(map[string]string{"message_id": messageID})
}

// NewHandlerFailureError wraps an unexpected error from a state handler.
func NewHandlerFailureError(state string, err error) *AppError {
	return NewError(http.StatusInternalServerError, CodeHandlerFailure,
		fmt.Sprintf("handler for state %s failed: %v", state, err))
}

// NewDeliveryFailureError marks a failed outbound provider call.
func NewDeliveryFailureError(err error) *AppError {
	return NewError(http.StatusBadGateway, CodeDeliveryFailure, err.Error())
}

// NewUnauthorizedError creates a 401 Unauthorized error
func NewUnauthorizedError(code string, message string) *AppError {
	return NewError(http.StatusUnauthorized, code, message)
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(code string, message string) *AppError {
	return NewError(http.StatusNotFound, code, message)
}

// NewInternalServerError creates a 500 Internal Server Error
func NewInternalServerError(code string, message string) *AppError {
	return NewError(http.StatusInternalServerError, code, message)
}

// FromError converts any error into an AppError, preserving it when it
// already is one.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalServerError(CodeServerError, err.Error())
}

// Is checks if the target error is of type AppError with the same code
func Is(err error, target *AppError) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == target.Code
}
