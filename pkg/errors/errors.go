package errors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound            = "NOT_FOUND"
	CodeBadRequest          = "BAD_REQUEST"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeInternal            = "INTERNAL_ERROR"
	CodeTooManyRequests     = "TOO_MANY_REQUESTS"
	CodeIdentityUnavailable = "IDENTITY_UNAVAILABLE"
	CodeSessionLookupFailed = "SESSION_LOOKUP_FAILED"
	CodeSessionCreateFailed = "SESSION_CREATE_FAILED"
	CodeSessionNotFound     = "SESSION_NOT_FOUND"
	CodeChannelWriteError   = "CHANNEL_WRITE_ERROR"
	CodeEmptyMessage        = "EMPTY_MESSAGE"
	CodeMessageTooLong      = "MESSAGE_TOO_LONG"
	CodeOrderNotFound       = "ORDER_NOT_FOUND"
	CodeInvalidStatus       = "INVALID_STATUS"
	CodeInvalidTransition   = "INVALID_TRANSITION"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

func Forbidden(message string, err error) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
		Status:  http.StatusForbidden,
		Err:     err,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func TooManyRequests(message string) *AppError {
	return &AppError{
		Code:    CodeTooManyRequests,
		Message: message,
		Status:  http.StatusTooManyRequests,
	}
}

// Chat errors

func SessionLookupFailed(err error) *AppError {
	return New(CodeSessionLookupFailed, "Failed to look up chat session", http.StatusServiceUnavailable, err)
}

func SessionCreateFailed(err error) *AppError {
	return New(CodeSessionCreateFailed, "Failed to create chat session", http.StatusServiceUnavailable, err)
}

func SessionNotFound(sessionID string) *AppError {
	return New(CodeSessionNotFound, fmt.Sprintf("Chat session %s not found", sessionID), http.StatusNotFound, nil)
}

// ChannelWriteError reports a failed send. stored tells the caller whether the
// message record made it in before the session update failed.
func ChannelWriteError(stored bool, err error) *AppError {
	message := "Failed to send message"
	if stored {
		message = "Message stored but chat session could not be updated"
	}
	return New(CodeChannelWriteError, message, http.StatusServiceUnavailable, err)
}

func EmptyMessage() *AppError {
	return New(CodeEmptyMessage, "Message cannot be empty", http.StatusBadRequest, nil)
}

func MessageTooLong(max int) *AppError {
	return New(CodeMessageTooLong, fmt.Sprintf("Message must be at most %d characters", max), http.StatusBadRequest, nil)
}

// Order errors

func OrderNotFound(orderID string, err error) *AppError {
	return New(CodeOrderNotFound, fmt.Sprintf("Order %s not found", orderID), http.StatusNotFound, err)
}

func InvalidStatus(status string) *AppError {
	return New(CodeInvalidStatus, fmt.Sprintf("Invalid order status %q", status), http.StatusBadRequest, nil)
}

func InvalidTransition(from, to string) *AppError {
	return New(CodeInvalidTransition, fmt.Sprintf("Order cannot move from %s to %s", from, to), http.StatusConflict, nil)
}

func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
