package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"wa-blaster/internal/model"

	"github.com/labstack/echo/v4"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func SuccessResponse(c echo.Context, code int, message string, data interface{}) error {
	return c.JSON(code, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func ErrorResponse(c echo.Context, code int, message, errCode, details string) error {
	return c.JSON(code, APIResponse{
		Success: false,
		Message: message,
		Error: &APIError{
			Code:    errCode,
			Details: details,
		},
	})
}

// ServiceError maps a domain error onto a status code and error code.
func ServiceError(c echo.Context, message string, err error) error {
	code, errCode := http.StatusInternalServerError, "INTERNAL_ERROR"

	switch {
	case errors.Is(err, model.ErrNoNumbers):
		code, errCode = http.StatusBadRequest, "NO_NUMBERS"
	case errors.Is(err, model.ErrNothingToSend):
		code, errCode = http.StatusBadRequest, "NOTHING_TO_SEND"
	case errors.Is(err, model.ErrValidation):
		code, errCode = http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, model.ErrNoSessions):
		code, errCode = http.StatusConflict, "NO_SESSIONS"
	case errors.Is(err, model.ErrBlastRunning):
		code, errCode = http.StatusConflict, "BLAST_RUNNING"
	case errors.Is(err, model.ErrSetupRunning):
		code, errCode = http.StatusConflict, "SETUP_RUNNING"
	case errors.Is(err, model.ErrBlastNotFound):
		code, errCode = http.StatusNotFound, "BLAST_NOT_FOUND"
	case errors.Is(err, model.ErrSession):
		code, errCode = http.StatusBadGateway, "SESSION_ERROR"
	case errors.Is(err, model.ErrFilesystem):
		code, errCode = http.StatusInternalServerError, "FILESYSTEM_ERROR"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code, errCode = http.StatusServiceUnavailable, "REQUEST_CANCELLED"
	}
	return ErrorResponse(c, code, message, errCode, err.Error())
}

// HTTPErrorHandler renders echo's own errors (404, 405, rate limit, recover) in the response envelope.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "Internal Server Error"
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		message = fmt.Sprintf("%v", he.Message)
	}

	errCode := "INTERNAL_ERROR"
	switch code {
	case http.StatusUnauthorized:
		errCode = "UNAUTHORIZED"
		message = "A valid X-API-Key header is required"
	case http.StatusMethodNotAllowed:
		errCode = "METHOD_NOT_ALLOWED"
		message = "Method not allowed for this endpoint"
	case http.StatusNotFound:
		errCode = "NOT_FOUND"
		message = "Endpoint not found"
	case http.StatusTooManyRequests:
		errCode = "RATE_LIMITED"
	case http.StatusForbidden:
		errCode = "FORBIDDEN"
	}

	_ = ErrorResponse(c, code, message, errCode, "")
}
