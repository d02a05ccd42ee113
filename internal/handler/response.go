package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pulseboard/pulseboard/internal/domain/activity"
	"github.com/pulseboard/pulseboard/internal/domain/notify"
	syncdom "github.com/pulseboard/pulseboard/internal/domain/sync"
)

// Envelope is the standard API response wrapper.
type Envelope struct {
	Data  any       `json:"data,omitempty"`
	Error *APIError `json:"error,omitempty"`
}

// APIError represents an error in the API response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeData(c echo.Context, status int, data any) error {
	return c.JSON(status, Envelope{Data: data})
}

// writeError maps domain errors to HTTP status codes. Background-scheduler
// errors never reach this path; only ingestion and query errors surface to
// callers.
func writeError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	code := "INTERNAL"

	switch {
	case errors.Is(err, activity.ErrInvalidInput),
		errors.Is(err, syncdom.ErrInvalidInput),
		errors.Is(err, errInvalidPayload):
		status = http.StatusBadRequest
		code = "INVALID_INPUT"
	case errors.Is(err, syncdom.ErrUnknownResource):
		status = http.StatusBadRequest
		code = "UNKNOWN_RESOURCE"
	case errors.Is(err, activity.ErrEventNotFound),
		errors.Is(err, notify.ErrNotificationNotFound):
		status = http.StatusNotFound
		code = "NOT_FOUND"
	case errors.Is(err, errUnauthorized):
		status = http.StatusUnauthorized
		code = "UNAUTHORIZED"
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		// Don't leak internals to clients.
		message = "internal error"
	}

	return c.JSON(status, Envelope{Error: &APIError{Code: code, Message: message}})
}
