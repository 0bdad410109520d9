// Package errors is the error payload of the job status api.
package errors

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorMessage is the body of a non-2xx response.
type ErrorMessage struct {
	Reason string `json:"reason"`
	Advice string `json:"advice,omitempty"`
	Cause  error  `json:"-"`
}

func (e ErrorMessage) Error() string {
	msg := e.Reason
	if e.Advice != "" {
		msg += ": " + e.Advice
	}
	if e.Cause != nil {
		msg += " (caused by: " + e.Cause.Error() + ")"
	}
	return msg
}

func (e ErrorMessage) Unwrap() error {
	return e.Cause
}

func respond(code int, reason, advice string, cause error) *echo.HTTPError {
	msg := ErrorMessage{Reason: reason, Advice: advice, Cause: cause}
	return echo.NewHTTPError(code, msg).SetInternal(msg)
}

// NotFound is for a job id the queue does not know.
func NotFound() *echo.HTTPError {
	return respond(http.StatusNotFound, "job not found", "", nil)
}

func BadRequest(advice string, err error) *echo.HTTPError {
	return respond(http.StatusBadRequest, "bad request", advice, err)
}

// InternalServerError hides err from the body; it is logged by echo.
func InternalServerError(err error) *echo.HTTPError {
	return respond(http.StatusInternalServerError, "unexpected error", "", err)
}
