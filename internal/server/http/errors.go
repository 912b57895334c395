package http

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ekisa-team/predictd/internal/service"
)

// ErrorBody is the only error shape the API returns: {"error": "..."}.
type ErrorBody struct {
	Message string `json:"error"`
	status  int
}

// Error implements error.
func (e *ErrorBody) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *ErrorBody) GetStatus() int {
	return e.status
}

func init() {
	huma.NewError = func(status int, msg string, _ ...error) huma.StatusError {
		return &ErrorBody{status: status, Message: msg}
	}
}

// StatusFor maps an error kind to its HTTP status code.
func StatusFor(kind service.Kind) int {
	switch kind {
	case service.KindInvalidInput:
		return http.StatusBadRequest
	case service.KindModelUnavailable, service.KindInferenceFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// toHTTPError converts a service error into the API error shape.
func toHTTPError(err error) huma.StatusError {
	var e *service.Error
	if errors.As(err, &e) {
		return huma.NewError(StatusFor(e.Kind), e.Message)
	}

	return huma.NewError(http.StatusInternalServerError, err.Error())
}
