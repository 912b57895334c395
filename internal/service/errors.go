package service

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the prediction service can report.
type Kind int

const (
	// KindModelUnavailable means no model was loaded at startup.
	KindModelUnavailable Kind = iota + 1
	// KindInvalidInput means the request body is not an object with "inputs".
	KindInvalidInput
	// KindInferenceFailure means converting the inputs or running the model failed.
	KindInferenceFailure
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindModelUnavailable:
		return "model_unavailable"
	case KindInvalidInput:
		return "invalid_input"
	case KindInferenceFailure:
		return "inference_failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Messages reported to clients for the kinds that do not carry a cause.
const (
	MessageModelUnavailable = "Model not loaded"
	MessageInvalidInput     = "Invalid input data"
)

// Error is a classified prediction failure.
type Error struct {
	Err     error
	Message string
	Kind    Kind
}

// Error implements error.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf returns the kind of err. Unclassified errors are inference failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindInferenceFailure
}
