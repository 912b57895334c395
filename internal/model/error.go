package model

import "errors"

// Error definitions for the model package.
var (
	ErrUnavailable       = errors.New("model unavailable")
	ErrUnknownFormat     = errors.New("unknown model format")
	ErrAlreadyRegistered = errors.New("model format is already registered")
	ErrInvalidArtifact   = errors.New("invalid model artifact")
	ErrInvalidInput      = errors.New("invalid model input")
	ErrShapeMismatch     = errors.New("input shape mismatch")
	ErrBridge            = errors.New("bridge predictor failed")
)
