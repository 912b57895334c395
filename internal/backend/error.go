package backend

import "errors"

// Error definitions for the backend package.
var (
	ErrCommandNotFound = errors.New("backend command not found")
	ErrServerNotReady  = errors.New("backend server did not become ready")
	ErrServerExited    = errors.New("backend server exited")
	ErrTimeout         = errors.New("backend call timed out")
)
