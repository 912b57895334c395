package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Handle is the process-wide, read-only reference to the loaded predictor.
// A handle is either available or the unavailable sentinel; it never changes
// after construction.
type Handle struct {
	predictor Predictor
	err       error
	path      string
}

// NewHandle wraps an already constructed predictor.
func NewHandle(path string, p Predictor) *Handle {
	if p == nil {
		return Unavailable(path, fmt.Errorf("nil predictor"))
	}

	return &Handle{predictor: p, path: path}
}

// Unavailable returns the sentinel handle for a model that could not be loaded.
func Unavailable(path string, cause error) *Handle {
	if cause == nil {
		cause = ErrUnavailable
	}

	return &Handle{err: cause, path: path}
}

// Load reads the artifact at path and builds its predictor.
func Load(ctx context.Context, path string, registry *Registry) (Predictor, error) {
	artifact, err := ReadArtifact(path)
	if err != nil {
		return nil, err
	}

	p, err := registry.Build(ctx, artifact)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s model: %w", artifact.Format, err)
	}

	return p, nil
}

// LoadHandle loads the model at path. Failures are logged and produce the
// unavailable sentinel so the service can start in degraded mode.
func LoadHandle(ctx context.Context, path string, registry *Registry, logger *slog.Logger) *Handle {
	p, err := Load(ctx, path, registry)
	if err != nil {
		logger.Error("Failed to load model, serving in degraded mode", "path", path, "error", err)
		return Unavailable(path, err)
	}

	info := p.Info()
	logger.Info("Model loaded", "path", path, "format", info.Format, "task", info.Task, "n_features", info.Features)

	return NewHandle(path, p)
}

// Available reports whether a predictor is loaded.
func (h *Handle) Available() bool {
	return h != nil && h.predictor != nil
}

// Predictor returns the loaded predictor or an error wrapping ErrUnavailable.
func (h *Handle) Predictor() (Predictor, error) {
	if !h.Available() {
		if err := h.Err(); !errors.Is(err, ErrUnavailable) {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil, ErrUnavailable
	}

	return h.predictor, nil
}

// Err returns the load failure, or nil for an available handle.
func (h *Handle) Err() error {
	if h == nil {
		return ErrUnavailable
	}

	return h.err
}

// Path returns the artifact path the handle was loaded from.
func (h *Handle) Path() string {
	if h == nil {
		return ""
	}

	return h.path
}

// Info describes the loaded model. The zero Info is returned when unavailable.
func (h *Handle) Info() Info {
	if !h.Available() {
		return Info{}
	}

	return h.predictor.Info()
}

// Close releases resources held by the predictor, such as a bridge process.
func (h *Handle) Close() error {
	if !h.Available() {
		return nil
	}
	if c, ok := h.predictor.(io.Closer); ok {
		return c.Close()
	}

	return nil
}
