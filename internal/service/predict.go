// Package service implements the prediction contract shared by every transport.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/ekisa-team/predictd/internal/model"
)

// Outcome observes the result of each prediction. It must not influence the
// response.
type Outcome interface {
	ObservePrediction(transport string, kind string, rows int)
}

// Prediction is the successful result of a predict call.
type Prediction struct {
	Predictions []float64 `json:"predictions"`
}

// Predict is the prediction service. It holds no per-request state and is
// safe for concurrent use.
type Predict struct {
	handle  *model.Handle
	logger  *slog.Logger
	outcome Outcome
}

// NewPredict creates the prediction service around an injected model handle.
func NewPredict(handle *model.Handle, logger *slog.Logger, outcome Outcome) *Predict {
	if logger == nil {
		logger = slog.Default()
	}

	return &Predict{
		handle:  handle,
		logger:  logger,
		outcome: outcome,
	}
}

// Handle returns the injected model handle.
func (s *Predict) Handle() *model.Handle {
	return s.handle
}

// PredictRaw runs the full contract against a raw request body.
// Preconditions are checked in order: model available, body is a JSON object,
// "inputs" present.
func (s *Predict) PredictRaw(ctx context.Context, transport string, body []byte) (*Prediction, error) {
	s.logger.DebugContext(ctx, "Prediction request received", "transport", transport, "raw_body", string(body))

	predictor, err := s.handle.Predictor()
	if err != nil {
		return nil, s.fail(ctx, transport, newError(KindModelUnavailable, MessageModelUnavailable, err))
	}

	payload, err := decodeObject(body)
	if err != nil {
		return nil, s.fail(ctx, transport, newError(KindInvalidInput, MessageInvalidInput, err))
	}

	return s.run(ctx, transport, predictor, payload)
}

// PredictPayload runs the contract against an already decoded object.
func (s *Predict) PredictPayload(ctx context.Context, transport string, payload map[string]any) (*Prediction, error) {
	predictor, err := s.handle.Predictor()
	if err != nil {
		return nil, s.fail(ctx, transport, newError(KindModelUnavailable, MessageModelUnavailable, err))
	}

	if payload == nil {
		return nil, s.fail(ctx, transport, newError(KindInvalidInput, MessageInvalidInput, fmt.Errorf("empty payload")))
	}

	return s.run(ctx, transport, predictor, payload)
}

func (s *Predict) run(ctx context.Context, transport string, predictor model.Predictor, payload map[string]any) (*Prediction, error) {
	s.logger.DebugContext(ctx, "Parsed prediction payload", "payload", payload)

	inputs, ok := payload["inputs"]
	if !ok {
		return nil, s.fail(ctx, transport, newError(KindInvalidInput, MessageInvalidInput, fmt.Errorf("missing \"inputs\" key")))
	}

	x, err := model.MatrixFrom(inputs)
	if err != nil {
		return nil, s.fail(ctx, transport, newError(KindInferenceFailure, err.Error(), err))
	}
	s.logger.DebugContext(ctx, "Converted inputs", "rows", x.Rows(), "cols", x.Cols(), "inputs", x)

	predictions, err := s.safePredict(ctx, predictor, x)
	if err != nil {
		return nil, s.fail(ctx, transport, newError(KindInferenceFailure, err.Error(), err))
	}
	s.logger.DebugContext(ctx, "Generated predictions", "predictions", predictions)

	if s.outcome != nil {
		s.outcome.ObservePrediction(transport, "ok", x.Rows())
	}

	return &Prediction{Predictions: predictions}, nil
}

func (s *Predict) fail(ctx context.Context, transport string, e *Error) *Error {
	level := slog.LevelWarn
	if e.Kind == KindInferenceFailure {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "Prediction failed", "transport", transport, "kind", e.Kind.String(), "error", e.Err)

	if s.outcome != nil {
		s.outcome.ObservePrediction(transport, e.Kind.String(), 0)
	}

	return e
}

// decodeObject parses body as a single non-empty JSON object.
func decodeObject(body []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("empty body")
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("body is not valid JSON: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("body contains trailing data")
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("body is not a JSON object")
	}

	return obj, nil
}

// safePredict converts a predictor panic into an error.
func (s *Predict) safePredict(ctx context.Context, predictor model.Predictor, x model.Matrix) (out []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "Predictor panicked", "panic", r, "stack", string(debug.Stack()))
			out, err = nil, fmt.Errorf("predictor panicked: %v", r)
		}
	}()

	out, err = predictor.Predict(ctx, x)
	if err == nil && len(out) != x.Rows() {
		return nil, fmt.Errorf("model returned %d predictions for %d rows", len(out), x.Rows())
	}

	return out, err
}
