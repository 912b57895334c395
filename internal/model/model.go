// Package model loads model artifacts and exposes them as predictors.
package model

import "context"

// Task is the kind of output a model produces.
type Task string

const (
	TaskClassification Task = "classification"
	TaskRegression     Task = "regression"
)

// Predictor is a loaded model. Implementations must be safe for concurrent use
// and must not mutate their state in Predict.
type Predictor interface {
	// Predict returns one prediction per row of x.
	Predict(ctx context.Context, x Matrix) ([]float64, error)

	// Info describes the loaded model.
	Info() Info
}

// Info describes a loaded model.
type Info struct {
	Format   string `json:"format"`
	Task     Task   `json:"task,omitempty"`
	Features int    `json:"n_features,omitempty"`
	Classes  int    `json:"n_classes,omitempty"`
}
