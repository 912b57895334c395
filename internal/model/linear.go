package model

import (
	"context"
	"fmt"
)

// Linear is a linear regressor or a (multi)class linear classifier.
type Linear struct {
	coef      [][]float64
	intercept []float64
	classes   []float64
	task      Task
	nFeatures int
}

// NewLinear validates the artifact's coefficients and builds a linear model.
func NewLinear(a *Artifact) (*Linear, error) {
	if len(a.Coefficients) == 0 {
		return nil, fmt.Errorf("%w: linear model has no coefficients", ErrInvalidArtifact)
	}

	nFeatures := len(a.Coefficients[0])
	if a.NFeatures > 0 && a.NFeatures != nFeatures {
		return nil, fmt.Errorf("%w: n_features is %d but coefficients have %d columns", ErrInvalidArtifact, a.NFeatures, nFeatures)
	}
	for i, row := range a.Coefficients {
		if len(row) != nFeatures {
			return nil, fmt.Errorf("%w: coefficient row %d has %d columns, want %d", ErrInvalidArtifact, i, len(row), nFeatures)
		}
	}

	intercept := a.Intercepts
	if len(intercept) == 0 {
		intercept = make([]float64, len(a.Coefficients))
	}
	if len(intercept) != len(a.Coefficients) {
		return nil, fmt.Errorf("%w: %d intercepts for %d coefficient rows", ErrInvalidArtifact, len(intercept), len(a.Coefficients))
	}

	task := a.Task
	if task == "" {
		task = TaskRegression
	}

	switch task {
	case TaskRegression:
		if len(a.Coefficients) != 1 {
			return nil, fmt.Errorf("%w: regression expects one coefficient row, got %d", ErrInvalidArtifact, len(a.Coefficients))
		}
	case TaskClassification:
		want := len(a.Coefficients)
		if want == 1 {
			want = 2
		}
		if len(a.Classes) != want {
			return nil, fmt.Errorf("%w: expected %d classes, got %d", ErrInvalidArtifact, want, len(a.Classes))
		}
	default:
		return nil, fmt.Errorf("%w: unsupported task %q", ErrInvalidArtifact, task)
	}

	return &Linear{
		coef:      a.Coefficients,
		intercept: intercept,
		classes:   a.Classes,
		task:      task,
		nFeatures: nFeatures,
	}, nil
}

// Predict implements Predictor.
func (l *Linear) Predict(ctx context.Context, x Matrix) ([]float64, error) {
	if err := CheckFeatures(x, l.nFeatures); err != nil {
		return nil, err
	}

	out := make([]float64, len(x))
	for i, row := range x {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch {
		case l.task == TaskRegression:
			out[i] = l.score(0, row)
		case len(l.coef) == 1:
			if l.score(0, row) > 0 {
				out[i] = l.classes[1]
			} else {
				out[i] = l.classes[0]
			}
		default:
			best := 0
			bestScore := l.score(0, row)
			for k := 1; k < len(l.coef); k++ {
				if s := l.score(k, row); s > bestScore {
					best, bestScore = k, s
				}
			}
			out[i] = l.classes[best]
		}
	}

	return out, nil
}

// Info implements Predictor.
func (l *Linear) Info() Info {
	return Info{
		Format:   FormatLinear,
		Task:     l.task,
		Features: l.nFeatures,
		Classes:  len(l.classes),
	}
}

func (l *Linear) score(k int, row []float64) float64 {
	s := l.intercept[k]
	for j, w := range l.coef[k] {
		s += w * row[j]
	}
	return s
}
