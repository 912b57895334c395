package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinear_Regression(t *testing.T) {
	l, err := NewLinear(&Artifact{
		Format:       FormatLinear,
		Coefficients: [][]float64{{2, -1}},
		Intercepts:   []float64{0.5},
	})
	require.NoError(t, err)

	got, err := l.Predict(context.Background(), Matrix{{1, 1}, {0, 2}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, -1.5}, got)
	assert.Equal(t, TaskRegression, l.Info().Task)
}

func TestLinear_BinaryClassification(t *testing.T) {
	l, err := NewLinear(&Artifact{
		Format:       FormatLinear,
		Task:         TaskClassification,
		Classes:      []float64{0, 1},
		Coefficients: [][]float64{{1, 1}},
		Intercepts:   []float64{-1},
	})
	require.NoError(t, err)

	got, err := l.Predict(context.Background(), Matrix{{0, 0}, {1, 1}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, got)
}

func TestLinear_MulticlassClassification(t *testing.T) {
	l, err := NewLinear(&Artifact{
		Format:       FormatLinear,
		Task:         TaskClassification,
		Classes:      []float64{10, 20, 30},
		Coefficients: [][]float64{{1, 0}, {0, 1}, {-1, -1}},
	})
	require.NoError(t, err)

	got, err := l.Predict(context.Background(), Matrix{{5, 1}, {1, 5}, {-3, -3}})
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30}, got)
}

func TestLinear_ShapeMismatch(t *testing.T) {
	l, err := NewLinear(&Artifact{Coefficients: [][]float64{{1, 2}}})
	require.NoError(t, err)

	_, err = l.Predict(context.Background(), Matrix{{1, 2, 3}})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestNewLinear_Invalid(t *testing.T) {
	tests := map[string]*Artifact{
		"no coefficients":  {},
		"ragged":           {Coefficients: [][]float64{{1, 2}, {1}}, Task: TaskClassification, Classes: []float64{0, 1}},
		"n_features":       {Coefficients: [][]float64{{1, 2}}, NFeatures: 3},
		"intercept count":  {Coefficients: [][]float64{{1, 2}}, Intercepts: []float64{1, 2}},
		"multi regression": {Coefficients: [][]float64{{1}, {2}}},
		"missing classes":  {Coefficients: [][]float64{{1}}, Task: TaskClassification},
		"unsupported task": {Coefficients: [][]float64{{1}}, Task: "ranking"},
	}

	for name, a := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewLinear(a)
			assert.ErrorIs(t, err, ErrInvalidArtifact)
		})
	}
}
