package model

import (
	"encoding/json"
	"fmt"
	"math"
)

// Matrix is a rectangular rows x features array.
type Matrix [][]float64

// Rows returns the number of rows.
func (m Matrix) Rows() int {
	return len(m)
}

// Cols returns the number of features per row.
func (m Matrix) Cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// MatrixFrom converts a decoded JSON value into a Matrix. The value must be a
// non-empty array of equally sized, non-empty arrays of finite numbers.
func MatrixFrom(v any) (Matrix, error) {
	rows, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: inputs must be a 2D array, got %s", ErrInvalidInput, jsonKind(v))
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: inputs must contain at least one row", ErrInvalidInput)
	}

	m := make(Matrix, len(rows))
	width := -1
	for i, r := range rows {
		cells, ok := r.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: inputs must be a 2D array, row %d is %s", ErrInvalidInput, i, jsonKind(r))
		}
		if width == -1 {
			width = len(cells)
			if width == 0 {
				return nil, fmt.Errorf("%w: inputs rows must contain at least one feature", ErrInvalidInput)
			}
		}
		if len(cells) != width {
			return nil, fmt.Errorf("%w: inhomogeneous shape, row %d has %d features, row 0 has %d", ErrInvalidInput, i, len(cells), width)
		}

		row := make([]float64, width)
		for j, c := range cells {
			f, err := toFloat(c)
			if err != nil {
				return nil, fmt.Errorf("%w: inputs[%d][%d]: %w", ErrInvalidInput, i, j, err)
			}
			row[j] = f
		}
		m[i] = row
	}

	return m, nil
}

// CheckFeatures verifies that every row of x has want features.
func CheckFeatures(x Matrix, want int) error {
	if want <= 0 {
		return nil
	}
	if got := x.Cols(); got != want {
		return fmt.Errorf("%w: X has %d features, but model is expecting %d features as input", ErrShapeMismatch, got, want)
	}

	return nil
}

func toFloat(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("could not convert %q to float", n.String())
		}
		f = parsed
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, fmt.Errorf("could not convert %s to float", jsonKind(v))
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("value %v is not finite", f)
	}

	return f, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64, json.Number, int, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
