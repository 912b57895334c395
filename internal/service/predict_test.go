package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/predictd/internal/model"
)

// --- Mock types ---

type MockPredictor struct {
	mock.Mock
}

func (m *MockPredictor) Predict(ctx context.Context, x model.Matrix) ([]float64, error) {
	args := m.Called(ctx, x)
	if fn, ok := args.Get(0).(func(context.Context, model.Matrix) []float64); ok {
		return fn(ctx, x), args.Error(1)
	}
	if out, ok := args.Get(0).([]float64); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPredictor) Info() model.Info {
	return model.Info{Format: "mock", Features: 4}
}

type MockOutcome struct {
	mock.Mock
}

func (m *MockOutcome) ObservePrediction(transport string, kind string, rows int) {
	m.Called(transport, kind, rows)
}

func newService(p model.Predictor) *Predict {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewPredict(model.NewHandle("mock.json", p), logger, nil)
}

// --- Tests ---

func TestPredictRaw_Success(t *testing.T) {
	p := new(MockPredictor)
	p.On("Predict", mock.Anything, model.Matrix{{1, 2, 3, 4}, {5, 6, 7, 8}}).Return([]float64{0, 2}, nil).Once()

	got, err := newService(p).PredictRaw(context.Background(), "http", []byte(`{"inputs": [[1,2,3,4],[5,6,7,8]]}`))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2}, got.Predictions)

	p.AssertExpectations(t)
}

func TestPredictRaw_ModelUnavailableWinsOverInputChecks(t *testing.T) {
	svc := NewPredict(model.Unavailable("missing.json", errors.New("open missing.json: no such file")), nil, nil)

	bodies := []string{
		`{"inputs": [[1,2,3,4]]}`,
		`{"other": 1}`,
		`not json`,
		``,
	}

	for _, body := range bodies {
		_, err := svc.PredictRaw(context.Background(), "http", []byte(body))

		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, KindModelUnavailable, e.Kind)
		assert.Equal(t, MessageModelUnavailable, e.Error())
		assert.ErrorIs(t, err, model.ErrUnavailable)
	}
}

func TestPredictRaw_InvalidInput(t *testing.T) {
	bodies := map[string]string{
		"empty":          ``,
		"whitespace":     `   `,
		"malformed":      `{"inputs": [[1,2`,
		"array body":     `[[1,2,3,4]]`,
		"null body":      `null`,
		"string body":    `"inputs"`,
		"empty object":   `{}`,
		"missing inputs": `{"input": [[1,2,3,4]]}`,
		"trailing data":  `{"inputs": [[1]]} {"inputs": [[2]]}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			p := new(MockPredictor)

			_, err := newService(p).PredictRaw(context.Background(), "http", []byte(body))

			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, KindInvalidInput, e.Kind)
			assert.Equal(t, MessageInvalidInput, e.Error())
			p.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything)
		})
	}
}

func TestPredictRaw_ConversionFailureIsInferenceFailure(t *testing.T) {
	bodies := []string{
		`{"inputs": null}`,
		`{"inputs": "abc"}`,
		`{"inputs": [1, 2, 3, 4]}`,
		`{"inputs": [[1, 2], [3]]}`,
		`{"inputs": [["a", 2]]}`,
		`{"inputs": []}`,
	}

	for _, body := range bodies {
		p := new(MockPredictor)

		_, err := newService(p).PredictRaw(context.Background(), "http", []byte(body))

		assert.Equal(t, KindInferenceFailure, KindOf(err), body)
		assert.ErrorIs(t, err, model.ErrInvalidInput, body)
		p.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything)
	}
}

func TestPredictRaw_PredictorErrorCarriesMessage(t *testing.T) {
	cause := errors.New("X has 3 features, but model is expecting 4 features as input")
	p := new(MockPredictor)
	p.On("Predict", mock.Anything, mock.Anything).Return(nil, cause).Once()

	_, err := newService(p).PredictRaw(context.Background(), "http", []byte(`{"inputs": [[1,2,3]]}`))

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindInferenceFailure, e.Kind)
	assert.Equal(t, cause.Error(), e.Error())
	assert.ErrorIs(t, err, cause)
}

func TestPredictRaw_PredictorPanicIsRecovered(t *testing.T) {
	p := new(MockPredictor)
	p.On("Predict", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("index out of range")
	}).Once()

	_, err := newService(p).PredictRaw(context.Background(), "http", []byte(`{"inputs": [[1]]}`))

	assert.Equal(t, KindInferenceFailure, KindOf(err))
	assert.ErrorContains(t, err, "index out of range")
}

func TestPredictRaw_WrongPredictionCount(t *testing.T) {
	p := new(MockPredictor)
	p.On("Predict", mock.Anything, mock.Anything).Return([]float64{1, 2}, nil).Once()

	_, err := newService(p).PredictRaw(context.Background(), "http", []byte(`{"inputs": [[1]]}`))

	assert.Equal(t, KindInferenceFailure, KindOf(err))
	assert.ErrorContains(t, err, "2 predictions for 1 rows")
}

func TestPredictRaw_Idempotent(t *testing.T) {
	p := new(MockPredictor)
	p.On("Predict", mock.Anything, model.Matrix{{1, 2, 3, 4}}).Return([]float64{1}, nil).Twice()
	svc := newService(p)

	first, err := svc.PredictRaw(context.Background(), "http", []byte(`{"inputs": [[1,2,3,4]]}`))
	require.NoError(t, err)
	second, err := svc.PredictRaw(context.Background(), "http", []byte(`{"inputs": [[1,2,3,4]]}`))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	p.AssertExpectations(t)
}

func TestPredictRaw_ConcurrentRequestsAreIndependent(t *testing.T) {
	p := new(MockPredictor)
	p.On("Predict", mock.Anything, mock.Anything).Return(func(_ context.Context, x model.Matrix) []float64 {
		out := make([]float64, len(x))
		for i, row := range x {
			out[i] = row[0]
		}
		return out
	}, nil)
	svc := newService(p)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			body := []byte(`{"inputs": [[` + string(rune('0'+i%10)) + `]]}`)
			if i%3 == 0 {
				body = []byte(`{"nope": 1}`)
			}

			got, err := svc.PredictRaw(context.Background(), "http", body)
			if i%3 == 0 {
				assert.Equal(t, KindInvalidInput, KindOf(err))
				return
			}
			if assert.NoError(t, err) {
				assert.Equal(t, []float64{float64(i % 10)}, got.Predictions)
			}
		}(i)
	}
	wg.Wait()
}

func TestPredictPayload(t *testing.T) {
	p := new(MockPredictor)
	p.On("Predict", mock.Anything, model.Matrix{{1, 2}}).Return([]float64{3}, nil).Once()
	svc := newService(p)

	got, err := svc.PredictPayload(context.Background(), "grpc", map[string]any{"inputs": []any{[]any{1.0, 2.0}}})
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, got.Predictions)

	_, err = svc.PredictPayload(context.Background(), "grpc", nil)
	assert.Equal(t, KindInvalidInput, KindOf(err))

	_, err = svc.PredictPayload(context.Background(), "grpc", map[string]any{})
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestPredict_ReportsOutcome(t *testing.T) {
	p := new(MockPredictor)
	p.On("Predict", mock.Anything, mock.Anything).Return([]float64{0}, nil).Once()

	outcome := new(MockOutcome)
	outcome.On("ObservePrediction", "http", "ok", 1).Once()
	outcome.On("ObservePrediction", "http", "invalid_input", 0).Once()

	svc := NewPredict(model.NewHandle("mock.json", p), nil, outcome)

	_, err := svc.PredictRaw(context.Background(), "http", []byte(`{"inputs": [[1]]}`))
	require.NoError(t, err)
	_, err = svc.PredictRaw(context.Background(), "http", []byte(`{}`))
	require.Error(t, err)

	outcome.AssertExpectations(t)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "model_unavailable", KindModelUnavailable.String())
	assert.Equal(t, "invalid_input", KindInvalidInput.String())
	assert.Equal(t, "inference_failure", KindInferenceFailure.String())
	assert.Equal(t, "kind(0)", Kind(0).String())
	assert.Equal(t, KindInferenceFailure, KindOf(errors.New("boom")))
}
