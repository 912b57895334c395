package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/predictd/internal/metrics"
	"github.com/ekisa-team/predictd/internal/model"
	"github.com/ekisa-team/predictd/internal/service"
)

func irisTree(t *testing.T) model.Predictor {
	t.Helper()

	f, err := model.NewForest(model.FormatTree, model.TaskClassification, 4, []float64{0, 1, 2}, []model.TreeSpec{{
		Nodes: []model.Node{
			{Feature: 2, Threshold: 2.45, Left: 1, Right: 2},
			{Leaf: true, Value: 0},
			{Feature: 3, Threshold: 1.75, Left: 3, Right: 4},
			{Leaf: true, Value: 1},
			{Leaf: true, Value: 2},
		},
	}})
	require.NoError(t, err)

	return f
}

func testOptions() Options {
	return Options{
		PredictPaths:   []string{"/predict", "/api/predict"},
		AllowedOrigins: []string{"*"},
		CORSEnabled:    true,
		MaxBodyBytes:   1 << 10,
	}
}

func newTestServer(t *testing.T, handle *model.Handle) (*httptest.Server, *metrics.Metrics) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	svc := service.NewPredict(handle, logger, m)

	server := httptest.NewServer(NewHandler(testOptions(), svc, m, logger))
	t.Cleanup(server.Close)

	return server, m
}

func post(t *testing.T, url string, body string) (int, string) {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(raw)
}

func TestPredict_Success(t *testing.T) {
	server, _ := newTestServer(t, model.NewHandle("iris.json", irisTree(t)))

	resp, err := http.Post(server.URL+"/predict", "application/json", strings.NewReader(`{"inputs": [[5.1, 3.5, 1.4, 0.2]]}`))
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"predictions": [0]}`, string(raw))
}

func TestPredict_OnePredictionPerRow(t *testing.T) {
	server, _ := newTestServer(t, model.NewHandle("iris.json", irisTree(t)))

	status, body := post(t, server.URL+"/predict", `{"inputs": [[5.1,3.5,1.4,0.2],[5.9,3.0,4.2,1.5],[6.7,3.0,5.2,2.3],[1,2,3,4]]}`)

	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"predictions": [0, 1, 2, 2]}`, body)
}

func TestPredict_APIAlias(t *testing.T) {
	server, _ := newTestServer(t, model.NewHandle("iris.json", irisTree(t)))

	status, body := post(t, server.URL+"/api/predict", `{"inputs": [[6.7, 3.0, 5.2, 2.3]]}`)

	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"predictions": [2]}`, body)
}

func TestPredict_InvalidInput(t *testing.T) {
	server, _ := newTestServer(t, model.NewHandle("iris.json", irisTree(t)))

	bodies := map[string]string{
		"missing inputs": `{"data": [[1, 2, 3, 4]]}`,
		"empty object":   `{}`,
		"malformed json": `{"inputs": [[1, 2`,
		"not an object":  `[[1, 2, 3, 4]]`,
		"empty body":     ``,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			status, raw := post(t, server.URL+"/predict", body)

			assert.Equal(t, http.StatusBadRequest, status)
			assert.JSONEq(t, `{"error": "Invalid input data"}`, raw)
		})
	}
}

func TestPredict_ModelUnavailable(t *testing.T) {
	server, _ := newTestServer(t, model.Unavailable("random_forest_model.json", errors.New("no such file")))

	for _, body := range []string{`{"inputs": [[1, 2, 3, 4]]}`, `{"data": 1}`, `garbage`} {
		status, raw := post(t, server.URL+"/predict", body)

		assert.Equal(t, http.StatusInternalServerError, status)
		assert.JSONEq(t, `{"error": "Model not loaded"}`, raw)
	}
}

func TestPredict_EmptyBodyChecksModelFirst(t *testing.T) {
	t.Run("model unavailable", func(t *testing.T) {
		server, _ := newTestServer(t, model.Unavailable("random_forest_model.json", errors.New("no such file")))

		status, raw := post(t, server.URL+"/predict", "")

		assert.Equal(t, http.StatusInternalServerError, status)
		assert.JSONEq(t, `{"error": "Model not loaded"}`, raw)
	})

	t.Run("model loaded", func(t *testing.T) {
		server, _ := newTestServer(t, model.NewHandle("iris.json", irisTree(t)))

		for _, path := range []string{"/predict", "/api/predict"} {
			status, raw := post(t, server.URL+path, "")

			assert.Equal(t, http.StatusBadRequest, status)
			assert.JSONEq(t, `{"error": "Invalid input data"}`, raw)
		}
	})
}

func TestPredict_OpenAPIDocumentsOptionalBody(t *testing.T) {
	server, _ := newTestServer(t, model.NewHandle("iris.json", irisTree(t)))

	resp, err := http.Get(server.URL + "/openapi.json")
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	var doc struct {
		Paths map[string]struct {
			Post struct {
				RequestBody struct {
					Required bool `json:"required"`
				} `json:"requestBody"`
			} `json:"post"`
		} `json:"paths"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))

	require.Contains(t, doc.Paths, "/predict")
	assert.False(t, doc.Paths["/predict"].Post.RequestBody.Required)
}

func TestPredict_ShapeMismatchDoesNotKillServer(t *testing.T) {
	server, _ := newTestServer(t, model.NewHandle("iris.json", irisTree(t)))

	status, raw := post(t, server.URL+"/predict", `{"inputs": [[1, 2, 3]]}`)
	assert.Equal(t, http.StatusInternalServerError, status)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &body))
	assert.Contains(t, body["error"], "X has 3 features, but model is expecting 4 features as input")
	assert.NotContains(t, body, "traceback")

	status, raw = post(t, server.URL+"/predict", `{"inputs": [[5.1, 3.5, 1.4, 0.2]]}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"predictions": [0]}`, raw)
}

func TestPredict_ConversionFailure(t *testing.T) {
	server, _ := newTestServer(t, model.NewHandle("iris.json", irisTree(t)))

	status, raw := post(t, server.URL+"/predict", `{"inputs": [["a", 2, 3, 4]]}`)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, raw, "could not convert string to float")
}

func TestPredict_Idempotent(t *testing.T) {
	server, _ := newTestServer(t, model.NewHandle("iris.json", irisTree(t)))

	_, first := post(t, server.URL+"/predict", `{"inputs": [[5.9, 3.0, 4.2, 1.5]]}`)
	_, second := post(t, server.URL+"/predict", `{"inputs": [[5.9, 3.0, 4.2, 1.5]]}`)

	assert.Equal(t, first, second)
}

func TestPredict_BodyTooLarge(t *testing.T) {
	server, _ := newTestServer(t, model.NewHandle("iris.json", irisTree(t)))

	rows := strings.Repeat("[1, 2, 3, 4],", 200)
	status, raw := post(t, server.URL+"/predict", `{"inputs": [`+rows+`[1, 2, 3, 4]]}`)

	assert.Equal(t, http.StatusRequestEntityTooLarge, status)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &body))
	assert.Contains(t, body, "error")
}

func TestPredict_MethodNotAllowed(t *testing.T) {
	server, _ := newTestServer(t, model.NewHandle("iris.json", irisTree(t)))

	resp, err := http.Get(server.URL + "/predict")
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	server, _ := newTestServer(t, model.NewHandle("iris.json", irisTree(t)))

	t.Run("simple request", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, server.URL+"/predict", strings.NewReader(`{"inputs": [[1, 2, 3, 4]]}`))
		require.NoError(t, err)
		req.Header.Set("Origin", "http://localhost:3000")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodOptions, server.URL+"/predict", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "content-type")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
		assert.Equal(t, "content-type", resp.Header.Get("Access-Control-Allow-Headers"))
	})
}

func TestCORSMiddleware_RestrictedOrigins(t *testing.T) {
	h := CORSMiddleware([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	allowed := httptest.NewRequest(http.MethodPost, "/predict", nil)
	allowed.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, allowed)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	denied := httptest.NewRequest(http.MethodPost, "/predict", nil)
	denied.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, denied)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	t.Run("available", func(t *testing.T) {
		server, _ := newTestServer(t, model.NewHandle("iris.json", irisTree(t)))

		resp, err := http.Get(server.URL + "/health")
		require.NoError(t, err)
		defer func() {
			_ = resp.Body.Close()
		}()

		var body HealthResponseDTO
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ok", body.Status)
		assert.True(t, body.Model.Available)
		assert.Equal(t, model.FormatTree, body.Model.Format)
		assert.Equal(t, 4, body.Model.Features)
	})

	t.Run("degraded", func(t *testing.T) {
		server, _ := newTestServer(t, model.Unavailable("missing.json", errors.New("no such file")))

		resp, err := http.Get(server.URL + "/health")
		require.NoError(t, err)
		defer func() {
			_ = resp.Body.Close()
		}()

		var body HealthResponseDTO
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "degraded", body.Status)
		assert.False(t, body.Model.Available)
		assert.Equal(t, "missing.json", body.Model.Path)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	server, m := newTestServer(t, model.NewHandle("iris.json", irisTree(t)))
	m.SetModelAvailable(true)

	post(t, server.URL+"/predict", `{"inputs": [[1, 2, 3, 4]]}`)
	post(t, server.URL+"/predict", `{}`)

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(raw), `predictd_predictions_total{outcome="ok",transport="http"} 1`)
	assert.Contains(t, string(raw), `predictd_predictions_total{outcome="invalid_input",transport="http"} 1`)
	assert.Contains(t, string(raw), `predictd_http_requests_total{code="400",method="POST",route="/predict"} 1`)
}

func TestRequestIDMiddleware_PropagatesIncomingID(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
}

func TestRecoveryMiddleware(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	h := RecoveryMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/predict", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error": "Internal Server Error"}`, rec.Body.String())
	assert.Contains(t, logs.String(), "boom")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusFor(service.KindModelUnavailable))
	assert.Equal(t, http.StatusBadRequest, StatusFor(service.KindInvalidInput))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(service.KindInferenceFailure))
}
