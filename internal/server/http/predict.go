package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ekisa-team/predictd/internal/model"
	"github.com/ekisa-team/predictd/internal/service"
)

type (
	// PredictInput is the huma input for the predict operation. The body is
	// read raw so that precondition order stays under service control.
	PredictInput struct {
		RawBody []byte `contentType:"application/json"`
	}

	// PredictOutput is the huma output for the predict operation.
	PredictOutput struct {
		Body service.Prediction
	}

	// HealthOutput is the huma output for the health operation.
	HealthOutput struct {
		Body HealthResponseDTO
	}

	// HealthResponseDTO reports liveness and model availability.
	HealthResponseDTO struct {
		Status string         `json:"status"`
		Model  ModelStatusDTO `json:"model"`
	}

	// ModelStatusDTO describes the loaded model.
	ModelStatusDTO struct {
		model.Info
		Path      string `json:"path"`
		Available bool   `json:"available"`
	}
)

// PredictHandler handles HTTP requests for predictions.
type PredictHandler struct {
	service *service.Predict
}

// NewPredictHandler registers the predict operation on every path, plus health.
func NewPredictHandler(api huma.API, svc *service.Predict, paths []string, maxBodyBytes int64) *PredictHandler {
	h := &PredictHandler{service: svc}

	for i, path := range paths {
		operationID := "predict"
		if i > 0 {
			operationID = "predict-" + strings.Trim(strings.ReplaceAll(path, "/", "-"), "-")
		}

		body := &huma.RequestBody{
			Description: "Object with an \"inputs\" matrix of feature rows.",
		}

		huma.Register(api, huma.Operation{
			OperationID:   operationID,
			Method:        http.MethodPost,
			Path:          path,
			Summary:       "Predict one output per input row",
			Description:   `Body: {"inputs": [[...], ...]}. Returns {"predictions": [...]}.`,
			Tags:          []string{"predict"},
			MaxBodyBytes:  maxBodyBytes,
			RequestBody:   body,
			DefaultStatus: http.StatusOK,
			Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
		}, h.handlePredict)

		// huma marks raw body operations as requiring a body. An empty body
		// must reach the service so it is classified after the model check.
		body.Required = false
	}

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Report liveness and model availability",
		Tags:        []string{"health"},
	}, h.handleHealth)

	return h
}

// handlePredict handles the predict operation.
func (h *PredictHandler) handlePredict(ctx context.Context, input *PredictInput) (*PredictOutput, error) {
	prediction, err := h.service.PredictRaw(ctx, "http", input.RawBody)
	if err != nil {
		return nil, toHTTPError(err)
	}

	return &PredictOutput{Body: *prediction}, nil
}

// handleHealth handles the health operation. It always answers 200 so that a
// degraded process stays reachable.
func (h *PredictHandler) handleHealth(_ context.Context, _ *struct{}) (*HealthOutput, error) {
	handle := h.service.Handle()

	status := "ok"
	if !handle.Available() {
		status = "degraded"
	}

	return &HealthOutput{
		Body: HealthResponseDTO{
			Status: status,
			Model: ModelStatusDTO{
				Info:      handle.Info(),
				Path:      handle.Path(),
				Available: handle.Available(),
			},
		},
	}, nil
}
