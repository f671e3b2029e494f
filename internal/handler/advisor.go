package handler

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/sinergia/backend/internal/advisor"
)

// AdvisorHandler forwards questions to the advisor.
type AdvisorHandler struct {
	advisor *advisor.Advisor
	logger  *zap.Logger
}

// NewAdvisorHandler creates a new AdvisorHandler.
func NewAdvisorHandler(a *advisor.Advisor, logger *zap.Logger) *AdvisorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdvisorHandler{advisor: a, logger: logger}
}

// AnalysisRequest is a single question.
type AnalysisRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode,omitempty"`
}

// EvaluationRequest is the conversation so far.
type EvaluationRequest struct {
	History []advisor.Message `json:"history"`
}

func (h *AdvisorHandler) Analysis(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var input AnalysisRequest
	if err := decodeBody(req, &input); err != nil {
		return badRequest("Invalid request body"), nil
	}

	reply, err := h.advisor.Analyze(ctx, input.Query, input.Mode)
	if err != nil {
		return errorResponse(h.logger, err, zap.String("mode", input.Mode)), nil
	}
	return jsonResponse(http.StatusOK, reply), nil
}

func (h *AdvisorHandler) Evaluation(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var input EvaluationRequest
	if err := decodeBody(req, &input); err != nil {
		return badRequest("Invalid request body"), nil
	}

	reply, err := h.advisor.Evaluate(ctx, input.History)
	if err != nil {
		return errorResponse(h.logger, err, zap.Int("turns", len(input.History))), nil
	}
	return jsonResponse(http.StatusOK, reply), nil
}
