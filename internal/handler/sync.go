package handler

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/sinergia/backend/internal/ingest"
	"github.com/sinergia/backend/internal/model"
)

// SyncHandler exposes sheet sync, the raw sheet proxy and stored rows.
type SyncHandler struct {
	svc       *ingest.Service
	jwtSecret string
	logger    *zap.Logger
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(svc *ingest.Service, jwtSecret string, logger *zap.Logger) *SyncHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncHandler{svc: svc, jwtSecret: jwtSecret, logger: logger}
}

// SheetRequest is the body of sync and sheet read requests.
type SheetRequest struct {
	SpreadsheetID string `json:"spreadsheetId"`
	Range         string `json:"range,omitempty"`
}

// SyncResponse is returned by a successful sync.
type SyncResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	RowCount int    `json:"rowCount"`
}

// RowsResponse lists stored rows ordered by row number.
type RowsResponse struct {
	SheetID string            `json:"sheetId"`
	Count   int               `json:"count"`
	Rows    []model.SyncedRow `json:"rows"`
}

// userID returns the verified caller, or "" when the request carries no
// valid token. The service decides whether identity is required.
func (h *SyncHandler) userID(req events.APIGatewayProxyRequest) string {
	id, err := GetUserID(req, h.jwtSecret)
	if err != nil {
		h.logger.Debug("no caller identity", zap.Error(err))
		return ""
	}
	return id
}

// Sync replaces the caller's stored rows with the sheet's current content.
func (h *SyncHandler) Sync(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var input SheetRequest
	if err := decodeBody(req, &input); err != nil {
		return badRequest("Invalid request body"), nil
	}
	userID := h.userID(req)

	res, err := h.svc.Sync(ctx, ingest.SyncRequest{
		SpreadsheetID: input.SpreadsheetID,
		Range:         input.Range,
		UserID:        userID,
	})
	if err != nil {
		return errorResponse(h.logger, err, zap.String("sheet_id", input.SpreadsheetID), zap.String("user_id", userID)), nil
	}

	return jsonResponse(http.StatusOK, SyncResponse{
		Success:  true,
		Message:  res.Message(),
		RowCount: res.RowCount,
	}), nil
}

// ReadSheet returns the raw values of a range.
func (h *SyncHandler) ReadSheet(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var input SheetRequest
	if err := decodeBody(req, &input); err != nil {
		return badRequest("Invalid request body"), nil
	}

	values, err := h.svc.Read(ctx, input.SpreadsheetID, input.Range)
	if err != nil {
		return errorResponse(h.logger, err, zap.String("sheet_id", input.SpreadsheetID)), nil
	}
	if values.Values == nil {
		values.Values = [][]string{}
	}
	return jsonResponse(http.StatusOK, values), nil
}

// ListRows returns the stored rows of the caller's scope.
func (h *SyncHandler) ListRows(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	sheetID := req.QueryStringParameters["sheetId"]
	if sheetID == "" {
		sheetID = req.QueryStringParameters["spreadsheetId"]
	}
	userID := h.userID(req)

	rows, err := h.svc.Rows(ctx, sheetID, userID)
	if err != nil {
		return errorResponse(h.logger, err, zap.String("sheet_id", sheetID), zap.String("user_id", userID)), nil
	}
	return jsonResponse(http.StatusOK, RowsResponse{SheetID: sheetID, Count: len(rows), Rows: rows}), nil
}
