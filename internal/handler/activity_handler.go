package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tomerbro/saas-starter/internal/middleware"
	"github.com/tomerbro/saas-starter/internal/model"
)

// ActivityReaderInterface はアクティビティハンドラーが必要とするリーダーインターフェース。
type ActivityReaderInterface interface {
	// ListRecent は最新のアクティビティログを新しい順に返す。失敗時は空スライス。
	ListRecent(ctx context.Context, userID string) []*model.ActivityLog
}

// ActivityHandler はアクティビティログのHTTPハンドラー。
type ActivityHandler struct {
	reader ActivityReaderInterface
}

// NewActivityHandler はActivityHandlerを生成する。
func NewActivityHandler(reader ActivityReaderInterface) *ActivityHandler {
	return &ActivityHandler{reader: reader}
}

// activityLogResponse はアクティビティログエントリのAPIレスポンス。
type activityLogResponse struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
	IPAddress string `json:"ip_address,omitempty"`
}

// List は現在のユーザーの最新アクティビティログを返す。
// GET /api/activity
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}

	entries := h.reader.ListRecent(r.Context(), principal.Identity.ID)

	response := make([]activityLogResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, activityLogResponse{
			ID:        entry.ID,
			Action:    string(entry.Action),
			Timestamp: entry.Timestamp.UTC().Format(time.RFC3339),
			IPAddress: entry.IPAddress,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
