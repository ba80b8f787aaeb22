package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomerbro/saas-starter/internal/model"
)

// mockActivityReader はActivityReaderInterfaceのモック。
type mockActivityReader struct {
	listRecentFn func(ctx context.Context, userID string) []*model.ActivityLog
}

func (m *mockActivityReader) ListRecent(ctx context.Context, userID string) []*model.ActivityLog {
	return m.listRecentFn(ctx, userID)
}

// アクティビティログがJSONで返ることを検証
func TestActivityHandler_List(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	reader := &mockActivityReader{
		listRecentFn: func(ctx context.Context, userID string) []*model.ActivityLog {
			if userID != "u1" {
				t.Errorf("userID = %q", userID)
			}
			return []*model.ActivityLog{
				{ID: "l2", UserID: "u1", Action: model.ActionSignIn, Timestamp: now, IPAddress: "203.0.113.9"},
				{ID: "l1", UserID: "u1", Action: model.ActionSignUp, Timestamp: now.Add(-time.Hour)},
			}
		},
	}
	h := NewActivityHandler(reader)

	req := authenticatedRequest(http.MethodGet, "/api/activity", "")
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body []activityLogResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body) != 2 {
		t.Fatalf("len(body) = %d, want 2", len(body))
	}
	if body[0].Action != "sign_in" || body[0].IPAddress != "203.0.113.9" {
		t.Errorf("body[0] = %+v", body[0])
	}
	if body[1].Action != "sign_up" || body[1].IPAddress != "" {
		t.Errorf("body[1] = %+v", body[1])
	}
}

// ログが無い場合に空配列が返ることを検証
func TestActivityHandler_List_Empty(t *testing.T) {
	reader := &mockActivityReader{
		listRecentFn: func(ctx context.Context, userID string) []*model.ActivityLog {
			return []*model.ActivityLog{}
		},
	}
	h := NewActivityHandler(reader)

	req := authenticatedRequest(http.MethodGet, "/api/activity", "")
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	// nilではなく[]として返す
	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want []", got)
	}
}

// 認証主体が無い場合に401が返ることを検証
func TestActivityHandler_List_NotAuthenticated(t *testing.T) {
	h := NewActivityHandler(&mockActivityReader{})

	req := httptest.NewRequest(http.MethodGet, "/api/activity", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
