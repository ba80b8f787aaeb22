package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tomerbro/saas-starter/internal/model"
)

// mockBillingService はBillingServiceInterfaceのモック。
type mockBillingService struct {
	checkoutFn func(ctx context.Context, user *model.User, priceID string) (string, error)
	portalFn   func(ctx context.Context, user *model.User) (string, error)
	syncFn     func(ctx context.Context, customerID string) error
}

func (m *mockBillingService) Checkout(ctx context.Context, user *model.User, priceID string) (string, error) {
	return m.checkoutFn(ctx, user, priceID)
}

func (m *mockBillingService) Portal(ctx context.Context, user *model.User) (string, error) {
	return m.portalFn(ctx, user)
}

func (m *mockBillingService) SyncSubscription(ctx context.Context, customerID string) error {
	return m.syncFn(ctx, customerID)
}

func billingTestUserService(user *model.User) *mockUserService {
	return &mockUserService{
		currentUserFn: func(ctx context.Context, accessToken string) (*model.User, error) {
			return user, nil
		},
	}
}

// チェックアウトセッション作成でURLが返ることを検証
func TestBillingHandler_Checkout_Success(t *testing.T) {
	service := &mockBillingService{
		checkoutFn: func(ctx context.Context, user *model.User, priceID string) (string, error) {
			if user.ID != "u1" || priceID != "price_123" {
				t.Errorf("user.ID = %q, priceID = %q", user.ID, priceID)
			}
			return "https://checkout.example.com/cs_1", nil
		},
	}
	h := NewBillingHandler(service, billingTestUserService(&model.User{ID: "u1"}))

	req := authenticatedRequest(http.MethodPost, "/api/billing/checkout", `{"price_id":"price_123"}`)
	rec := httptest.NewRecorder()
	h.Checkout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body redirectURLResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.URL != "https://checkout.example.com/cs_1" {
		t.Errorf("url = %q", body.URL)
	}
}

// プロフィール未解決の場合に404が返ることを検証
func TestBillingHandler_Checkout_UserNotFound(t *testing.T) {
	h := NewBillingHandler(&mockBillingService{}, billingTestUserService(nil))

	req := authenticatedRequest(http.MethodPost, "/api/billing/checkout", `{"price_id":"price_123"}`)
	rec := httptest.NewRecorder()
	h.Checkout(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if body := decodeErrorBody(t, rec); body.Code != model.ErrCodeUserNotFound {
		t.Errorf("code = %q", body.Code)
	}
}

// プロセッサ呼び出し失敗が502で返ることを検証
func TestBillingHandler_Checkout_ProcessorError(t *testing.T) {
	service := &mockBillingService{
		checkoutFn: func(ctx context.Context, user *model.User, priceID string) (string, error) {
			return "", model.NewBillingFailedError("processor unavailable")
		},
	}
	h := NewBillingHandler(service, billingTestUserService(&model.User{ID: "u1"}))

	req := authenticatedRequest(http.MethodPost, "/api/billing/checkout", `{"price_id":"price_123"}`)
	rec := httptest.NewRecorder()
	h.Checkout(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if body := decodeErrorBody(t, rec); body.Code != model.ErrCodeBillingFailed {
		t.Errorf("code = %q", body.Code)
	}
}

// ポータルセッション作成でURLが返ることを検証
func TestBillingHandler_Portal_Success(t *testing.T) {
	service := &mockBillingService{
		portalFn: func(ctx context.Context, user *model.User) (string, error) {
			return "https://billing.example.com/ps_1", nil
		},
	}
	h := NewBillingHandler(service, billingTestUserService(&model.User{ID: "u1", StripeCustomerID: "cus_1"}))

	req := authenticatedRequest(http.MethodPost, "/api/billing/portal", "")
	rec := httptest.NewRecorder()
	h.Portal(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body redirectURLResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.URL != "https://billing.example.com/ps_1" {
		t.Errorf("url = %q", body.URL)
	}
}

// 同期が自分のプロフィール行の顧客IDで行われることを検証
func TestBillingHandler_Sync_Success(t *testing.T) {
	service := &mockBillingService{
		syncFn: func(ctx context.Context, customerID string) error {
			if customerID != "cus_1" {
				t.Errorf("customerID = %q", customerID)
			}
			return nil
		},
	}
	h := NewBillingHandler(service, billingTestUserService(&model.User{ID: "u1", StripeCustomerID: "cus_1"}))

	req := authenticatedRequest(http.MethodPost, "/api/billing/sync", "")
	rec := httptest.NewRecorder()
	h.Sync(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

// 顧客未登録の同期が400で拒否されることを検証
func TestBillingHandler_Sync_NoCustomer(t *testing.T) {
	h := NewBillingHandler(&mockBillingService{}, billingTestUserService(&model.User{ID: "u1"}))

	req := authenticatedRequest(http.MethodPost, "/api/billing/sync", "")
	rec := httptest.NewRecorder()
	h.Sync(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// 認証主体が無い場合に401が返ることを検証
func TestBillingHandler_NotAuthenticated(t *testing.T) {
	h := NewBillingHandler(&mockBillingService{}, billingTestUserService(&model.User{ID: "u1"}))

	req := httptest.NewRequest(http.MethodPost, "/api/billing/portal", nil)
	rec := httptest.NewRecorder()
	h.Portal(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
