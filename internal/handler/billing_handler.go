package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tomerbro/saas-starter/internal/middleware"
	"github.com/tomerbro/saas-starter/internal/model"
)

// BillingServiceInterface は課金ハンドラーが必要とするサービスインターフェース。
type BillingServiceInterface interface {
	// Checkout はホスト型チェックアウトセッションを作成しURLを返す。
	Checkout(ctx context.Context, user *model.User, priceID string) (string, error)
	// Portal はカスタマーポータルセッションを作成しURLを返す。
	Portal(ctx context.Context, user *model.User) (string, error)
	// SyncSubscription は決済プロセッサのサブスクリプション状態をプロフィール行に反映する。
	SyncSubscription(ctx context.Context, customerID string) error
}

// BillingHandler はサブスクリプション課金のHTTPハンドラー。
// プロフィール行の解決にはUserServiceInterfaceを使う（顧客IDはプロフィール行が保持するため）。
type BillingHandler struct {
	service BillingServiceInterface
	users   UserServiceInterface
}

// NewBillingHandler はBillingHandlerを生成する。
func NewBillingHandler(service BillingServiceInterface, users UserServiceInterface) *BillingHandler {
	return &BillingHandler{
		service: service,
		users:   users,
	}
}

// checkoutRequest はチェックアウトセッション作成リクエストのボディ。
type checkoutRequest struct {
	PriceID string `json:"price_id"`
}

// redirectURLResponse はホスト型ページへのリダイレクトURLレスポンス。
type redirectURLResponse struct {
	URL string `json:"url"`
}

// Checkout はチェックアウトセッションを作成する。
// POST /api/billing/checkout
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	user, ok := h.resolveUser(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestError(w)
		return
	}

	url, err := h.service.Checkout(r.Context(), user, req.PriceID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(redirectURLResponse{URL: url})
}

// Portal はカスタマーポータルセッションを作成する。
// POST /api/billing/portal
func (h *BillingHandler) Portal(w http.ResponseWriter, r *http.Request) {
	user, ok := h.resolveUser(w, r)
	if !ok {
		return
	}

	url, err := h.service.Portal(r.Context(), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(redirectURLResponse{URL: url})
}

// Sync は現在のユーザーのサブスクリプション状態を決済プロセッサから取り込む。
// POST /api/billing/sync
// チェックアウト完了後のリダイレクト先から呼ばれる。顧客IDは自分のプロフィール行の
// ものだけを使い、リクエストからは受け取らない。
func (h *BillingHandler) Sync(w http.ResponseWriter, r *http.Request) {
	user, ok := h.resolveUser(w, r)
	if !ok {
		return
	}

	if user.StripeCustomerID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("決済プロセッサの顧客が未登録です。"))
		return
	}

	if err := h.service.SyncSubscription(r.Context(), user.StripeCustomerID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, "サブスクリプション情報を同期しました。")
}

// resolveUser は認証主体からプロフィール行を解決する。
// 失敗時はエラーレスポンスを書き込み、falseを返す。
func (h *BillingHandler) resolveUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return nil, false
	}

	user, err := h.users.CurrentUser(r.Context(), principal.Token)
	if err != nil || user == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
		return nil, false
	}

	return user, true
}
