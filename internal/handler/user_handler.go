package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tomerbro/saas-starter/internal/middleware"
	"github.com/tomerbro/saas-starter/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// CurrentUser はアクセストークンからプロフィール行を解決する。
	// プロフィールが得られない場合はエラーではなくnilを返す。
	CurrentUser(ctx context.Context, accessToken string) (*model.User, error)
}

// UserHandler はユーザープロフィールのHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// userResponse はユーザープロフィールのAPIレスポンス。
type userResponse struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	Name               string `json:"name"`
	AvatarURL          string `json:"avatar_url,omitempty"`
	Role               string `json:"role"`
	PlanName           string `json:"plan_name,omitempty"`
	SubscriptionStatus string `json:"subscription_status"`
	CreatedAt          string `json:"created_at"`
}

// Me は現在のユーザーのプロフィールを返す。
// GET /api/user
// 未認証・プロフィール未解決の場合は401ではなくnullを返す。
// 画面の初期表示に使われるため、このエンドポイントはエラーを返さない。
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	token := middleware.TokenFromRequest(r)
	user, err := h.service.CurrentUser(r.Context(), token)
	if err != nil || user == nil {
		json.NewEncoder(w).Encode(nil)
		return
	}

	json.NewEncoder(w).Encode(toUserResponse(user))
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:                 user.ID,
		Email:              user.Email,
		Name:               user.Name,
		AvatarURL:          user.AvatarURL,
		Role:               string(user.Role),
		PlanName:           user.PlanName,
		SubscriptionStatus: user.SubscriptionStatus,
		CreatedAt:          user.CreatedAt.UTC().Format(time.RFC3339),
	}
}
