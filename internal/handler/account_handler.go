// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tomerbro/saas-starter/internal/account"
	"github.com/tomerbro/saas-starter/internal/authapi"
	"github.com/tomerbro/saas-starter/internal/middleware"
	"github.com/tomerbro/saas-starter/internal/model"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	Register(ctx context.Context, email, password, ipAddress string) (*authapi.Session, error)
	Authenticate(ctx context.Context, email, password, ipAddress string) (*authapi.Session, error)
	SignOut(ctx context.Context, accessToken string, identity *model.Identity, ipAddress string) error
	ChangePassword(ctx context.Context, accessToken string, identity *model.Identity, newPassword, ipAddress string) error
	UpdateProfile(ctx context.Context, accessToken string, identity *model.Identity, name, email, ipAddress string) (*account.SyncOutcome, error)
	DeleteAccount(ctx context.Context, identity *model.Identity, ipAddress string) error
	HandleOAuthCallback(ctx context.Context, code, ipAddress string) (*authapi.Session, error)
}

// AccountHandlerConfig はアカウントハンドラーの設定。
type AccountHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // アクセストークンCookieの有効期間（秒）
}

// AccountHandler はアカウントライフサイクル操作のHTTPハンドラー。
type AccountHandler struct {
	service  AccountServiceInterface
	verifier middleware.TokenVerifier
	config   AccountHandlerConfig
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface, verifier middleware.TokenVerifier, config AccountHandlerConfig) *AccountHandler {
	return &AccountHandler{
		service:  service,
		verifier: verifier,
		config:   config,
	}
}

// credentialsRequest はサインアップ・サインインリクエストのボディ。
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// changePasswordRequest はパスワード変更リクエストのボディ。
type changePasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// updateAccountRequest はプロフィール更新リクエストのボディ。
type updateAccountRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SignUp はアカウント登録を処理する。
// POST /auth/sign-up
// 成功時はアクセストークンCookieを設定し、ダッシュボードへリダイレクトする。
func (h *AccountHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestError(w)
		return
	}

	session, err := h.service.Register(r.Context(), req.Email, req.Password, middleware.ClientIP(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setAccessTokenCookie(w, session.AccessToken)
	http.Redirect(w, r, h.config.BaseURL+"/dashboard", http.StatusSeeOther)
}

// SignIn はサインインを処理する。
// POST /auth/sign-in
func (h *AccountHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestError(w)
		return
	}

	session, err := h.service.Authenticate(r.Context(), req.Email, req.Password, middleware.ClientIP(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setAccessTokenCookie(w, session.AccessToken)
	http.Redirect(w, r, h.config.BaseURL+"/dashboard", http.StatusSeeOther)
}

// SignOut はセッションを破棄する。
// POST /auth/sign-out
// セッションが無効でもCookieのクリアとリダイレクトは常に行う。
func (h *AccountHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromRequest(r)
	if token != "" {
		identity, err := h.verifier.GetUser(r.Context(), token)
		if err == nil {
			if signOutErr := h.service.SignOut(r.Context(), token, identity, middleware.ClientIP(r)); signOutErr != nil {
				slog.Error("failed to sign out", slog.String("error", signOutErr.Error()))
				// サインアウト失敗してもCookieはクリアする
			}
		}
	}

	h.clearAccessTokenCookie(w)
	http.Redirect(w, r, h.config.BaseURL+"/sign-in", http.StatusSeeOther)
}

// Callback はOAuth認可コードのコールバックを処理する。
// GET /auth/callback?code=xxx
// 失敗時はサインイン画面にリダイレクトする（エラーページは持たない）。
func (h *AccountHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Redirect(w, r, h.config.BaseURL+"/sign-in", http.StatusSeeOther)
		return
	}

	session, err := h.service.HandleOAuthCallback(r.Context(), code, middleware.ClientIP(r))
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		http.Redirect(w, r, h.config.BaseURL+"/sign-in", http.StatusSeeOther)
		return
	}

	h.setAccessTokenCookie(w, session.AccessToken)
	http.Redirect(w, r, h.config.BaseURL+"/dashboard", http.StatusSeeOther)
}

// ChangePassword はパスワード変更を処理する。
// POST /api/user/password
// リダイレクトせず結果オブジェクトを返す（呼び出し元が同一画面に留まるため）。
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestError(w)
		return
	}

	if err := h.service.ChangePassword(r.Context(), principal.Token, principal.Identity, req.NewPassword, middleware.ClientIP(r)); err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, "パスワードを更新しました。")
}

// UpdateAccount はプロフィール（表示名・メールアドレス）の更新を処理する。
// PUT /api/user/account
func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}

	var req updateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestError(w)
		return
	}

	_, err = h.service.UpdateProfile(r.Context(), principal.Token, principal.Identity, req.Name, req.Email, middleware.ClientIP(r))
	if err != nil {
		// PROFILE_SYNC_FAILEDもここで区別されたコードのまま返る
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, "アカウント情報を更新しました。")
}

// DeleteAccount はアカウント削除を処理する。
// DELETE /api/user/account
// 成功時はCookieをクリアしてサインイン画面にリダイレクトする。
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}

	if err := h.service.DeleteAccount(r.Context(), principal.Identity, middleware.ClientIP(r)); err != nil {
		handleServiceError(w, err)
		return
	}

	h.clearAccessTokenCookie(w)
	http.Redirect(w, r, h.config.BaseURL+"/sign-in", http.StatusSeeOther)
}

// setAccessTokenCookie はアクセストークンをHTTP Only Cookieとして設定する。
func (h *AccountHandler) setAccessTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearAccessTokenCookie はアクセストークンCookieを削除する。
func (h *AccountHandler) clearAccessTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// --- ヘルパー関数 ---

// successResponse は成功結果オブジェクト。
type successResponse struct {
	Success string `json:"success"`
}

// writeSuccessResponse は成功結果オブジェクトを書き込む。
func writeSuccessResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(successResponse{Success: message})
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// writeInvalidRequestError はリクエストボディの解析失敗レスポンスを書き込む。
func writeInvalidRequestError(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディの解析に失敗しました。"))
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeAuthFailed, model.ErrCodeNotAuthenticated, model.ErrCodeOAuthFailed:
		return http.StatusUnauthorized
	case model.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeBillingFailed:
		return http.StatusBadGateway
	case model.ErrCodeProfileSyncFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
