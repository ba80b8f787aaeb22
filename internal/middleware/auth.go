// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tomerbro/saas-starter/internal/model"
)

// AccessTokenCookieName はアクセストークンを保持するCookieの名前。
const AccessTokenCookieName = "access_token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストに認証主体を格納するためのキー。
var principalContextKey = contextKey("principal")

// Principal は認証済みリクエストの主体を表す。
// トークンはプロバイダーが発行し、本アプリは検証結果のみ保持する。
type Principal struct {
	Token    string
	Identity *model.Identity
}

// TokenVerifier はアクセストークンの検証に必要なインターフェース。
// authapi.Providerの部分集合として定義する。
type TokenVerifier interface {
	GetUser(ctx context.Context, accessToken string) (*model.Identity, error)
}

// TokenFromRequest はリクエストからアクセストークンを取り出す。
// HTTP Only Cookieを優先し、無ければAuthorization: Bearerヘッダーを参照する。
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return token
	}
	return ""
}

// NewAuthMiddleware はアクセストークンをプロバイダーで検証するミドルウェアを返す。
// 検証済みのPrincipalをリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
				return
			}

			identity, err := verifier.GetUser(r.Context(), token)
			if err != nil {
				slog.Warn("token verification failed",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
				return
			}

			principal := &Principal{Token: token, Identity: identity}
			ctx := context.WithValue(r.Context(), principalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext はリクエストコンテキストから認証主体を取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func PrincipalFromContext(ctx context.Context) (*Principal, error) {
	principal, ok := ctx.Value(principalContextKey).(*Principal)
	if !ok || principal == nil || principal.Identity == nil {
		return nil, fmt.Errorf("principal not found in context")
	}
	return principal, nil
}

// ContextWithPrincipal はコンテキストに認証主体を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}
