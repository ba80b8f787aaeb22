package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tomerbro/saas-starter/internal/metrics"
	"github.com/tomerbro/saas-starter/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
// *sql.DB がこれを満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Verifier          middleware.TokenVerifier
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger
	Collector         metrics.MetricsCollector
	MetricsGatherer   prometheus.Gatherer

	// 運用
	HealthChecker HealthChecker

	// アカウント
	AccountService AccountServiceInterface
	AccountConfig  AccountHandlerConfig

	// プロフィール・アクティビティ
	UserService    UserServiceInterface
	ActivityReader ActivityReaderInterface

	// 課金
	BillingService BillingServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → CSRF
//
// 認証ルート（/auth/*）とGET /api/userは認証ミドルウェアの外に配置する。
// GET /api/userは未認証時にnullを返す契約のため、401を返す認証グループに入れない。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Collector))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	// 運用エンドポイント
	r.Get("/health", newHealthHandler(deps.HealthChecker))
	r.Method(http.MethodGet, "/metrics", metrics.SetupMetricsRoute(deps.MetricsGatherer))
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	accountHandler := NewAccountHandler(deps.AccountService, deps.Verifier, deps.AccountConfig)
	userHandler := NewUserHandler(deps.UserService)
	activityHandler := NewActivityHandler(deps.ActivityReader)
	billingHandler := NewBillingHandler(deps.BillingService, deps.UserService)

	// --- 認証不要のルート ---

	r.Route("/auth", func(r chi.Router) {
		// 資格情報を受け取るエンドポイントは厳しいレート制限を適用
		r.With(deps.RateLimiter.CredentialMiddleware()).Post("/sign-up", accountHandler.SignUp)
		r.With(deps.RateLimiter.CredentialMiddleware()).Post("/sign-in", accountHandler.SignIn)

		r.Post("/sign-out", accountHandler.SignOut)
		r.Get("/callback", accountHandler.Callback)
	})

	// プロフィール取得（未認証時はnullを返す）
	r.Get("/api/user", userHandler.Me)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: TokenVerification → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Verifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// アカウント管理
		r.Post("/api/user/password", accountHandler.ChangePassword)
		r.Route("/api/user/account", func(r chi.Router) {
			r.Put("/", accountHandler.UpdateAccount)
			r.Delete("/", accountHandler.DeleteAccount)
		})

		// アクティビティログ
		r.Get("/api/activity", activityHandler.List)

		// 課金
		r.Route("/api/billing", func(r chi.Router) {
			r.Post("/checkout", billingHandler.Checkout)
			r.Post("/portal", billingHandler.Portal)
			r.Post("/sync", billingHandler.Sync)
		})
	})

	return r
}

// newHealthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if err := checker.PingContext(r.Context()); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
			return
		}

		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
