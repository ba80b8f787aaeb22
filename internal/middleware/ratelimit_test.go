package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomerbro/saas-starter/internal/model"
)

func testRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(1),
		GeneralBurst:    2,
		CredentialRate:  rate.Limit(1),
		CredentialBurst: 2,
		CleanupInterval: time.Minute,
	}
}

func principalRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/activity", nil)
	principal := &Principal{Token: "t", Identity: &model.Identity{ID: userID}}
	return req.WithContext(ContextWithPrincipal(req.Context(), principal))
}

// バースト超過で429が返ることを検証
func TestRateLimiter_GeneralMiddleware_Exceeded(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// バースト2まで許可、3回目は拒否
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, principalRequest("u1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, principalRequest("u1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

// ユーザーごとに独立したリミットが適用されることを検証
func TestRateLimiter_GeneralMiddleware_PerUser(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, principalRequest("u1"))
	}

	// 別ユーザーは影響を受けない
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, principalRequest("u2"))
	if rec.Code != http.StatusOK {
		t.Errorf("status for u2 = %d, want 200", rec.Code)
	}

	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", rl.GeneralLimiterCount())
	}
}

// 未認証リクエストが401になることを検証
func TestRateLimiter_GeneralMiddleware_NoPrincipal(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/activity", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// 資格情報リミッターがクライアントIPごとに動作することを検証
func TestRateLimiter_CredentialMiddleware_PerIP(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.CredentialMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	newReq := func(ip string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/auth/sign-in", nil)
		req.RemoteAddr = ip + ":54321"
		return req
	}

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newReq("198.51.100.1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newReq("198.51.100.1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}

	// 別IPは影響を受けない
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, newReq("198.51.100.2"))
	if rec.Code != http.StatusOK {
		t.Errorf("status for other IP = %d, want 200", rec.Code)
	}
}

// X-Forwarded-Forの先頭エントリがクライアントIPとして使われることを検証
func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if ip := ClientIP(req); ip != "203.0.113.9" {
		t.Errorf("ClientIP = %q, want 203.0.113.9", ip)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	if ip := ClientIP(req); ip != "203.0.113.9" {
		t.Errorf("ClientIP = %q, want 203.0.113.9", ip)
	}
}
