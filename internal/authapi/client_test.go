package authapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestClient はhttptestサーバーに向けたClientを生成する。
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(Config{
		BaseURL:  server.URL,
		APIKey:   "test-api-key",
		AdminKey: "test-admin-key",
	})
	return client, server
}

func writeSessionResponse(w http.ResponseWriter) {
	json.NewEncoder(w).Encode(map[string]any{
		"access_token":  "token-abc",
		"refresh_token": "refresh-xyz",
		"expires_in":    3600,
		"user": map[string]any{
			"id":    "user-1",
			"email": "test@example.com",
			"user_metadata": map[string]any{
				"name": "Test User",
			},
		},
	})
}

// サインアップ成功時にセッションとIdentityが返ることを検証
func TestClient_SignUp_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/signup" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("apikey") != "test-api-key" {
			t.Errorf("apikey header = %q", r.Header.Get("apikey"))
		}

		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if payload["email"] != "test@example.com" {
			t.Errorf("email = %v", payload["email"])
		}
		data, _ := payload["data"].(map[string]any)
		if data["name"] != "Test User" {
			t.Errorf("data.name = %v", data["name"])
		}

		writeSessionResponse(w)
	})

	session, err := client.SignUp(context.Background(), "test@example.com", "password123", "Test User")
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if session.AccessToken != "token-abc" {
		t.Errorf("AccessToken = %q", session.AccessToken)
	}
	if session.Identity == nil || session.Identity.ID != "user-1" {
		t.Errorf("Identity = %+v", session.Identity)
	}
	if session.Identity.Name != "Test User" {
		t.Errorf("Identity.Name = %q", session.Identity.Name)
	}
}

// プロバイダーのエラー文言がProviderErrorにそのまま載ることを検証
func TestClient_SignUp_ProviderError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"msg": "User already registered"})
	})

	_, err := client.SignUp(context.Background(), "dup@example.com", "password123", "Dup")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %T: %v", err, err)
	}
	if provErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("StatusCode = %d", provErr.StatusCode)
	}
	if provErr.Message != "User already registered" {
		t.Errorf("Message = %q, want provider message verbatim", provErr.Message)
	}
}

// パスワードサインインがgrant_type=passwordで呼ばれることを検証
func TestClient_SignInWithPassword(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" || r.URL.Query().Get("grant_type") != "password" {
			t.Errorf("unexpected request: %s %s", r.URL.Path, r.URL.RawQuery)
		}
		writeSessionResponse(w)
	})

	session, err := client.SignInWithPassword(context.Background(), "test@example.com", "password123")
	if err != nil {
		t.Fatalf("SignInWithPassword returned error: %v", err)
	}
	if session.Identity.Email != "test@example.com" {
		t.Errorf("Identity.Email = %q", session.Identity.Email)
	}
}

// 認証失敗時のエラー文言パススルーを検証
func TestClient_SignInWithPassword_InvalidCredentials(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"error_description": "Invalid login credentials",
		})
	})

	_, err := client.SignInWithPassword(context.Background(), "test@example.com", "wrong")
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %T: %v", err, err)
	}
	if provErr.Message != "Invalid login credentials" {
		t.Errorf("Message = %q", provErr.Message)
	}
}

// GetUserがBearerトークンでIdentityを取得することを検証
func TestClient_GetUser(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/user" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer token-abc" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "user-1",
			"email": "test@example.com",
			"user_metadata": map[string]any{
				"full_name":  "Full Name",
				"avatar_url": "https://example.com/avatar.png",
			},
		})
	})

	identity, err := client.GetUser(context.Background(), "token-abc")
	if err != nil {
		t.Fatalf("GetUser returned error: %v", err)
	}
	if identity.Name != "Full Name" {
		t.Errorf("Name = %q, want full_name to take precedence", identity.Name)
	}
	if identity.AvatarURL != "https://example.com/avatar.png" {
		t.Errorf("AvatarURL = %q", identity.AvatarURL)
	}
}

// 無効なトークンに対してGetUserがProviderErrorを返すことを検証
func TestClient_GetUser_InvalidToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"msg": "invalid JWT"})
	})

	_, err := client.GetUser(context.Background(), "bad-token")
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %T: %v", err, err)
	}
	if provErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d", provErr.StatusCode)
	}
}

// UpdateUserが空フィールドを送信しないことを検証
func TestClient_UpdateUser_OmitsEmptyFields(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/user" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}

		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if _, ok := payload["email"]; ok {
			t.Error("email should not be sent when empty")
		}
		if payload["password"] != "newpassword" {
			t.Errorf("password = %v", payload["password"])
		}

		json.NewEncoder(w).Encode(map[string]any{
			"id":    "user-1",
			"email": "test@example.com",
		})
	})

	_, err := client.UpdateUser(context.Background(), "token-abc", UserUpdate{Password: "newpassword"})
	if err != nil {
		t.Fatalf("UpdateUser returned error: %v", err)
	}
}

// SignOutがログアウトエンドポイントを呼ぶことを検証
func TestClient_SignOut(t *testing.T) {
	var called bool
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		if r.Method != http.MethodPost || r.URL.Path != "/logout" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.SignOut(context.Background(), "token-abc"); err != nil {
		t.Fatalf("SignOut returned error: %v", err)
	}
	if !called {
		t.Error("logout endpoint was not called")
	}
}

// DeleteUserが管理者キーで呼ばれることを検証
func TestClient_DeleteUser_UsesAdminKey(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/admin/users/user-1" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("apikey") != "test-admin-key" {
			t.Errorf("apikey = %q, want admin key", r.Header.Get("apikey"))
		}
		if r.Header.Get("Authorization") != "Bearer test-admin-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	})

	if err := client.DeleteUser(context.Background(), "user-1"); err != nil {
		t.Fatalf("DeleteUser returned error: %v", err)
	}
}

// 認可コード交換がgrant_type=pkceで呼ばれることを検証
func TestClient_ExchangeCode(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" || r.URL.Query().Get("grant_type") != "pkce" {
			t.Errorf("unexpected request: %s %s", r.URL.Path, r.URL.RawQuery)
		}

		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if payload["auth_code"] != "code-123" {
			t.Errorf("auth_code = %v", payload["auth_code"])
		}

		writeSessionResponse(w)
	})

	session, err := client.ExchangeCode(context.Background(), "code-123")
	if err != nil {
		t.Fatalf("ExchangeCode returned error: %v", err)
	}
	if session.AccessToken != "token-abc" {
		t.Errorf("AccessToken = %q", session.AccessToken)
	}
}

// アクセストークンが無いレスポンスをエラーとして扱うことを検証
func TestParseSession_EmptyAccessToken(t *testing.T) {
	_, err := parseSession([]byte(`{"access_token": "", "user": {"id": "u1"}}`))
	if err == nil {
		t.Error("expected error for empty access token")
	}
}
