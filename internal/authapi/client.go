// Package authapi はホスト型認証プロバイダーのREST APIクライアントを提供する。
// 資格情報・セッション・トークンはプロバイダーが所有し、本アプリは
// アクセストークンの検証とIdentityメタデータの参照のみ行う。
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tomerbro/saas-starter/internal/model"
)

// Session は認証成功時にプロバイダーが発行するセッション情報。
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	Identity     *model.Identity
}

// UserUpdate はプロバイダー側のIdentityに対する更新内容。
// 空のフィールドは送信されず、更新されない。
type UserUpdate struct {
	Email    string
	Password string
	Name     string
}

// Provider は認証プロバイダーの操作を抽象化する。
type Provider interface {
	// SignUp は新しいIdentityを作成し、セッションを発行する。
	SignUp(ctx context.Context, email, password, name string) (*Session, error)

	// SignInWithPassword はメールアドレスとパスワードでセッションを発行する。
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)

	// GetUser はアクセストークンを検証し、対応するIdentityを返す。
	GetUser(ctx context.Context, accessToken string) (*model.Identity, error)

	// UpdateUser はトークン保持者自身のIdentityを更新する。
	UpdateUser(ctx context.Context, accessToken string, update UserUpdate) (*model.Identity, error)

	// SignOut はアクセストークンに紐づくセッションを無効化する。
	SignOut(ctx context.Context, accessToken string) error

	// DeleteUser は管理者キーで指定IdentityとそのセッションをすべてDELETEする。
	DeleteUser(ctx context.Context, userID string) error

	// ExchangeCode はOAuthコールバックの認可コードをセッションに交換する。
	ExchangeCode(ctx context.Context, code string) (*Session, error)
}

// ProviderError はプロバイダーが返したエラーレスポンスを表す。
// Messageはプロバイダーの文言をそのまま保持する。
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("auth provider returned status %d: %s", e.StatusCode, e.Message)
}

// Config は認証プロバイダーAPIクライアントの設定。
type Config struct {
	// BaseURL はプロバイダーAPIのベースURL（テスト用にオーバーライド可能）
	BaseURL string
	// APIKey は公開APIキー。全リクエストのapikeyヘッダーに載せる。
	APIKey string
	// AdminKey は管理者操作（ユーザー削除）用のサービスキー
	AdminKey string
	// Timeout はHTTPリクエスト全体のタイムアウト
	Timeout time.Duration
}

// Client は認証プロバイダーAPIのHTTPクライアント実装。
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient はClientを生成する。
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// sessionResponse はトークン発行エンドポイントのレスポンス。
type sessionResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"`
	User         userResponse `json:"user"`
}

// userResponse はプロバイダーが返すIdentityのペイロード。
type userResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		Name      string `json:"name"`
		FullName  string `json:"full_name"`
		AvatarURL string `json:"avatar_url"`
		Picture   string `json:"picture"`
	} `json:"user_metadata"`
}

// toIdentity はプロバイダーのペイロードをmodel.Identityに変換する。
// 表示名はfull_name優先、アバターURLはavatar_url優先でフォールバックする。
func (u *userResponse) toIdentity() *model.Identity {
	name := u.UserMetadata.FullName
	if name == "" {
		name = u.UserMetadata.Name
	}
	avatarURL := u.UserMetadata.AvatarURL
	if avatarURL == "" {
		avatarURL = u.UserMetadata.Picture
	}
	return &model.Identity{
		ID:        u.ID,
		Email:     u.Email,
		Name:      name,
		AvatarURL: avatarURL,
	}
}

// SignUp は新しいIdentityを作成し、セッションを発行する。
func (c *Client) SignUp(ctx context.Context, email, password, name string) (*Session, error) {
	payload := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"name": name},
	}
	body, err := c.doJSON(ctx, http.MethodPost, "/signup", c.config.APIKey, "", payload)
	if err != nil {
		return nil, err
	}
	return parseSession(body)
}

// SignInWithPassword はメールアドレスとパスワードでセッションを発行する。
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	payload := map[string]any{
		"email":    email,
		"password": password,
	}
	body, err := c.doJSON(ctx, http.MethodPost, "/token?grant_type=password", c.config.APIKey, "", payload)
	if err != nil {
		return nil, err
	}
	return parseSession(body)
}

// GetUser はアクセストークンを検証し、対応するIdentityを返す。
func (c *Client) GetUser(ctx context.Context, accessToken string) (*model.Identity, error) {
	body, err := c.doJSON(ctx, http.MethodGet, "/user", c.config.APIKey, accessToken, nil)
	if err != nil {
		return nil, err
	}
	return parseIdentity(body)
}

// UpdateUser はトークン保持者自身のIdentityを更新する。
func (c *Client) UpdateUser(ctx context.Context, accessToken string, update UserUpdate) (*model.Identity, error) {
	payload := map[string]any{}
	if update.Email != "" {
		payload["email"] = update.Email
	}
	if update.Password != "" {
		payload["password"] = update.Password
	}
	if update.Name != "" {
		payload["data"] = map[string]string{"name": update.Name}
	}
	body, err := c.doJSON(ctx, http.MethodPut, "/user", c.config.APIKey, accessToken, payload)
	if err != nil {
		return nil, err
	}
	return parseIdentity(body)
}

// SignOut はアクセストークンに紐づくセッションを無効化する。
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/logout", c.config.APIKey, accessToken, nil)
	return err
}

// DeleteUser は管理者キーで指定Identityを削除する。
// 削除によりプロバイダー側の全セッションも終了する。
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	_, err := c.doJSON(ctx, http.MethodDelete, "/admin/users/"+userID, c.config.AdminKey, c.config.AdminKey, nil)
	return err
}

// ExchangeCode はOAuthコールバックの認可コードをセッションに交換する。
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Session, error) {
	payload := map[string]any{
		"auth_code": code,
	}
	body, err := c.doJSON(ctx, http.MethodPost, "/token?grant_type=pkce", c.config.APIKey, "", payload)
	if err != nil {
		return nil, err
	}
	return parseSession(body)
}

// doJSON はJSONリクエストを送信し、成功時のレスポンスボディを返す。
// 2xx以外のステータスはProviderErrorとして返す。
func (c *Client) doJSON(ctx context.Context, method, path, apiKey, bearerToken string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth provider request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    parseErrorMessage(body),
		}
	}

	return body, nil
}

// parseErrorMessage はプロバイダーのエラーレスポンスから文言を取り出す。
// フィールド名はエンドポイントにより揺れるため、既知のキーを順に試す。
func parseErrorMessage(body []byte) string {
	var errResp struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		for _, msg := range []string{errResp.Msg, errResp.Message, errResp.ErrorDescription, errResp.Error} {
			if msg != "" {
				return msg
			}
		}
	}
	return string(body)
}

// parseSession はセッションレスポンスを解析する。
func parseSession(body []byte) (*Session, error) {
	var sessResp sessionResponse
	if err := json.Unmarshal(body, &sessResp); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}
	if sessResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in session response")
	}
	if sessResp.User.ID == "" {
		return nil, fmt.Errorf("empty user ID in session response")
	}
	return &Session{
		AccessToken:  sessResp.AccessToken,
		RefreshToken: sessResp.RefreshToken,
		ExpiresIn:    sessResp.ExpiresIn,
		Identity:     sessResp.User.toIdentity(),
	}, nil
}

// parseIdentity はIdentityレスポンスを解析する。
func parseIdentity(body []byte) (*model.Identity, error) {
	var userResp userResponse
	if err := json.Unmarshal(body, &userResp); err != nil {
		return nil, fmt.Errorf("failed to parse user response: %w", err)
	}
	if userResp.ID == "" {
		return nil, fmt.Errorf("empty user ID in response")
	}
	return userResp.toIdentity(), nil
}

// compile-time interface check
var _ Provider = (*Client)(nil)
