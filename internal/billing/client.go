// Package billing はホスト型決済プロセッサとの連携を提供する。
// サブスクリプション・プラン・課金サイクルの状態はプロセッサが所有し、
// 本アプリはチェックアウト/ポータルへの誘導とプロフィールへのミラーのみ行う。
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultStripeAPIURL = "https://api.stripe.com"

// Customer は決済プロセッサ側の顧客レコード。
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// CheckoutSession はホスト型チェックアウトページへのセッション。
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PortalSession はホスト型カスタマーポータルへのセッション。
type PortalSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Subscription は決済プロセッサ側のサブスクリプション状態。
type Subscription struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Items  struct {
		Data []struct {
			Price struct {
				ID      string `json:"id"`
				Product string `json:"product"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// Product は決済プロセッサ側の商品レコード。名前がプラン名として表示される。
type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProcessorClient は決済プロセッサAPIの操作を抽象化する。
type ProcessorClient interface {
	// CreateCustomer は顧客レコードを作成する。
	CreateCustomer(ctx context.Context, email string) (*Customer, error)

	// CreateCheckoutSession はサブスクリプション購入用のチェックアウトセッションを作成する。
	CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (*CheckoutSession, error)

	// CreatePortalSession は課金管理用のカスタマーポータルセッションを作成する。
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error)

	// ListSubscriptions は顧客の全サブスクリプションを取得する。
	ListSubscriptions(ctx context.Context, customerID string) ([]*Subscription, error)

	// GetProduct は商品レコードを取得する。
	GetProduct(ctx context.Context, productID string) (*Product, error)
}

// ClientConfig は決済プロセッサAPIクライアントの設定。
type ClientConfig struct {
	// SecretKey はAPIシークレットキー
	SecretKey string
	// BaseURL はAPIのベースURL（テスト用にオーバーライド可能）
	BaseURL string
	// Timeout はHTTPリクエスト全体のタイムアウト
	Timeout time.Duration
}

// Client は決済プロセッサAPIのHTTPクライアント実装。
// リクエストボディはフォームエンコード、レスポンスはJSON。
type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

// NewClient はClientを生成する。
func NewClient(config ClientConfig) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultStripeAPIURL
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// CreateCustomer は顧客レコードを作成する。
func (c *Client) CreateCustomer(ctx context.Context, email string) (*Customer, error) {
	params := url.Values{"email": {email}}

	var customer Customer
	if err := c.do(ctx, http.MethodPost, "/v1/customers", params, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// CreateCheckoutSession はサブスクリプション購入用のチェックアウトセッションを作成する。
func (c *Client) CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (*CheckoutSession, error) {
	params := url.Values{
		"customer":                {customerID},
		"mode":                    {"subscription"},
		"line_items[0][price]":    {priceID},
		"line_items[0][quantity]": {"1"},
		"success_url":             {successURL},
		"cancel_url":              {cancelURL},
	}

	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", params, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CreatePortalSession は課金管理用のカスタマーポータルセッションを作成する。
func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error) {
	params := url.Values{
		"customer":   {customerID},
		"return_url": {returnURL},
	}

	var session PortalSession
	if err := c.do(ctx, http.MethodPost, "/v1/billing_portal/sessions", params, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSubscriptions は顧客の全サブスクリプションを取得する。
func (c *Client) ListSubscriptions(ctx context.Context, customerID string) ([]*Subscription, error) {
	params := url.Values{
		"customer": {customerID},
		"status":   {"all"},
	}

	var list struct {
		Data []*Subscription `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/subscriptions?"+params.Encode(), nil, &list); err != nil {
		return nil, err
	}
	return list.Data, nil
}

// GetProduct は商品レコードを取得する。
func (c *Client) GetProduct(ctx context.Context, productID string) (*Product, error) {
	var product Product
	if err := c.do(ctx, http.MethodGet, "/v1/products/"+productID, nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// processorErrorResponse は決済プロセッサのエラーレスポンス。
type processorErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// do はフォームエンコードのリクエストを送信し、JSONレスポンスをデコードする。
func (c *Client) do(ctx context.Context, method, path string, params url.Values, out any) error {
	var reqBody io.Reader
	if params != nil && method != http.MethodGet {
		reqBody = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.SecretKey)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payment processor request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp processorErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return fmt.Errorf("payment processor returned status %d: %s", resp.StatusCode, errResp.Error.Message)
		}
		return fmt.Errorf("payment processor returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProcessorClient = (*Client)(nil)
