// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, billing, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthFailed        = "AUTH_FAILED"
	ErrCodeNotAuthenticated  = "NOT_AUTHENTICATED"
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodeProfileSyncFailed = "PROFILE_SYNC_FAILED"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeOAuthFailed       = "OAUTH_FAILED"
	ErrCodeBillingFailed     = "BILLING_FAILED"
)

// NewAuthFailedError は認証プロバイダーが資格情報・Identity操作を拒否した場合の
// エラーを生成する。プロバイダーのメッセージをそのまま呼び出し元に渡す。
func NewAuthFailedError(providerMessage string) *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  providerMessage,
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewNotAuthenticatedError は認証セッションが必要な操作で
// セッションが存在しない場合のエラーを生成する。
func NewNotAuthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthenticated,
		Message:  "認証されていません。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewValidationError は入力値検証エラーを生成する。
// 外部サービス呼び出し前のローカル検証で使用する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  reason,
		Category: "validation",
		Action:   "入力内容を修正してください。",
	}
}

// NewProfileSyncFailedError は認証プロバイダーの更新は成功したが
// プロフィール行の更新に失敗した場合のエラーを生成する。
// Identityとプロフィールの状態が乖離しているため、他のエラーと区別して通知する。
func NewProfileSyncFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileSyncFailed,
		Message:  "アカウント情報は更新されましたが、プロフィールの同期に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewOAuthFailedError はOAuth認可コードの交換に失敗した場合のエラーを生成する。
func NewOAuthFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeOAuthFailed,
		Message:  "外部アカウントでのログインに失敗しました。",
		Category: "auth",
		Action:   "再度ログインをお試しください。",
	}
}

// NewBillingFailedError は決済プロセッサの呼び出しに失敗した場合のエラーを生成する。
func NewBillingFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeBillingFailed,
		Message:  fmt.Sprintf("決済処理に失敗しました: %s", reason),
		Category: "billing",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
