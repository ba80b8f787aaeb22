// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/tomerbro/saas-starter/internal/model"
)

// UserRepository はユーザープロフィールの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByStripeCustomerID は決済プロセッサの顧客IDでプロフィールを検索する。
	// 見つからない場合はnilを返す。
	FindByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error)

	// CreateIfAbsent はプロフィール行が存在しない場合のみ挿入する。
	// 既存行がある場合は何も変更しない（ON CONFLICT DO NOTHING）。
	// 挿入の有無に関わらずエラーなしで返る。
	CreateIfAbsent(ctx context.Context, user *model.User) error

	// UpdateNameEmail は表示名・メールアドレス・更新日時を更新する。
	// 行が存在しない場合はエラーを返す。
	UpdateNameEmail(ctx context.Context, id, name, email string, updatedAt time.Time) error

	// UpdateAvatarURL はアバターURLと更新日時を更新する。
	UpdateAvatarURL(ctx context.Context, id, avatarURL string, updatedAt time.Time) error

	// UpdateStripeCustomerID は決済プロセッサの顧客IDを保存する。
	UpdateStripeCustomerID(ctx context.Context, id, customerID string, updatedAt time.Time) error

	// UpdateSubscription はサブスクリプション関連フィールドを更新する。
	UpdateSubscription(ctx context.Context, id string, sub SubscriptionFields, updatedAt time.Time) error

	// DeleteByID は指定IDのプロフィールを削除する。
	// 関連するactivity_logsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SubscriptionFields はUpdateSubscriptionで更新するサブスクリプション情報。
type SubscriptionFields struct {
	StripeSubscriptionID string
	StripeProductID      string
	PlanName             string
	SubscriptionStatus   string
}

// ActivityLogRepository はアクティビティログの永続化インターフェース。
// ログは追記専用で、更新・個別削除のAPIは提供しない。
type ActivityLogRepository interface {
	// Insert はログエントリを追記する。
	Insert(ctx context.Context, entry *model.ActivityLog) error

	// ListRecentByUserID は指定ユーザーのログをtimestamp降順で最大limit件返す。
	ListRecentByUserID(ctx context.Context, userID string, limit int) ([]*model.ActivityLog, error)
}
