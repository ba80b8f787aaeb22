// Package model はドメインモデルを定義する。
package model

import "time"

// Role はアプリケーション内でのユーザーの役割を表す。
type Role string

const (
	// RoleMember は一般メンバー。新規ユーザーのデフォルト。
	RoleMember Role = "member"
	// RoleOwner はアカウントのオーナー。
	RoleOwner Role = "owner"
)

// サブスクリプションステータスの既知の値。
// 決済プロセッサ側が発行するオープンな集合であり、ここに無い値も保存され得る。
const (
	SubscriptionActive   = "active"
	SubscriptionTrialing = "trialing"
	SubscriptionInactive = "inactive"
)

// User はアプリケーションが保持するユーザープロフィール行を表す。
// IDは認証プロバイダーのIdentity IDへの参照であり、プロバイダーが真実の源泉。
// emailはIdentityのミラーで、更新操作後に整合する（結果整合、トランザクションなし）。
type User struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
	Role      Role

	// 決済プロセッサ側のサブスクリプション情報のミラー
	StripeCustomerID     string
	StripeSubscriptionID string
	StripeProductID      string
	PlanName             string
	SubscriptionStatus   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity は認証プロバイダーが保持する認証アカウント情報を表す。
// 資格情報・セッションはプロバイダーが所有し、本アプリはIDとメタデータのみ参照する。
type Identity struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
}

// ActivityAction はアクティビティログに記録されるアカウント操作の種別。
type ActivityAction string

const (
	ActionSignUp         ActivityAction = "sign_up"
	ActionSignIn         ActivityAction = "sign_in"
	ActionSignOut        ActivityAction = "sign_out"
	ActionUpdatePassword ActivityAction = "update_password"
	ActionUpdateAccount  ActivityAction = "update_account"
	ActionDeleteAccount  ActivityAction = "delete_account"
)

// ActivityLog はアカウント操作の追記専用履歴エントリを表す。
// 挿入後に更新・削除されることはない（アカウント削除時のCASCADEを除く）。
type ActivityLog struct {
	ID        string
	UserID    string
	Action    ActivityAction
	Timestamp time.Time
	IPAddress string
}
