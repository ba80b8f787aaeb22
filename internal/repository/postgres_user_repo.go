package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomerbro/saas-starter/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザープロフィールリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, email, name, avatar_url, role,
	stripe_customer_id, stripe_subscription_id, stripe_product_id,
	plan_name, subscription_status, created_at, updated_at`

// scanUser は1行をmodel.Userに読み込む。
func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.AvatarURL, &user.Role,
		&user.StripeCustomerID, &user.StripeSubscriptionID, &user.StripeProductID,
		&user.PlanName, &user.SubscriptionStatus, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByStripeCustomerID は決済プロセッサの顧客IDでプロフィールを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE stripe_customer_id = $1`,
		customerID,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by stripe customer ID: %w", err)
	}
	return user, nil
}

// CreateIfAbsent はプロフィール行が存在しない場合のみ挿入する。
// 主キー制約を利用した単一の挿入パスで冪等性を保証する。
func (r *PostgresUserRepo) CreateIfAbsent(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, avatar_url, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		user.ID, user.Email, user.Name, user.AvatarURL, user.Role,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateNameEmail は表示名・メールアドレス・更新日時を更新する。
func (r *PostgresUserRepo) UpdateNameEmail(ctx context.Context, id, name, email string, updatedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = $2, email = $3, updated_at = $4 WHERE id = $1`,
		id, name, email, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user name/email: %w", err)
	}
	return requireRowAffected(result, id)
}

// UpdateAvatarURL はアバターURLと更新日時を更新する。
func (r *PostgresUserRepo) UpdateAvatarURL(ctx context.Context, id, avatarURL string, updatedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET avatar_url = $2, updated_at = $3 WHERE id = $1`,
		id, avatarURL, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update avatar URL: %w", err)
	}
	return requireRowAffected(result, id)
}

// UpdateStripeCustomerID は決済プロセッサの顧客IDを保存する。
func (r *PostgresUserRepo) UpdateStripeCustomerID(ctx context.Context, id, customerID string, updatedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET stripe_customer_id = $2, updated_at = $3 WHERE id = $1`,
		id, customerID, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update stripe customer ID: %w", err)
	}
	return requireRowAffected(result, id)
}

// UpdateSubscription はサブスクリプション関連フィールドを更新する。
func (r *PostgresUserRepo) UpdateSubscription(ctx context.Context, id string, sub SubscriptionFields, updatedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET stripe_subscription_id = $2, stripe_product_id = $3,
		     plan_name = $4, subscription_status = $5, updated_at = $6
		 WHERE id = $1`,
		id, sub.StripeSubscriptionID, sub.StripeProductID,
		sub.PlanName, sub.SubscriptionStatus, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return requireRowAffected(result, id)
}

// DeleteByID は指定IDのプロフィールを削除する。
// 関連するactivity_logsはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return requireRowAffected(result, id)
}

// requireRowAffected は更新・削除が1行に適用されたことを確認する。
func requireRowAffected(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
