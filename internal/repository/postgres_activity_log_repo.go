package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tomerbro/saas-starter/internal/model"
)

// PostgresActivityLogRepo はPostgreSQLを使用したアクティビティログリポジトリ。
type PostgresActivityLogRepo struct {
	db *sql.DB
}

// NewPostgresActivityLogRepo はPostgresActivityLogRepoを生成する。
func NewPostgresActivityLogRepo(db *sql.DB) *PostgresActivityLogRepo {
	return &PostgresActivityLogRepo{db: db}
}

// Insert はログエントリを追記する。
func (r *PostgresActivityLogRepo) Insert(ctx context.Context, entry *model.ActivityLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_logs (id, user_id, action, timestamp, ip_address)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.UserID, entry.Action, entry.Timestamp, entry.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity log: %w", err)
	}
	return nil
}

// ListRecentByUserID は指定ユーザーのログをtimestamp降順で最大limit件返す。
func (r *PostgresActivityLogRepo) ListRecentByUserID(ctx context.Context, userID string, limit int) ([]*model.ActivityLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, action, timestamp, ip_address
		 FROM activity_logs
		 WHERE user_id = $1
		 ORDER BY timestamp DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity logs: %w", err)
	}
	defer rows.Close()

	var entries []*model.ActivityLog
	for rows.Next() {
		entry := &model.ActivityLog{}
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &entry.Timestamp, &entry.IPAddress); err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activity logs: %w", err)
	}

	return entries, nil
}

// compile-time interface check
var _ ActivityLogRepository = (*PostgresActivityLogRepo)(nil)
