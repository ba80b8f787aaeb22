// Package activity はアカウント操作の追記専用アクティビティログを提供する。
package activity

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tomerbro/saas-starter/internal/metrics"
	"github.com/tomerbro/saas-starter/internal/model"
	"github.com/tomerbro/saas-starter/internal/repository"
)

// RecorderService はアクティビティログの記録インターフェース。
type RecorderService interface {
	// Record は操作を1件記録する。
	// 記録の失敗は呼び出し元の操作を失敗させない（ログ出力のみ）。
	Record(ctx context.Context, userID string, action model.ActivityAction, ipAddress string)
}

// Recorder はRecorderServiceの実装。
type Recorder struct {
	repo      repository.ActivityLogRepository
	collector metrics.MetricsCollector
	logger    *slog.Logger
}

// NewRecorder はRecorderを生成する。
func NewRecorder(repo repository.ActivityLogRepository, collector metrics.MetricsCollector, logger *slog.Logger) *Recorder {
	return &Recorder{
		repo:      repo,
		collector: collector,
		logger:    logger,
	}
}

// Record は操作を1件記録する。
// ログは副次的な記録であり、挿入に失敗しても本体の操作は成功扱いとする。
func (r *Recorder) Record(ctx context.Context, userID string, action model.ActivityAction, ipAddress string) {
	entry := &model.ActivityLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Timestamp: time.Now().UTC(),
		IPAddress: ipAddress,
	}

	if err := r.repo.Insert(ctx, entry); err != nil {
		r.collector.RecordActivityLogDrop()
		r.logger.Warn("failed to record activity",
			"user_id", userID,
			"action", string(action),
			"error", err,
		)
	}
}

// compile-time interface check
var _ RecorderService = (*Recorder)(nil)
