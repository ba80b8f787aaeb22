package activity

import (
	"context"
	"log/slog"

	"github.com/tomerbro/saas-starter/internal/model"
	"github.com/tomerbro/saas-starter/internal/repository"
)

// recentLogLimit は一覧表示で返す最大件数。
const recentLogLimit = 10

// ReaderService はアクティビティログの参照インターフェース。
type ReaderService interface {
	// ListRecent は指定ユーザーの直近のログを新しい順で最大10件返す。
	// 取得に失敗した場合は空のスライスを返し、エラーは返さない。
	ListRecent(ctx context.Context, userID string) []*model.ActivityLog
}

// Reader はReaderServiceの実装。
type Reader struct {
	repo   repository.ActivityLogRepository
	logger *slog.Logger
}

// NewReader はReaderを生成する。
func NewReader(repo repository.ActivityLogRepository, logger *slog.Logger) *Reader {
	return &Reader{
		repo:   repo,
		logger: logger,
	}
}

// ListRecent は指定ユーザーの直近のログを新しい順で最大10件返す。
// ログ一覧は補助的な表示要素であり、取得失敗で画面全体を壊さないために
// 失敗時は空のスライスに縮退する。
func (r *Reader) ListRecent(ctx context.Context, userID string) []*model.ActivityLog {
	entries, err := r.repo.ListRecentByUserID(ctx, userID, recentLogLimit)
	if err != nil {
		r.logger.Warn("failed to list activity logs",
			"user_id", userID,
			"error", err,
		)
		return []*model.ActivityLog{}
	}
	if entries == nil {
		return []*model.ActivityLog{}
	}
	return entries
}

// compile-time interface check
var _ ReaderService = (*Reader)(nil)
