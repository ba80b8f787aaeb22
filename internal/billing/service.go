package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tomerbro/saas-starter/internal/model"
	"github.com/tomerbro/saas-starter/internal/repository"
)

// ServiceConfig は課金サービスの設定。
type ServiceConfig struct {
	// BaseURL はチェックアウト完了後・ポータル復帰時に戻るアプリのURL
	BaseURL string
}

// Service は課金操作を調整する。
// サブスクリプションの状態はプロセッサが真実の源泉で、
// プロフィール行の課金フィールドはその表示用ミラー。
type Service struct {
	processor ProcessorClient
	users     repository.UserRepository
	config    ServiceConfig
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(processor ProcessorClient, users repository.UserRepository, config ServiceConfig, logger *slog.Logger) *Service {
	return &Service{
		processor: processor,
		users:     users,
		config:    config,
		logger:    logger,
	}
}

// Checkout は指定プランのチェックアウトセッションを作成し、そのURLを返す。
// 顧客レコードが未作成の場合は先に作成してプロフィールに保存する。
func (s *Service) Checkout(ctx context.Context, user *model.User, priceID string) (string, error) {
	if priceID == "" {
		return "", model.NewValidationError("プランを選択してください。")
	}

	customerID := user.StripeCustomerID
	if customerID == "" {
		customer, err := s.processor.CreateCustomer(ctx, user.Email)
		if err != nil {
			s.logger.Error("failed to create customer", "user_id", user.ID, "error", err)
			return "", model.NewBillingFailedError("顧客情報の作成に失敗しました。")
		}
		customerID = customer.ID

		if err := s.users.UpdateStripeCustomerID(ctx, user.ID, customerID, time.Now().UTC()); err != nil {
			// 保存失敗時は次回チェックアウトで顧客が重複作成され得るが、
			// プロセッサ側で同一メールの顧客は手動で統合できる。
			s.logger.Warn("failed to persist customer ID", "user_id", user.ID, "error", err)
		}
	}

	successURL := s.config.BaseURL + "/dashboard?checkout=success"
	cancelURL := s.config.BaseURL + "/pricing"
	session, err := s.processor.CreateCheckoutSession(ctx, customerID, priceID, successURL, cancelURL)
	if err != nil {
		s.logger.Error("failed to create checkout session", "user_id", user.ID, "error", err)
		return "", model.NewBillingFailedError("チェックアウトの開始に失敗しました。")
	}

	return session.URL, nil
}

// Portal はカスタマーポータルセッションを作成し、そのURLを返す。
// 顧客レコードが存在しない（一度も課金していない）場合はエラー。
func (s *Service) Portal(ctx context.Context, user *model.User) (string, error) {
	if user.StripeCustomerID == "" {
		return "", model.NewBillingFailedError("課金情報が登録されていません。")
	}

	session, err := s.processor.CreatePortalSession(ctx, user.StripeCustomerID, s.config.BaseURL+"/dashboard")
	if err != nil {
		s.logger.Error("failed to create portal session", "user_id", user.ID, "error", err)
		return "", model.NewBillingFailedError("カスタマーポータルの起動に失敗しました。")
	}

	return session.URL, nil
}

// SyncSubscription はプロセッサ側のサブスクリプション状態をプロフィールに反映する。
// active/trialing以外のステータスはプラン情報を消去してinactiveに縮退する。
func (s *Service) SyncSubscription(ctx context.Context, customerID string) error {
	user, err := s.users.FindByStripeCustomerID(ctx, customerID)
	if err != nil {
		return fmt.Errorf("failed to find user for customer: %w", err)
	}
	if user == nil {
		s.logger.Warn("no user for customer ID", "customer_id", customerID)
		return model.NewUserNotFoundError()
	}

	subs, err := s.processor.ListSubscriptions(ctx, customerID)
	if err != nil {
		s.logger.Error("failed to list subscriptions", "customer_id", customerID, "error", err)
		return model.NewBillingFailedError("サブスクリプション状態の取得に失敗しました。")
	}

	fields := resolveSubscriptionFields(subs)
	if fields.SubscriptionStatus != model.SubscriptionInactive && fields.StripeProductID != "" {
		product, err := s.processor.GetProduct(ctx, fields.StripeProductID)
		if err != nil {
			s.logger.Warn("failed to fetch product name", "product_id", fields.StripeProductID, "error", err)
		} else {
			fields.PlanName = product.Name
		}
	}

	if err := s.users.UpdateSubscription(ctx, user.ID, fields, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to update subscription fields: %w", err)
	}

	s.logger.Info("subscription synced",
		"user_id", user.ID,
		"status", fields.SubscriptionStatus,
	)
	return nil
}

// resolveSubscriptionFields はサブスクリプション一覧から反映すべき状態を決める。
// 有効（active/trialing）なものを優先し、無ければプラン情報を消去する。
func resolveSubscriptionFields(subs []*Subscription) repository.SubscriptionFields {
	for _, sub := range subs {
		if sub.Status != model.SubscriptionActive && sub.Status != model.SubscriptionTrialing {
			continue
		}
		fields := repository.SubscriptionFields{
			StripeSubscriptionID: sub.ID,
			SubscriptionStatus:   sub.Status,
		}
		if len(sub.Items.Data) > 0 {
			fields.StripeProductID = sub.Items.Data[0].Price.Product
		}
		return fields
	}
	return repository.SubscriptionFields{
		SubscriptionStatus: model.SubscriptionInactive,
	}
}
