// Package account はアカウントライフサイクルの調整ロジックを提供する。
//
// 認証プロバイダーのIdentityを真実の源泉とし、各操作はプロバイダー呼び出し、
// プロフィール行の整合、アクティビティログ追記の順に進む。
// 2つの外部システムをまたぐトランザクションは存在しないため、
// 途中失敗時のロールバックは行わない。
package account

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tomerbro/saas-starter/internal/activity"
	"github.com/tomerbro/saas-starter/internal/authapi"
	"github.com/tomerbro/saas-starter/internal/metrics"
	"github.com/tomerbro/saas-starter/internal/model"
	"github.com/tomerbro/saas-starter/internal/repository"
	"github.com/tomerbro/saas-starter/internal/security"
)

// SyncOutcome はUpdateProfileの2段階書き込みの結果を表す。
// プロバイダー更新とプロフィール更新は非アトミックなため、
// 単一の成功/失敗フラグではなく両者の状態を個別に持つ。
type SyncOutcome struct {
	// Identity はプロバイダー更新後のIdentity
	Identity *model.Identity
	// ProfileSynced はプロフィール行の更新が成功したか
	ProfileSynced bool
}

// AvatarConfig はOAuthプロバイダー由来のアバターURL取得の設定。
type AvatarConfig struct {
	// FetchTimeout はアバターURL確認リクエストのタイムアウト
	FetchTimeout time.Duration
	// MaxSize は受け入れるアバター画像の最大バイト数
	MaxSize int64
}

// Service はアカウントライフサイクル操作を調整する。
type Service struct {
	provider     authapi.Provider
	users        repository.UserRepository
	recorder     activity.RecorderService
	sanitizer    security.NameSanitizerService
	urlGuard     security.URLGuardService
	collector    metrics.MetricsCollector
	avatarClient *http.Client
	avatarConfig AvatarConfig
	logger       *slog.Logger
}

// NewService はServiceを生成する。
// アバターURL確認用のHTTPクライアントはSSRF防止付きで構築する。
func NewService(
	provider authapi.Provider,
	users repository.UserRepository,
	recorder activity.RecorderService,
	sanitizer security.NameSanitizerService,
	urlGuard security.URLGuardService,
	collector metrics.MetricsCollector,
	avatarConfig AvatarConfig,
	logger *slog.Logger,
) *Service {
	if avatarConfig.FetchTimeout == 0 {
		avatarConfig.FetchTimeout = 5 * time.Second
	}
	return &Service{
		provider:     provider,
		users:        users,
		recorder:     recorder,
		sanitizer:    sanitizer,
		urlGuard:     urlGuard,
		collector:    collector,
		avatarClient: urlGuard.NewSafeClient(avatarConfig.FetchTimeout),
		avatarConfig: avatarConfig,
		logger:       logger,
	}
}

// recordOutcome はライフサイクル操作の成否をメトリクスに記録する。
func (s *Service) recordOutcome(action model.ActivityAction, err error) {
	s.collector.RecordLifecycleOp(string(action), err == nil)
}

// mapProviderError はプロバイダーのエラーをAPIErrorに変換する。
// プロバイダーが拒否した場合はその文言をそのまま呼び出し元に渡す。
func mapProviderError(err error) error {
	var provErr *authapi.ProviderError
	if errors.As(err, &provErr) {
		return model.NewAuthFailedError(provErr.Message)
	}
	return model.NewAuthFailedError("認証サービスに接続できませんでした。")
}

// Register は新しいアカウントを登録する。
// プロバイダーがIdentityを作成した時点で登録は成功とみなし、
// プロフィール行の挿入失敗は次回読み取り時の自己修復に委ねる。
func (s *Service) Register(ctx context.Context, email, password, ipAddress string) (session *authapi.Session, err error) {
	defer func() { s.recordOutcome(model.ActionSignUp, err) }()

	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	session, err = s.provider.SignUp(ctx, email, password, "")
	if err != nil {
		return nil, mapProviderError(err)
	}

	if _, err := s.ensureProfile(ctx, session.Identity); err != nil {
		s.logger.Warn("failed to ensure profile after sign-up",
			"user_id", session.Identity.ID,
			"error", err,
		)
	}

	s.recorder.Record(ctx, session.Identity.ID, model.ActionSignUp, ipAddress)

	return session, nil
}

// Authenticate はメールアドレスとパスワードでサインインする。
func (s *Service) Authenticate(ctx context.Context, email, password, ipAddress string) (session *authapi.Session, err error) {
	defer func() { s.recordOutcome(model.ActionSignIn, err) }()

	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	session, err = s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, mapProviderError(err)
	}

	if _, err := s.ensureProfile(ctx, session.Identity); err != nil {
		s.logger.Warn("failed to ensure profile after sign-in",
			"user_id", session.Identity.ID,
			"error", err,
		)
	}

	s.recorder.Record(ctx, session.Identity.ID, model.ActionSignIn, ipAddress)

	return session, nil
}

// SignOut は現在のセッションを終了する。
// セッション終了後はIdentityへの参照が失われるため、ログ追記を先に行う。
func (s *Service) SignOut(ctx context.Context, accessToken string, identity *model.Identity, ipAddress string) (err error) {
	defer func() { s.recordOutcome(model.ActionSignOut, err) }()

	if identity == nil {
		return model.NewNotAuthenticatedError()
	}

	s.recorder.Record(ctx, identity.ID, model.ActionSignOut, ipAddress)

	if err := s.provider.SignOut(ctx, accessToken); err != nil {
		return mapProviderError(err)
	}
	return nil
}

// ChangePassword はパスワードを変更する。
// 成功時はリダイレクトせず呼び出し元が同一ページに留まれるようにする。
func (s *Service) ChangePassword(ctx context.Context, accessToken string, identity *model.Identity, newPassword, ipAddress string) (err error) {
	defer func() { s.recordOutcome(model.ActionUpdatePassword, err) }()

	if identity == nil {
		return model.NewNotAuthenticatedError()
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	if _, err := s.provider.UpdateUser(ctx, accessToken, authapi.UserUpdate{Password: newPassword}); err != nil {
		return mapProviderError(err)
	}

	s.recorder.Record(ctx, identity.ID, model.ActionUpdatePassword, ipAddress)

	return nil
}

// UpdateProfile は表示名とメールアドレスを更新する。
// プロバイダー更新が先行し、失敗時はプロフィール行に触れない。
// プロバイダー更新成功後のプロフィール更新失敗はProfileSyncFailedとして
// 区別して返す（両者の状態が乖離しているため）。
func (s *Service) UpdateProfile(ctx context.Context, accessToken string, identity *model.Identity, name, email, ipAddress string) (outcome *SyncOutcome, err error) {
	defer func() { s.recordOutcome(model.ActionUpdateAccount, err) }()

	if identity == nil {
		return nil, model.NewNotAuthenticatedError()
	}

	name = s.sanitizer.Sanitize(name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	updated, err := s.provider.UpdateUser(ctx, accessToken, authapi.UserUpdate{
		Email: email,
		Name:  name,
	})
	if err != nil {
		return nil, mapProviderError(err)
	}

	outcome = &SyncOutcome{Identity: updated}

	if err := s.users.UpdateNameEmail(ctx, identity.ID, name, email, time.Now().UTC()); err != nil {
		s.logger.Error("profile row update failed after provider update",
			"user_id", identity.ID,
			"error", err,
		)
		return outcome, model.NewProfileSyncFailedError()
	}
	outcome.ProfileSynced = true

	s.recorder.Record(ctx, identity.ID, model.ActionUpdateAccount, ipAddress)

	return outcome, nil
}

// DeleteAccount はアカウントを完全に削除する。
// Identity破棄後はログに記録できないため、ログ追記を先に行う。
// プロバイダーが削除を拒否した場合、ログエントリは残ったままになる。
func (s *Service) DeleteAccount(ctx context.Context, identity *model.Identity, ipAddress string) (err error) {
	defer func() { s.recordOutcome(model.ActionDeleteAccount, err) }()

	if identity == nil {
		return model.NewNotAuthenticatedError()
	}

	s.recorder.Record(ctx, identity.ID, model.ActionDeleteAccount, ipAddress)

	if err := s.provider.DeleteUser(ctx, identity.ID); err != nil {
		return mapProviderError(err)
	}

	// プロフィール行の削除失敗は孤児行として残るのみで、削除自体は成功扱い。
	// activity_logsはCASCADEで同時に削除される。
	if err := s.users.DeleteByID(ctx, identity.ID); err != nil {
		s.logger.Warn("failed to delete profile row after identity deletion",
			"user_id", identity.ID,
			"error", err,
		)
	}

	return nil
}

// CurrentUser は現在のセッションのプロフィール行を返す（自己修復読み取り）。
// 行が無い場合は1回だけ修復挿入を試み、それでも取得できなければ
// エラーではなくnilを返す（未認証表示の方がページ全体の失敗より望ましい）。
func (s *Service) CurrentUser(ctx context.Context, accessToken string) (*model.User, error) {
	if accessToken == "" {
		return nil, nil
	}

	identity, err := s.provider.GetUser(ctx, accessToken)
	if err != nil {
		return nil, nil
	}

	user, err := s.users.FindByID(ctx, identity.ID)
	if err == nil && user != nil {
		return user, nil
	}
	if err != nil {
		s.logger.Warn("failed to read profile row", "user_id", identity.ID, "error", err)
	}

	user, err = s.ensureProfile(ctx, identity)
	if err != nil {
		s.logger.Warn("failed to self-heal profile row", "user_id", identity.ID, "error", err)
		return nil, nil
	}
	s.collector.RecordProfileHeal()
	return user, nil
}

// HandleOAuthCallback はOAuth認可コードをセッションに交換し、
// プロフィール行を整合させる。プロバイダーのメタデータにアバターURLが
// 含まれる場合は検証のうえプロフィールに反映する。
func (s *Service) HandleOAuthCallback(ctx context.Context, code, ipAddress string) (*authapi.Session, error) {
	if code == "" {
		return nil, model.NewOAuthFailedError()
	}

	session, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		s.logger.Warn("oauth code exchange failed", "error", err)
		return nil, model.NewOAuthFailedError()
	}

	if _, err := s.ensureProfile(ctx, session.Identity); err != nil {
		s.logger.Warn("failed to ensure profile after oauth callback",
			"user_id", session.Identity.ID,
			"error", err,
		)
	}

	s.refreshAvatarURL(ctx, session.Identity)

	s.recorder.Record(ctx, session.Identity.ID, model.ActionSignIn, ipAddress)

	return session, nil
}

// refreshAvatarURL はプロバイダーのメタデータにあるアバターURLを
// プロフィールに反映する。URLが危険（内部アドレス等）な場合や
// 画像として取得できない場合は反映しない。反映失敗はログインを失敗させない。
func (s *Service) refreshAvatarURL(ctx context.Context, identity *model.Identity) {
	if identity.AvatarURL == "" {
		return
	}
	if err := s.urlGuard.ValidateURL(identity.AvatarURL); err != nil {
		s.logger.Warn("rejected unsafe avatar URL",
			"user_id", identity.ID,
			"error", err,
		)
		return
	}
	if err := s.probeAvatarURL(ctx, identity.AvatarURL); err != nil {
		s.logger.Warn("avatar URL probe failed",
			"user_id", identity.ID,
			"error", err,
		)
		return
	}
	if err := s.users.UpdateAvatarURL(ctx, identity.ID, identity.AvatarURL, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update avatar URL",
			"user_id", identity.ID,
			"error", err,
		)
	}
}

// probeAvatarURL はアバターURLが実在する画像を指すことを確認する。
// SSRF防止付きクライアントを使用するため、DNS再バインディングで
// 内部アドレスへ向けられたURLはここで失敗する。
func (s *Service) probeAvatarURL(ctx context.Context, avatarURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, avatarURL, nil)
	if err != nil {
		return err
	}

	resp, err := s.avatarClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.New("avatar URL returned non-OK status")
	}
	if contentType := resp.Header.Get("Content-Type"); !strings.HasPrefix(contentType, "image/") {
		return errors.New("avatar URL is not an image")
	}
	if s.avatarConfig.MaxSize > 0 && resp.ContentLength > s.avatarConfig.MaxSize {
		return errors.New("avatar image exceeds size limit")
	}
	return nil
}

// ensureProfile はIdentityに対応するプロフィール行の存在を保証する。
// 挿入は主キー制約により冪等で、既存行は上書きされない。
// 挿入後に再読み取りした行を返す。
func (s *Service) ensureProfile(ctx context.Context, identity *model.Identity) (*model.User, error) {
	now := time.Now().UTC()
	user := &model.User{
		ID:                 identity.ID,
		Email:              identity.Email,
		Name:               s.sanitizer.Sanitize(identity.Name),
		AvatarURL:          identity.AvatarURL,
		Role:               model.RoleMember,
		SubscriptionStatus: model.SubscriptionInactive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.users.CreateIfAbsent(ctx, user); err != nil {
		return nil, err
	}

	return s.users.FindByID(ctx, identity.ID)
}
