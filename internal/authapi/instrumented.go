package authapi

import (
	"context"
	"time"

	"github.com/tomerbro/saas-starter/internal/metrics"
	"github.com/tomerbro/saas-starter/internal/model"
)

// instrumentedProvider はProviderの呼び出しレイテンシを記録するデコレーター。
type instrumentedProvider struct {
	inner     Provider
	collector metrics.MetricsCollector
}

// NewInstrumentedProvider はレイテンシ計測付きのProviderを返す。
func NewInstrumentedProvider(inner Provider, collector metrics.MetricsCollector) Provider {
	return &instrumentedProvider{inner: inner, collector: collector}
}

func (p *instrumentedProvider) observe(operation string, start time.Time) {
	p.collector.RecordProviderLatency(operation, time.Since(start))
}

func (p *instrumentedProvider) SignUp(ctx context.Context, email, password, name string) (*Session, error) {
	defer p.observe("sign_up", time.Now())
	return p.inner.SignUp(ctx, email, password, name)
}

func (p *instrumentedProvider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	defer p.observe("sign_in", time.Now())
	return p.inner.SignInWithPassword(ctx, email, password)
}

func (p *instrumentedProvider) GetUser(ctx context.Context, accessToken string) (*model.Identity, error) {
	defer p.observe("get_user", time.Now())
	return p.inner.GetUser(ctx, accessToken)
}

func (p *instrumentedProvider) UpdateUser(ctx context.Context, accessToken string, update UserUpdate) (*model.Identity, error) {
	defer p.observe("update_user", time.Now())
	return p.inner.UpdateUser(ctx, accessToken, update)
}

func (p *instrumentedProvider) SignOut(ctx context.Context, accessToken string) error {
	defer p.observe("sign_out", time.Now())
	return p.inner.SignOut(ctx, accessToken)
}

func (p *instrumentedProvider) DeleteUser(ctx context.Context, userID string) error {
	defer p.observe("delete_user", time.Now())
	return p.inner.DeleteUser(ctx, userID)
}

func (p *instrumentedProvider) ExchangeCode(ctx context.Context, code string) (*Session, error) {
	defer p.observe("exchange_code", time.Now())
	return p.inner.ExchangeCode(ctx, code)
}

// compile-time interface check
var _ Provider = (*instrumentedProvider)(nil)
