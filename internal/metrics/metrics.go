// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordLifecycleOp(action string, success bool)
	RecordProviderLatency(operation string, duration time.Duration)
	RecordProfileHeal()
	RecordActivityLogDrop()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	lifecycleOps    *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	profileHeals    prometheus.Counter
	logDrops        prometheus.Counter
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		lifecycleOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saas_lifecycle_ops_total",
			Help: "アカウントライフサイクル操作の結果別合計数",
		}, []string{"action", "result"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "saas_auth_provider_latency_seconds",
			Help:    "認証プロバイダー呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		profileHeals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "saas_profile_heals_total",
			Help: "自己修復によるプロフィール行挿入の合計数",
		}),
		logDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "saas_activity_log_drops_total",
			Help: "挿入に失敗し破棄されたアクティビティログの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saas_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.lifecycleOps,
		c.providerLatency,
		c.profileHeals,
		c.logDrops,
		c.httpStatus,
	)

	return c
}

// RecordLifecycleOp はライフサイクル操作の成否を記録する。
func (c *Collector) RecordLifecycleOp(action string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.lifecycleOps.WithLabelValues(action, result).Inc()
}

// RecordProviderLatency は認証プロバイダー呼び出しのレイテンシを記録する。
func (c *Collector) RecordProviderLatency(operation string, duration time.Duration) {
	c.providerLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordProfileHeal は自己修復によるプロフィール行挿入を記録する。
func (c *Collector) RecordProfileHeal() {
	c.profileHeals.Inc()
}

// RecordActivityLogDrop は破棄されたアクティビティログを記録する。
func (c *Collector) RecordActivityLogDrop() {
	c.logDrops.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
