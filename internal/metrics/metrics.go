// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// アクション種別
const (
	ActionSignIn       = "sign_in"
	ActionSignUp       = "sign_up"
	ActionSignOut      = "sign_out"
	ActionRefresh      = "refresh"
	ActionCodeExchange = "code_exchange"
)

// 結果種別
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証アクションやハンドラー層から利用する。
type MetricsCollector interface {
	RecordAuthAction(action, outcome string)
	RecordAuthLatency(action string, duration time.Duration)
	RecordValidationFailure(form string)
	RecordOAuthInitiation(provider, outcome string)
	RecordSessionRead(outcome string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authActions     *prometheus.CounterVec
	authLatency     *prometheus.HistogramVec
	validationFail  *prometheus.CounterVec
	oauthInitiation *prometheus.CounterVec
	sessionReads    *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authscreen_auth_actions_total",
			Help: "認証アクションの実行数（アクション・結果別）",
		}, []string{"action", "outcome"}),
		authLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authscreen_auth_latency_seconds",
			Help:    "認証サービス呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		validationFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authscreen_validation_failures_total",
			Help: "フォーム検証エラーの発生数",
		}, []string{"form"}),
		oauthInitiation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authscreen_oauth_initiations_total",
			Help: "OAuthリダイレクト開始の試行数",
		}, []string{"provider", "outcome"}),
		sessionReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authscreen_session_reads_total",
			Help: "セッション読み取りの結果別件数",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authscreen_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.authActions,
		c.authLatency,
		c.validationFail,
		c.oauthInitiation,
		c.sessionReads,
		c.httpStatus,
	)

	return c
}

// RecordAuthAction は認証アクションの結果を記録する。
func (c *Collector) RecordAuthAction(action, outcome string) {
	c.authActions.WithLabelValues(action, outcome).Inc()
}

// RecordAuthLatency は認証サービス呼び出しのレイテンシを記録する。
func (c *Collector) RecordAuthLatency(action string, duration time.Duration) {
	c.authLatency.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordValidationFailure はフォーム検証エラーを記録する。
func (c *Collector) RecordValidationFailure(form string) {
	c.validationFail.WithLabelValues(form).Inc()
}

// RecordOAuthInitiation はOAuth開始の結果を記録する。
func (c *Collector) RecordOAuthInitiation(provider, outcome string) {
	c.oauthInitiation.WithLabelValues(provider, outcome).Inc()
}

// RecordSessionRead はセッション読み取りの結果を記録する。
// outcomeは present, absent, refreshed, error のいずれか。
func (c *Collector) RecordSessionRead(outcome string) {
	c.sessionReads.WithLabelValues(outcome).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// 収集中のエラーは取得できた分だけ返し、OpenMetrics形式の要求にも応じる。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// NopCollector は何も記録しないMetricsCollector。
// メトリクスを使わない構成やテストで使う。
type NopCollector struct{}

func (NopCollector) RecordAuthAction(string, string) {}
func (NopCollector) RecordAuthLatency(string, time.Duration) {}
func (NopCollector) RecordValidationFailure(string) {}
func (NopCollector) RecordOAuthInitiation(string, string) {}
func (NopCollector) RecordSessionRead(string) {}
func (NopCollector) RecordHTTPStatus(int) {}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
