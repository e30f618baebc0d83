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
// 認証ゲート、管理者判定、プラットフォームクライアント、ミドルウェアから利用する。
type MetricsCollector interface {
	RecordAuthVerdict(outcome string)
	RecordNativeSignal(result string)
	RecordAdminDecision(source string, isAdmin bool)
	RecordRemoteCall(method, outcome string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authVerdicts   *prometheus.CounterVec
	nativeSignals  *prometheus.CounterVec
	adminDecisions *prometheus.CounterVec
	remoteCalls    *prometheus.CounterVec
	remoteLatency  *prometheus.HistogramVec
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "embedgate_auth_verdicts_total",
			Help: "認証ゲートの判定結果別の合計数",
		}, []string{"outcome"}),
		nativeSignals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "embedgate_native_signal_total",
			Help: "プラットフォーム由来リクエスト判定の結果別の合計数",
		}, []string{"result"}),
		adminDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "embedgate_admin_decisions_total",
			Help: "管理者判定の判定元と結果別の合計数",
		}, []string{"source", "result"}),
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "embedgate_platform_calls_total",
			Help: "ポータルREST API呼び出しのメソッドと結果別の合計数",
		}, []string{"method", "outcome"}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "embedgate_platform_call_latency_seconds",
			Help:    "ポータルREST API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "embedgate_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.authVerdicts,
		c.nativeSignals,
		c.adminDecisions,
		c.remoteCalls,
		c.remoteLatency,
		c.httpStatus,
	)

	return c
}

// RecordAuthVerdict は認証ゲートの判定結果を記録する。
func (c *Collector) RecordAuthVerdict(outcome string) {
	c.authVerdicts.WithLabelValues(outcome).Inc()
}

// RecordNativeSignal はプラットフォーム由来判定の結果を記録する。
func (c *Collector) RecordNativeSignal(result string) {
	c.nativeSignals.WithLabelValues(result).Inc()
}

// RecordAdminDecision は管理者判定を記録する。
func (c *Collector) RecordAdminDecision(source string, isAdmin bool) {
	c.adminDecisions.WithLabelValues(source, strconv.FormatBool(isAdmin)).Inc()
}

// RecordRemoteCall はREST API呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordRemoteCall(method, outcome string, duration time.Duration) {
	c.remoteCalls.WithLabelValues(method, outcome).Inc()
	c.remoteLatency.WithLabelValues(method).Observe(duration.Seconds())
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
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
