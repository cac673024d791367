// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/slotkeeper/internal/model"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラー、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordOperation(entity, operation string)
	RecordRejection(code string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordLoginAttempt(result string)
	SetSubscriptionCounts(counts map[model.SubscriptionStatus]int)
	RecordExpiryScan(duration time.Duration)
}

// ログイン試行の結果ラベル。
const (
	LoginSucceeded = "success"
	LoginFailed    = "failure"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	operations     *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	loginAttempts  *prometheus.CounterVec
	subscriptions  *prometheus.GaugeVec
	expiryScans    prometheus.Histogram
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slotkeeper_operations_total",
			Help: "成功した書き込み操作の合計数",
		}, []string{"entity", "operation"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slotkeeper_rejections_total",
			Help: "エラーコード別の拒否されたリクエスト数",
		}, []string{"code"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slotkeeper_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "slotkeeper_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slotkeeper_login_attempts_total",
			Help: "結果別のログイン試行数",
		}, []string{"result"}),
		subscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "slotkeeper_subscriptions",
			Help: "状態別の契約数（最後の期限スキャン時点）",
		}, []string{"status"}),
		expiryScans: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "slotkeeper_expiry_scan_duration_seconds",
			Help:    "期限スキャン1回の処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.operations,
		c.rejections,
		c.httpStatus,
		c.requestLatency,
		c.loginAttempts,
		c.subscriptions,
		c.expiryScans,
	)

	return c
}

// RecordOperation は成功した書き込み操作を記録する。
func (c *Collector) RecordOperation(entity, operation string) {
	c.operations.WithLabelValues(entity, operation).Inc()
}

// RecordRejection はエラーコードで拒否されたリクエストを記録する。
func (c *Collector) RecordRejection(code string) {
	c.rejections.WithLabelValues(code).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordLoginAttempt はログイン試行の結果を記録する。
func (c *Collector) RecordLoginAttempt(result string) {
	c.loginAttempts.WithLabelValues(result).Inc()
}

// SetSubscriptionCounts は状態別の契約数を更新する。
// countsに含まれない状態は0になる。
func (c *Collector) SetSubscriptionCounts(counts map[model.SubscriptionStatus]int) {
	for _, status := range []model.SubscriptionStatus{
		model.SubscriptionStatusActive, model.SubscriptionStatusExpiringSoon, model.SubscriptionStatusExpired,
	} {
		c.subscriptions.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

// RecordExpiryScan は期限スキャンの処理時間を記録する。
func (c *Collector) RecordExpiryScan(duration time.Duration) {
	c.expiryScans.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// APIを持たないワーカープロセス用。healthが指定された場合は/healthも提供する。
func SetupMetricsRoute(gatherer prometheus.Gatherer, health http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	if health != nil {
		mux.Handle("/health", health)
	}
	return mux
}
