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
	RecordPostCreated()
	RecordPostViewed()
	RecordSummarizeSuccess(duration time.Duration)
	RecordSummarizeFailure(reason string, duration time.Duration)
	RecordImport(imported, skipped int)
	RecordImportFailure(reason string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	postsCreated     prometheus.Counter
	postViews        prometheus.Counter
	summarizeTotal   *prometheus.CounterVec
	summarizeLatency prometheus.Histogram
	importedPosts    *prometheus.CounterVec
	importFail       *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		postsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogmind_posts_created_total",
			Help: "作成された投稿の合計数",
		}),
		postViews: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogmind_post_views_total",
			Help: "カウントされた投稿閲覧の合計数",
		}),
		summarizeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogmind_summarize_requests_total",
			Help: "AI要約リクエストの結果別の合計数",
		}, []string{"result"}),
		summarizeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blogmind_summarize_latency_seconds",
			Help:    "AI要約プロバイダー呼び出しのレイテンシ（秒）",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		importedPosts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogmind_import_items_total",
			Help: "フィードインポートで処理された記事数",
		}, []string{"outcome"}),
		importFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogmind_import_fail_total",
			Help: "フィードインポート失敗の理由別の合計数",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogmind_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.postsCreated,
		c.postViews,
		c.summarizeTotal,
		c.summarizeLatency,
		c.importedPosts,
		c.importFail,
		c.httpStatus,
	)

	return c
}

// RecordPostCreated は投稿作成を記録する。
func (c *Collector) RecordPostCreated() {
	c.postsCreated.Inc()
}

// RecordPostViewed は閲覧数の加算を記録する。
func (c *Collector) RecordPostViewed() {
	c.postViews.Inc()
}

// RecordSummarizeSuccess はAI要約の成功とレイテンシを記録する。
func (c *Collector) RecordSummarizeSuccess(duration time.Duration) {
	c.summarizeTotal.WithLabelValues("success").Inc()
	c.summarizeLatency.Observe(duration.Seconds())
}

// RecordSummarizeFailure はAI要約の失敗を理由ラベル付きで記録する。
func (c *Collector) RecordSummarizeFailure(reason string, duration time.Duration) {
	c.summarizeTotal.WithLabelValues(reason).Inc()
	c.summarizeLatency.Observe(duration.Seconds())
}

// RecordImport はインポートで作成・スキップされた記事数を記録する。
func (c *Collector) RecordImport(imported, skipped int) {
	c.importedPosts.WithLabelValues("imported").Add(float64(imported))
	c.importedPosts.WithLabelValues("skipped").Add(float64(skipped))
}

// RecordImportFailure はインポート失敗を記録する。
func (c *Collector) RecordImportFailure(reason string) {
	c.importFail.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordPostCreated()                           {}
func (Nop) RecordPostViewed()                            {}
func (Nop) RecordSummarizeSuccess(time.Duration)         {}
func (Nop) RecordSummarizeFailure(string, time.Duration) {}
func (Nop) RecordImport(int, int)                        {}
func (Nop) RecordImportFailure(string)                   {}
func (Nop) RecordHTTPStatus(int)                         {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
