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
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordTokenValidation(outcome string)
	RecordEntryRead(spaceID string)
	RecordRenderLatency(duration time.Duration)
	RecordImportedEntries(count int)
}

// トークン検証結果のラベル値。
const (
	TokenOutcomeValid   = "valid"
	TokenOutcomeInvalid = "invalid"
	TokenOutcomeError   = "error"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus      *prometheus.CounterVec
	tokenValidation *prometheus.CounterVec
	entryReads      *prometheus.CounterVec
	renderLatency   prometheus.Histogram
	importedEntries prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blade_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		tokenValidation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blade_token_validation_total",
			Help: "アクセストークン検証の結果別合計数",
		}, []string{"outcome"}),
		entryReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blade_entry_reads_total",
			Help: "スペース別のエントリ読み取り合計数",
		}, []string{"space_id"}),
		renderLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blade_render_latency_seconds",
			Help:    "公開ページ描画のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		importedEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blade_imported_entries_total",
			Help: "フィード取り込みで作成されたエントリの合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.tokenValidation,
		c.entryReads,
		c.renderLatency,
		c.importedEntries,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordTokenValidation はトークン検証の結果を記録する。
func (c *Collector) RecordTokenValidation(outcome string) {
	c.tokenValidation.WithLabelValues(outcome).Inc()
}

// RecordEntryRead はコンテンツAPI経由のエントリ読み取りを記録する。
func (c *Collector) RecordEntryRead(spaceID string) {
	c.entryReads.WithLabelValues(spaceID).Inc()
}

// RecordRenderLatency は公開ページ描画のレイテンシを記録する。
func (c *Collector) RecordRenderLatency(duration time.Duration) {
	c.renderLatency.Observe(duration.Seconds())
}

// RecordImportedEntries は取り込みで作成されたエントリ数を記録する。
func (c *Collector) RecordImportedEntries(count int) {
	c.importedEntries.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
