// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 同期の種別ラベル
const (
	KindRSS     = "rss"
	KindYouTube = "youtube"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 同期サービスやスイープから利用する。
type MetricsCollector interface {
	RecordSyncSuccess(kind string)
	RecordSyncFailure(kind, stage string)
	RecordSyncLatency(kind string, duration time.Duration)
	RecordEpisodesUpserted(count int)
	RecordEpisodeFailures(count int)
	RecordMatchesApplied(count int)
	RecordYouTubeError(reason string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	syncSuccess      *prometheus.CounterVec
	syncFail         *prometheus.CounterVec
	syncLatency      *prometheus.HistogramVec
	episodesUpserted prometheus.Counter
	episodeFail      prometheus.Counter
	matchesApplied   prometheus.Counter
	youtubeErrors    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "castsite_sync_success_total",
			Help: "同期成功の合計数",
		}, []string{"kind"}),
		syncFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "castsite_sync_fail_total",
			Help: "段階別の同期失敗の合計数",
		}, []string{"kind", "stage"}),
		syncLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "castsite_sync_latency_seconds",
			Help:    "同期処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		episodesUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castsite_episodes_upserted_total",
			Help: "アップサートされたエピソードの合計数",
		}),
		episodeFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castsite_episode_failures_total",
			Help: "保存に失敗したエピソードの合計数",
		}),
		matchesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castsite_matches_applied_total",
			Help: "動画IDを書き戻したエピソードの合計数",
		}),
		youtubeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "castsite_youtube_errors_total",
			Help: "原因別のYouTube API呼び出し失敗数",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.syncSuccess,
		c.syncFail,
		c.syncLatency,
		c.episodesUpserted,
		c.episodeFail,
		c.matchesApplied,
		c.youtubeErrors,
	)

	return c
}

// RecordSyncSuccess は同期成功を記録する。
func (c *Collector) RecordSyncSuccess(kind string) {
	c.syncSuccess.WithLabelValues(kind).Inc()
}

// RecordSyncFailure は失敗した段階とともに同期失敗を記録する。
func (c *Collector) RecordSyncFailure(kind, stage string) {
	c.syncFail.WithLabelValues(kind, stage).Inc()
}

// RecordSyncLatency は同期のレイテンシを記録する。
func (c *Collector) RecordSyncLatency(kind string, duration time.Duration) {
	c.syncLatency.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordEpisodesUpserted はアップサートされたエピソード数を記録する。
func (c *Collector) RecordEpisodesUpserted(count int) {
	c.episodesUpserted.Add(float64(count))
}

// RecordEpisodeFailures は保存に失敗したエピソード数を記録する。
func (c *Collector) RecordEpisodeFailures(count int) {
	c.episodeFail.Add(float64(count))
}

// RecordMatchesApplied は書き戻した動画IDの数を記録する。
func (c *Collector) RecordMatchesApplied(count int) {
	c.matchesApplied.Add(float64(count))
}

// RecordYouTubeError はYouTube API呼び出しの失敗を記録する。
// reasonはquota、not_found、transportのいずれか。
func (c *Collector) RecordYouTubeError(reason string) {
	c.youtubeErrors.WithLabelValues(reason).Inc()
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

// Nop は何も記録しないMetricsCollector。メトリクスを無効にする場合やテストで使用する。
type Nop struct{}

func (Nop) RecordSyncSuccess(string)                {}
func (Nop) RecordSyncFailure(string, string)        {}
func (Nop) RecordSyncLatency(string, time.Duration) {}
func (Nop) RecordEpisodesUpserted(int)              {}
func (Nop) RecordEpisodeFailures(int)               {}
func (Nop) RecordMatchesApplied(int)                {}
func (Nop) RecordYouTubeError(string)               {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
