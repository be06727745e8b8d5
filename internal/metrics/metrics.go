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
// ハンドラーやセッションのクリーンアップジョブから利用する。
type MetricsCollector interface {
	RecordTransition(from, to string)
	RecordRejection(reason string)
	RecordPlatformConnected(platform string)
	RecordAnalysisCompleted(duration time.Duration)
	SetActiveSessions(count int)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	transitions       *prometheus.CounterVec
	rejections        *prometheus.CounterVec
	platforms         *prometheus.CounterVec
	analysisCompleted prometheus.Counter
	analysisDuration  prometheus.Histogram
	activeSessions    prometheus.Gauge
	httpStatus        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fitfolio_transitions_total",
			Help: "画面遷移の合計数",
		}, []string{"from", "to"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fitfolio_transition_rejections_total",
			Help: "拒否された操作の理由別合計数",
		}, []string{"reason"}),
		platforms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fitfolio_platform_connections_total",
			Help: "プラットフォーム別の連携操作数",
		}, []string{"platform"}),
		analysisCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fitfolio_analysis_completed_total",
			Help: "完了した分析シーケンスの合計数",
		}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fitfolio_analysis_duration_seconds",
			Help:    "分析シーケンスの所要時間（秒）",
			Buckets: []float64{1, 2.5, 5, 7.5, 10, 15, 30},
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fitfolio_active_sessions",
			Help: "メモリ上に保持しているセッション数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fitfolio_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.transitions,
		c.rejections,
		c.platforms,
		c.analysisCompleted,
		c.analysisDuration,
		c.activeSessions,
		c.httpStatus,
	)

	return c
}

// RecordTransition は成功した画面遷移を記録する。
func (c *Collector) RecordTransition(from, to string) {
	c.transitions.WithLabelValues(from, to).Inc()
}

// RecordRejection は拒否された操作を記録する。
func (c *Collector) RecordRejection(reason string) {
	c.rejections.WithLabelValues(reason).Inc()
}

// RecordPlatformConnected はプラットフォーム連携を記録する。
func (c *Collector) RecordPlatformConnected(platform string) {
	c.platforms.WithLabelValues(platform).Inc()
}

// RecordAnalysisCompleted は分析完了と所要時間を記録する。
func (c *Collector) RecordAnalysisCompleted(duration time.Duration) {
	c.analysisCompleted.Inc()
	c.analysisDuration.Observe(duration.Seconds())
}

// SetActiveSessions は保持セッション数を設定する。
func (c *Collector) SetActiveSessions(count int) {
	c.activeSessions.Set(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// statusWriter はレスポンスのステータスコードを記録する。
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// NewStatusMiddleware はレスポンスのステータスコードをcollectorに記録するミドルウェアを返す。
func NewStatusMiddleware(collector MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)
			if sw.status == 0 {
				sw.status = http.StatusOK
			}
			collector.RecordHTTPStatus(sw.status)
		})
	}
}
