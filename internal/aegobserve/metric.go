// Package aegobserve 暴露 Prometheus 指标
package aegobserve

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 指标定义
var (
	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "updateaegis_http_request_duration_seconds",
		Help:    "HTTP 请求耗时",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "code"})

	UpdateChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "updateaegis_update_checks_total",
		Help: "更新检查次数，按结果分类",
	}, []string{"outcome"})

	WebhookDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "updateaegis_webhook_deliveries_total",
		Help: "webhook 投递次数，按终态分类",
	}, []string{"outcome"})

	DownloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "updateaegis_downloads_total",
		Help: "下载次数，按来源分类 (local/redirect)",
	}, []string{"source"})

	AssetFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "updateaegis_asset_fetch_total",
		Help: "Release 归档抓取次数",
	}, []string{"status"})

	SyncRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "updateaegis_sync_runs_total",
		Help: "GitHub 同步次数",
	}, []string{"status"})

	RateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "updateaegis_rate_limited_total",
		Help: "被限流拒绝的请求数",
	}, []string{"class"})
)

// Register 必须在 main 调用一次
func Register() {
	prometheus.MustRegister(
		httpRequestDuration,
		UpdateChecksTotal,
		WebhookDeliveriesTotal,
		DownloadsTotal,
		AssetFetchTotal,
		SyncRunsTotal,
		RateLimitedTotal,
	)
}

// Handler 返回 HTTP 处理器
func Handler() http.Handler { return promhttp.Handler() }

// PrometheusMiddleware 记录每个请求的耗时。path 使用路由模板，避免 slug 导致标签爆炸。
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestDuration.
			WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
