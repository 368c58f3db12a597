// file: internal/transport/http/router/router.go
package router

import (
	"UpdateAegis/internal/aegmiddleware"
	"UpdateAegis/internal/aegobserve"
	"UpdateAegis/internal/service"
	"UpdateAegis/internal/transport/http/middleware"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// Pinger 用于健康检查
type Pinger interface {
	Ping(ctx context.Context) error
}

// StorageDirs 是对外提供静态文件的目录，空值表示不挂载
type StorageDirs struct {
	Uploads string
	Icons   string
	Banners string
}

// Dependencies 结构体用于将所有依赖项注入到路由器中
type Dependencies struct {
	Auth    *service.Authenticator
	Sites   *service.SiteService
	Plugins *service.PluginService
	Updates *service.UpdateService
	Ingest  *service.IngestService
	Sync    *service.SyncService
	Monitor *service.MonitoringService

	Limiter      *aegmiddleware.RouteLimiter
	LoginLock    *aegmiddleware.LoginFailureLock
	GlobalLimit  gin.HandlerFunc
	DB           Pinger
	Storage      StorageDirs
	AllowOrigins []string
	// TrustedProxies 是可信反向代理；为空时 ClientIP 只取连接对端地址
	TrustedProxies []string
	Version        string
	StartedAt      time.Time
}

// New 创建并配置基于 Gin 的 HTTP 路由器
func New(deps Dependencies) http.Handler {
	middleware.RegisterValidators()
	if deps.StartedAt.IsZero() {
		deps.StartedAt = time.Now()
	}

	router := gin.New()
	if err := router.SetTrustedProxies(deps.TrustedProxies); err != nil {
		slog.Error("可信代理配置无效，忽略所有代理头", "proxies", deps.TrustedProxies, "error", err)
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(gin.Recovery(), middleware.RequestID(), gin.Logger(), aegobserve.PrometheusMiddleware())
	if deps.GlobalLimit != nil {
		router.Use(deps.GlobalLimit)
	}

	// --- 配置全局中间件 ---
	origins := deps.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Accept", "X-WP-Version", "X-PHP-Version", "X-Site-URL", "X-Hub-Signature-256", "X-GitHub-Event"},
		ExposeHeaders: []string{"Content-Length", "Retry-After", "RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))
	// 归档本身已压缩
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/updates/download", "/downloads", "/metrics"})))
	router.Use(middleware.ErrorHandlingMiddleware())

	limit := deps.Limiter.Middleware
	resolver := deps.Auth
	admin := aegmiddleware.RequireAdmin(resolver)
	optional := aegmiddleware.OptionalSiteAuth(resolver)

	api := router.Group("/api")
	{
		plugins := api.Group("/plugins", limit(aegmiddleware.ClassDefault))
		{
			plugins.GET("", listPluginsHandler(deps.Plugins))
			plugins.GET("/:slug", getPluginHandler(deps.Plugins))
			plugins.GET("/:slug/stats", pluginStatsHandler(deps.Plugins))
			plugins.POST("", admin, createPluginHandler(deps.Plugins))
			plugins.PUT("/:slug", admin, updatePluginHandler(deps.Plugins))
			plugins.DELETE("/:slug", admin, deletePluginHandler(deps.Plugins))
		}

		updates := api.Group("/updates", limit(aegmiddleware.ClassUpdates), optional)
		{
			updates.GET("/check/:slug", checkUpdateHandler(deps.Updates))
			updates.POST("/check-multiple", checkMultipleHandler(deps.Updates))
			updates.GET("/download/:slug/:version", downloadHandler(deps.Updates))
			updates.GET("/info/:slug", pluginInfoHandler(deps.Updates))
		}

		webhooks := api.Group("/webhooks", limit(aegmiddleware.ClassWebhooks))
		{
			webhooks.POST("/github", githubWebhookHandler(deps.Ingest))
			webhooks.POST("/test", admin, testWebhookHandler(deps.Ingest))
			webhooks.GET("/status", webhookStatusHandler(deps.Ingest))
		}

		auth := api.Group("/auth")
		{
			loginChain := []gin.HandlerFunc{limit(aegmiddleware.ClassLogin)}
			if deps.LoginLock != nil {
				loginChain = append(loginChain, deps.LoginLock.Middleware())
			}
			auth.POST("/admin/login", append(loginChain, loginHandler(deps.Auth))...)

			keys := auth.Group("", limit(aegmiddleware.ClassDefault), admin)
			keys.POST("/api-keys", createKeyHandler(deps.Sites))
			keys.GET("/api-keys", listKeysHandler(deps.Sites))
			keys.DELETE("/api-keys/:siteId", revokeKeyHandler(deps.Sites))
			keys.POST("/api-keys/:siteId/regenerate", regenerateKeyHandler(deps.Sites))
			keys.POST("/verify", verifyKeyHandler(deps.Sites))
			keys.GET("/stats", siteStatsHandler(deps.Sites))
		}

		adminGroup := api.Group("/admin", limit(aegmiddleware.ClassDefault), admin)
		{
			adminGroup.POST("/sync/:pluginId", syncPluginHandler(deps.Sync))
			adminGroup.POST("/sync-all", syncAllHandler(deps.Sync))
			adminGroup.GET("/github/rate-limit", githubRateLimitHandler(deps.Sync))
			adminGroup.GET("/github/:owner/:repo", githubRepoHandler(deps.Sync))
		}

		monitoring := api.Group("/monitoring")
		{
			monitoring.GET("/health", healthHandler(deps.DB, deps.Version, deps.StartedAt))
			monitoring.GET("/dashboard", limit(aegmiddleware.ClassDefault), admin, dashboardHandler(deps.Monitor))
		}
	}
	router.GET("/metrics", gin.WrapH(aegobserve.Handler()))

	if deps.Storage.Uploads != "" {
		router.Static("/downloads", deps.Storage.Uploads)
	}
	if deps.Storage.Icons != "" {
		router.Static("/icons", deps.Storage.Icons)
	}
	if deps.Storage.Banners != "" {
		router.Static("/banners", deps.Storage.Banners)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
	})
	return router
}

// respondError 记录错误并立即写出响应
func respondError(c *gin.Context, err error) {
	middleware.WriteError(c, err)
}
