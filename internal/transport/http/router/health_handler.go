package router

import (
	"UpdateAegis/internal/service"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func healthHandler(db Pinger, version string, startedAt time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, dbStatus, code := "healthy", "up", http.StatusOK
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			err := db.Ping(ctx)
			cancel()
			if err != nil {
				slog.Error("健康检查: 数据库不可用", "error", err)
				status, dbStatus, code = "unhealthy", "down", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC(),
			"uptime":    time.Since(startedAt).Round(time.Second).String(),
			"version":   version,
			"services":  gin.H{"database": dbStatus},
		})
	}
}

func dashboardHandler(svc *service.MonitoringService) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := svc.Dashboard(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}
