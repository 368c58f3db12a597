package router

import (
	"UpdateAegis/internal/core/port"
	"UpdateAegis/internal/service"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func syncPluginHandler(svc *service.SyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("pluginId"), 10, 64)
		if err != nil || id <= 0 {
			respondError(c, fmt.Errorf("%w: 无效的插件 ID", port.ErrValidation))
			return
		}
		report, err := svc.SyncPlugin(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Sync completed", "result": report})
	}
}

func syncAllHandler(svc *service.SyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		reports, err := svc.SyncAll(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Sync completed", "results": reports})
	}
}

func githubRateLimitHandler(svc *service.SyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rl, err := svc.RateLimit(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rl)
	}
}

func githubRepoHandler(svc *service.SyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		repo, err := svc.Repository(c.Request.Context(), c.Param("owner"), c.Param("repo"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, repo)
	}
}
