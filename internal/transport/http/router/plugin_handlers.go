package router

import (
	"UpdateAegis/internal/core/domain"
	"UpdateAegis/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

func listPluginsHandler(svc *service.PluginService) gin.HandlerFunc {
	return func(c *gin.Context) {
		plugins, err := svc.ListPlugins(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		if plugins == nil {
			plugins = []domain.PluginSummary{}
		}
		c.JSON(http.StatusOK, gin.H{"plugins": plugins, "total": len(plugins)})
	}
}

func getPluginHandler(svc *service.PluginService) gin.HandlerFunc {
	return func(c *gin.Context) {
		detail, err := svc.GetPluginDetail(c.Request.Context(), c.Param("slug"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

func pluginStatsHandler(svc *service.PluginService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := svc.Stats(c.Request.Context(), c.Param("slug"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func createPluginHandler(svc *service.PluginService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.CreatePluginRequest
		if err := bindJSON(c, &req); err != nil {
			respondError(c, err)
			return
		}
		p, err := svc.CreatePlugin(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Plugin registered successfully", "plugin": p})
	}
}

func updatePluginHandler(svc *service.PluginService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var upd domain.PluginUpdate
		if err := bindJSON(c, &upd); err != nil {
			respondError(c, err)
			return
		}
		p, err := svc.UpdatePlugin(c.Request.Context(), c.Param("slug"), upd)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Plugin updated successfully", "plugin": p})
	}
}

func deletePluginHandler(svc *service.PluginService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeletePlugin(c.Request.Context(), c.Param("slug")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Plugin deactivated successfully"})
	}
}
