package router

import (
	"UpdateAegis/internal/aegmiddleware"
	"UpdateAegis/internal/core/domain"
	"UpdateAegis/internal/service"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// clientMeta 从请求头与认证信息中收集客户端信息
func clientMeta(c *gin.Context) service.ClientMeta {
	meta := service.ClientMeta{
		IP:         c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
		WPVersion:  c.GetHeader("X-WP-Version"),
		PHPVersion: c.GetHeader("X-PHP-Version"),
		SiteURL:    c.GetHeader("X-Site-URL"),
	}
	if p := aegmiddleware.PrincipalFrom(c); p != nil {
		meta.AllowedPluginID = p.ScopePluginID()
	}
	return meta
}

func checkUpdateHandler(svc *service.UpdateService) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.CheckUpdate(c.Request.Context(), c.Param("slug"), c.Query("version"), clientMeta(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res.Body())
	}
}

func checkMultipleHandler(svc *service.UpdateService) gin.HandlerFunc {
	type request struct {
		Plugins []domain.VersionQuery `json:"plugins" binding:"required,max=100"`
	}
	return func(c *gin.Context) {
		var req request
		if err := bindJSON(c, &req); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, svc.CheckMultiple(c.Request.Context(), req.Plugins, clientMeta(c)))
	}
}

func downloadHandler(svc *service.UpdateService) gin.HandlerFunc {
	return func(c *gin.Context) {
		target, err := svc.ResolveDownload(c.Request.Context(), c.Param("slug"), c.Param("version"), clientMeta(c))
		if err != nil {
			respondError(c, err)
			return
		}
		if target.LocalPath != "" {
			c.Header("Content-Type", "application/zip")
			c.FileAttachment(target.LocalPath, fmt.Sprintf("%s-%s.zip", target.Slug, target.Version))
			return
		}
		c.Redirect(http.StatusFound, target.RedirectURL)
	}
}

func pluginInfoHandler(svc *service.UpdateService) gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := svc.PluginInfo(c.Request.Context(), c.Param("slug"), clientMeta(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}
