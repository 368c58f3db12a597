package router

import (
	"UpdateAegis/internal/core/domain"
	"UpdateAegis/internal/core/port"
	"UpdateAegis/internal/service"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func loginHandler(auth *service.Authenticator) gin.HandlerFunc {
	type request struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	return func(c *gin.Context) {
		var req request
		if err := bindJSON(c, &req); err != nil {
			respondError(c, err)
			return
		}
		token, expiresAt, err := auth.Login(req.Username, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"token":      token,
			"expires_at": expiresAt,
			"user":       gin.H{"username": req.Username, "isAdmin": true},
		})
	}
}

func siteIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("siteId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: 无效的站点 ID", port.ErrValidation)
	}
	return id, nil
}

func createKeyHandler(svc *service.SiteService) gin.HandlerFunc {
	type request struct {
		SiteURL  string `json:"site_url" binding:"required,url"`
		PluginID *int64 `json:"plugin_id"`
	}
	return func(c *gin.Context) {
		var req request
		if err := bindJSON(c, &req); err != nil {
			respondError(c, err)
			return
		}
		site, err := svc.GenerateKey(c.Request.Context(), req.SiteURL, req.PluginID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "API key generated successfully", "site": site})
	}
}

func listKeysHandler(svc *service.SiteService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sites, err := svc.ListKeys(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		if sites == nil {
			sites = []domain.SiteListItem{}
		}
		c.JSON(http.StatusOK, gin.H{"sites": sites, "total": len(sites)})
	}
}

func revokeKeyHandler(svc *service.SiteService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := siteIDParam(c)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := svc.RevokeKey(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "API key revoked successfully"})
	}
}

func regenerateKeyHandler(svc *service.SiteService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := siteIDParam(c)
		if err != nil {
			respondError(c, err)
			return
		}
		site, err := svc.RegenerateKey(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "API key regenerated successfully", "site": site})
	}
}

func verifyKeyHandler(svc *service.SiteService) gin.HandlerFunc {
	type request struct {
		APIKey string `json:"api_key"`
	}
	return func(c *gin.Context) {
		var req request
		if err := bindJSON(c, &req); err != nil {
			respondError(c, err)
			return
		}
		res, err := svc.VerifyKey(c.Request.Context(), req.APIKey)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func siteStatsHandler(svc *service.SiteService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := svc.Stats(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
