package aegmiddleware

import (
	"UpdateAegis/internal/service"
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const principalCtxKey = "aegis.principal"

// BearerResolver 把 Bearer 凭证解析为调用方身份
type BearerResolver interface {
	ResolveBearer(ctx context.Context, token string) (*service.Principal, error)
}

// bearerToken 提取 Authorization: Bearer <token>，present 表示请求头存在
func bearerToken(r *http.Request) (token string, present bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return "", false
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", true
	}
	return strings.TrimSpace(parts[1]), true
}

func attach(c *gin.Context, p *service.Principal) {
	c.Set(principalCtxKey, p)
	c.Request = c.Request.WithContext(service.ContextWithPrincipal(c.Request.Context(), p))
}

// PrincipalFrom 返回已认证的调用方，匿名请求返回 nil
func PrincipalFrom(c *gin.Context) *service.Principal {
	if v, ok := c.Get(principalCtxKey); ok {
		if p, ok := v.(*service.Principal); ok {
			return p
		}
	}
	return nil
}

// OptionalSiteAuth 允许匿名访问；携带了 Authorization 头但无效时拒绝。
func OptionalSiteAuth(resolver BearerResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, present := bearerToken(c.Request)
		if !present {
			c.Next()
			return
		}
		p, err := resolver.ResolveBearer(c.Request.Context(), token)
		if err != nil {
			slog.Warn("无效的 API 凭证", "path", c.Request.URL.Path, "ip", c.ClientIP(), "error", err)
			errResp(c, http.StatusUnauthorized, "无效的 API 凭证", 0)
			return
		}
		attach(c, p)
		c.Next()
	}
}

// RequireAdmin 是一个确保只有管理员能访问的中间件。
func RequireAdmin(resolver BearerResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, present := bearerToken(c.Request)
		if !present || token == "" {
			errResp(c, http.StatusUnauthorized, "需要管理员认证", 0)
			return
		}
		p, err := resolver.ResolveBearer(c.Request.Context(), token)
		if err != nil {
			slog.Warn("RequireAdmin: 访问被拒绝 (凭证无效)", "path", c.Request.URL.Path, "ip", c.ClientIP(), "error", err)
			errResp(c, http.StatusUnauthorized, "需要管理员认证", 0)
			return
		}
		if !p.IsAdmin() {
			slog.Warn("RequireAdmin: 访问被拒绝 (非管理员凭证)", "path", c.Request.URL.Path, "ip", c.ClientIP())
			errResp(c, http.StatusForbidden, "需要管理员权限", 0)
			return
		}
		attach(c, p)
		c.Next()
	}
}
