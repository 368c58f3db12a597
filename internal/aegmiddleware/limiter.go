package aegmiddleware

import (
	"UpdateAegis/internal/aegobserve"
	"UpdateAegis/internal/core/domain"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// 路由类别
const (
	ClassUpdates  = "updates"
	ClassLogin    = "login"
	ClassWebhooks = "webhooks"
	ClassDefault  = "default"
)

// DefaultRules 是各路由类别的默认滑动窗口预算
func DefaultRules() map[string]domain.RateLimitRule {
	return map[string]domain.RateLimitRule{
		ClassUpdates:  {Limit: 200, Window: 15 * time.Minute},
		ClassLogin:    {Limit: 5, Window: time.Minute},
		ClassWebhooks: {Limit: 100, Window: 15 * time.Minute},
		ClassDefault:  {Limit: 100, Window: 15 * time.Minute},
	}
}

// ============================================================================
//  按 IP 的滑动窗口限流器
// ============================================================================

// RouteLimiter 按 (路由类别, 客户端 IP) 维护滑动窗口
type RouteLimiter struct {
	store      WindowStore
	rules      map[string]domain.RateLimitRule
	failClosed bool
	now        func() time.Time
}

// NewRouteLimiter 创建限流器。rules 中缺失的类别回退到 DefaultRules。
func NewRouteLimiter(store WindowStore, rules map[string]domain.RateLimitRule, failClosed bool) *RouteLimiter {
	merged := DefaultRules()
	for class, rule := range rules {
		if rule.Limit > 0 && rule.Window > 0 {
			merged[class] = rule
		}
	}
	for class, rule := range merged {
		slog.Info("限流规则", "class", class, "limit", rule.Limit, "window", rule.Window.String())
	}
	return &RouteLimiter{store: store, rules: merged, failClosed: failClosed, now: time.Now}
}

// SetClock 替换时间源，仅用于测试
func (l *RouteLimiter) SetClock(now func() time.Time) { l.now = now }

// Rule 返回某类别生效的规则
func (l *RouteLimiter) Rule(class string) domain.RateLimitRule {
	if rule, ok := l.rules[class]; ok {
		return rule
	}
	return l.rules[ClassDefault]
}

// Middleware 返回指定路由类别的 gin 中间件
func (l *RouteLimiter) Middleware(class string) gin.HandlerFunc {
	rule := l.Rule(class)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		decision, err := l.store.Hit(c.Request.Context(), class+":"+ip, rule.Limit, rule.Window, l.now())
		if err != nil {
			slog.Error("限流存储不可用", "class", class, "ip", ip, "error", err)
			if l.failClosed {
				c.Header("Retry-After", "1")
				errResp(c, http.StatusTooManyRequests, "限流服务不可用，请稍后再试", 1)
				return
			}
			c.Next()
			return
		}

		writeRateLimitHeaders(c, decision, l.now())
		if !decision.Allowed {
			aegobserve.RateLimitedTotal.WithLabelValues(class).Inc()
			slog.Warn("请求触发限流", "class", class, "ip", ip, "path", c.Request.URL.Path)
			errResp(c, http.StatusTooManyRequests, "请求过于频繁，请稍后再试", retryAfterSeconds(decision, l.now()))
			return
		}
		c.Next()
	}
}

func retryAfterSeconds(d domain.RateLimitDecision, now time.Time) int64 {
	secs := int64(math.Ceil(d.ResetAt.Sub(now).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

func writeRateLimitHeaders(c *gin.Context, d domain.RateLimitDecision, now time.Time) {
	c.Header("RateLimit-Limit", strconv.Itoa(d.Limit))
	c.Header("RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.ResetAt.IsZero() {
		c.Header("RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	}
	if !d.Allowed {
		c.Header("Retry-After", strconv.FormatInt(retryAfterSeconds(d, now), 10))
	}
}

// ============================================================================
//  全局令牌桶
// ============================================================================

// GlobalLimiter 对整个进程做粗粒度保护
func GlobalLimiter(ratePerSecond float64, burst int) gin.HandlerFunc {
	if ratePerSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	slog.Info("全局限流已启用", "rate", ratePerSecond, "burst", burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			aegobserve.RateLimitedTotal.WithLabelValues("global").Inc()
			c.Header("Retry-After", "1")
			errResp(c, http.StatusTooManyRequests, "系统繁忙，请稍后再试 (global limit)", 1)
			return
		}
		c.Next()
	}
}

func errResp(c *gin.Context, code int, msg string, retryAfter int64) {
	c.Header("X-Content-Type-Options", "nosniff")
	body := gin.H{"error": msg}
	if retryAfter > 0 {
		body["retry_after"] = retryAfter
	}
	c.AbortWithStatusJSON(code, body)
}
