package aegmiddleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// ============================================================================
//  失败计数与临时锁定
// ============================================================================

// LoginFailureLock 在同一 (IP, 用户名) 连续登录失败后临时锁定
type LoginFailureLock struct {
	failureCache    *cache.Cache
	maxFailures     int
	lockoutDuration time.Duration
}

// NewLoginFailureLock 创建一个新的登录失败锁定器
func NewLoginFailureLock(maxFailures int, lockoutDuration time.Duration) *LoginFailureLock {
	return &LoginFailureLock{
		failureCache:    cache.New(lockoutDuration, 2*lockoutDuration),
		maxFailures:     maxFailures,
		lockoutDuration: lockoutDuration,
	}
}

// peekUsername 读取 JSON 请求体中的 username，并把请求体放回去供后续处理器使用
func peekUsername(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	if err != nil {
		return ""
	}
	var extractor struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(bodyBytes, &extractor); err != nil {
		return ""
	}
	return strings.TrimSpace(extractor.Username)
}

// Middleware 包裹登录处理器，根据处理器返回的状态码累计失败次数
func (l *LoginFailureLock) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := peekUsername(c.Request)
		ip := c.ClientIP()
		lockKey := "lock:" + ip + ":" + username
		failureKey := "failures:" + ip + ":" + username

		if _, found := l.failureCache.Get(lockKey); found {
			slog.Warn("已锁定的账户再次尝试登录", "username", username, "ip", ip)
			errResp(c, http.StatusUnauthorized, "用户名或密码无效", 0)
			return
		}

		c.Next()

		switch c.Writer.Status() {
		case http.StatusUnauthorized:
			if err := l.failureCache.Increment(failureKey, int64(1)); err != nil {
				l.failureCache.Set(failureKey, int64(1), cache.DefaultExpiration)
			}
			var failures int64
			if x, found := l.failureCache.Get(failureKey); found {
				failures = x.(int64)
			}
			slog.Info("登录失败", "username", username, "ip", ip, "failures", failures)

			if failures >= int64(l.maxFailures) {
				l.failureCache.Set(lockKey, true, l.lockoutDuration)
				l.failureCache.Delete(failureKey)
				slog.Warn("账户已被临时锁定", "username", username, "ip", ip, "duration", l.lockoutDuration.String())
			}
		case http.StatusOK:
			l.failureCache.Delete(failureKey)
		}
	}
}
