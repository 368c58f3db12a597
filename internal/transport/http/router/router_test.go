package router

import (
	"UpdateAegis/internal/adapter/github"
	"UpdateAegis/internal/adapter/store/sqlite"
	"UpdateAegis/internal/aegmiddleware"
	"UpdateAegis/internal/service"
	"UpdateAegis/internal/transport/http/middleware"
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "webhook-secret"
	testPublic   = "https://updates.example.com"
	testPassword = "s3cret"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	handler http.Handler
	store   *sqlite.Store
	updates *service.UpdateService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	gh := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/repos/acme/my-plugin/releases":
			_, _ = fmt.Fprint(w, `[
				{"id": 11, "tag_name": "v1.1.0", "body": "Changelog: fixes", "zipball_url": "https://codeload.example.com/1.1.0.zip"},
				{"id": 12, "tag_name": "v1.2.0-beta", "prerelease": true, "zipball_url": "https://codeload.example.com/1.2.0-beta.zip"},
				{"id": 13, "tag_name": "v2.0.0", "draft": true}
			]`)
		case "/rate_limit":
			_, _ = fmt.Fprint(w, `{"resources": {"core": {"limit": 5000, "remaining": 4999, "used": 1, "reset": 1700000000}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(gh.Close)

	auth, err := service.NewAuthenticator(service.AuthConfig{
		JWTSecret:     "jwt-test-secret",
		TokenTTL:      time.Hour,
		AdminUsername: "admin",
		AdminPassword: testPassword,
	}, store)
	require.NoError(t, err)

	updates := service.NewUpdateService(store, store, store, service.ResolverConfig{PublicURL: testPublic, UploadsDir: t.TempDir()})
	ingest := service.NewIngestService(store, nil, testSecret)
	ingest.OnCommitted(updates.Invalidate)
	plugins := service.NewPluginService(store, store)
	plugins.OnChange(updates.Invalidate)
	source := github.NewClient(github.Config{BaseURL: gh.URL, Timeout: 5 * time.Second})

	handler := New(Dependencies{
		Auth:      auth,
		Sites:     service.NewSiteService(store, store),
		Plugins:   plugins,
		Updates:   updates,
		Ingest:    ingest,
		Sync:      service.NewSyncService(store, source, ingest, 2, time.Minute),
		Monitor:   service.NewMonitoringService(store),
		Limiter:   aegmiddleware.NewRouteLimiter(aegmiddleware.NewMemoryWindowStore(0), nil, false),
		LoginLock: aegmiddleware.NewLoginFailureLock(3, time.Minute),
		DB:        store,
		Version:   "test",
	})
	return &testEnv{handler: handler, store: store, updates: updates}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/auth/admin/login", "", gin.H{"username": "admin", "password": testPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token, _ := decode(t, w)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func (e *testEnv) registerPlugin(t *testing.T, token, slug, repo string) int64 {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/plugins", token, gin.H{
		"slug": slug, "name": "My Plugin", "github_owner": "acme", "github_repo": repo, "description": "Does things",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	plugin := decode(t, w)["plugin"].(map[string]any)
	return int64(plugin["id"].(float64))
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func releaseBody(t *testing.T, tag string) []byte {
	t.Helper()
	raw, err := json.Marshal(gin.H{
		"action": "published",
		"release": gin.H{
			"id": 100, "tag_name": tag, "body": "## Changelog\n- new feature",
			"zipball_url": "https://codeload.example.com/acme/my-plugin/" + tag + ".zip",
		},
		"repository": gin.H{"name": "my-plugin", "owner": gin.H{"login": "acme"}},
	})
	require.NoError(t, err)
	return raw
}

func TestHealthAndNoRoute(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/monitoring/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, "up", body["services"].(map[string]any)["database"])

	w = env.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Endpoint not found", decode(t, w)["error"])
}

func TestHealth_DatabaseDown(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Close())

	w := env.do(t, http.MethodGet, "/api/monitoring/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "down", decode(t, w)["services"].(map[string]any)["database"])
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/admin/login", "", gin.H{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/admin/login", "", gin.H{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/admin/login", "", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	token := env.login(t)
	assert.NotEmpty(t, token)
}

func TestLogin_LockoutAfterRepeatedFailures(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		w := env.do(t, http.MethodPost, "/api/auth/admin/login", "", gin.H{"username": "admin", "password": "wrong"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}
	// 锁定期内即使密码正确也被拒绝
	w := env.do(t, http.MethodPost, "/api/auth/admin/login", "", gin.H{"username": "admin", "password": testPassword})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_ForwardedForDoesNotEvadeLimits(t *testing.T) {
	env := newTestEnv(t)
	// 未配置可信代理，伪造的 X-Forwarded-For 不改变客户端地址
	for i := 0; i < 3; i++ {
		w := env.do(t, http.MethodPost, "/api/auth/admin/login", "", gin.H{"username": "admin", "password": "wrong"},
			"X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := env.do(t, http.MethodPost, "/api/auth/admin/login", "", gin.H{"username": "admin", "password": testPassword},
		"X-Forwarded-For", "198.51.100.200")
	assert.Equal(t, http.StatusUnauthorized, w.Code, "锁定不能被绕过")

	// 登录限流为每分钟 5 次
	w = env.do(t, http.MethodPost, "/api/auth/admin/login", "", gin.H{"username": "other", "password": "wrong"},
		"X-Forwarded-For", "198.51.100.201")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = env.do(t, http.MethodPost, "/api/auth/admin/login", "", gin.H{"username": "other", "password": "wrong"},
		"X-Forwarded-For", "198.51.100.202")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestPluginAdministration(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/plugins", "", gin.H{"slug": "my-plugin"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := env.login(t)
	env.registerPlugin(t, token, "my-plugin", "my-plugin")

	t.Run("重复注册返回冲突", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/plugins", token, gin.H{
			"slug": "my-plugin", "name": "Dup", "github_owner": "acme", "github_repo": "other",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("非法 slug", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/plugins", token, gin.H{
			"slug": "Bad Slug", "name": "x", "github_owner": "acme", "github_repo": "x",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("列表与详情", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/plugins", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 1, decode(t, w)["total"])

		w = env.do(t, http.MethodGet, "/api/plugins/my-plugin", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = env.do(t, http.MethodGet, "/api/plugins/missing", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = env.do(t, http.MethodGet, "/api/plugins/my-plugin/stats", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "my-plugin", decode(t, w)["slug"])
	})

	t.Run("修改", func(t *testing.T) {
		w := env.do(t, http.MethodPut, "/api/plugins/my-plugin", token, gin.H{"tested_wp": "6.6"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "6.6", decode(t, w)["plugin"].(map[string]any)["tested_wp"])

		w = env.do(t, http.MethodPut, "/api/plugins/my-plugin", token, gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("下线后不可见", func(t *testing.T) {
		w := env.do(t, http.MethodDelete, "/api/plugins/my-plugin", token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = env.do(t, http.MethodGet, "/api/plugins/my-plugin", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestWebhookToUpdateFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)
	env.registerPlugin(t, token, "my-plugin", "my-plugin")

	w := env.do(t, http.MethodGet, "/api/updates/check/my-plugin?version=1.0.0", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "尚无稳定版本")

	body := releaseBody(t, "v1.1.0")
	w = env.do(t, http.MethodPost, "/api/webhooks/github", "", body, "X-GitHub-Event", "release", "X-Hub-Signature-256", "sha256=00")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/webhooks/github", "", body, "X-GitHub-Event", "release", "X-Hub-Signature-256", sign(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "committed", decode(t, w)["outcome"])

	w = env.do(t, http.MethodPost, "/api/webhooks/github", "", body, "X-GitHub-Event", "release", "X-Hub-Signature-256", sign(body))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "duplicate", decode(t, w)["outcome"])

	ping := []byte(`{"zen": "hi"}`)
	w = env.do(t, http.MethodPost, "/api/webhooks/github", "", ping, "X-GitHub-Event", "ping", "X-Hub-Signature-256", sign(ping))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ignored", decode(t, w)["outcome"])

	t.Run("有可用更新", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/updates/check/my-plugin?version=1.0.0", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		payload := decode(t, w)
		assert.Equal(t, "1.1.0", payload["new_version"])
		assert.Equal(t, testPublic+"/api/updates/download/my-plugin/1.1.0", payload["package"])
		assert.Equal(t, "my-plugin/my-plugin.php", payload["plugin"])
	})

	t.Run("已是最新", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/updates/check/my-plugin?version=1.1.0", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decode(t, w)["up_to_date"])
	})

	t.Run("缺少版本参数", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/updates/check/my-plugin", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("批量检查内联错误", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/updates/check-multiple", "", gin.H{"plugins": []gin.H{
			{"slug": "my-plugin", "version": "1.0.0"},
			{"slug": "ghost", "version": "1.0.0"},
		}})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		out := decode(t, w)
		assert.Equal(t, "1.1.0", out["my-plugin"].(map[string]any)["new_version"])
		assert.Equal(t, "Plugin not found", out["ghost"].(map[string]any)["error"])
	})

	t.Run("下载重定向到远程归档", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/updates/download/my-plugin/1.1.0", "", nil)
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://codeload.example.com/acme/my-plugin/v1.1.0.zip", w.Header().Get("Location"))

		w = env.do(t, http.MethodGet, "/api/updates/download/my-plugin/9.9.9", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("插件信息", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/updates/info/my-plugin", "", nil)
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	env.updates.Wait()
}

func TestSiteKeysAndScope(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)
	env.registerPlugin(t, token, "my-plugin", "my-plugin")
	otherID := env.registerPlugin(t, token, "other-plugin", "other-plugin")

	for _, bad := range []gin.H{
		{"tag_name": "v1.1.0"},
		{"repository": "acme/my-plugin"},
		{"repository": "acme-my-plugin", "tag_name": "v1.1.0"},
	} {
		w := env.do(t, http.MethodPost, "/api/webhooks/test", token, bad)
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}

	w := env.do(t, http.MethodPost, "/api/webhooks/test", token, gin.H{"repository": "acme/my-plugin", "tag_name": "v1.1.0"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	assert.Equal(t, "committed", out["outcome"])
	assert.Equal(t, "https://github.com/acme/my-plugin/archive/refs/tags/v1.1.0.zip",
		out["version"].(map[string]any)["download_url"])

	w = env.do(t, http.MethodPost, "/api/auth/api-keys", token, gin.H{"site_url": "https://blog.example.com", "plugin_id": otherID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	site := decode(t, w)["site"].(map[string]any)
	key := site["api_key"].(string)
	siteID := int64(site["id"].(float64))
	assert.Contains(t, key, service.APIKeyPrefix)

	t.Run("限定插件的密钥访问其他插件被拒", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/updates/check/my-plugin?version=1.0.0", key, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("无效密钥", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/updates/check/my-plugin?version=1.0.0", "wpup_bogus", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("站点密钥不能访问管理接口", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/auth/api-keys", key, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("列表与统计", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/auth/api-keys", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 1, decode(t, w)["total"])
		assert.NotContains(t, w.Body.String(), key)

		w = env.do(t, http.MethodGet, "/api/auth/stats", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 1, decode(t, w)["active_sites"])
	})

	t.Run("校验", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/verify", token, gin.H{"api_key": key})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decode(t, w)["valid"])
	})

	t.Run("重新生成后旧密钥失效", func(t *testing.T) {
		w := env.do(t, http.MethodPost, fmt.Sprintf("/api/auth/api-keys/%d/regenerate", siteID), token, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		newKey := decode(t, w)["site"].(map[string]any)["api_key"].(string)
		assert.NotEqual(t, key, newKey)

		w = env.do(t, http.MethodGet, "/api/updates/info/other-plugin", key, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		w = env.do(t, http.MethodGet, "/api/updates/info/other-plugin", newKey, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("撤销", func(t *testing.T) {
		w := env.do(t, http.MethodDelete, fmt.Sprintf("/api/auth/api-keys/%d", siteID), token, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = env.do(t, http.MethodDelete, "/api/auth/api-keys/abc", token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAdminSyncAndGithub(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)
	id := env.registerPlugin(t, token, "my-plugin", "my-plugin")

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/sync/%d", id), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode(t, w)["result"].(map[string]any)
	assert.EqualValues(t, 2, result["processed"])
	assert.EqualValues(t, 2, result["created"])

	w = env.do(t, http.MethodPost, "/api/admin/sync-all", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	results := decode(t, w)["results"].([]any)
	require.Len(t, results, 1)
	assert.EqualValues(t, 2, results[0].(map[string]any)["duplicates"])

	w = env.do(t, http.MethodPost, "/api/admin/sync/999", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/admin/github/rate-limit", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 4999, decode(t, w)["remaining"])

	w = env.do(t, http.MethodGet, "/api/admin/github/acme/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 预发布版本不会作为最新稳定版本下发
	w = env.do(t, http.MethodGet, "/api/updates/check/my-plugin?version=1.0.0", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1.1.0", decode(t, w)["new_version"])
}

func TestRateLimitHeaders(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/plugins", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "100", w.Header().Get("RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestMonitoringDashboard(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)
	env.registerPlugin(t, token, "my-plugin", "my-plugin")
	env.registerPlugin(t, token, "idle-plugin", "idle-plugin")

	w := env.do(t, http.MethodPost, "/api/webhooks/test", token, gin.H{"repository": "acme/my-plugin", "tag_name": "v1.1.0"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/auth/api-keys", token, gin.H{"site_url": "https://blog.example.com"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	key := decode(t, w)["site"].(map[string]any)["api_key"].(string)

	w = env.do(t, http.MethodGet, "/api/updates/download/my-plugin/1.1.0", key, nil)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())

	t.Run("需要管理员", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/monitoring/dashboard", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		w = env.do(t, http.MethodGet, "/api/monitoring/dashboard", key, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	w = env.do(t, http.MethodGet, "/api/monitoring/dashboard", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)

	db := out["database"].(map[string]any)
	assert.EqualValues(t, 2, db["active_plugins"])
	assert.EqualValues(t, 1, db["total_versions"])
	assert.EqualValues(t, 1, db["downloads_24h"])
	assert.EqualValues(t, 1, db["active_sites"])
	assert.EqualValues(t, 1, db["sites_active_24h"])

	api := out["api"].(map[string]any)
	daily := api["daily_downloads"].([]any)
	require.Len(t, daily, 7)
	today := daily[6].(map[string]any)
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), today["date"])
	assert.EqualValues(t, 1, today["downloads"])
	assert.EqualValues(t, 1, today["unique_ips"])
	assert.EqualValues(t, 0, daily[0].(map[string]any)["downloads"])

	top := api["top_plugins_24h"].([]any)
	require.Len(t, top, 1)
	assert.Equal(t, "my-plugin", top[0].(map[string]any)["slug"])
	assert.EqualValues(t, 1, top[0].(map[string]any)["downloads"])

	assert.NotContains(t, out, "process")
}
