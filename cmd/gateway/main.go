// file: cmd/gateway/main.go

package main

import (
	"UpdateAegis/internal/adapter/github"
	"UpdateAegis/internal/adapter/store/sqlite"
	"UpdateAegis/internal/aegmiddleware"
	"UpdateAegis/internal/aegobserve"
	"UpdateAegis/internal/core/port"
	"UpdateAegis/internal/downloader"
	"UpdateAegis/internal/service"
	"UpdateAegis/internal/transport/http/router"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/redis/go-redis/v9"
)

const version = "v1.0.0"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		hashPassword(os.Args[2:])
		return
	}

	// 在日志系统完全初始化前，使用标准 log
	log.Printf("UpdateAegis %s 正在启动...", version)

	rootDir := os.Getenv("AEGIS_ROOT")
	if rootDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			log.Fatalf("CRITICAL: 无法获取工作目录: %v", err)
		}
		rootDir = wd
	}

	v, cfg, err := loadConfig(rootDir)
	if err != nil {
		log.Fatalf("CRITICAL: %v", err)
	}
	aegobserve.InitLogger(cfg.Server.LogLevel)
	slog.Info("UpdateAegis starting up", "version", version, "root", rootDir)

	v.OnConfigChange(func(e fsnotify.Event) {
		slog.Info("检测到配置文件变化", "file", e.Name, "op", e.Op.String())
		aegobserve.SetLevel(v.GetString("server.log_level"))
	})
	v.WatchConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPath := absPath(rootDir, cfg.Database.Path)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		log.Fatalf("CRITICAL: 创建数据库目录失败: %v", err)
	}
	store, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		log.Fatalf("CRITICAL: 初始化目录数据库失败: %v", err)
	}
	defer func() {
		slog.Info("正在关闭数据库连接...")
		if err := store.Close(); err != nil {
			slog.Error("关闭数据库时发生错误", "error", err)
		}
	}()
	slog.Info("存储层: 目录数据库初始化完成", "path", dbPath)

	auth, err := service.NewAuthenticator(service.AuthConfig{
		JWTSecret:     cfg.Auth.JWTSecret,
		TokenTTL:      cfg.Auth.TokenTTL,
		AdminUsername: cfg.Auth.AdminUsername,
		AdminPassword: cfg.Auth.AdminPassword,
	}, store)
	if err != nil {
		log.Fatalf("CRITICAL: 初始化认证服务失败: %v", err)
	}
	if cfg.Auth.AdminPassword == "" {
		slog.Warn("未配置管理员密码，管理员登录不可用")
	}

	uploadsDir := absPath(rootDir, cfg.Storage.UploadsDir)
	var fetcher port.AssetFetcher
	if cfg.Storage.FetchAssets {
		f, err := downloader.NewFetcher(uploadsDir, cfg.Storage.MaxAssetBytes,
			downloader.NewHTTPDownloader(cfg.Github.Token, "UpdateAegis/"+version, cfg.Storage.FetchTimeout),
		)
		if err != nil {
			log.Fatalf("CRITICAL: 初始化归档抓取器失败: %v", err)
		}
		fetcher = f.AllowHosts(downloader.GitHubHosts...)
	}

	updates := service.NewUpdateService(store, store, store, service.ResolverConfig{
		PublicURL:  cfg.Server.PublicURL,
		UploadsDir: uploadsDir,
		CacheSize:  cfg.Cache.Size,
		CacheTTL:   cfg.Cache.TTL,
	})
	ingest := service.NewIngestService(store, fetcher, cfg.Github.WebhookSecret)
	ingest.OnCommitted(updates.Invalidate)
	plugins := service.NewPluginService(store, store)
	plugins.OnChange(updates.Invalidate)
	source := github.NewClient(github.Config{
		BaseURL:   cfg.Github.APIBaseURL,
		Token:     cfg.Github.Token,
		UserAgent: "UpdateAegis/" + version,
		Timeout:   cfg.Github.Timeout,
	})
	syncer := service.NewSyncService(store, source, ingest, cfg.Sync.Concurrency, cfg.Sync.PerPluginTimeout)
	slog.Info("服务层: 初始化完成")

	if cfg.Sync.Schedule != "" {
		if _, err := syncer.Schedule(ctx, cfg.Sync.Schedule); err != nil {
			log.Fatalf("CRITICAL: %v", err)
		}
		slog.Info("后台任务: 定时同步已启动", "schedule", cfg.Sync.Schedule)
	}

	windows, closeWindows := newWindowStore(ctx, cfg.RateLimit)
	defer closeWindows()

	handler := router.New(router.Dependencies{
		Auth:        auth,
		Sites:       service.NewSiteService(store, store),
		Plugins:     plugins,
		Updates:     updates,
		Ingest:      ingest,
		Sync:        syncer,
		Monitor:     service.NewMonitoringService(store),
		Limiter:     aegmiddleware.NewRouteLimiter(windows, cfg.RateLimit.rules(), cfg.RateLimit.FailClosed),
		LoginLock:   aegmiddleware.NewLoginFailureLock(cfg.Auth.MaxFailures, cfg.Auth.Lockout),
		GlobalLimit: aegmiddleware.GlobalLimiter(cfg.RateLimit.GlobalRate, cfg.RateLimit.GlobalBurst),
		DB:          store,
		Storage: router.StorageDirs{
			Uploads: uploadsDir,
			Icons:   absPath(rootDir, cfg.Storage.IconsDir),
			Banners: absPath(rootDir, cfg.Storage.BannersDir),
		},
		AllowOrigins:   cfg.Server.AllowOrigins,
		TrustedProxies: cfg.Server.TrustedProxies,
		Version:        version,
	})
	slog.Info("传输层: HTTP 路由器创建完成。")

	aegobserve.Register()
	pprofSrv := aegobserve.EnablePprof(cfg.Server.PprofAddr)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("UpdateAegis 启动成功，开始监听HTTP请求...", "address", addr, "public_url", cfg.Server.PublicURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP服务启动失败", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("收到停机信号，准备优雅关闭...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP服务优雅关闭失败", "error", err)
	}
	if pprofSrv != nil {
		_ = pprofSrv.Shutdown(shutdownCtx)
	}
	updates.Wait()

	slog.Info("HTTP服务已成功关闭。")
	slog.Info("程序即将退出。")
}

// newWindowStore 按配置选择限流窗口存储。Redis 不可达时回退到内存存储。
func newWindowStore(ctx context.Context, cfg RateLimitConfig) (aegmiddleware.WindowStore, func()) {
	if cfg.Backend == "redis" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			slog.Info("限流: 使用 Redis 窗口存储", "addr", cfg.RedisAddr)
			return aegmiddleware.NewRedisWindowStore(client, cfg.KeyPrefix), func() { _ = client.Close() }
		}
		slog.Warn("Redis 不可用，限流回退到内存存储", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
	}
	mem := aegmiddleware.NewMemoryWindowStore(time.Minute)
	return mem, func() { _ = mem.Close() }
}

func absPath(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func hashPassword(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "用法: gateway hash-password <密码>")
		os.Exit(2)
	}
	hash, err := service.HashPassword(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
