// Package aegobserve file: internal/aegobserve/debug.go
package aegobserve

import (
	"errors"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // 注册到 http.DefaultServeMux
	"time"
)

// EnablePprof 在独立端口上暴露 /debug/pprof，addr 为空时不启用。
// 业务路由走 gin，不会经过 DefaultServeMux。
func EnablePprof(addr string) *http.Server {
	if addr == "" {
		slog.Info("pprof 未启用 (server.pprof_addr 为空)")
		return nil
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.DefaultServeMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("pprof 端点启动", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("pprof 端点启动失败", "error", err)
		}
	}()
	return srv
}
