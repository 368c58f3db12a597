// Package aegobserve file: internal/aegobserve/logging.go
package aegobserve

import (
	"log/slog"
	"os"
	"strings"
)

// 全局日志级别，可在运行时通过 SetLevel 调整
var logLevel = new(slog.LevelVar)

// ParseLevel 把配置字符串转换为 slog.Level，未知值回退到 INFO
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLogger 初始化全局的结构化日志记录器。
// 它应该在 main 函数的早期被调用。
func InitLogger(levelStr string) {
	logLevel.Set(ParseLevel(levelStr))

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: true,
	})
	slog.SetDefault(slog.New(handler))
}

// SetLevel 在运行时调整日志级别 (配置热加载时调用)
func SetLevel(levelStr string) {
	lvl := ParseLevel(levelStr)
	if logLevel.Level() != lvl {
		logLevel.Set(lvl)
		slog.Info("日志级别已更新", "level", lvl.String())
	}
}
