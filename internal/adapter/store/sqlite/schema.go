// Package sqlite file: internal/adapter/store/sqlite/schema.go
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// InitPlatformTables 在启动时检查并创建目录服务所需的全部表与索引。
func InitPlatformTables(ctx context.Context, db *sql.DB) error {
	if err := initPluginTables(ctx, db); err != nil {
		return fmt.Errorf("初始化插件表失败: %w", err)
	}
	if err := initSiteTable(ctx, db); err != nil {
		return fmt.Errorf("初始化站点授权表失败: %w", err)
	}
	if err := initEventTables(ctx, db); err != nil {
		return fmt.Errorf("初始化事件表失败: %w", err)
	}
	slog.Info("数据库: 所有系统表结构初始化/检查完成")
	return nil
}

func execAll(ctx context.Context, db *sql.DB, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// initPluginTables 创建 plugins 与 plugin_versions。
// 唯一性约束由存储层保证，版本注册的幂等性依赖这些索引。
func initPluginTables(ctx context.Context, db *sql.DB) error {
	return execAll(ctx, db,
		`CREATE TABLE IF NOT EXISTS plugins (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			slug TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			author TEXT NOT NULL DEFAULT '',
			homepage TEXT NOT NULL DEFAULT '',
			github_owner TEXT NOT NULL,
			github_repo TEXT NOT NULL,
			requires_wp TEXT NOT NULL DEFAULT '',
			tested_wp TEXT NOT NULL DEFAULT '',
			requires_php TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		// 软删除的插件不占用 slug 与 owner/repo
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_plugins_slug_active ON plugins(slug) WHERE active = 1;`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_plugins_repo_active ON plugins(github_owner, github_repo) WHERE active = 1;`,
		`CREATE TABLE IF NOT EXISTS plugin_versions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			plugin_id INTEGER NOT NULL REFERENCES plugins(id),
			version TEXT NOT NULL,
			download_url TEXT NOT NULL DEFAULT '',
			file_path TEXT NOT NULL DEFAULT '',
			file_size INTEGER NOT NULL DEFAULT 0,
			changelog TEXT NOT NULL DEFAULT '',
			release_notes TEXT NOT NULL DEFAULT '',
			github_release_id INTEGER,
			github_tag TEXT NOT NULL DEFAULT '',
			is_prerelease BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL,
			UNIQUE (plugin_id, version)
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_versions_release ON plugin_versions(plugin_id, github_release_id) WHERE github_release_id IS NOT NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_versions_stable ON plugin_versions(plugin_id, is_prerelease);`,
	)
}

func initSiteTable(ctx context.Context, db *sql.DB) error {
	return execAll(ctx, db,
		`CREATE TABLE IF NOT EXISTS authorized_sites (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			plugin_id INTEGER REFERENCES plugins(id),
			site_url TEXT NOT NULL,
			api_key TEXT NOT NULL UNIQUE,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at DATETIME NOT NULL,
			last_check DATETIME
		);`,
	)
}

func initEventTables(ctx context.Context, db *sql.DB) error {
	return execAll(ctx, db,
		`CREATE TABLE IF NOT EXISTS downloads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			plugin_id INTEGER NOT NULL REFERENCES plugins(id),
			version_id INTEGER NOT NULL REFERENCES plugin_versions(id),
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			wp_version TEXT NOT NULL DEFAULT '',
			php_version TEXT NOT NULL DEFAULT '',
			site_url TEXT NOT NULL DEFAULT '',
			downloaded_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_downloads_plugin ON downloads(plugin_id, downloaded_at);`,
		`CREATE INDEX IF NOT EXISTS idx_downloads_version ON downloads(version_id);`,
		`CREATE TABLE IF NOT EXISTS update_checks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			plugin_id INTEGER NOT NULL REFERENCES plugins(id),
			slug TEXT NOT NULL,
			client_version TEXT NOT NULL,
			offered_version TEXT NOT NULL,
			ip_address TEXT NOT NULL DEFAULT '',
			checked_at DATETIME NOT NULL
		);`,
	)
}
