// Package sqlite file: internal/adapter/store/sqlite/events.go
package sqlite

import (
	"UpdateAegis/internal/core/domain"
	"context"
	"fmt"
)

// RecordDownload 追加一条下载记录
func (s *Store) RecordDownload(ctx context.Context, ev domain.DownloadEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO downloads (plugin_id, version_id, ip_address, user_agent, wp_version, php_version, site_url, downloaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.PluginID, ev.VersionID, ev.IPAddress, ev.UserAgent, ev.WPVersion, ev.PHPVersion, ev.SiteURL, s.timestamp())
	if err != nil {
		return fmt.Errorf("记录下载事件失败: %w", err)
	}
	return nil
}

// RecordUpdateCheck 追加一条更新检查记录
func (s *Store) RecordUpdateCheck(ctx context.Context, ev domain.UpdateCheckEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO update_checks (plugin_id, slug, client_version, offered_version, ip_address, checked_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.PluginID, ev.Slug, ev.ClientVersion, ev.OfferedVersion, ev.IPAddress, s.timestamp())
	if err != nil {
		return fmt.Errorf("记录更新检查事件失败: %w", err)
	}
	return nil
}
