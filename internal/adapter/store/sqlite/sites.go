// Package sqlite file: internal/adapter/store/sqlite/sites.go
package sqlite

import (
	"UpdateAegis/internal/core/domain"
	"UpdateAegis/internal/core/port"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const siteColumns = `id, plugin_id, site_url, api_key, active, created_at, last_check`

func scanSite(row rowScanner) (*domain.AuthorizedSite, error) {
	var (
		site      domain.AuthorizedSite
		pluginID  sql.NullInt64
		lastCheck sql.NullTime
	)
	if err := row.Scan(&site.ID, &pluginID, &site.SiteURL, &site.APIKey, &site.Active, &site.CreatedAt, &lastCheck); err != nil {
		return nil, err
	}
	site.PluginID = int64Ptr(pluginID)
	site.LastCheck = timePtr(lastCheck)
	return &site, nil
}

// CreateSite 插入一条站点授权
func (s *Store) CreateSite(ctx context.Context, site *domain.AuthorizedSite) error {
	now := s.timestamp()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO authorized_sites (plugin_id, site_url, api_key, active, created_at)
		VALUES (?, ?, ?, 1, ?) RETURNING id`,
		nullableInt64(site.PluginID), site.SiteURL, site.APIKey, now,
	).Scan(&site.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: API Key 冲突", port.ErrConflict)
		}
		return fmt.Errorf("插入站点授权失败: %w", err)
	}
	site.Active = true
	site.CreatedAt = now
	return nil
}

// ListSites 列出全部授权，不返回完整密钥
func (s *Store) ListSites(ctx context.Context) ([]domain.SiteListItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.plugin_id, COALESCE(p.slug, ''), s.site_url, s.api_key, s.active, s.created_at, s.last_check
		FROM authorized_sites s
		LEFT JOIN plugins p ON p.id = s.plugin_id
		ORDER BY s.created_at DESC, s.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("查询站点授权失败: %w", err)
	}
	defer rows.Close()

	out := []domain.SiteListItem{}
	for rows.Next() {
		var (
			item      domain.SiteListItem
			pluginID  sql.NullInt64
			key       string
			lastCheck sql.NullTime
		)
		if err := rows.Scan(&item.ID, &pluginID, &item.PluginSlug, &item.SiteURL, &key, &item.Active, &item.CreatedAt, &lastCheck); err != nil {
			return nil, fmt.Errorf("扫描站点授权失败: %w", err)
		}
		item.PluginID = int64Ptr(pluginID)
		item.LastCheck = timePtr(lastCheck)
		item.MaskedKey = domain.MaskAPIKey(key)
		out = append(out, item)
	}
	return out, rows.Err()
}

// GetSite 按 ID 查找授权，未找到时返回 (nil, nil)
func (s *Store) GetSite(ctx context.Context, id int64) (*domain.AuthorizedSite, error) {
	site, err := scanSite(s.db.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM authorized_sites WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询站点授权 (ID: %d) 失败: %w", id, err)
	}
	return site, nil
}

// SetSiteActive 启用或吊销授权
func (s *Store) SetSiteActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE authorized_sites SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("更新站点授权 (ID: %d) 状态失败: %w", id, err)
	}
	return requireAffected(res, "站点授权", id)
}

// ReplaceSiteKey 用新值替换密钥并重新启用，旧值立即失效
func (s *Store) ReplaceSiteKey(ctx context.Context, id int64, newKey string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE authorized_sites SET api_key = ?, active = 1 WHERE id = ?`, newKey, id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: API Key 冲突", port.ErrConflict)
		}
		return fmt.Errorf("替换站点授权 (ID: %d) 密钥失败: %w", id, err)
	}
	return requireAffected(res, "站点授权", id)
}

// FindActiveSiteByKey 精确匹配活跃授权，不产生副作用
func (s *Store) FindActiveSiteByKey(ctx context.Context, key string) (*domain.AuthorizedSite, error) {
	site, err := scanSite(s.db.QueryRowContext(ctx,
		`SELECT `+siteColumns+` FROM authorized_sites WHERE api_key = ? AND active = 1`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询站点授权失败: %w", err)
	}
	return site, nil
}

// TouchSiteByKey 在一条语句里完成匹配与 last_check 更新，只写 last_check 一列
func (s *Store) TouchSiteByKey(ctx context.Context, key string, now time.Time) (*domain.AuthorizedSite, error) {
	site, err := scanSite(s.db.QueryRowContext(ctx,
		`UPDATE authorized_sites SET last_check = ? WHERE api_key = ? AND active = 1 RETURNING `+siteColumns,
		now.UTC().Truncate(time.Second), key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("更新站点授权 last_check 失败: %w", err)
	}
	return site, nil
}

// SiteStats 汇总授权数量与活跃度
func (s *Store) SiteStats(ctx context.Context, now time.Time) (*domain.SiteStats, error) {
	var st domain.SiteStats
	now = now.UTC()
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(CASE WHEN active = 1 THEN 1 END),
		       COUNT(CASE WHEN active = 1 AND last_check >= ? THEN 1 END),
		       COUNT(CASE WHEN active = 1 AND last_check >= ? THEN 1 END),
		       COUNT(CASE WHEN plugin_id IS NOT NULL THEN 1 END),
		       COUNT(CASE WHEN plugin_id IS NULL THEN 1 END)
		FROM authorized_sites`,
		now.Add(-24*time.Hour), now.Add(-7*24*time.Hour),
	).Scan(&st.TotalSites, &st.ActiveSites, &st.ActiveIn24h, &st.ActiveIn7d, &st.ScopedSites, &st.GlobalSites)
	if err != nil {
		return nil, fmt.Errorf("统计站点授权失败: %w", err)
	}
	return &st, nil
}

func requireAffected(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s (ID: %d)", port.ErrNotFound, what, id)
	}
	return nil
}
