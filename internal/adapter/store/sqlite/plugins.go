// Package sqlite file: internal/adapter/store/sqlite/plugins.go
package sqlite

import (
	"UpdateAegis/internal/core/domain"
	"UpdateAegis/internal/core/port"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const pluginColumns = `id, slug, name, description, author, homepage, github_owner, github_repo,
	requires_wp, tested_wp, requires_php, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlugin(row rowScanner) (*domain.Plugin, error) {
	var p domain.Plugin
	err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.Author, &p.Homepage,
		&p.GithubOwner, &p.GithubRepo, &p.RequiresWP, &p.TestedWP, &p.RequiresPHP,
		&p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindActivePlugin 按 slug 或 owner/repo 查找未被软删除的插件，未找到时返回 (nil, nil)
func (s *Store) FindActivePlugin(ctx context.Context, lookup domain.PluginLookup) (*domain.Plugin, error) {
	var row *sql.Row
	switch {
	case lookup.Slug != "":
		row = s.db.QueryRowContext(ctx,
			`SELECT `+pluginColumns+` FROM plugins WHERE slug = ? AND active = 1`, lookup.Slug)
	case lookup.Owner != "" && lookup.Repo != "":
		// GitHub 的 owner/repo 不区分大小写
		row = s.db.QueryRowContext(ctx,
			`SELECT `+pluginColumns+` FROM plugins
			 WHERE github_owner = ? COLLATE NOCASE AND github_repo = ? COLLATE NOCASE AND active = 1`,
			lookup.Owner, lookup.Repo)
	default:
		return nil, fmt.Errorf("%w: 查找插件需要 slug 或 owner/repo", port.ErrValidation)
	}

	p, err := scanPlugin(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询插件失败: %w", err)
	}
	return p, nil
}

// GetActivePluginByID 按主键查找未被软删除的插件
func (s *Store) GetActivePluginByID(ctx context.Context, id int64) (*domain.Plugin, error) {
	p, err := scanPlugin(s.db.QueryRowContext(ctx,
		`SELECT `+pluginColumns+` FROM plugins WHERE id = ? AND active = 1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询插件 (ID: %d) 失败: %w", id, err)
	}
	return p, nil
}

// ListActivePlugins 返回所有活跃插件，按 slug 排序
func (s *Store) ListActivePlugins(ctx context.Context) ([]domain.Plugin, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+pluginColumns+` FROM plugins WHERE active = 1 ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("查询插件列表失败: %w", err)
	}
	defer rows.Close()

	var out []domain.Plugin
	for rows.Next() {
		p, err := scanPlugin(rows)
		if err != nil {
			return nil, fmt.Errorf("扫描插件行失败: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// CreatePlugin 注册新插件。slug 或 owner/repo 与活跃插件冲突时返回 ErrConflict。
func (s *Store) CreatePlugin(ctx context.Context, p *domain.Plugin) error {
	now := s.timestamp()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO plugins (slug, name, description, author, homepage, github_owner, github_repo,
			requires_wp, tested_wp, requires_php, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		RETURNING id`,
		p.Slug, p.Name, p.Description, p.Author, p.Homepage, p.GithubOwner, p.GithubRepo,
		p.RequiresWP, p.TestedWP, p.RequiresPHP, now, now,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: 插件 slug '%s' 或仓库 '%s/%s' 已被注册", port.ErrConflict, p.Slug, p.GithubOwner, p.GithubRepo)
		}
		return fmt.Errorf("插入插件 '%s' 失败: %w", p.Slug, err)
	}
	p.Active = true
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

// UpdatePlugin 只更新白名单字段
func (s *Store) UpdatePlugin(ctx context.Context, slug string, upd domain.PluginUpdate) (*domain.Plugin, error) {
	sets := make([]string, 0, 8)
	args := make([]any, 0, 9)
	add := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, *v)
		}
	}
	add("name", upd.Name)
	add("description", upd.Description)
	add("author", upd.Author)
	add("homepage", upd.Homepage)
	add("requires_wp", upd.RequiresWP)
	add("tested_wp", upd.TestedWP)
	add("requires_php", upd.RequiresPHP)
	if len(sets) == 0 {
		return nil, fmt.Errorf("%w: 没有可更新的字段", port.ErrValidation)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, s.timestamp(), slug)

	p, err := scanPlugin(s.db.QueryRowContext(ctx,
		`UPDATE plugins SET `+strings.Join(sets, ", ")+` WHERE slug = ? AND active = 1 RETURNING `+pluginColumns,
		args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: 插件 '%s'", port.ErrNotFound, slug)
	}
	if err != nil {
		return nil, fmt.Errorf("更新插件 '%s' 失败: %w", slug, err)
	}
	return p, nil
}

// DeactivatePlugin 软删除插件，保留其版本与下载记录
func (s *Store) DeactivatePlugin(ctx context.Context, slug string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE plugins SET active = 0, updated_at = ? WHERE slug = ? AND active = 1`, s.timestamp(), slug)
	if err != nil {
		return fmt.Errorf("停用插件 '%s' 失败: %w", slug, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("停用插件 '%s' 失败: %w", slug, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: 插件 '%s'", port.ErrNotFound, slug)
	}
	return nil
}

// TouchPlugin 刷新插件的 updated_at
func (s *Store) TouchPlugin(ctx context.Context, pluginID int64) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE plugins SET updated_at = ? WHERE id = ?`, s.timestamp(), pluginID); err != nil {
		return fmt.Errorf("刷新插件 (ID: %d) 时间戳失败: %w", pluginID, err)
	}
	return nil
}

// ListPluginSummaries 返回活跃插件及其最新稳定版本与下载总数
func (s *Store) ListPluginSummaries(ctx context.Context) ([]domain.PluginSummary, error) {
	plugins, err := s.ListActivePlugins(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PluginSummary, 0, len(plugins))
	for _, p := range plugins {
		summary := domain.PluginSummary{Plugin: p}
		latest, err := s.LatestStableVersion(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			summary.LatestVersion = latest.Version
		}
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM downloads WHERE plugin_id = ?`, p.ID).Scan(&summary.TotalDownloads); err != nil {
			return nil, fmt.Errorf("统计插件 '%s' 下载量失败: %w", p.Slug, err)
		}
		out = append(out, summary)
	}
	return out, nil
}

// PluginStats 汇总插件的下载统计，since 之后的下载计入 Downloads30d
func (s *Store) PluginStats(ctx context.Context, pluginID int64, since time.Time) (*domain.PluginStats, error) {
	stats := &domain.PluginStats{VersionDownloads: []domain.VersionDownloads{}}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(CASE WHEN downloaded_at >= ? THEN 1 END),
		       COUNT(DISTINCT NULLIF(site_url, '')),
		       COUNT(DISTINCT DATE(downloaded_at))
		FROM downloads WHERE plugin_id = ?`,
		since.UTC(), pluginID,
	).Scan(&stats.TotalDownloads, &stats.Downloads30d, &stats.UniqueSites, &stats.ActiveDays)
	if err != nil {
		return nil, fmt.Errorf("统计插件 (ID: %d) 下载失败: %w", pluginID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT v.version, v.created_at, v.changelog, COUNT(d.id)
		FROM plugin_versions v
		LEFT JOIN downloads d ON d.version_id = v.id
		WHERE v.plugin_id = ?
		GROUP BY v.id
		ORDER BY v.created_at DESC, v.id DESC`, pluginID)
	if err != nil {
		return nil, fmt.Errorf("按版本统计下载失败: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var vd domain.VersionDownloads
		if err := rows.Scan(&vd.Version, &vd.CreatedAt, &vd.Changelog, &vd.Downloads); err != nil {
			return nil, fmt.Errorf("扫描版本统计失败: %w", err)
		}
		stats.VersionDownloads = append(stats.VersionDownloads, vd)
	}
	return stats, rows.Err()
}
