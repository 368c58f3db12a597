// Package sqlite file: internal/adapter/store/sqlite/versions.go
package sqlite

import (
	"UpdateAegis/internal/core/domain"
	"UpdateAegis/internal/version"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

const versionColumns = `id, plugin_id, version, download_url, file_path, file_size, changelog, release_notes,
	github_release_id, github_tag, is_prerelease, created_at`

func scanVersion(row rowScanner) (*domain.ReleaseVersion, error) {
	var (
		v         domain.ReleaseVersion
		releaseID sql.NullInt64
	)
	err := row.Scan(&v.ID, &v.PluginID, &v.Version, &v.DownloadURL, &v.FilePath, &v.FileSize,
		&v.Changelog, &v.ReleaseNotes, &releaseID, &v.GithubTag, &v.IsPrerelease, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	v.GithubReleaseID = int64Ptr(releaseID)
	return &v, nil
}

// RegisterVersion 幂等地插入一个版本记录。
// 原子性完全交给唯一索引：ON CONFLICT DO NOTHING 覆盖 (plugin_id, version) 与 (plugin_id, github_release_id)，
// 并发插入同一版本时只有一方得到 RETURNING 行，另一方得到 AlreadyExists。
func (s *Store) RegisterVersion(ctx context.Context, pluginID int64, v *domain.ReleaseVersion) (domain.RegisterOutcome, error) {
	now := s.timestamp()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO plugin_versions (plugin_id, version, download_url, file_path, file_size, changelog,
			release_notes, github_release_id, github_tag, is_prerelease, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
		RETURNING id`,
		pluginID, v.Version, v.DownloadURL, v.FilePath, v.FileSize, v.Changelog,
		v.ReleaseNotes, nullableInt64(v.GithubReleaseID), v.GithubTag, v.IsPrerelease, now,
	).Scan(&v.ID)

	switch {
	case err == nil:
		v.PluginID = pluginID
		v.CreatedAt = now
		return domain.Created, nil
	case errors.Is(err, sql.ErrNoRows), isUniqueViolation(err):
		return domain.AlreadyExists, nil
	default:
		return domain.Created, fmt.Errorf("注册插件 (ID: %d) 版本 '%s' 失败: %w", pluginID, v.Version, err)
	}
}

// LatestStableVersion 返回非预发布版本中语义化版本号最大的一个，没有时返回 (nil, nil)
func (s *Store) LatestStableVersion(ctx context.Context, pluginID int64) (*domain.ReleaseVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM plugin_versions WHERE plugin_id = ? AND is_prerelease = 0`, pluginID)
	if err != nil {
		return nil, fmt.Errorf("查询插件 (ID: %d) 稳定版本失败: %w", pluginID, err)
	}
	defer rows.Close()

	var (
		candidates []*domain.ReleaseVersion
		labels     []string
	)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("扫描版本行失败: %w", err)
		}
		candidates = append(candidates, v)
		labels = append(labels, v.Version)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	_, idx := version.Max(labels)
	if idx < 0 {
		if len(candidates) > 0 {
			slog.Warn("插件没有可比较的稳定版本号", "plugin_id", pluginID, "versions", labels)
		}
		return nil, nil
	}
	return candidates[idx], nil
}

// GetVersion 精确查找某个版本
func (s *Store) GetVersion(ctx context.Context, pluginID int64, ver string) (*domain.ReleaseVersion, error) {
	v, err := scanVersion(s.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM plugin_versions WHERE plugin_id = ? AND version = ?`, pluginID, ver))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询插件 (ID: %d) 版本 '%s' 失败: %w", pluginID, ver, err)
	}
	return v, nil
}

// ListVersions 返回插件全部版本，最新创建的在前
func (s *Store) ListVersions(ctx context.Context, pluginID int64) ([]domain.ReleaseVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM plugin_versions WHERE plugin_id = ? ORDER BY created_at DESC, id DESC`, pluginID)
	if err != nil {
		return nil, fmt.Errorf("查询插件 (ID: %d) 版本列表失败: %w", pluginID, err)
	}
	defer rows.Close()

	out := []domain.ReleaseVersion{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("扫描版本行失败: %w", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// AttachAsset 把异步抓取到的本地归档合并回版本记录。
// 版本记录的其余字段保持不可变，已有本地文件时不覆盖。
func (s *Store) AttachAsset(ctx context.Context, versionID int64, filePath string, size int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE plugin_versions SET file_path = ?, file_size = ? WHERE id = ? AND file_path = ''`,
		filePath, size, versionID)
	if err != nil {
		return fmt.Errorf("记录版本 (ID: %d) 本地文件失败: %w", versionID, err)
	}
	return nil
}
