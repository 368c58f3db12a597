// Package port file: internal/core/port/service.go
package port

import (
	"UpdateAegis/internal/core/domain"
	"context"
	"time"
)

// Catalog 是插件与版本记录的唯一数据源
type Catalog interface {
	FindActivePlugin(ctx context.Context, lookup domain.PluginLookup) (*domain.Plugin, error)
	GetActivePluginByID(ctx context.Context, id int64) (*domain.Plugin, error)
	ListActivePlugins(ctx context.Context) ([]domain.Plugin, error)

	// RegisterVersion 幂等地插入版本。重复的 (plugin, version) 或 (plugin, github_release_id) 返回 AlreadyExists 而非错误。
	RegisterVersion(ctx context.Context, pluginID int64, v *domain.ReleaseVersion) (domain.RegisterOutcome, error)
	LatestStableVersion(ctx context.Context, pluginID int64) (*domain.ReleaseVersion, error)
	GetVersion(ctx context.Context, pluginID int64, version string) (*domain.ReleaseVersion, error)
	AttachAsset(ctx context.Context, versionID int64, filePath string, size int64) error
	TouchPlugin(ctx context.Context, pluginID int64) error
}

// PluginAdminStore 是插件管理 (CRUD 与统计) 所需的存储能力
type PluginAdminStore interface {
	CreatePlugin(ctx context.Context, p *domain.Plugin) error
	UpdatePlugin(ctx context.Context, slug string, upd domain.PluginUpdate) (*domain.Plugin, error)
	DeactivatePlugin(ctx context.Context, slug string) error
	ListPluginSummaries(ctx context.Context) ([]domain.PluginSummary, error)
	ListVersions(ctx context.Context, pluginID int64) ([]domain.ReleaseVersion, error)
	PluginStats(ctx context.Context, pluginID int64, since time.Time) (*domain.PluginStats, error)
}

// EventRecorder 记录下载与更新检查事件
type EventRecorder interface {
	RecordDownload(ctx context.Context, ev domain.DownloadEvent) error
	RecordUpdateCheck(ctx context.Context, ev domain.UpdateCheckEvent) error
}

// SiteStore 持有站点授权记录
type SiteStore interface {
	CreateSite(ctx context.Context, site *domain.AuthorizedSite) error
	ListSites(ctx context.Context) ([]domain.SiteListItem, error)
	GetSite(ctx context.Context, id int64) (*domain.AuthorizedSite, error)
	SetSiteActive(ctx context.Context, id int64, active bool) error
	ReplaceSiteKey(ctx context.Context, id int64, newKey string) error
	FindActiveSiteByKey(ctx context.Context, key string) (*domain.AuthorizedSite, error)
	// TouchSiteByKey 匹配活跃授权并在同一条语句中更新 last_check
	TouchSiteByKey(ctx context.Context, key string, now time.Time) (*domain.AuthorizedSite, error)
	SiteStats(ctx context.Context, now time.Time) (*domain.SiteStats, error)
}

// MonitoringStore 提供管理后台概览所需的聚合查询
type MonitoringStore interface {
	Dashboard(ctx context.Context, now time.Time) (*domain.Dashboard, error)
}

// ReleaseSource 是源代码托管平台的 Release API
type ReleaseSource interface {
	ListReleases(ctx context.Context, owner, repo string) ([]domain.GithubRelease, error)
	GetRepository(ctx context.Context, owner, repo string) (*domain.GithubRepo, error)
	RateLimit(ctx context.Context) (*domain.GithubRateLimit, error)
}

// AssetFetcher 将远程归档流式写入本地存储，返回相对路径
type AssetFetcher interface {
	Fetch(ctx context.Context, sourceURL, slug, version string) (relPath string, size int64, err error)
}
