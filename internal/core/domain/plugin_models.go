// Package domain file: internal/core/domain/plugin_models.go
package domain

import (
	"regexp"
	"time"
)

// Plugin 代表一个已注册的插件，通过 (github_owner, github_repo) 与 GitHub 仓库绑定
type Plugin struct {
	ID          int64     `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	Homepage    string    `json:"homepage"`
	GithubOwner string    `json:"github_owner"`
	GithubRepo  string    `json:"github_repo"`
	RequiresWP  string    `json:"requires_wp"`
	TestedWP    string    `json:"tested_wp"`
	RequiresPHP string    `json:"requires_php"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ReleaseVersion 是插件历史中一个不可变的版本记录。
// (plugin_id, version) 与 (plugin_id, github_release_id) 均唯一。
type ReleaseVersion struct {
	ID              int64     `json:"id"`
	PluginID        int64     `json:"plugin_id"`
	Version         string    `json:"version"`
	DownloadURL     string    `json:"download_url"`
	FilePath        string    `json:"file_path,omitempty"` // 相对于上传目录
	FileSize        int64     `json:"file_size"`
	Changelog       string    `json:"changelog"`
	ReleaseNotes    string    `json:"release_notes"`
	GithubReleaseID *int64    `json:"github_release_id,omitempty"`
	GithubTag       string    `json:"github_tag"`
	IsPrerelease    bool      `json:"is_prerelease"`
	CreatedAt       time.Time `json:"created_at"`
}

// RegisterOutcome 是幂等注册版本的结果
type RegisterOutcome int

const (
	Created RegisterOutcome = iota
	AlreadyExists
)

func (o RegisterOutcome) String() string {
	if o == AlreadyExists {
		return "already_exists"
	}
	return "created"
}

// PluginLookup 按 slug 或 owner/repo 查找插件，两者择一
type PluginLookup struct {
	Slug  string
	Owner string
	Repo  string
}

// PluginSummary 是插件列表项
type PluginSummary struct {
	Plugin
	LatestVersion  string `json:"latest_version"`
	TotalDownloads int64  `json:"total_downloads"`
}

// PluginDetail 是插件及其全部版本
type PluginDetail struct {
	Plugin
	Versions []ReleaseVersion `json:"versions"`
}

// PluginUpdate 是管理员可修改的字段，nil 表示不修改
type PluginUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Author      *string `json:"author"`
	Homepage    *string `json:"homepage"`
	RequiresWP  *string `json:"requires_wp"`
	TestedWP    *string `json:"tested_wp"`
	RequiresPHP *string `json:"requires_php"`
}

// IsEmpty 判断是否没有任何字段需要更新
func (u PluginUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.Author == nil && u.Homepage == nil &&
		u.RequiresWP == nil && u.TestedWP == nil && u.RequiresPHP == nil
}

// VersionDownloads 是单个版本的下载计数
type VersionDownloads struct {
	Version   string    `json:"version"`
	Downloads int64     `json:"downloads"`
	CreatedAt time.Time `json:"release_date"`
	Changelog string    `json:"changelog"`
}

// PluginStats 是插件下载统计
type PluginStats struct {
	Slug             string             `json:"slug"`
	TotalDownloads   int64              `json:"total_downloads"`
	Downloads30d     int64              `json:"downloads_30d"`
	UniqueSites      int64              `json:"unique_sites"`
	ActiveDays       int64              `json:"active_days"`
	VersionDownloads []VersionDownloads `json:"versions"`
}

// DownloadEvent 记录一次下载，仅追加
type DownloadEvent struct {
	PluginID   int64
	VersionID  int64
	IPAddress  string
	UserAgent  string
	WPVersion  string
	PHPVersion string
	SiteURL    string
}

// UpdateCheckEvent 记录一次 "有可用更新" 的检查结果，仅追加
type UpdateCheckEvent struct {
	PluginID       int64
	Slug           string
	ClientVersion  string
	OfferedVersion string
	IPAddress      string
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:[-_][a-z0-9]+)*$`)

// ValidSlug 校验 slug: 小写字母、数字，以 - 或 _ 分隔
func ValidSlug(slug string) bool {
	return len(slug) <= 100 && slugPattern.MatchString(slug)
}

// PluginInfo 是面向客户端的插件详情，包含每个版本的下载量
type PluginInfo struct {
	Plugin
	Versions    []VersionDownloads `json:"versions"`
	Stats       PluginInfoStats    `json:"stats"`
	LastUpdated time.Time          `json:"last_updated"`
}

type PluginInfoStats struct {
	TotalDownloads int64 `json:"total_downloads"`
	ActiveDays     int64 `json:"active_days"`
}
