// Package domain file: internal/core/domain/github_models.go
package domain

import "time"

// ReleaseEvent 是 GitHub release webhook 的载荷 (只保留用到的字段)
type ReleaseEvent struct {
	Action     string        `json:"action"`
	Release    GithubRelease `json:"release"`
	Repository GithubRepo    `json:"repository"`
}

type GithubRelease struct {
	ID          int64         `json:"id"`
	TagName     string        `json:"tag_name"`
	Name        string        `json:"name"`
	Body        string        `json:"body"`
	Draft       bool          `json:"draft"`
	Prerelease  bool          `json:"prerelease"`
	ZipballURL  string        `json:"zipball_url"`
	PublishedAt *time.Time    `json:"published_at"`
	Assets      []GithubAsset `json:"assets"`
}

type GithubAsset struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	ContentType        string `json:"content_type"`
	Size               int64  `json:"size"`
	URL                string `json:"url"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

type GithubRepo struct {
	ID            int64       `json:"id"`
	Name          string      `json:"name"`
	FullName      string      `json:"full_name"`
	Description   string      `json:"description"`
	HTMLURL       string      `json:"html_url"`
	DefaultBranch string      `json:"default_branch"`
	Private       bool        `json:"private"`
	Stargazers    int         `json:"stargazers_count"`
	UpdatedAt     *time.Time  `json:"updated_at"`
	Owner         GithubOwner `json:"owner"`
}

type GithubOwner struct {
	Login string `json:"login"`
}

// GithubRateLimit 是 /rate_limit 中 core 资源的配额
type GithubRateLimit struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Used      int       `json:"used"`
	Reset     time.Time `json:"reset"`
}

// IngestOutcome 是 webhook 处理流水线的终态
type IngestOutcome string

const (
	OutcomeIgnored      IngestOutcome = "ignored"
	OutcomeUnregistered IngestOutcome = "unregistered"
	OutcomeDuplicate    IngestOutcome = "duplicate"
	OutcomeCommitted    IngestOutcome = "committed"
)

// IngestResult 是一次 webhook/同步处理的结果
type IngestResult struct {
	Outcome IngestOutcome   `json:"outcome"`
	Message string          `json:"message"`
	Plugin  string          `json:"plugin,omitempty"`
	Version *ReleaseVersion `json:"version,omitempty"`
}

// SyncReport 是单个插件的同步统计
type SyncReport struct {
	PluginID   int64  `json:"plugin_id"`
	Plugin     string `json:"plugin"`
	Processed  int    `json:"processed"`
	Created    int    `json:"created"`
	Duplicates int    `json:"duplicates"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Error      string `json:"error,omitempty"`
}
