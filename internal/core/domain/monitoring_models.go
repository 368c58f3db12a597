// Package domain file: internal/core/domain/monitoring_models.go
package domain

import "time"

// Dashboard 是管理后台的运营概览
type Dashboard struct {
	Database    DatabaseStats `json:"database"`
	API         APIStats      `json:"api"`
	GeneratedAt time.Time     `json:"generated_at"`
}

type DatabaseStats struct {
	ActivePlugins  int64 `json:"active_plugins"`
	TotalVersions  int64 `json:"total_versions"`
	Downloads24h   int64 `json:"downloads_24h"`
	ActiveSites    int64 `json:"active_sites"`
	SitesActive24h int64 `json:"sites_active_24h"`
}

type APIStats struct {
	DailyDownloads []DailyDownloads `json:"daily_downloads"`
	TopPlugins     []TopPlugin      `json:"top_plugins_24h"`
}

// DailyDownloads 是某个 UTC 日期的下载量与独立 IP 数
type DailyDownloads struct {
	Date      string `json:"date"`
	Downloads int64  `json:"downloads"`
	UniqueIPs int64  `json:"unique_ips"`
}

type TopPlugin struct {
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	Downloads int64  `json:"downloads"`
}
