// Package domain file: internal/core/domain/site_models.go
package domain

import "time"

// AuthorizedSite 是站点 API Key 授权。PluginID 为 nil 时表示全局授权。
type AuthorizedSite struct {
	ID        int64      `json:"id"`
	PluginID  *int64     `json:"plugin_id"`
	SiteURL   string     `json:"site_url"`
	APIKey    string     `json:"api_key,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	LastCheck *time.Time `json:"last_check"`
}

// SiteListItem 是不含完整密钥的站点列表项
type SiteListItem struct {
	ID         int64      `json:"id"`
	PluginID   *int64     `json:"plugin_id"`
	PluginSlug string     `json:"plugin_slug,omitempty"`
	SiteURL    string     `json:"site_url"`
	MaskedKey  string     `json:"api_key_preview"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastCheck  *time.Time `json:"last_check"`
}

// SiteStats 是授权站点的聚合统计
type SiteStats struct {
	TotalSites  int64 `json:"total_sites"`
	ActiveSites int64 `json:"active_sites"`
	ActiveIn24h int64 `json:"active_24h"`
	ActiveIn7d  int64 `json:"active_7d"`
	ScopedSites int64 `json:"scoped_sites"`
	GlobalSites int64 `json:"global_sites"`
}

// MaskAPIKey 只保留前缀与末 4 位，用于列表展示
func MaskAPIKey(key string) string {
	const prefix = "wpup_"
	if len(key) <= len(prefix)+4 {
		return prefix + "****"
	}
	return prefix + "…" + key[len(key)-4:]
}
