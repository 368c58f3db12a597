package service

import (
	"UpdateAegis/internal/core/domain"
	"UpdateAegis/internal/core/port"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// APIKeyPrefix 是所有站点密钥的固定前缀
const APIKeyPrefix = "wpup_"

// GenerateAPIKey 生成 wpup_ 加 32 位十六进制的随机密钥
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("生成随机密钥失败: %w", err)
	}
	return APIKeyPrefix + hex.EncodeToString(buf), nil
}

// KeyVerification 是 VerifyKey 的结果
type KeyVerification struct {
	Valid    bool   `json:"valid"`
	SiteID   int64  `json:"site_id,omitempty"`
	SiteURL  string `json:"site_url,omitempty"`
	PluginID *int64 `json:"plugin_id,omitempty"`
}

// SiteService 管理站点 API Key 的签发、吊销与轮换
type SiteService struct {
	sites   port.SiteStore
	catalog port.Catalog
	now     func() time.Time
}

func NewSiteService(sites port.SiteStore, catalog port.Catalog) *SiteService {
	return &SiteService{sites: sites, catalog: catalog, now: time.Now}
}

// GenerateKey 为站点签发新密钥。pluginID 非空时限定该密钥只能访问对应插件。
func (s *SiteService) GenerateKey(ctx context.Context, siteURL string, pluginID *int64) (*domain.AuthorizedSite, error) {
	siteURL = strings.TrimSpace(siteURL)
	if siteURL == "" {
		return nil, fmt.Errorf("%w: site_url 不能为空", port.ErrValidation)
	}
	if u, err := url.Parse(siteURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: site_url '%s' 不是有效的 URL", port.ErrValidation, siteURL)
	}
	if pluginID != nil {
		p, err := s.catalog.GetActivePluginByID(ctx, *pluginID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("%w: 插件 (ID: %d)", port.ErrNotFound, *pluginID)
		}
	}

	key, err := GenerateAPIKey()
	if err != nil {
		return nil, err
	}
	site := &domain.AuthorizedSite{SiteURL: siteURL, APIKey: key, PluginID: pluginID}
	if err := s.sites.CreateSite(ctx, site); err != nil {
		return nil, err
	}
	slog.Info("已签发站点 API Key", "site_id", site.ID, "site_url", siteURL, "scoped", pluginID != nil)
	return site, nil
}

// ListKeys 列出全部授权，密钥已脱敏
func (s *SiteService) ListKeys(ctx context.Context) ([]domain.SiteListItem, error) {
	return s.sites.ListSites(ctx)
}

// RevokeKey 吊销授权，记录保留
func (s *SiteService) RevokeKey(ctx context.Context, siteID int64) error {
	if err := s.sites.SetSiteActive(ctx, siteID, false); err != nil {
		return err
	}
	slog.Info("已吊销站点 API Key", "site_id", siteID)
	return nil
}

// RegenerateKey 轮换密钥并重新启用授权，旧密钥立即失效
func (s *SiteService) RegenerateKey(ctx context.Context, siteID int64) (*domain.AuthorizedSite, error) {
	key, err := GenerateAPIKey()
	if err != nil {
		return nil, err
	}
	if err := s.sites.ReplaceSiteKey(ctx, siteID, key); err != nil {
		return nil, err
	}
	site, err := s.sites.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, fmt.Errorf("%w: 站点授权 (ID: %d)", port.ErrNotFound, siteID)
	}
	slog.Info("已轮换站点 API Key", "site_id", siteID)
	return site, nil
}

// VerifyKey 只读地检查密钥是否有效，不刷新 last_check
func (s *SiteService) VerifyKey(ctx context.Context, key string) (*KeyVerification, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: api_key 不能为空", port.ErrValidation)
	}
	site, err := s.sites.FindActiveSiteByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return &KeyVerification{Valid: false}, nil
	}
	return &KeyVerification{Valid: true, SiteID: site.ID, SiteURL: site.SiteURL, PluginID: site.PluginID}, nil
}

// Stats 返回授权站点统计
func (s *SiteService) Stats(ctx context.Context) (*domain.SiteStats, error) {
	return s.sites.SiteStats(ctx, s.now())
}
