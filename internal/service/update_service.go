package service

import (
	"UpdateAegis/internal/aegobserve"
	"UpdateAegis/internal/core/domain"
	"UpdateAegis/internal/core/port"
	"UpdateAegis/internal/version"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultRequiresWP  = "5.0"
	defaultTestedWP    = "6.3"
	defaultRequiresPHP = "7.4"
	defaultChangelog   = "See GitHub for details"
	upToDateMessage    = "Plugin is up to date"
)

// ResolverConfig 是更新解析器的配置
type ResolverConfig struct {
	PublicURL     string
	UploadsDir    string
	CacheSize     int
	CacheTTL      time.Duration
	RecordTimeout time.Duration
}

// ClientMeta 是客户端请求附带的信息，AllowedPluginID 来自站点密钥的授权范围
type ClientMeta struct {
	IP              string
	UserAgent       string
	WPVersion       string
	PHPVersion      string
	SiteURL         string
	AllowedPluginID *int64
}

type latestEntry struct {
	plugin *domain.Plugin
	latest *domain.ReleaseVersion
}

// UpdateService 回答 "是否有更新" 并解析下载
type UpdateService struct {
	catalog port.Catalog
	plugins port.PluginAdminStore
	events  port.EventRecorder
	cfg     ResolverConfig
	cache   *expirable.LRU[string, latestEntry]
	pending sync.WaitGroup

	// gen 在每次 Invalidate 时递增，读库期间发生过失效的结果不回填缓存
	cacheMu sync.Mutex
	gen     uint64
}

func NewUpdateService(catalog port.Catalog, plugins port.PluginAdminStore, events port.EventRecorder, cfg ResolverConfig) *UpdateService {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 512
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = 5 * time.Second
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &UpdateService{
		catalog: catalog,
		plugins: plugins,
		events:  events,
		cfg:     cfg,
		cache:   expirable.NewLRU[string, latestEntry](cfg.CacheSize, nil, cfg.CacheTTL),
	}
}

// Invalidate 丢弃 slug 的缓存条目，新版本提交或插件元数据变更后调用
func (s *UpdateService) Invalidate(slug string) {
	s.cacheMu.Lock()
	s.gen++
	s.cache.Remove(slug)
	s.cacheMu.Unlock()
}

func (s *UpdateService) generation() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.gen
}

// fill 仅在 gen 与读库前一致时写入缓存
func (s *UpdateService) fill(slug string, gen uint64, e latestEntry) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.gen != gen {
		slog.Debug("读取期间缓存已失效，不回填", "slug", slug)
		return
	}
	s.cache.Add(slug, e)
}

// Wait 等待所有异步事件写入完成，用于优雅退出和测试
func (s *UpdateService) Wait() { s.pending.Wait() }

// lookupLatest 返回插件与其最新稳定版本，只缓存两者都存在的结果
func (s *UpdateService) lookupLatest(ctx context.Context, slug string) (latestEntry, error) {
	if e, ok := s.cache.Get(slug); ok {
		return e, nil
	}
	gen := s.generation()
	plugin, err := s.catalog.FindActivePlugin(ctx, domain.PluginLookup{Slug: slug})
	if err != nil {
		return latestEntry{}, err
	}
	if plugin == nil {
		return latestEntry{}, fmt.Errorf("%w: 插件 '%s'", port.ErrNotFound, slug)
	}
	latest, err := s.catalog.LatestStableVersion(ctx, plugin.ID)
	if err != nil {
		return latestEntry{}, err
	}
	if latest == nil {
		return latestEntry{plugin: plugin}, fmt.Errorf("%w: 插件 '%s' 没有可用的稳定版本", port.ErrNotFound, slug)
	}
	e := latestEntry{plugin: plugin, latest: latest}
	s.fill(slug, gen, e)
	return e, nil
}

func checkScope(meta ClientMeta, plugin *domain.Plugin) error {
	if meta.AllowedPluginID != nil && *meta.AllowedPluginID != plugin.ID {
		return fmt.Errorf("%w: API Key 无权访问插件 '%s'", port.ErrForbidden, plugin.Slug)
	}
	return nil
}

// CheckUpdate 将客户端版本与目录中的最新稳定版本比较
func (s *UpdateService) CheckUpdate(ctx context.Context, slug, clientVersion string, meta ClientMeta) (domain.UpdateResult, error) {
	if slug == "" || strings.TrimSpace(clientVersion) == "" {
		return domain.UpdateResult{}, fmt.Errorf("%w: slug 与 version 均为必填", port.ErrValidation)
	}
	if !domain.ValidSlug(slug) {
		return domain.UpdateResult{}, fmt.Errorf("%w: slug '%s' 格式无效", port.ErrValidation, slug)
	}
	current, err := version.Validate(clientVersion)
	if err != nil {
		return domain.UpdateResult{}, err
	}

	entry, err := s.lookupLatest(ctx, slug)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			aegobserve.UpdateChecksTotal.WithLabelValues("not_found").Inc()
			return domain.UpdateResult{Kind: domain.UpdateNotFound}, err
		}
		return domain.UpdateResult{}, err
	}
	if err := checkScope(meta, entry.plugin); err != nil {
		return domain.UpdateResult{}, err
	}

	newer, err := version.IsNewer(entry.latest.Version, current)
	if err != nil {
		return domain.UpdateResult{}, err
	}
	if !newer {
		aegobserve.UpdateChecksTotal.WithLabelValues("up_to_date").Inc()
		return domain.UpdateResult{
			Kind: domain.UpdateUpToDate,
			UpToDate: &domain.UpToDateResponse{
				Slug:     slug,
				Version:  clientVersion,
				UpToDate: true,
				Message:  upToDateMessage,
			},
		}, nil
	}

	payload := s.buildPayload(entry.plugin, entry.latest)
	s.recordAvailable(entry.plugin, current, entry.latest.Version, meta.IP)
	return domain.UpdateResult{Kind: domain.UpdateAvailable, Payload: payload}, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func (s *UpdateService) buildPayload(p *domain.Plugin, v *domain.ReleaseVersion) *domain.UpdatePayload {
	base := s.cfg.PublicURL
	return &domain.UpdatePayload{
		Slug:       p.Slug,
		Plugin:     p.Slug + "/" + p.Slug + ".php",
		NewVersion: v.Version,
		URL:        orDefault(p.Homepage, base+"/plugins/"+p.Slug),
		Package:    base + "/api/updates/download/" + p.Slug + "/" + v.Version,
		Icons: domain.UpdateIcons{
			OneX: base + "/icons/" + p.Slug + "-128x128.png",
			TwoX: base + "/icons/" + p.Slug + "-256x256.png",
		},
		Banners: domain.UpdateBanners{
			Low:  base + "/banners/" + p.Slug + "-772x250.png",
			High: base + "/banners/" + p.Slug + "-1544x500.png",
		},
		Requires:    orDefault(p.RequiresWP, defaultRequiresWP),
		Tested:      orDefault(p.TestedWP, defaultTestedWP),
		RequiresPHP: orDefault(p.RequiresPHP, defaultRequiresPHP),
		Sections: domain.UpdateSections{
			Description: p.Description,
			Changelog:   orDefault(v.Changelog, defaultChangelog),
		},
		UpgradeNotice: fmt.Sprintf("New version %s available", v.Version),
	}
}

// recordAvailable 异步记录一次 "有可用更新"，不阻塞响应，失败只记录日志
func (s *UpdateService) recordAvailable(p *domain.Plugin, clientVersion, offered, ip string) {
	aegobserve.UpdateChecksTotal.WithLabelValues("available").Inc()
	slog.Info("update_available", "slug", p.Slug, "client_version", clientVersion, "new_version", offered, "ip", ip)

	ev := domain.UpdateCheckEvent{
		PluginID:       p.ID,
		Slug:           p.Slug,
		ClientVersion:  clientVersion,
		OfferedVersion: offered,
		IPAddress:      ip,
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RecordTimeout)
		defer cancel()
		if err := s.events.RecordUpdateCheck(ctx, ev); err != nil {
			slog.Warn("记录更新检查失败", "slug", ev.Slug, "error", err)
		}
	}()
}

// CheckMultiple 批量检查，单项失败以 {"error": ...} 形式内联返回
func (s *UpdateService) CheckMultiple(ctx context.Context, items []domain.VersionQuery, meta ClientMeta) map[string]any {
	out := make(map[string]any, len(items))
	for _, it := range items {
		key := it.Slug
		if key == "" {
			key = "unknown"
		}
		if it.Slug == "" || it.Version == "" {
			out[key] = inlineError("Slug and version are required")
			continue
		}
		res, err := s.CheckUpdate(ctx, it.Slug, it.Version, meta)
		if err != nil {
			out[key] = inlineError(inlineMessage(err))
			continue
		}
		out[key] = res.Body()
	}
	return out
}

func inlineError(msg string) map[string]string { return map[string]string{"error": msg} }

func inlineMessage(err error) string {
	switch {
	case errors.Is(err, port.ErrValidation):
		return err.Error()
	case errors.Is(err, port.ErrNotFound):
		return "Plugin not found"
	case errors.Is(err, port.ErrForbidden):
		return "API key not authorized for this plugin"
	default:
		slog.Error("批量检查单项失败", "error", err)
		return "Error checking for update"
	}
}

// ResolveDownload 找到确切版本并记录下载。优先返回本地副本，否则返回远程地址。
func (s *UpdateService) ResolveDownload(ctx context.Context, slug, ver string, meta ClientMeta) (*domain.DownloadTarget, error) {
	if !domain.ValidSlug(slug) {
		return nil, fmt.Errorf("%w: slug '%s' 格式无效", port.ErrValidation, slug)
	}
	ver = version.Normalize(ver)
	if ver == "" {
		return nil, fmt.Errorf("%w: version 不能为空", port.ErrValidation)
	}
	plugin, err := s.catalog.FindActivePlugin(ctx, domain.PluginLookup{Slug: slug})
	if err != nil {
		return nil, err
	}
	if plugin == nil {
		return nil, fmt.Errorf("%w: 插件 '%s'", port.ErrNotFound, slug)
	}
	if err := checkScope(meta, plugin); err != nil {
		return nil, err
	}
	rv, err := s.catalog.GetVersion(ctx, plugin.ID, ver)
	if err != nil {
		return nil, err
	}
	if rv == nil {
		return nil, fmt.Errorf("%w: 插件 '%s' 的版本 '%s'", port.ErrNotFound, slug, ver)
	}

	target := &domain.DownloadTarget{Slug: slug, Version: rv.Version}
	if local := s.localPath(rv.FilePath); local != "" {
		target.LocalPath = local
	} else if rv.DownloadURL != "" {
		target.RedirectURL = rv.DownloadURL
	} else {
		return nil, fmt.Errorf("%w: 版本 '%s' 没有可用的下载文件", port.ErrNotFound, ver)
	}

	err = s.events.RecordDownload(ctx, domain.DownloadEvent{
		PluginID:   plugin.ID,
		VersionID:  rv.ID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
		WPVersion:  meta.WPVersion,
		PHPVersion: meta.PHPVersion,
		SiteURL:    meta.SiteURL,
	})
	if err != nil {
		slog.Warn("记录下载失败", "slug", slug, "version", rv.Version, "error", err)
	}
	source := "redirect"
	if target.LocalPath != "" {
		source = "local"
	}
	aegobserve.DownloadsTotal.WithLabelValues(source).Inc()
	slog.Info("plugin_download", "slug", slug, "version", rv.Version, "source", source, "ip", meta.IP, "site_url", meta.SiteURL)
	return target, nil
}

// localPath 返回上传目录内存在的文件的绝对路径，越界或不存在时返回空串
func (s *UpdateService) localPath(rel string) string {
	if rel == "" || s.cfg.UploadsDir == "" {
		return ""
	}
	root, err := filepath.Abs(s.cfg.UploadsDir)
	if err != nil {
		return ""
	}
	full := filepath.Join(root, filepath.Clean("/"+rel))
	if r, err := filepath.Rel(root, full); err != nil || strings.HasPrefix(r, "..") {
		return ""
	}
	if info, err := os.Stat(full); err != nil || info.IsDir() {
		return ""
	}
	return full
}

// PluginInfo 返回插件详情、各版本下载量与汇总统计
func (s *UpdateService) PluginInfo(ctx context.Context, slug string, meta ClientMeta) (*domain.PluginInfo, error) {
	plugin, err := s.catalog.FindActivePlugin(ctx, domain.PluginLookup{Slug: slug})
	if err != nil {
		return nil, err
	}
	if plugin == nil {
		return nil, fmt.Errorf("%w: 插件 '%s'", port.ErrNotFound, slug)
	}
	if err := checkScope(meta, plugin); err != nil {
		return nil, err
	}
	stats, err := s.plugins.PluginStats(ctx, plugin.ID, time.Now().AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}
	return &domain.PluginInfo{
		Plugin:   *plugin,
		Versions: stats.VersionDownloads,
		Stats: domain.PluginInfoStats{
			TotalDownloads: stats.TotalDownloads,
			ActiveDays:     stats.ActiveDays,
		},
		LastUpdated: plugin.UpdatedAt,
	}, nil
}
