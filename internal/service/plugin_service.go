package service

import (
	"UpdateAegis/internal/core/domain"
	"UpdateAegis/internal/core/port"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// CreatePluginRequest 是注册插件的请求体
type CreatePluginRequest struct {
	Slug        string `json:"slug" binding:"required,slug"`
	Name        string `json:"name" binding:"required,max=200"`
	Description string `json:"description"`
	Author      string `json:"author"`
	Homepage    string `json:"homepage" binding:"omitempty,url"`
	GithubOwner string `json:"github_owner" binding:"required"`
	GithubRepo  string `json:"github_repo" binding:"required"`
	RequiresWP  string `json:"requires_wp"`
	TestedWP    string `json:"tested_wp"`
	RequiresPHP string `json:"requires_php"`
}

// PluginService 负责插件的注册、修改、下线与统计
type PluginService struct {
	catalog  port.Catalog
	store    port.PluginAdminStore
	onChange func(slug string)
	now      func() time.Time
}

func NewPluginService(catalog port.Catalog, store port.PluginAdminStore) *PluginService {
	return &PluginService{catalog: catalog, store: store, now: time.Now}
}

// OnChange 注册插件元数据变化时的回调
func (s *PluginService) OnChange(fn func(slug string)) { s.onChange = fn }

func (s *PluginService) changed(slug string) {
	if s.onChange != nil {
		s.onChange(slug)
	}
}

func (s *PluginService) mustFind(ctx context.Context, slug string) (*domain.Plugin, error) {
	p, err := s.catalog.FindActivePlugin(ctx, domain.PluginLookup{Slug: slug})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: 插件 '%s'", port.ErrNotFound, slug)
	}
	return p, nil
}

// CreatePlugin 注册新插件。slug 或 owner/repo 已存在时返回冲突。
func (s *PluginService) CreatePlugin(ctx context.Context, req CreatePluginRequest) (*domain.Plugin, error) {
	if !domain.ValidSlug(req.Slug) {
		return nil, fmt.Errorf("%w: slug '%s' 格式无效", port.ErrValidation, req.Slug)
	}
	p := &domain.Plugin{
		Slug:        req.Slug,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Author:      req.Author,
		Homepage:    req.Homepage,
		GithubOwner: strings.TrimSpace(req.GithubOwner),
		GithubRepo:  strings.TrimSpace(req.GithubRepo),
		RequiresWP:  req.RequiresWP,
		TestedWP:    req.TestedWP,
		RequiresPHP: req.RequiresPHP,
	}
	if p.Name == "" || p.GithubOwner == "" || p.GithubRepo == "" {
		return nil, fmt.Errorf("%w: name、github_owner、github_repo 均为必填", port.ErrValidation)
	}
	if err := s.store.CreatePlugin(ctx, p); err != nil {
		return nil, err
	}
	slog.Info("插件已注册", "slug", p.Slug, "repo", p.GithubOwner+"/"+p.GithubRepo)
	s.changed(p.Slug)
	return p, nil
}

// UpdatePlugin 修改白名单内的元数据字段
func (s *PluginService) UpdatePlugin(ctx context.Context, slug string, upd domain.PluginUpdate) (*domain.Plugin, error) {
	if upd.IsEmpty() {
		return nil, fmt.Errorf("%w: 没有需要更新的字段", port.ErrValidation)
	}
	p, err := s.store.UpdatePlugin(ctx, slug, upd)
	if err != nil {
		return nil, err
	}
	slog.Info("插件已更新", "slug", slug)
	s.changed(slug)
	return p, nil
}

// DeletePlugin 软删除插件，历史版本与事件保留
func (s *PluginService) DeletePlugin(ctx context.Context, slug string) error {
	if err := s.store.DeactivatePlugin(ctx, slug); err != nil {
		return err
	}
	slog.Info("插件已下线", "slug", slug)
	s.changed(slug)
	return nil
}

// ListPlugins 列出活跃插件及其最新版本与下载总数
func (s *PluginService) ListPlugins(ctx context.Context) ([]domain.PluginSummary, error) {
	return s.store.ListPluginSummaries(ctx)
}

// GetPluginDetail 返回插件及全部版本，最新的在前
func (s *PluginService) GetPluginDetail(ctx context.Context, slug string) (*domain.PluginDetail, error) {
	p, err := s.mustFind(ctx, slug)
	if err != nil {
		return nil, err
	}
	versions, err := s.store.ListVersions(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &domain.PluginDetail{Plugin: *p, Versions: versions}, nil
}

// Stats 返回插件下载统计，近 30 天窗口
func (s *PluginService) Stats(ctx context.Context, slug string) (*domain.PluginStats, error) {
	p, err := s.mustFind(ctx, slug)
	if err != nil {
		return nil, err
	}
	st, err := s.store.PluginStats(ctx, p.ID, s.now().AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}
	st.Slug = p.Slug
	return st, nil
}
