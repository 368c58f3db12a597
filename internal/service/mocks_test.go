package service

import (
	"UpdateAegis/internal/core/domain"
	"context"
	"sync"
	"time"
)

// mockCatalog 是 port.Catalog 的测试替身，未设置的 Func 返回零值
type mockCatalog struct {
	FindActivePluginFunc    func(ctx context.Context, lookup domain.PluginLookup) (*domain.Plugin, error)
	GetActivePluginByIDFunc func(ctx context.Context, id int64) (*domain.Plugin, error)
	ListActivePluginsFunc   func(ctx context.Context) ([]domain.Plugin, error)
	RegisterVersionFunc     func(ctx context.Context, pluginID int64, v *domain.ReleaseVersion) (domain.RegisterOutcome, error)
	LatestStableVersionFunc func(ctx context.Context, pluginID int64) (*domain.ReleaseVersion, error)
	GetVersionFunc          func(ctx context.Context, pluginID int64, version string) (*domain.ReleaseVersion, error)
	AttachAssetFunc         func(ctx context.Context, versionID int64, filePath string, size int64) error

	mu           sync.Mutex
	touched      []int64
	findCalls    int
	registerArgs []domain.ReleaseVersion
}

func (m *mockCatalog) FindActivePlugin(ctx context.Context, lookup domain.PluginLookup) (*domain.Plugin, error) {
	m.mu.Lock()
	m.findCalls++
	m.mu.Unlock()
	if m.FindActivePluginFunc != nil {
		return m.FindActivePluginFunc(ctx, lookup)
	}
	return nil, nil
}

func (m *mockCatalog) GetActivePluginByID(ctx context.Context, id int64) (*domain.Plugin, error) {
	if m.GetActivePluginByIDFunc != nil {
		return m.GetActivePluginByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockCatalog) ListActivePlugins(ctx context.Context) ([]domain.Plugin, error) {
	if m.ListActivePluginsFunc != nil {
		return m.ListActivePluginsFunc(ctx)
	}
	return nil, nil
}

func (m *mockCatalog) RegisterVersion(ctx context.Context, pluginID int64, v *domain.ReleaseVersion) (domain.RegisterOutcome, error) {
	m.mu.Lock()
	m.registerArgs = append(m.registerArgs, *v)
	m.mu.Unlock()
	if m.RegisterVersionFunc != nil {
		return m.RegisterVersionFunc(ctx, pluginID, v)
	}
	return domain.Created, nil
}

func (m *mockCatalog) LatestStableVersion(ctx context.Context, pluginID int64) (*domain.ReleaseVersion, error) {
	if m.LatestStableVersionFunc != nil {
		return m.LatestStableVersionFunc(ctx, pluginID)
	}
	return nil, nil
}

func (m *mockCatalog) GetVersion(ctx context.Context, pluginID int64, version string) (*domain.ReleaseVersion, error) {
	if m.GetVersionFunc != nil {
		return m.GetVersionFunc(ctx, pluginID, version)
	}
	return nil, nil
}

func (m *mockCatalog) AttachAsset(ctx context.Context, versionID int64, filePath string, size int64) error {
	if m.AttachAssetFunc != nil {
		return m.AttachAssetFunc(ctx, versionID, filePath, size)
	}
	return nil
}

func (m *mockCatalog) TouchPlugin(_ context.Context, pluginID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched = append(m.touched, pluginID)
	return nil
}

type mockAdminStore struct {
	CreatePluginFunc        func(ctx context.Context, p *domain.Plugin) error
	UpdatePluginFunc        func(ctx context.Context, slug string, upd domain.PluginUpdate) (*domain.Plugin, error)
	DeactivatePluginFunc    func(ctx context.Context, slug string) error
	ListPluginSummariesFunc func(ctx context.Context) ([]domain.PluginSummary, error)
	ListVersionsFunc        func(ctx context.Context, pluginID int64) ([]domain.ReleaseVersion, error)
	PluginStatsFunc         func(ctx context.Context, pluginID int64, since time.Time) (*domain.PluginStats, error)
}

func (m *mockAdminStore) CreatePlugin(ctx context.Context, p *domain.Plugin) error {
	if m.CreatePluginFunc != nil {
		return m.CreatePluginFunc(ctx, p)
	}
	return nil
}

func (m *mockAdminStore) UpdatePlugin(ctx context.Context, slug string, upd domain.PluginUpdate) (*domain.Plugin, error) {
	if m.UpdatePluginFunc != nil {
		return m.UpdatePluginFunc(ctx, slug, upd)
	}
	return &domain.Plugin{Slug: slug}, nil
}

func (m *mockAdminStore) DeactivatePlugin(ctx context.Context, slug string) error {
	if m.DeactivatePluginFunc != nil {
		return m.DeactivatePluginFunc(ctx, slug)
	}
	return nil
}

func (m *mockAdminStore) ListPluginSummaries(ctx context.Context) ([]domain.PluginSummary, error) {
	if m.ListPluginSummariesFunc != nil {
		return m.ListPluginSummariesFunc(ctx)
	}
	return nil, nil
}

func (m *mockAdminStore) ListVersions(ctx context.Context, pluginID int64) ([]domain.ReleaseVersion, error) {
	if m.ListVersionsFunc != nil {
		return m.ListVersionsFunc(ctx, pluginID)
	}
	return nil, nil
}

func (m *mockAdminStore) PluginStats(ctx context.Context, pluginID int64, since time.Time) (*domain.PluginStats, error) {
	if m.PluginStatsFunc != nil {
		return m.PluginStatsFunc(ctx, pluginID, since)
	}
	return &domain.PluginStats{}, nil
}

// mockEvents 记录所有写入的事件
type mockEvents struct {
	mu        sync.Mutex
	downloads []domain.DownloadEvent
	checks    []domain.UpdateCheckEvent
	err       error
}

func (m *mockEvents) RecordDownload(_ context.Context, ev domain.DownloadEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads = append(m.downloads, ev)
	return m.err
}

func (m *mockEvents) RecordUpdateCheck(_ context.Context, ev domain.UpdateCheckEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, ev)
	return m.err
}

type mockSiteStore struct {
	CreateSiteFunc          func(ctx context.Context, site *domain.AuthorizedSite) error
	GetSiteFunc             func(ctx context.Context, id int64) (*domain.AuthorizedSite, error)
	SetSiteActiveFunc       func(ctx context.Context, id int64, active bool) error
	ReplaceSiteKeyFunc      func(ctx context.Context, id int64, newKey string) error
	FindActiveSiteByKeyFunc func(ctx context.Context, key string) (*domain.AuthorizedSite, error)
	TouchSiteByKeyFunc      func(ctx context.Context, key string, now time.Time) (*domain.AuthorizedSite, error)
}

func (m *mockSiteStore) CreateSite(ctx context.Context, site *domain.AuthorizedSite) error {
	if m.CreateSiteFunc != nil {
		return m.CreateSiteFunc(ctx, site)
	}
	site.ID = 1
	site.Active = true
	return nil
}

func (m *mockSiteStore) ListSites(context.Context) ([]domain.SiteListItem, error) { return nil, nil }

func (m *mockSiteStore) GetSite(ctx context.Context, id int64) (*domain.AuthorizedSite, error) {
	if m.GetSiteFunc != nil {
		return m.GetSiteFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockSiteStore) SetSiteActive(ctx context.Context, id int64, active bool) error {
	if m.SetSiteActiveFunc != nil {
		return m.SetSiteActiveFunc(ctx, id, active)
	}
	return nil
}

func (m *mockSiteStore) ReplaceSiteKey(ctx context.Context, id int64, newKey string) error {
	if m.ReplaceSiteKeyFunc != nil {
		return m.ReplaceSiteKeyFunc(ctx, id, newKey)
	}
	return nil
}

func (m *mockSiteStore) FindActiveSiteByKey(ctx context.Context, key string) (*domain.AuthorizedSite, error) {
	if m.FindActiveSiteByKeyFunc != nil {
		return m.FindActiveSiteByKeyFunc(ctx, key)
	}
	return nil, nil
}

func (m *mockSiteStore) TouchSiteByKey(ctx context.Context, key string, now time.Time) (*domain.AuthorizedSite, error) {
	if m.TouchSiteByKeyFunc != nil {
		return m.TouchSiteByKeyFunc(ctx, key, now)
	}
	return nil, nil
}

func (m *mockSiteStore) SiteStats(context.Context, time.Time) (*domain.SiteStats, error) {
	return &domain.SiteStats{}, nil
}

type mockFetcher struct {
	FetchFunc func(ctx context.Context, sourceURL, slug, version string) (string, int64, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, sourceURL, slug, version string) (string, int64, error) {
	return m.FetchFunc(ctx, sourceURL, slug, version)
}

type mockSource struct {
	ListReleasesFunc func(ctx context.Context, owner, repo string) ([]domain.GithubRelease, error)
}

func (m *mockSource) ListReleases(ctx context.Context, owner, repo string) ([]domain.GithubRelease, error) {
	return m.ListReleasesFunc(ctx, owner, repo)
}

func (m *mockSource) GetRepository(_ context.Context, owner, repo string) (*domain.GithubRepo, error) {
	return &domain.GithubRepo{Name: repo, Owner: domain.GithubOwner{Login: owner}}, nil
}

func (m *mockSource) RateLimit(context.Context) (*domain.GithubRateLimit, error) {
	return &domain.GithubRateLimit{Limit: 5000, Remaining: 4999}, nil
}

func testPlugin() *domain.Plugin {
	return &domain.Plugin{
		ID:          7,
		Slug:        "my-plugin",
		Name:        "My Plugin",
		Description: "Does things",
		GithubOwner: "acme",
		GithubRepo:  "my-plugin",
		Active:      true,
	}
}
