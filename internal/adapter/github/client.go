// Package github 用 go-github 适配 release 同步所需的三个 GitHub 端点
package github

import (
	"UpdateAegis/internal/core/domain"
	"UpdateAegis/internal/core/port"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v74/github"
)

const (
	DefaultBaseURL  = "https://api.github.com"
	releasesPerPage = 50
)

// Config 是客户端配置
type Config struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration
}

// Client 实现 port.ReleaseSource
type Client struct {
	api *gh.Client
}

var _ port.ReleaseSource = (*Client)(nil)

func NewClient(cfg Config) *Client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "UpdateAegis"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	api := gh.NewClient(&http.Client{Timeout: cfg.Timeout})
	if cfg.Token != "" {
		api = api.WithAuthToken(cfg.Token)
	}
	api.UserAgent = cfg.UserAgent
	if cfg.BaseURL != "" && strings.TrimRight(cfg.BaseURL, "/") != DefaultBaseURL {
		if base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/"); err == nil {
			api.BaseURL = base
		}
	}
	return &Client{api: api}
}

// mapError 把 go-github 的错误归入端口层的错误分类
func mapError(what string, err error) error {
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%w: GitHub 请求 %s 触发限流 (rate limit, 重置于 %s)", port.ErrUpstreamUnavailable, what, rateErr.Rate.Reset.UTC().Format(time.RFC3339))
	}
	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		if respErr.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: GitHub 资源 %s", port.ErrNotFound, what)
		}
		return fmt.Errorf("%w: GitHub 返回状态码 %d: %s", port.ErrUpstreamUnavailable, respErr.Response.StatusCode, respErr.Message)
	}
	return fmt.Errorf("%w: GitHub 请求 %s 失败: %v", port.ErrUpstreamUnavailable, what, err)
}

// ListReleases 返回仓库最近的 release (按 GitHub 默认顺序，最新在前)
func (c *Client) ListReleases(ctx context.Context, owner, repo string) ([]domain.GithubRelease, error) {
	releases, _, err := c.api.Repositories.ListReleases(ctx, owner, repo, &gh.ListOptions{PerPage: releasesPerPage})
	if err != nil {
		return nil, mapError(owner+"/"+repo+" releases", err)
	}
	out := make([]domain.GithubRelease, 0, len(releases))
	for _, r := range releases {
		out = append(out, toRelease(r))
	}
	return out, nil
}

func toRelease(r *gh.RepositoryRelease) domain.GithubRelease {
	rel := domain.GithubRelease{
		ID:         r.GetID(),
		TagName:    r.GetTagName(),
		Name:       r.GetName(),
		Body:       r.GetBody(),
		Draft:      r.GetDraft(),
		Prerelease: r.GetPrerelease(),
		ZipballURL: r.GetZipballURL(),
	}
	if r.PublishedAt != nil {
		t := r.PublishedAt.UTC()
		rel.PublishedAt = &t
	}
	for _, a := range r.Assets {
		rel.Assets = append(rel.Assets, domain.GithubAsset{
			ID:                 a.GetID(),
			Name:               a.GetName(),
			ContentType:        a.GetContentType(),
			Size:               int64(a.GetSize()),
			URL:                a.GetURL(),
			BrowserDownloadURL: a.GetBrowserDownloadURL(),
		})
	}
	return rel
}

// GetRepository 返回仓库信息
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*domain.GithubRepo, error) {
	r, _, err := c.api.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, mapError(owner+"/"+repo, err)
	}
	out := &domain.GithubRepo{
		ID:            r.GetID(),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Description:   r.GetDescription(),
		HTMLURL:       r.GetHTMLURL(),
		DefaultBranch: r.GetDefaultBranch(),
		Private:       r.GetPrivate(),
		Stargazers:    r.GetStargazersCount(),
		Owner:         domain.GithubOwner{Login: r.GetOwner().GetLogin()},
	}
	if r.UpdatedAt != nil {
		t := r.UpdatedAt.UTC()
		out.UpdatedAt = &t
	}
	return out, nil
}

// RateLimit 返回 core 资源的配额
func (c *Client) RateLimit(ctx context.Context) (*domain.GithubRateLimit, error) {
	limits, _, err := c.api.RateLimit.Get(ctx)
	if err != nil {
		return nil, mapError("rate_limit", err)
	}
	core := limits.GetCore()
	if core == nil {
		return nil, fmt.Errorf("%w: GitHub 响应缺少 core 配额", port.ErrUpstreamUnavailable)
	}
	return &domain.GithubRateLimit{
		Limit:     core.Limit,
		Remaining: core.Remaining,
		Used:      core.Used,
		Reset:     core.Reset.UTC(),
	}, nil
}
