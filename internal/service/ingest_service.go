package service

import (
	"UpdateAegis/internal/aegobserve"
	"UpdateAegis/internal/core/domain"
	"UpdateAegis/internal/core/port"
	"UpdateAegis/internal/version"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	signaturePrefix    = "sha256="
	changelogRuneLimit = 1000

	EventRelease     = "release"
	ActionPublished  = "published"
	outcomeForbidden = "unauthorized"
)

var changelogPattern = regexp.MustCompile(`(?is)(?:changelog|changes?|what'?s new)[\s:]*(.+)`)

// ExtractChangelog 从 Release 正文中提取更新日志段落，找不到标题时截取正文前 1000 个字符
func ExtractChangelog(body string) string {
	if m := changelogPattern.FindStringSubmatch(body); len(m) == 2 {
		if s := strings.TrimSpace(m[1]); s != "" {
			return s
		}
	}
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= changelogRuneLimit {
		return body
	}
	return string([]rune(body)[:changelogRuneLimit])
}

// WebhookStatus 描述 webhook 端点的配置
type WebhookStatus struct {
	SecretConfigured bool     `json:"secret_configured"`
	SupportedEvents  []string `json:"supported_events"`
	SupportedActions []string `json:"supported_actions"`
	Endpoint         string   `json:"endpoint"`
}

// IngestService 把 GitHub Release 转换为目录中的版本记录。
// 同一条 Release 无论经由 webhook 还是同步到达，都只会被记录一次。
type IngestService struct {
	catalog    port.Catalog
	fetcher    port.AssetFetcher
	secret     []byte
	invalidate func(slug string)
}

// NewIngestService 创建摄取服务。fetcher 可以为 nil，此时只记录远程下载地址。
func NewIngestService(catalog port.Catalog, fetcher port.AssetFetcher, secret string) *IngestService {
	if secret == "" {
		slog.Warn("未配置 webhook 密钥，将接受未签名的 webhook 请求")
	}
	return &IngestService{catalog: catalog, fetcher: fetcher, secret: []byte(secret)}
}

// OnCommitted 注册新版本提交后的回调，用于让解析缓存失效
func (s *IngestService) OnCommitted(fn func(slug string)) { s.invalidate = fn }

// Status 返回 webhook 配置概况
func (s *IngestService) Status() WebhookStatus {
	return WebhookStatus{
		SecretConfigured: len(s.secret) > 0,
		SupportedEvents:  []string{EventRelease},
		SupportedActions: []string{ActionPublished},
		Endpoint:         "/api/webhooks/github",
	}
}

// VerifySignature 校验 X-Hub-Signature-256。未配置密钥时直接放行。
func (s *IngestService) VerifySignature(header string, body []byte) error {
	if len(s.secret) == 0 {
		slog.Warn("webhook 签名未校验 (未配置密钥)")
		return nil
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return fmt.Errorf("%w: 缺少 webhook 签名", port.ErrUnauthorized)
	}
	given, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return fmt.Errorf("%w: webhook 签名格式无效", port.ErrUnauthorized)
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	if !hmac.Equal(given, mac.Sum(nil)) {
		return fmt.Errorf("%w: webhook 签名不匹配", port.ErrUnauthorized)
	}
	return nil
}

// HandleWebhook 是 webhook 的完整入口：先验签，再进入 Ingest
func (s *IngestService) HandleWebhook(ctx context.Context, event, signature string, body []byte) (*domain.IngestResult, error) {
	if err := s.VerifySignature(signature, body); err != nil {
		aegobserve.WebhookDeliveriesTotal.WithLabelValues(outcomeForbidden).Inc()
		slog.Warn("拒绝 webhook 请求", "event", event, "error", err)
		return nil, err
	}
	return s.Ingest(ctx, event, body)
}

// Ingest 处理已验签 (或跳过验签) 的 webhook 载荷
func (s *IngestService) Ingest(ctx context.Context, event string, body []byte) (*domain.IngestResult, error) {
	res, err := s.ingest(ctx, event, body)
	if err != nil {
		aegobserve.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	aegobserve.WebhookDeliveriesTotal.WithLabelValues(string(res.Outcome)).Inc()
	return res, nil
}

func (s *IngestService) ingest(ctx context.Context, event string, body []byte) (*domain.IngestResult, error) {
	if event != EventRelease {
		return &domain.IngestResult{Outcome: domain.OutcomeIgnored, Message: fmt.Sprintf("Event type '%s' ignored", event)}, nil
	}
	var payload domain.ReleaseEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: 无法解析 webhook 载荷: %v", port.ErrValidation, err)
	}
	return s.ingestEvent(ctx, payload)
}

func (s *IngestService) ingestEvent(ctx context.Context, payload domain.ReleaseEvent) (*domain.IngestResult, error) {
	if payload.Action != ActionPublished {
		return &domain.IngestResult{Outcome: domain.OutcomeIgnored, Message: fmt.Sprintf("Release action '%s' ignored", payload.Action)}, nil
	}

	owner, repo := payload.Repository.Owner.Login, payload.Repository.Name
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("%w: webhook 载荷缺少 repository 信息", port.ErrValidation)
	}
	plugin, err := s.catalog.FindActivePlugin(ctx, domain.PluginLookup{Owner: owner, Repo: repo})
	if err != nil {
		return nil, err
	}
	if plugin == nil {
		slog.Info("收到未注册仓库的 release", "owner", owner, "repo", repo, "tag", payload.Release.TagName)
		return &domain.IngestResult{Outcome: domain.OutcomeUnregistered, Message: "Repository not registered"}, nil
	}
	return s.IngestRelease(ctx, plugin, payload.Release)
}

// IngestTestRelease 为 "owner/repo" 与标签合成一个已发布的 release 事件并走完整的摄取流程，
// 下载地址指向该标签的源码归档
func (s *IngestService) IngestTestRelease(ctx context.Context, repository, tag string) (*domain.IngestResult, error) {
	repository, tag = strings.TrimSpace(repository), strings.TrimSpace(tag)
	if repository == "" || tag == "" {
		return nil, fmt.Errorf("%w: repository 与 tag_name 均为必填", port.ErrValidation)
	}
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("%w: repository 必须是 owner/repo 格式", port.ErrValidation)
	}
	payload := domain.ReleaseEvent{
		Action: ActionPublished,
		Release: domain.GithubRelease{
			TagName:    tag,
			Name:       tag,
			Body:       "Test release " + tag,
			ZipballURL: fmt.Sprintf("https://github.com/%s/archive/refs/tags/%s.zip", repository, tag),
		},
		Repository: domain.GithubRepo{Name: repo, Owner: domain.GithubOwner{Login: owner}},
	}
	slog.Info("处理测试 webhook", "repository", repository, "tag", tag)

	res, err := s.ingestEvent(ctx, payload)
	if err != nil {
		aegobserve.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	aegobserve.WebhookDeliveriesTotal.WithLabelValues(string(res.Outcome)).Inc()
	return res, nil
}

// IngestRelease 把一条 Release 记录为插件版本 (去重、解析归档地址、提交)。
// webhook 与同步共用这一步。
func (s *IngestService) IngestRelease(ctx context.Context, plugin *domain.Plugin, rel domain.GithubRelease) (*domain.IngestResult, error) {
	ver, err := version.Validate(rel.TagName)
	if err != nil {
		slog.Warn("release 标签不是合法版本号，忽略", "slug", plugin.Slug, "tag", rel.TagName, "error", err)
		return &domain.IngestResult{
			Outcome: domain.OutcomeIgnored,
			Message: fmt.Sprintf("Tag '%s' is not a valid version", rel.TagName),
			Plugin:  plugin.Slug,
		}, nil
	}

	downloadURL, asset := pickDownloadURL(rel)
	rv := &domain.ReleaseVersion{
		Version:      ver,
		DownloadURL:  downloadURL,
		Changelog:    ExtractChangelog(rel.Body),
		ReleaseNotes: rel.Body,
		GithubTag:    rel.TagName,
		IsPrerelease: rel.Prerelease,
	}
	if rel.ID != 0 {
		id := rel.ID
		rv.GithubReleaseID = &id
	}
	if asset != nil {
		rv.FileSize = asset.Size
	}

	outcome, err := s.catalog.RegisterVersion(ctx, plugin.ID, rv)
	if err != nil {
		return nil, err
	}
	if outcome == domain.AlreadyExists {
		slog.Debug("版本已存在，跳过", "slug", plugin.Slug, "version", ver)
		return &domain.IngestResult{
			Outcome: domain.OutcomeDuplicate,
			Message: fmt.Sprintf("Version %s already exists", ver),
			Plugin:  plugin.Slug,
		}, nil
	}

	if asset != nil {
		s.attachAsset(ctx, plugin, rv)
	}

	if err := s.catalog.TouchPlugin(ctx, plugin.ID); err != nil {
		slog.Warn("刷新插件更新时间失败", "slug", plugin.Slug, "error", err)
	}
	if s.invalidate != nil {
		s.invalidate(plugin.Slug)
	}
	slog.Info("已记录新版本", "slug", plugin.Slug, "version", ver, "prerelease", rv.IsPrerelease, "download_url", rv.DownloadURL)
	return &domain.IngestResult{
		Outcome: domain.OutcomeCommitted,
		Message: fmt.Sprintf("Version %s created successfully", ver),
		Plugin:  plugin.Slug,
		Version: rv,
	}, nil
}

// attachAsset 在版本提交后抓取打包好的 zip 资产到本地。失败只记录日志，版本仍指向远程地址。
// 源码归档 (zipball) 从不抓取。
func (s *IngestService) attachAsset(ctx context.Context, plugin *domain.Plugin, rv *domain.ReleaseVersion) {
	if s.fetcher == nil || rv.DownloadURL == "" {
		return
	}
	relPath, size, err := s.fetcher.Fetch(ctx, rv.DownloadURL, plugin.Slug, rv.Version)
	if err != nil {
		aegobserve.AssetFetchTotal.WithLabelValues("failed").Inc()
		slog.Warn("抓取 release 归档失败，保留远程地址", "slug", plugin.Slug, "version", rv.Version, "url", rv.DownloadURL, "error", err)
		return
	}
	if err := s.catalog.AttachAsset(ctx, rv.ID, relPath, size); err != nil {
		aegobserve.AssetFetchTotal.WithLabelValues("failed").Inc()
		slog.Warn("记录本地归档失败", "slug", plugin.Slug, "version", rv.Version, "error", err)
		return
	}
	aegobserve.AssetFetchTotal.WithLabelValues("ok").Inc()
	rv.FilePath = relPath
	rv.FileSize = size
}

// pickDownloadURL 优先选择 Release 中的 zip 资产，没有时回退到源码归档地址 (此时 asset 为 nil)
func pickDownloadURL(rel domain.GithubRelease) (string, *domain.GithubAsset) {
	for i := range rel.Assets {
		a := &rel.Assets[i]
		if strings.HasSuffix(strings.ToLower(a.Name), ".zip") || strings.Contains(a.ContentType, "zip") {
			if a.BrowserDownloadURL != "" {
				return a.BrowserDownloadURL, a
			}
		}
	}
	return rel.ZipballURL, nil
}
