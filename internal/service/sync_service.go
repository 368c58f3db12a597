package service

import (
	"UpdateAegis/internal/aegobserve"
	"UpdateAegis/internal/core/domain"
	"UpdateAegis/internal/core/port"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// SyncService 从 GitHub 拉取 Release 列表，补齐 webhook 漏掉的版本
type SyncService struct {
	catalog     port.Catalog
	source      port.ReleaseSource
	ingest      *IngestService
	concurrency int64
	perPlugin   time.Duration
}

func NewSyncService(catalog port.Catalog, source port.ReleaseSource, ingest *IngestService, concurrency int, perPluginTimeout time.Duration) *SyncService {
	if concurrency <= 0 {
		concurrency = 2
	}
	if perPluginTimeout <= 0 {
		perPluginTimeout = 2 * time.Minute
	}
	return &SyncService{
		catalog:     catalog,
		source:      source,
		ingest:      ingest,
		concurrency: int64(concurrency),
		perPlugin:   perPluginTimeout,
	}
}

// SyncPlugin 顺序处理一个插件的全部非草稿 Release
func (s *SyncService) SyncPlugin(ctx context.Context, pluginID int64) (*domain.SyncReport, error) {
	plugin, err := s.catalog.GetActivePluginByID(ctx, pluginID)
	if err != nil {
		return nil, err
	}
	if plugin == nil {
		return nil, fmt.Errorf("%w: 插件 (ID: %d)", port.ErrNotFound, pluginID)
	}
	report, err := s.syncOne(ctx, plugin)
	if err != nil {
		aegobserve.SyncRunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	aegobserve.SyncRunsTotal.WithLabelValues("ok").Inc()
	return report, nil
}

func (s *SyncService) syncOne(ctx context.Context, plugin *domain.Plugin) (*domain.SyncReport, error) {
	releases, err := s.source.ListReleases(ctx, plugin.GithubOwner, plugin.GithubRepo)
	if err != nil {
		return nil, fmt.Errorf("获取插件 '%s' 的 release 列表失败: %w", plugin.Slug, err)
	}

	report := &domain.SyncReport{PluginID: plugin.ID, Plugin: plugin.Slug}
	for _, rel := range releases {
		if rel.Draft {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Processed++
		res, err := s.ingest.IngestRelease(ctx, plugin, rel)
		if err != nil {
			report.Failed++
			slog.Warn("同步 release 失败", "slug", plugin.Slug, "tag", rel.TagName, "error", err)
			continue
		}
		switch res.Outcome {
		case domain.OutcomeCommitted:
			report.Created++
		case domain.OutcomeDuplicate:
			report.Duplicates++
		case domain.OutcomeIgnored:
			report.Skipped++
		}
	}
	slog.Info("插件同步完成", "slug", plugin.Slug, "processed", report.Processed,
		"created", report.Created, "duplicates", report.Duplicates,
		"skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

// SyncAll 并行同步所有活跃插件。单个插件失败不会取消其他插件，错误写入对应报告。
func (s *SyncService) SyncAll(ctx context.Context) ([]domain.SyncReport, error) {
	plugins, err := s.catalog.ListActivePlugins(ctx)
	if err != nil {
		return nil, err
	}

	sem := semaphore.NewWeighted(s.concurrency)
	var (
		g       errgroup.Group
		mu      sync.Mutex
		reports = make([]domain.SyncReport, 0, len(plugins))
	)
	for i := range plugins {
		plugin := &plugins[i]
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			pctx, cancel := context.WithTimeout(ctx, s.perPlugin)
			defer cancel()

			report, err := s.syncOne(pctx, plugin)
			if report == nil {
				report = &domain.SyncReport{PluginID: plugin.ID, Plugin: plugin.Slug}
			}
			if err != nil {
				report.Error = err.Error()
				slog.Error("插件同步失败", "slug", plugin.Slug, "error", err)
			}
			mu.Lock()
			reports = append(reports, *report)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status := "ok"
	for _, r := range reports {
		if r.Error != "" {
			status = "partial"
			break
		}
	}
	aegobserve.SyncRunsTotal.WithLabelValues(status).Inc()
	if err := ctx.Err(); err != nil {
		return reports, err
	}
	return reports, nil
}

// Schedule 按 cron 表达式定期执行 SyncAll，ctx 结束时停止调度器
func (s *SyncService) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		reports, err := s.SyncAll(runCtx)
		if err != nil {
			slog.Error("定时同步中断", "error", err)
			return
		}
		slog.Info("定时同步完成", "plugins", len(reports))
	})
	if err != nil {
		return nil, fmt.Errorf("无效的同步计划 '%s': %w", spec, err)
	}
	c.Start()

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return c, nil
}

// RateLimit 返回 GitHub API 配额
func (s *SyncService) RateLimit(ctx context.Context) (*domain.GithubRateLimit, error) {
	return s.source.RateLimit(ctx)
}

// Repository 返回 GitHub 仓库信息
func (s *SyncService) Repository(ctx context.Context, owner, repo string) (*domain.GithubRepo, error) {
	return s.source.GetRepository(ctx, owner, repo)
}
