// Package sqlite file: internal/adapter/store/sqlite/monitoring.go
package sqlite

import (
	"UpdateAegis/internal/core/domain"
	"context"
	"fmt"
	"time"
)

const (
	dashboardDays = 7
	topPluginsMax = 10
	dateLayout    = "2006-01-02"
)

// Dashboard 汇总目录规模、近 24 小时活跃度、最近 7 天每日下载与下载量前 10 的插件
func (s *Store) Dashboard(ctx context.Context, now time.Time) (*domain.Dashboard, error) {
	now = now.UTC().Truncate(time.Second)
	dayAgo := now.Add(-24 * time.Hour)
	out := &domain.Dashboard{GeneratedAt: now}

	db := &out.Database
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM plugins WHERE active = 1),
		       (SELECT COUNT(*) FROM plugin_versions),
		       (SELECT COUNT(*) FROM downloads WHERE downloaded_at >= ?),
		       (SELECT COUNT(*) FROM authorized_sites WHERE active = 1),
		       (SELECT COUNT(*) FROM authorized_sites WHERE active = 1 AND last_check >= ?)`,
		dayAgo, dayAgo,
	).Scan(&db.ActivePlugins, &db.TotalVersions, &db.Downloads24h, &db.ActiveSites, &db.SitesActive24h)
	if err != nil {
		return nil, fmt.Errorf("统计数据库概况失败: %w", err)
	}

	daily, err := s.dailyDownloads(ctx, now)
	if err != nil {
		return nil, err
	}
	out.API.DailyDownloads = daily

	top, err := s.topPlugins(ctx, dayAgo)
	if err != nil {
		return nil, err
	}
	out.API.TopPlugins = top
	return out, nil
}

// dailyDownloads 返回含今天在内的 7 个 UTC 日期，没有下载的日期补零
func (s *Store) dailyDownloads(ctx context.Context, now time.Time) ([]domain.DailyDownloads, error) {
	first := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(dashboardDays - 1))
	rows, err := s.db.QueryContext(ctx, `
		SELECT DATE(downloaded_at) AS day, COUNT(*), COUNT(DISTINCT NULLIF(ip_address, ''))
		FROM downloads
		WHERE downloaded_at >= ?
		GROUP BY day`, first)
	if err != nil {
		return nil, fmt.Errorf("按日统计下载失败: %w", err)
	}
	defer rows.Close()

	byDay := make(map[string]domain.DailyDownloads, dashboardDays)
	for rows.Next() {
		var d domain.DailyDownloads
		if err := rows.Scan(&d.Date, &d.Downloads, &d.UniqueIPs); err != nil {
			return nil, fmt.Errorf("扫描每日下载失败: %w", err)
		}
		byDay[d.Date] = d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	series := make([]domain.DailyDownloads, 0, dashboardDays)
	for i := 0; i < dashboardDays; i++ {
		day := first.AddDate(0, 0, i).Format(dateLayout)
		d, ok := byDay[day]
		if !ok {
			d = domain.DailyDownloads{Date: day}
		}
		series = append(series, d)
	}
	return series, nil
}

func (s *Store) topPlugins(ctx context.Context, since time.Time) ([]domain.TopPlugin, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.slug, p.name, COUNT(d.id) AS n
		FROM downloads d
		JOIN plugins p ON p.id = d.plugin_id
		WHERE d.downloaded_at >= ?
		GROUP BY p.id
		ORDER BY n DESC, p.slug
		LIMIT ?`, since, topPluginsMax)
	if err != nil {
		return nil, fmt.Errorf("统计热门插件失败: %w", err)
	}
	defer rows.Close()
	top := []domain.TopPlugin{}
	for rows.Next() {
		var p domain.TopPlugin
		if err := rows.Scan(&p.Slug, &p.Name, &p.Downloads); err != nil {
			return nil, fmt.Errorf("扫描热门插件失败: %w", err)
		}
		top = append(top, p)
	}
	return top, rows.Err()
}
