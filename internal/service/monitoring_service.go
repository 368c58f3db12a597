package service

import (
	"UpdateAegis/internal/core/domain"
	"UpdateAegis/internal/core/port"
	"context"
	"log/slog"
	"time"
)

// MonitoringService 为管理后台提供运营概览
type MonitoringService struct {
	store port.MonitoringStore
	now   func() time.Time
}

func NewMonitoringService(store port.MonitoringStore) *MonitoringService {
	return &MonitoringService{store: store, now: time.Now}
}

// Dashboard 返回当前时刻的运营概览
func (s *MonitoringService) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	d, err := s.store.Dashboard(ctx, s.now())
	if err != nil {
		slog.Error("生成监控概览失败", "error", err)
		return nil, err
	}
	return d, nil
}
