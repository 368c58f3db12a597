// Package domain file: internal/core/domain/config_models.go
package domain

import "time"

// RateLimitRule 定义了一个路由类别的滑动窗口预算
type RateLimitRule struct {
	Limit  int           `mapstructure:"limit" json:"limit"`
	Window time.Duration `mapstructure:"window" json:"window"`
}

// RateLimitDecision 是一次限流判断的结果
type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}
