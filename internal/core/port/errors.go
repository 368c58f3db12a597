// Package port file: internal/core/port/errors.go
package port

import "errors"

// 错误分类。服务层用 fmt.Errorf("%w: ...", ErrX) 包装，传输层用 errors.Is 映射到 HTTP 状态码。
var (
	ErrValidation          = errors.New("请求参数无效")
	ErrUnauthorized        = errors.New("认证失败")
	ErrForbidden           = errors.New("权限不足，操作被拒绝")
	ErrNotFound            = errors.New("资源未找到")
	ErrConflict            = errors.New("资源已存在")
	ErrRateLimited         = errors.New("请求过于频繁")
	ErrUpstreamUnavailable = errors.New("上游服务不可用")
)
