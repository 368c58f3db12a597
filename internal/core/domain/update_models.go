// Package domain file: internal/core/domain/update_models.go
package domain

// UpdateKind 标记更新检查结果的类别
type UpdateKind int

const (
	UpdateNotFound UpdateKind = iota
	UpdateUpToDate
	UpdateAvailable
)

// UpdateResult 是更新检查的标签化结果，只有 Kind 对应的字段有效
type UpdateResult struct {
	Kind     UpdateKind
	UpToDate *UpToDateResponse
	Payload  *UpdatePayload
}

// UpToDateResponse 是客户端已是最新时的响应体
type UpToDateResponse struct {
	Slug     string `json:"slug"`
	Version  string `json:"version"`
	UpToDate bool   `json:"up_to_date"`
	Message  string `json:"message"`
}

// UpdatePayload 是 WordPress 更新客户端依赖的响应结构，字段名不可改动
type UpdatePayload struct {
	Slug          string         `json:"slug"`
	Plugin        string         `json:"plugin"`
	NewVersion    string         `json:"new_version"`
	URL           string         `json:"url"`
	Package       string         `json:"package"`
	Icons         UpdateIcons    `json:"icons"`
	Banners       UpdateBanners  `json:"banners"`
	Requires      string         `json:"requires"`
	Tested        string         `json:"tested"`
	RequiresPHP   string         `json:"requires_php"`
	Sections      UpdateSections `json:"sections"`
	UpgradeNotice string         `json:"upgrade_notice"`
}

type UpdateIcons struct {
	OneX string `json:"1x"`
	TwoX string `json:"2x"`
}

type UpdateBanners struct {
	Low  string `json:"low"`
	High string `json:"high"`
}

type UpdateSections struct {
	Description string `json:"description"`
	Changelog   string `json:"changelog"`
}

// Body 返回应当序列化给客户端的对象
func (r UpdateResult) Body() any {
	switch r.Kind {
	case UpdateAvailable:
		return r.Payload
	case UpdateUpToDate:
		return r.UpToDate
	default:
		return nil
	}
}

// VersionQuery 是批量检查中的一项
type VersionQuery struct {
	Slug    string `json:"slug" binding:"required,slug"`
	Version string `json:"version" binding:"required"`
}

// DownloadTarget 描述下载应如何被满足：本地文件或重定向
type DownloadTarget struct {
	Slug        string
	Version     string
	LocalPath   string // 绝对路径，为空表示不存在本地副本
	RedirectURL string
}
