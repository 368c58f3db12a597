// Package downloader 把 release 归档流式保存到上传目录
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// GitHubHosts 是 release 归档允许来自的主机，也是唯一会收到 GitHub token 的主机
var GitHubHosts = []string{"github.com", "api.github.com", "objects.githubusercontent.com"}

func hostIn(host string, hosts []string) bool {
	host = strings.ToLower(host)
	for _, h := range hosts {
		if host == strings.ToLower(h) {
			return true
		}
	}
	return false
}

// Downloader 是所有下载器都必须实现的接口。
type Downloader interface {
	// SupportsScheme 支持的协议 (e.g., "http", "https", "file")
	SupportsScheme(scheme string) bool
	// Download 执行下载，返回一个可读取文件内容的对象
	Download(ctx context.Context, sourceURL *url.URL) (io.ReadCloser, error)
}

// HTTPDownloader =============================================================================
//
//	HTTP/HTTPS 下载器实现
//
// =============================================================================
type HTTPDownloader struct {
	Client     *http.Client
	Token      string // GitHub token，为空时匿名访问
	TokenHosts []string
	UserAgent  string
}

// NewHTTPDownloader 创建带超时的 HTTP 下载器
func NewHTTPDownloader(token, userAgent string, timeout time.Duration) *HTTPDownloader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPDownloader{
		Client:     &http.Client{Timeout: timeout},
		Token:      token,
		TokenHosts: GitHubHosts,
		UserAgent:  userAgent,
	}
}

func (d *HTTPDownloader) SupportsScheme(scheme string) bool {
	return scheme == "http" || scheme == "https"
}

func (d *HTTPDownloader) Download(ctx context.Context, sourceURL *url.URL) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTP请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream")
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}
	// token 只发给 TokenHosts；跨域重定向时 net/http 会自行去掉 Authorization
	if d.Token != "" && hostIn(sourceURL.Hostname(), d.TokenHosts) {
		req.Header.Set("Authorization", "token "+d.Token)
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP请求失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close() // 确保在出错时关闭body
		return nil, fmt.Errorf("HTTP请求失败: 状态码 %d: %s", resp.StatusCode, string(snippet))
	}
	return resp.Body, nil
}

// FileDownloader =============================================================================
//
//	本地文件“下载”器 (实际上是文件复制)
//
// =============================================================================
type FileDownloader struct{}

func (d *FileDownloader) SupportsScheme(scheme string) bool {
	return scheme == "file"
}

func (d *FileDownloader) Download(_ context.Context, sourceURL *url.URL) (io.ReadCloser, error) {
	return os.Open(resolveLocalFilePath(sourceURL))
}

// resolveLocalFilePath 把 file:// URL 转换为本地路径。
// "file:///C:/Users/..." 解析后 Path 为 "/C:/Users/..."，Windows 上需要去掉前导分隔符。
func resolveLocalFilePath(u *url.URL) string {
	path := filepath.FromSlash(u.Path)
	if len(path) > 2 && path[0] == filepath.Separator && path[2] == ':' {
		path = path[1:]
	}
	return path
}
