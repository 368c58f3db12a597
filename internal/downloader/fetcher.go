package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

var (
	// ErrUnsupportedScheme 表示没有下载器能处理该 URL
	ErrUnsupportedScheme = errors.New("不支持的下载协议")
	// ErrDisallowedSource 表示下载地址不在允许的来源内
	ErrDisallowedSource = errors.New("下载地址不在允许的来源内")
)

// Fetcher 按 URL 协议选择下载器，把归档写入上传目录。
// 写入先落到 .part 临时文件，完整后再重命名，失败时删除临时文件。
type Fetcher struct {
	dir          string
	downloaders  []Downloader
	maxBytes     int64
	allowedHosts []string
}

// NewFetcher 创建 Fetcher。maxBytes <= 0 表示不限制大小。
func NewFetcher(uploadsDir string, maxBytes int64, downloaders ...Downloader) (*Fetcher, error) {
	if uploadsDir == "" {
		return nil, errors.New("上传目录不能为空")
	}
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建上传目录 '%s' 失败: %w", uploadsDir, err)
	}
	return &Fetcher{dir: uploadsDir, downloaders: downloaders, maxBytes: maxBytes}, nil
}

// AllowHosts 限定下载来源：只接受这些主机上的 https 地址。不调用时不做限制。
func (f *Fetcher) AllowHosts(hosts ...string) *Fetcher {
	f.allowedHosts = hosts
	return f
}

func (f *Fetcher) checkSource(u *url.URL) error {
	if len(f.allowedHosts) == 0 {
		return nil
	}
	if u.Scheme != "https" || !hostIn(u.Hostname(), f.allowedHosts) {
		return fmt.Errorf("%w: %s://%s", ErrDisallowedSource, u.Scheme, u.Host)
	}
	return nil
}

// Dir 返回上传目录
func (f *Fetcher) Dir() string { return f.dir }

// ArchiveName 返回 slug 与版本对应的文件名，去掉所有可能越出目录的字符
func ArchiveName(slug, version string) (string, error) {
	s := unsafeNameChars.ReplaceAllString(slug, "_")
	v := unsafeNameChars.ReplaceAllString(version, "_")
	s = strings.Trim(s, ".")
	v = strings.Trim(v, ".")
	if s == "" || v == "" || strings.Contains(s, "..") || strings.Contains(v, "..") {
		return "", fmt.Errorf("无效的归档名称: slug=%q version=%q", slug, version)
	}
	return s + "-" + v + ".zip", nil
}

func (f *Fetcher) pick(scheme string) Downloader {
	for _, d := range f.downloaders {
		if d.SupportsScheme(scheme) {
			return d
		}
	}
	return nil
}

// Fetch 下载 sourceURL 到 <uploads>/<slug>-<version>.zip，返回相对路径与大小
func (f *Fetcher) Fetch(ctx context.Context, sourceURL, slug, version string) (string, int64, error) {
	name, err := ArchiveName(slug, version)
	if err != nil {
		return "", 0, err
	}
	u, err := url.Parse(sourceURL)
	if err != nil {
		return "", 0, fmt.Errorf("解析下载地址失败: %w", err)
	}
	if err := f.checkSource(u); err != nil {
		return "", 0, err
	}
	d := f.pick(u.Scheme)
	if d == nil {
		return "", 0, fmt.Errorf("%w: '%s'", ErrUnsupportedScheme, u.Scheme)
	}

	body, err := d.Download(ctx, u)
	if err != nil {
		return "", 0, err
	}
	defer body.Close()

	final := filepath.Join(f.dir, name)
	partial := final + ".part"
	size, err := f.writePartial(ctx, partial, body)
	if err != nil {
		_ = os.Remove(partial)
		return "", 0, err
	}
	if err := os.Rename(partial, final); err != nil {
		_ = os.Remove(partial)
		return "", 0, fmt.Errorf("重命名归档文件失败: %w", err)
	}
	slog.Info("release 归档已保存", "slug", slug, "version", version, "file", name, "size", size)
	return name, size, nil
}

func (f *Fetcher) writePartial(ctx context.Context, path string, src io.Reader) (int64, error) {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("创建临时文件失败: %w", err)
	}

	reader := io.Reader(&ctxReader{ctx: ctx, r: src})
	if f.maxBytes > 0 {
		reader = io.LimitReader(reader, f.maxBytes+1)
	}
	n, copyErr := io.Copy(out, reader)
	closeErr := out.Close()
	switch {
	case copyErr != nil:
		return 0, fmt.Errorf("写入归档失败: %w", copyErr)
	case closeErr != nil:
		return 0, fmt.Errorf("关闭归档文件失败: %w", closeErr)
	case f.maxBytes > 0 && n > f.maxBytes:
		return 0, fmt.Errorf("归档超过大小上限 %d 字节", f.maxBytes)
	}
	return n, nil
}

// ctxReader 在每次读取前检查 ctx，使取消能中断长时间的复制
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
