package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestArchiveName(t *testing.T) {
	name, err := ArchiveName("my-plugin", "1.2.0-beta.1+build")
	require.NoError(t, err)
	assert.Equal(t, "my-plugin-1.2.0-beta.1_build.zip", name)

	name, err = ArchiveName("a/b", ".1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "a_b-1.0.0.zip", name)
	assert.False(t, strings.HasPrefix(name, "."))

	_, err = ArchiveName("../../etc", "1.0.0")
	assert.Error(t, err)

	_, err = ArchiveName("", "1.0.0")
	assert.Error(t, err)
	_, err = ArchiveName("a..b", "1.0.0")
	assert.Error(t, err)
}

func TestFetcher_FetchHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("zip-bytes"))
	}))
	defer server.Close()

	dir := t.TempDir()
	f, err := NewFetcher(dir, 0, NewHTTPDownloader("", "test", 0), &FileDownloader{})
	require.NoError(t, err)

	rel, size, err := f.Fetch(context.Background(), server.URL+"/asset.zip", "my-plugin", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "my-plugin-1.0.0.zip", rel)
	assert.Equal(t, int64(9), size)

	data, err := os.ReadFile(filepath.Join(dir, rel))
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(data))
	assert.Equal(t, []string{"my-plugin-1.0.0.zip"}, listDir(t, dir))
}

func TestFetcher_FailureRemovesPartial(t *testing.T) {
	t.Run("upstream error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		dir := t.TempDir()
		f, err := NewFetcher(dir, 0, NewHTTPDownloader("", "", 0))
		require.NoError(t, err)
		_, _, err = f.Fetch(context.Background(), server.URL, "my-plugin", "1.0.0")
		require.Error(t, err)
		assert.Empty(t, listDir(t, dir))
	})

	t.Run("cancelled mid-stream", func(t *testing.T) {
		src := filepath.Join(t.TempDir(), "big.zip")
		require.NoError(t, os.WriteFile(src, make([]byte, 1<<20), 0o644))

		dir := t.TempDir()
		f, err := NewFetcher(dir, 0, &FileDownloader{})
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err = f.Fetch(ctx, fileURL(t, src).String(), "my-plugin", "1.0.0")
		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, listDir(t, dir))
	})

	t.Run("too large", func(t *testing.T) {
		src := filepath.Join(t.TempDir(), "big.zip")
		require.NoError(t, os.WriteFile(src, make([]byte, 2048), 0o644))

		dir := t.TempDir()
		f, err := NewFetcher(dir, 1024, &FileDownloader{})
		require.NoError(t, err)
		_, _, err = f.Fetch(context.Background(), fileURL(t, src).String(), "my-plugin", "1.0.0")
		require.Error(t, err)
		assert.Empty(t, listDir(t, dir))
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		f, err := NewFetcher(t.TempDir(), 0, &FileDownloader{})
		require.NoError(t, err)
		_, _, err = f.Fetch(context.Background(), "ftp://host/x.zip", "my-plugin", "1.0.0")
		assert.ErrorIs(t, err, ErrUnsupportedScheme)
	})
}

func TestFetcher_AllowHostsRejectsForeignSources(t *testing.T) {
	secret := filepath.Join(t.TempDir(), "updates.db")
	require.NoError(t, os.WriteFile(secret, []byte("api_key=wpup_deadbeef"), 0o644))

	hit := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		_, _ = w.Write([]byte("zip-bytes"))
	}))
	defer server.Close()

	dir := t.TempDir()
	f, err := NewFetcher(dir, 0, NewHTTPDownloader("gh-token", "test", 0), &FileDownloader{})
	require.NoError(t, err)
	f.AllowHosts(GitHubHosts...)

	for _, src := range []string{
		fileURL(t, secret).String(),
		server.URL + "/asset.zip",
		"https://evil.example.com/asset.zip",
		"http://github.com/acme/my-plugin/releases/download/v1.0.0/my-plugin.zip",
	} {
		_, _, err := f.Fetch(context.Background(), src, "my-plugin", "1.0.0")
		assert.ErrorIs(t, err, ErrDisallowedSource, src)
	}
	assert.False(t, hit)
	assert.Empty(t, listDir(t, dir))
}
