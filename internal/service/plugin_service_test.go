package service

import (
	"UpdateAegis/internal/core/domain"
	"UpdateAegis/internal/core/port"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPluginService_CreateAndConflict(t *testing.T) {
	var changed []string
	store := &mockAdminStore{
		CreatePluginFunc: func(_ context.Context, p *domain.Plugin) error {
			if p.Slug == "taken" {
				return fmt.Errorf("%w: slug", port.ErrConflict)
			}
			p.ID = 1
			return nil
		},
	}
	svc := NewPluginService(&mockCatalog{}, store)
	svc.OnChange(func(slug string) { changed = append(changed, slug) })
	ctx := context.Background()

	p, err := svc.CreatePlugin(ctx, CreatePluginRequest{Slug: "fresh", Name: " Fresh ", GithubOwner: "acme", GithubRepo: "fresh"})
	require.NoError(t, err)
	assert.Equal(t, "Fresh", p.Name)
	assert.Equal(t, []string{"fresh"}, changed)

	_, err = svc.CreatePlugin(ctx, CreatePluginRequest{Slug: "taken", Name: "x", GithubOwner: "a", GithubRepo: "b"})
	assert.ErrorIs(t, err, port.ErrConflict)

	_, err = svc.CreatePlugin(ctx, CreatePluginRequest{Slug: "Bad_", Name: "x", GithubOwner: "a", GithubRepo: "b"})
	assert.ErrorIs(t, err, port.ErrValidation)
}

func TestPluginService_UpdateInvalidates(t *testing.T) {
	var changed []string
	svc := NewPluginService(&mockCatalog{}, &mockAdminStore{})
	svc.OnChange(func(slug string) { changed = append(changed, slug) })
	ctx := context.Background()

	_, err := svc.UpdatePlugin(ctx, "my-plugin", domain.PluginUpdate{})
	assert.ErrorIs(t, err, port.ErrValidation)

	tested := "6.5"
	_, err = svc.UpdatePlugin(ctx, "my-plugin", domain.PluginUpdate{TestedWP: &tested})
	require.NoError(t, err)
	require.NoError(t, svc.DeletePlugin(ctx, "my-plugin"))
	assert.Equal(t, []string{"my-plugin", "my-plugin"}, changed)
}

func TestPluginService_DetailAndStats(t *testing.T) {
	catalog := resolverCatalog("1.0.0")
	var since time.Time
	store := &mockAdminStore{
		ListVersionsFunc: func(context.Context, int64) ([]domain.ReleaseVersion, error) {
			return []domain.ReleaseVersion{{Version: "1.1.0"}, {Version: "1.0.0"}}, nil
		},
		PluginStatsFunc: func(_ context.Context, id int64, s time.Time) (*domain.PluginStats, error) {
			since = s
			return &domain.PluginStats{TotalDownloads: 4}, nil
		},
	}
	svc := NewPluginService(catalog, store)
	fixed := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	ctx := context.Background()

	detail, err := svc.GetPluginDetail(ctx, "my-plugin")
	require.NoError(t, err)
	assert.Len(t, detail.Versions, 2)

	st, err := svc.Stats(ctx, "my-plugin")
	require.NoError(t, err)
	assert.Equal(t, "my-plugin", st.Slug)
	assert.Equal(t, int64(4), st.TotalDownloads)
	assert.Equal(t, fixed.AddDate(0, 0, -30), since)

	_, err = svc.GetPluginDetail(ctx, "ghost")
	assert.ErrorIs(t, err, port.ErrNotFound)
}
