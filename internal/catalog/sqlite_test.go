package catalog

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/docchannelbot/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	ctx := context.Background()
	store, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "bot.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(ctx))
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_EnsureSchemaIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddAdmin(ctx, 42))
	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx))

	admins, err := store.ListAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, admins)
}

func TestSQLiteStore_Admins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	const owner = int64(1000)

	ok, err := store.IsAdmin(ctx, owner, owner)
	require.NoError(t, err)
	assert.True(t, ok, "owner is always an admin")

	ok, err = store.IsAdmin(ctx, 7, owner)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.AddAdmin(ctx, 7))
	require.NoError(t, store.AddAdmin(ctx, 7))
	require.NoError(t, store.AddAdmin(ctx, 8))

	ok, err = store.IsAdmin(ctx, 7, owner)
	require.NoError(t, err)
	assert.True(t, ok)

	admins, err := store.ListAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 8}, admins)
}

func TestSQLiteStore_Settings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.GetSetting(ctx, models.SettingPostCaption)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetSetting(ctx, models.SettingPostCaption, "{name}"))
	require.NoError(t, store.SetSetting(ctx, models.SettingPostCaption, "📄 {name} — @{channel}"))

	v, ok, err := store.GetSetting(ctx, models.SettingPostCaption)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "📄 {name} — @{channel}", v)
}

func TestSQLiteStore_Catalog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entries := []models.CatalogEntry{
		{DisplayName: "a.pdf", Category: models.CategoryYuqori, ChannelLink: "https://t.me/ch/1", ChannelMessageID: 1},
		{DisplayName: "b.pdf", Category: models.CategoryBSBCHSB, ChannelLink: "https://t.me/ch/2", ChannelMessageID: 2},
		{DisplayName: "c.pdf", Category: models.CategoryYuqori, ChannelLink: "https://t.me/ch/3", ChannelMessageID: 3},
	}
	for _, e := range entries {
		require.NoError(t, store.AddCatalogEntry(ctx, e))
	}

	n, err := store.CountCatalogEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	links, err := store.ListCatalogByCategory(ctx, models.CategoryYuqori)
	require.NoError(t, err)
	assert.Equal(t, []models.CatalogLink{
		{DisplayName: "a.pdf", ChannelLink: "https://t.me/ch/1"},
		{DisplayName: "c.pdf", ChannelLink: "https://t.me/ch/3"},
	}, links)

	links, err = store.ListCatalogByCategory(ctx, models.CategoryRusMaktab)
	require.NoError(t, err)
	assert.Empty(t, links)

	counts, err := store.CountByCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[models.Category]int{models.CategoryYuqori: 2, models.CategoryBSBCHSB: 1}, counts)
}

func TestSQLiteStore_ScheduledJobs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

	later := models.ScheduledJob{ID: "02", LocalPath: "/tmp/b.pdf", OriginalFileName: "b.pdf", ChatID: 5, RunAt: base.Add(time.Hour)}
	sooner := models.ScheduledJob{ID: "01", LocalPath: "/tmp/a.pdf", OriginalFileName: "a.pdf", ChatID: 5, RunAt: base}
	require.NoError(t, store.AddScheduledJob(ctx, later))
	require.NoError(t, store.AddScheduledJob(ctx, sooner))

	jobs, err := store.ListScheduledJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "01", jobs[0].ID)
	assert.True(t, jobs[0].RunAt.Equal(base))
	assert.Equal(t, "b.pdf", jobs[1].OriginalFileName)

	require.NoError(t, store.DeleteScheduledJob(ctx, "01"))
	assert.ErrorIs(t, store.DeleteScheduledJob(ctx, "01"), ErrNotFound)

	jobs, err = store.ListScheduledJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}
