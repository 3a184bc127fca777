package catalog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/docchannelbot/internal/models"
)

// Runs only against the Firestore emulator.
func TestFirestoreStore_Emulator(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "docchannelbot-test")
	require.NoError(t, err)
	store := NewFirestoreStore(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer store.Close()

	require.NoError(t, store.EnsureSchema(ctx))

	require.NoError(t, store.AddAdmin(ctx, 77))
	ok, err := store.IsAdmin(ctx, 77, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.SetSetting(ctx, models.SettingFooterText, "footer"))
	v, ok, err := store.GetSetting(ctx, models.SettingFooterText)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "footer", v)

	before, err := store.CountCatalogEntries(ctx)
	require.NoError(t, err)
	require.NoError(t, store.AddCatalogEntry(ctx, models.CatalogEntry{
		DisplayName: "x.pdf", Category: models.CategoryGeneral, ChannelLink: "https://t.me/ch/9", ChannelMessageID: 9,
	}))
	after, err := store.CountCatalogEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}

func TestOpenFirestoreStore_RequiresProject(t *testing.T) {
	_, err := OpenFirestoreStore(context.Background(), "", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "PROJECT_ID")
}
