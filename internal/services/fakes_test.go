package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/docchannelbot/internal/catalog"
	"github.com/Lllllllleong/docchannelbot/internal/models"
	"github.com/Lllllllleong/docchannelbot/internal/stamper"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *catalog.SQLiteStore {
	t.Helper()
	ctx := context.Background()
	store, err := catalog.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "bot.db"), discardLogger())
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(ctx))
	t.Cleanup(func() { store.Close() })
	return store
}

type sentDocument struct {
	FileName string
	Caption  string
}

type fakeSender struct {
	mu     sync.Mutex
	nextID int
	failOn string
	sent   []sentDocument
}

func (f *fakeSender) SendDocument(_ context.Context, path, caption string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := filepath.Base(path)
	if f.failOn != "" && strings.Contains(name, f.failOn) {
		return 0, errors.New("telegram: bad request")
	}
	if _, err := os.Stat(path); err != nil {
		return 0, err
	}
	f.nextID++
	f.sent = append(f.sent, sentDocument{FileName: name, Caption: caption})
	return 100 + f.nextID, nil
}

func (f *fakeSender) Sent() []sentDocument {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentDocument(nil), f.sent...)
}

type fakeStamper struct {
	failExt string
	stamped []string
}

func (f *fakeStamper) Stamp(path string) stamper.Result {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	f.stamped = append(f.stamped, filepath.Base(path))
	if f.failExt != "" && ext == f.failExt {
		return stamper.Result{Status: models.StampFailed, Format: ext, Err: errors.New(ext + " stamp: broken file")}
	}
	switch ext {
	case "pdf", "docx", "xlsx", "xls":
		return stamper.Result{Status: models.StampApplied, Format: ext}
	}
	return stamper.Result{Status: models.StampSkipped, Format: ext}
}

type fakeMirror struct {
	err      error
	mirrored []string
}

func (f *fakeMirror) Mirror(_ context.Context, _ string, category, fileName string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mirrored = append(f.mirrored, category+"/"+fileName)
	return "gs://bucket/" + category + "/" + fileName, nil
}

// failingCatalogStore rejects catalog writes and delegates everything else.
type failingCatalogStore struct {
	catalog.Store
}

func (failingCatalogStore) AddCatalogEntry(context.Context, models.CatalogEntry) error {
	return errors.New("database is locked")
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
