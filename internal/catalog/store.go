// Package catalog persists admins, settings, the publication history and
// pending scheduled publishes.
package catalog

import (
	"context"
	"errors"

	"github.com/Lllllllleong/docchannelbot/internal/models"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Store is the persistence surface used by the pipeline, the scheduler and
// the bot screens. Catalog entries are append-only.
type Store interface {
	EnsureSchema(ctx context.Context) error

	IsAdmin(ctx context.Context, userID, ownerID int64) (bool, error)
	AddAdmin(ctx context.Context, userID int64) error
	ListAdmins(ctx context.Context) ([]int64, error)

	// GetSetting returns ok=false when the key was never set.
	GetSetting(ctx context.Context, key string) (value string, ok bool, err error)
	SetSetting(ctx context.Context, key, value string) error

	AddCatalogEntry(ctx context.Context, entry models.CatalogEntry) error
	ListCatalogByCategory(ctx context.Context, category models.Category) ([]models.CatalogLink, error)
	CountCatalogEntries(ctx context.Context) (int, error)
	CountByCategory(ctx context.Context) (map[models.Category]int, error)

	AddScheduledJob(ctx context.Context, job models.ScheduledJob) error
	DeleteScheduledJob(ctx context.Context, id string) error
	ListScheduledJobs(ctx context.Context) ([]models.ScheduledJob, error)

	Close() error
}
