package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/docchannelbot/internal/models"
)

// Firestore collection names.
const (
	adminsCollection    = "admins"
	settingsCollection  = "settings"
	catalogCollection   = "catalog"
	scheduledCollection = "scheduled_jobs"
)

type adminDoc struct {
	UserID int64 `firestore:"userId"`
}

type settingDoc struct {
	Value string `firestore:"value"`
}

// FirestoreStore keeps the catalog in Firestore collections. Listing a
// category needs a composite index on (category, insertedAt).
type FirestoreStore struct {
	client *firestore.Client
	logger *slog.Logger
}

var _ Store = (*FirestoreStore)(nil)

// NewFirestoreStore wraps an existing client; Close closes it.
func NewFirestoreStore(client *firestore.Client, logger *slog.Logger) *FirestoreStore {
	return &FirestoreStore{client: client, logger: logger}
}

// OpenFirestoreStore connects to databaseID in projectID. An empty databaseID
// selects the project's default database.
func OpenFirestoreStore(ctx context.Context, projectID, databaseID string, logger *slog.Logger) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, errors.New("PROJECT_ID must be set for the firestore catalog")
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	logger.Info("Connected to Firestore.", "projectId", projectID, "database", databaseID)
	return NewFirestoreStore(client, logger), nil
}

// EnsureSchema is a no-op: collections come into existence on first write.
func (s *FirestoreStore) EnsureSchema(ctx context.Context) error {
	s.logger.Info("Firestore catalog backend selected; no schema to apply.")
	return nil
}

func (s *FirestoreStore) IsAdmin(ctx context.Context, userID, ownerID int64) (bool, error) {
	if userID == ownerID {
		return true, nil
	}
	_, err := s.client.Collection(adminsCollection).Doc(strconv.FormatInt(userID, 10)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up admin %d: %w", userID, err)
	}
	return true, nil
}

func (s *FirestoreStore) AddAdmin(ctx context.Context, userID int64) error {
	ref := s.client.Collection(adminsCollection).Doc(strconv.FormatInt(userID, 10))
	if _, err := ref.Set(ctx, adminDoc{UserID: userID}); err != nil {
		return fmt.Errorf("failed to add admin %d: %w", userID, err)
	}
	return nil
}

func (s *FirestoreStore) ListAdmins(ctx context.Context) ([]int64, error) {
	iter := s.client.Collection(adminsCollection).Documents(ctx)
	defer iter.Stop()

	var ids []int64
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list admins: %w", err)
		}
		var a adminDoc
		if err := snap.DataTo(&a); err != nil {
			return nil, fmt.Errorf("failed to decode admin %s: %w", snap.Ref.ID, err)
		}
		ids = append(ids, a.UserID)
	}
	return ids, nil
}

func (s *FirestoreStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	snap, err := s.client.Collection(settingsCollection).Doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %q: %w", key, err)
	}
	var doc settingDoc
	if err := snap.DataTo(&doc); err != nil {
		return "", false, fmt.Errorf("failed to decode setting %q: %w", key, err)
	}
	return doc.Value, true, nil
}

func (s *FirestoreStore) SetSetting(ctx context.Context, key, value string) error {
	if _, err := s.client.Collection(settingsCollection).Doc(key).Set(ctx, settingDoc{Value: value}); err != nil {
		return fmt.Errorf("failed to write setting %q: %w", key, err)
	}
	return nil
}

func (s *FirestoreStore) AddCatalogEntry(ctx context.Context, entry models.CatalogEntry) error {
	if entry.InsertedAt.IsZero() {
		entry.InsertedAt = time.Now()
	}
	if _, _, err := s.client.Collection(catalogCollection).Add(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert catalog entry %q (message %d): %w", entry.DisplayName, entry.ChannelMessageID, err)
	}
	return nil
}

func (s *FirestoreStore) ListCatalogByCategory(ctx context.Context, category models.Category) ([]models.CatalogLink, error) {
	iter := s.client.Collection(catalogCollection).
		Where("category", "==", string(category)).
		OrderBy("insertedAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var links []models.CatalogLink
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list category %q: %w", category, err)
		}
		var e models.CatalogEntry
		if err := snap.DataTo(&e); err != nil {
			return nil, fmt.Errorf("failed to decode catalog entry %s: %w", snap.Ref.ID, err)
		}
		links = append(links, models.CatalogLink{DisplayName: e.DisplayName, ChannelLink: e.ChannelLink})
	}
	return links, nil
}

func (s *FirestoreStore) CountCatalogEntries(ctx context.Context) (int, error) {
	return s.count(ctx, s.client.Collection(catalogCollection).Query)
}

func (s *FirestoreStore) CountByCategory(ctx context.Context) (map[models.Category]int, error) {
	counts := make(map[models.Category]int)
	for _, c := range models.Categories {
		n, err := s.count(ctx, s.client.Collection(catalogCollection).Where("category", "==", string(c)))
		if err != nil {
			return nil, err
		}
		if n > 0 {
			counts[c] = n
		}
	}
	return counts, nil
}

func (s *FirestoreStore) count(ctx context.Context, q firestore.Query) (int, error) {
	res, err := q.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count catalog: %w", err)
	}
	v, ok := res["all"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("unexpected count result type %T", res["all"])
	}
	return int(v.GetIntegerValue()), nil
}

func (s *FirestoreStore) AddScheduledJob(ctx context.Context, job models.ScheduledJob) error {
	if _, err := s.client.Collection(scheduledCollection).Doc(job.ID).Set(ctx, job); err != nil {
		return fmt.Errorf("failed to persist scheduled job %s: %w", job.ID, err)
	}
	return nil
}

func (s *FirestoreStore) DeleteScheduledJob(ctx context.Context, id string) error {
	ref := s.client.Collection(scheduledCollection).Doc(id)
	if _, err := ref.Delete(ctx, firestore.Exists); err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete scheduled job %s: %w", id, err)
	}
	return nil
}

func (s *FirestoreStore) ListScheduledJobs(ctx context.Context) ([]models.ScheduledJob, error) {
	iter := s.client.Collection(scheduledCollection).OrderBy("runAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var jobs []models.ScheduledJob
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list scheduled jobs: %w", err)
		}
		var j models.ScheduledJob
		if err := snap.DataTo(&j); err != nil {
			return nil, fmt.Errorf("failed to decode scheduled job %s: %w", snap.Ref.ID, err)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// Ping reads a single settings document to check the connection.
func (s *FirestoreStore) Ping(ctx context.Context) error {
	iter := s.client.Collection(settingsCollection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("firestore ping failed: %w", err)
	}
	return nil
}
