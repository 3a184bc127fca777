package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Lllllllleong/docchannelbot/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore keeps everything in a single SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}

	start := time.Now()
	db, err := sql.Open("sqlite3", absPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite serializes writers anyway; one connection keeps that explicit.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	logger.Info("Database connection established.", "path", absPath, "duration", time.Since(start))

	return &SQLiteStore{db: db, path: absPath, logger: logger}, nil
}

// EnsureSchema applies the embedded migrations. Running it on an up-to-date
// database is a no-op.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, "sqlite3://"+s.path)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	s.logger.Info("Schema ready.", "version", version, "dirty", dirty)
	return nil
}

func (s *SQLiteStore) IsAdmin(ctx context.Context, userID, ownerID int64) (bool, error) {
	if userID == ownerID {
		return true, nil
	}
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM admins WHERE user_id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up admin %d: %w", userID, err)
	}
	return true, nil
}

func (s *SQLiteStore) AddAdmin(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO admins (user_id) VALUES (?)`, userID); err != nil {
		return fmt.Errorf("failed to add admin %d: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) ListAdmins(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM admins ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan admin: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write setting %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) AddCatalogEntry(ctx context.Context, entry models.CatalogEntry) error {
	if entry.InsertedAt.IsZero() {
		entry.InsertedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO catalog (display_name, category, channel_link, channel_message_id, inserted_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.DisplayName, string(entry.Category), entry.ChannelLink, entry.ChannelMessageID, entry.InsertedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert catalog entry %q (message %d): %w", entry.DisplayName, entry.ChannelMessageID, err)
	}
	return nil
}

func (s *SQLiteStore) ListCatalogByCategory(ctx context.Context, category models.Category) ([]models.CatalogLink, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT display_name, channel_link FROM catalog WHERE category = ? ORDER BY id`, string(category))
	if err != nil {
		return nil, fmt.Errorf("failed to list category %q: %w", category, err)
	}
	defer rows.Close()

	var links []models.CatalogLink
	for rows.Next() {
		var l models.CatalogLink
		if err := rows.Scan(&l.DisplayName, &l.ChannelLink); err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (s *SQLiteStore) CountCatalogEntries(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count catalog: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) CountByCategory(ctx context.Context) (map[models.Category]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM catalog GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Category]int)
	for rows.Next() {
		var (
			cat string
			n   int
		)
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		counts[models.Category(cat)] = n
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) AddScheduledJob(ctx context.Context, job models.ScheduledJob) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_jobs (id, local_path, original_file_name, chat_id, run_at) VALUES (?, ?, ?, ?, ?)`,
		job.ID, job.LocalPath, job.OriginalFileName, job.ChatID, job.RunAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to persist scheduled job %s: %w", job.ID, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteScheduledJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scheduled job %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListScheduledJobs(ctx context.Context) ([]models.ScheduledJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, local_path, original_file_name, chat_id, run_at FROM scheduled_jobs ORDER BY run_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.ScheduledJob
	for rows.Next() {
		var j models.ScheduledJob
		if err := rows.Scan(&j.ID, &j.LocalPath, &j.OriginalFileName, &j.ChatID, &j.RunAt); err != nil {
			return nil, fmt.Errorf("failed to scan scheduled job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Ping reports whether the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
