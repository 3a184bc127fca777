package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// ArchiveMirror keeps a copy of every published document in a GCS bucket,
// under <category>/<file name>.
type ArchiveMirror struct {
	client     *storage.Client
	bucketName string
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger

	upload func(ctx context.Context, localPath, objectName string) error
}

// NewArchiveMirror creates the storage client for bucketName.
func NewArchiveMirror(ctx context.Context, bucketName string, logger *slog.Logger) (*ArchiveMirror, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("bucket name must be provided for the archive mirror")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	m := &ArchiveMirror{
		client:     client,
		bucketName: bucketName,
		maxRetries: 4,
		backoff:    time.Second,
		logger:     logger,
	}
	m.upload = m.uploadOnce
	return m, nil
}

// ObjectName is where a published file lands in the bucket.
func ObjectName(category, fileName string) string {
	return path.Join(category, fileName)
}

// Mirror uploads localPath to the bucket unless the object already exists.
// It returns the gs:// URI of the object.
func (m *ArchiveMirror) Mirror(ctx context.Context, localPath, category, fileName string) (string, error) {
	objectName := ObjectName(category, fileName)
	uri := fmt.Sprintf("gs://%s/%s", m.bucketName, objectName)

	backoff := m.backoff
	var lastErr error
	for i := 0; i < m.maxRetries; i++ {
		err := m.upload(ctx, localPath, objectName)
		if err == nil {
			return uri, nil
		}
		if isPreconditionFailed(err) {
			m.logger.Info("Archive object already exists, skipping.", "gcsObject", objectName)
			return uri, nil
		}

		lastErr = err
		if i == m.maxRetries-1 {
			m.logger.Error("Archive upload failed, giving up.",
				"gcsObject", objectName,
				"attempts", m.maxRetries,
				"error", err,
			)
			break
		}
		m.logger.Warn("Archive upload failed, will retry.",
			"gcsObject", objectName,
			"attempt", i+1,
			"maxRetries", m.maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("archive upload for %s failed after all retries: %w", objectName, lastErr)
}

func (m *ArchiveMirror) uploadOnce(ctx context.Context, localPath, objectName string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("could not open local file %s: %w", localPath, err)
	}
	defer f.Close()

	writeCtx, cancel := context.WithTimeout(ctx, 50*time.Second)
	defer cancel()

	w := m.client.Bucket(m.bucketName).Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(writeCtx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("io.Copy to GCS failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

// Close releases the storage client.
func (m *ArchiveMirror) Close() error {
	return m.client.Close()
}
