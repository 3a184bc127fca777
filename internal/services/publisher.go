package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Lllllllleong/docchannelbot/internal/catalog"
	"github.com/Lllllllleong/docchannelbot/internal/metrics"
	"github.com/Lllllllleong/docchannelbot/internal/models"
	"github.com/Lllllllleong/docchannelbot/internal/naming"
	"github.com/Lllllllleong/docchannelbot/internal/stamper"
)

// ChannelSender posts a document to the broadcast channel and returns the
// channel message id.
type ChannelSender interface {
	SendDocument(ctx context.Context, path, caption string) (int, error)
}

// DocumentStamper marks a file in place.
type DocumentStamper interface {
	Stamp(path string) stamper.Result
}

// Mirror copies a published file somewhere durable. Optional.
type Mirror interface {
	Mirror(ctx context.Context, localPath, category, fileName string) (string, error)
}

// Stage names the pipeline step a publish failed at.
type Stage string

const (
	StageRename  Stage = "rename"
	StageSend    Stage = "send"
	StageCatalog Stage = "catalog"
	StageExtract Stage = "extract"
)

// PublishError is returned when a publish stops before the catalog entry is
// written. MessageID is set when the document already reached the channel.
type PublishError struct {
	Stage     Stage
	FileName  string
	MessageID int
	Err       error
}

func (e *PublishError) Error() string {
	if e.MessageID != 0 {
		return fmt.Sprintf("publish %q failed at %s (channel message %d): %v", e.FileName, e.Stage, e.MessageID, e.Err)
	}
	return fmt.Sprintf("publish %q failed at %s: %v", e.FileName, e.Stage, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// PublisherConfig holds the channel coordinates used for captions and links.
type PublisherConfig struct {
	ChannelHandle  string
	ChannelBaseURL string
	// ScratchDir is where archives are extracted.
	ScratchDir string
	// MaxMemberBytes and MaxArchiveBytes cap how much an archive may expand
	// to, per member and in total. Zero means the default.
	MaxMemberBytes  int64
	MaxArchiveBytes int64
}

const (
	DefaultMaxMemberBytes  int64 = 50 << 20
	DefaultMaxArchiveBytes int64 = 200 << 20
)

// Publisher runs the rename, stamp, send, catalog and cleanup steps for
// uploaded documents. Calls are serialized: only one file is in flight.
type Publisher struct {
	store   catalog.Store
	sender  ChannelSender
	stamper DocumentStamper
	mirror  Mirror
	config  PublisherConfig
	logger  *slog.Logger
	now     func() time.Time

	mu sync.Mutex
}

// NewPublisher wires the pipeline. mirror may be nil.
func NewPublisher(store catalog.Store, sender ChannelSender, st DocumentStamper, mirror Mirror, config PublisherConfig, logger *slog.Logger) *Publisher {
	if config.MaxMemberBytes <= 0 {
		config.MaxMemberBytes = DefaultMaxMemberBytes
	}
	if config.MaxArchiveBytes <= 0 {
		config.MaxArchiveBytes = DefaultMaxArchiveBytes
	}
	return &Publisher{
		store:   store,
		sender:  sender,
		stamper: st,
		mirror:  mirror,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// PublishOne publishes a single document already saved at localPath.
func (p *Publisher) PublishOne(ctx context.Context, localPath, originalFileName string) (*models.PublishOutcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.publishOne(ctx, localPath, originalFileName)
}

func (p *Publisher) publishOne(ctx context.Context, localPath, originalFileName string) (*models.PublishOutcome, error) {
	start := time.Now()
	defer func() { metrics.PublishDuration.Observe(time.Since(start).Seconds()) }()

	cls := naming.Classify(filepath.Base(originalFileName))
	logCtx := p.logger.With("fileName", originalFileName, "canonicalName", cls.FileName, "category", cls.Category)
	logCtx.Info("Publishing document.")

	outcome := &models.PublishOutcome{OriginalFileName: originalFileName}
	newPath := filepath.Join(filepath.Dir(localPath), cls.FileName)
	currentPath := localPath
	defer func() {
		if warning := removeFile(currentPath); warning != "" {
			logCtx.Warn("Failed to remove local file.", "path", currentPath, "error", warning)
			outcome.Warnings = append(outcome.Warnings, warning)
		}
	}()

	if newPath != localPath {
		if err := os.Rename(localPath, newPath); err != nil {
			return nil, p.fail(logCtx, StageRename, originalFileName, 0, err)
		}
		currentPath = newPath
	}

	stamp := p.stamper.Stamp(newPath)
	outcome.Stamp = stamp.Status
	outcome.StampErr = stamp.Err
	if stamp.Status != models.StampSkipped {
		metrics.StampResultsTotal.WithLabelValues(stamp.Format, string(stamp.Status)).Inc()
	}
	if stamp.Err != nil {
		outcome.Warnings = append(outcome.Warnings, stamp.Err.Error())
	}

	caption := p.caption(ctx, logCtx, cls.FileName)

	messageID, err := p.sender.SendDocument(ctx, newPath, caption)
	if err != nil {
		return nil, p.fail(logCtx, StageSend, originalFileName, 0, err)
	}
	logCtx = logCtx.With("messageId", messageID)

	entry := models.CatalogEntry{
		DisplayName:      cls.FileName,
		Category:         cls.Category,
		ChannelLink:      p.messageLink(messageID),
		ChannelMessageID: messageID,
		InsertedAt:       p.now(),
	}
	if err := p.store.AddCatalogEntry(ctx, entry); err != nil {
		// The message stays in the channel; the log line is what reconciliation works from.
		logCtx.Error("CRITICAL: Document sent but catalog write failed; channel message has no catalog row.",
			"channelLink", entry.ChannelLink)
		return nil, p.fail(logCtx, StageCatalog, originalFileName, messageID, err)
	}
	outcome.Entry = entry
	metrics.PublishedTotal.WithLabelValues(string(entry.Category)).Inc()

	if p.mirror != nil {
		if uri, err := p.mirror.Mirror(ctx, newPath, string(entry.Category), entry.DisplayName); err != nil {
			logCtx.Warn("Archive mirror failed.", "error", err)
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("archive mirror: %v", err))
		} else {
			logCtx.Info("Document mirrored.", "gcsUri", uri)
		}
	}

	logCtx.Info("Document published.", "channelLink", entry.ChannelLink, "stamp", stamp.Status)
	return outcome, nil
}

func (p *Publisher) fail(logCtx *slog.Logger, stage Stage, fileName string, messageID int, err error) error {
	logCtx.Error("Publish failed.", "stage", stage, "error", err)
	metrics.PublishFailuresTotal.WithLabelValues(string(stage)).Inc()
	return &PublishError{Stage: stage, FileName: fileName, MessageID: messageID, Err: err}
}

// caption renders the post caption. Storage errors fall back to the defaults
// rather than blocking the publish.
func (p *Publisher) caption(ctx context.Context, logCtx *slog.Logger, fileName string) string {
	template := models.DefaultCaptionTemplate
	if v, ok, err := p.store.GetSetting(ctx, models.SettingPostCaption); err != nil {
		logCtx.Warn("Could not read caption template, using default.", "error", err)
	} else if ok && v != "" {
		template = v
	}

	footer := ""
	if v, ok, err := p.store.GetSetting(ctx, models.SettingFooterText); err != nil {
		logCtx.Warn("Could not read footer, using none.", "error", err)
	} else if ok {
		footer = v
	}

	return FormatCaption(template, footer, fileName, p.config.ChannelHandle)
}

// FormatCaption substitutes {name} and {channel} and appends the footer after
// a blank line.
func FormatCaption(template, footer, fileName, channel string) string {
	caption := strings.NewReplacer("{name}", fileName, "{channel}", channel).Replace(template)
	if footer != "" {
		caption += "\n\n" + footer
	}
	return caption
}

func (p *Publisher) messageLink(messageID int) string {
	return fmt.Sprintf("%s/%s/%d", p.config.ChannelBaseURL, p.config.ChannelHandle, messageID)
}

// removeFile deletes path; a file that is already gone is not a problem.
func removeFile(path string) string {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err.Error()
	}
	return ""
}
