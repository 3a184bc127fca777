// Package stamper marks documents in place with the channel attribution
// before they are published. The format is chosen by file extension.
package stamper

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Lllllllleong/docchannelbot/internal/models"
)

// Attribution is the text written into spreadsheets and word documents.
const Attribution = "@ish_reja_uz kanali uchun maxsus tayyorlandi"

// WatermarkText is drawn diagonally over every PDF page.
const WatermarkText = "@ish_reja_uz"

// Result reports what happened to one file. A failed stamp leaves the file in
// whatever state the format library produced.
type Result struct {
	Status models.StampStatus
	Format string
	Err    error
}

// Stamper dispatches to the per-format stamping routines.
type Stamper struct {
	logger *slog.Logger
}

// New creates a Stamper that logs through logger.
func New(logger *slog.Logger) *Stamper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stamper{logger: logger}
}

// Stamp modifies the file at path in place. It never returns an error: format
// failures are reported as StampFailed so the caller can carry on publishing.
func (s *Stamper) Stamp(path string) Result {
	ext := strings.ToLower(filepath.Ext(path))

	var (
		format string
		err    error
	)
	switch ext {
	case ".xlsx", ".xls":
		format = "spreadsheet"
		err = stampSpreadsheet(path)
	case ".pdf":
		format = "pdf"
		err = stampPDF(path)
	case ".docx":
		format = "docx"
		err = stampDocx(path)
	default:
		return Result{Status: models.StampSkipped}
	}

	if err != nil {
		s.logger.Warn("Stamping failed, publishing unstamped file.", "path", path, "format", format, "error", err)
		return Result{Status: models.StampFailed, Format: format, Err: fmt.Errorf("%s stamp: %w", format, err)}
	}
	s.logger.Debug("Document stamped.", "path", path, "format", format)
	return Result{Status: models.StampApplied, Format: format}
}
