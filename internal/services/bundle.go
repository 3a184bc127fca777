package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/Lllllllleong/docchannelbot/internal/metrics"
	"github.com/Lllllllleong/docchannelbot/internal/models"
)

// ErrMemberTooLarge is recorded for an archive member that expands past the
// per-member cap or past what is left of the archive's total budget.
var ErrMemberTooLarge = errors.New("archive member exceeds size limit")

// IsArchive reports whether an uploaded file is fanned out instead of
// published directly.
func IsArchive(fileName string) bool {
	return strings.EqualFold(filepath.Ext(fileName), ".zip")
}

// PublishUpload publishes a top-level upload. Archives are extracted and
// every member is published on its own; a failing member is recorded in the
// report and its siblings still go out.
func (p *Publisher) PublishUpload(ctx context.Context, localPath, originalFileName string) (*models.UploadReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	report := &models.UploadReport{OriginalFileName: originalFileName}
	if !IsArchive(originalFileName) {
		outcome, err := p.publishOne(ctx, localPath, originalFileName)
		if err != nil {
			return report, err
		}
		report.Published = append(report.Published, outcome)
		return report, nil
	}

	report.IsArchive = true
	logCtx := p.logger.With("archive", originalFileName)
	defer func() {
		if warning := removeFile(localPath); warning != "" {
			logCtx.Warn("Failed to remove archive.", "error", warning)
		}
	}()

	scratch, err := os.MkdirTemp(p.config.ScratchDir, "bundle-*")
	if err != nil {
		return report, p.fail(logCtx, StageExtract, originalFileName, 0, fmt.Errorf("failed to create scratch dir: %w", err))
	}
	defer os.RemoveAll(scratch)

	failures, err := extractArchive(localPath, scratch, p.config.MaxMemberBytes, p.config.MaxArchiveBytes)
	if err != nil {
		return report, p.fail(logCtx, StageExtract, originalFileName, 0, err)
	}
	for _, f := range failures {
		logCtx.Warn("Archive member could not be extracted.", "member", f.MemberName, "error", f.Err)
		metrics.ArchiveMembersTotal.WithLabelValues("failed").Inc()
	}
	report.Failures = append(report.Failures, failures...)

	members, err := listMembers(scratch)
	if err != nil {
		return report, p.fail(logCtx, StageExtract, originalFileName, 0, err)
	}
	logCtx.Info("Archive extracted.", "members", len(members), "extractFailures", len(failures))

	for _, member := range members {
		if ctx.Err() != nil {
			report.Failures = append(report.Failures, models.MemberFailure{MemberName: member.name, Err: ctx.Err()})
			continue
		}
		outcome, err := p.publishOne(ctx, member.path, member.name)
		if err != nil {
			report.Failures = append(report.Failures, models.MemberFailure{MemberName: member.name, Err: err})
			metrics.ArchiveMembersTotal.WithLabelValues("failed").Inc()
			continue
		}
		report.Published = append(report.Published, outcome)
		metrics.ArchiveMembersTotal.WithLabelValues("published").Inc()
	}

	logCtx.Info("Archive processed.", "published", len(report.Published), "failed", len(report.Failures))
	return report, nil
}

type archiveMember struct {
	name string
	path string
}

// extractArchive unpacks every regular, visible member of the zip at src
// into dst. Members that fail individually are returned; the error is only
// set when the archive itself cannot be read. No member is written past
// maxMember bytes and the extracted tree never exceeds maxTotal bytes.
func extractArchive(src, dst string, maxMember, maxTotal int64) ([]models.MemberFailure, error) {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer zr.Close()

	var failures []models.MemberFailure
	remaining := maxTotal
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		target, ok := memberTarget(dst, f.Name)
		if !ok {
			failures = append(failures, models.MemberFailure{
				MemberName: f.Name,
				Err:        fmt.Errorf("member path escapes archive root"),
			})
			continue
		}
		if skipMember(f.Name) {
			continue
		}
		n, err := extractMember(f, target, min(maxMember, remaining))
		if err != nil {
			os.Remove(target)
			failures = append(failures, models.MemberFailure{MemberName: f.Name, Err: err})
			continue
		}
		remaining -= n
	}
	return failures, nil
}

// memberTarget resolves a member name under dst, refusing names that would
// land outside it.
func memberTarget(dst, name string) (string, bool) {
	root := filepath.Clean(dst) + string(os.PathSeparator)
	target := filepath.Join(dst, filepath.FromSlash(name))
	if !strings.HasPrefix(target, root) {
		return "", false
	}
	return target, true
}

// extractMember writes f to target and returns the bytes written. The
// header's declared size is not trusted; the copy itself stops at limit.
func extractMember(f *zip.File, target string, limit int64) (int64, error) {
	if f.UncompressedSize64 > uint64(limit) {
		return 0, fmt.Errorf("%w: declares %d bytes, limit %d", ErrMemberTooLarge, f.UncompressedSize64, limit)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}
	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("failed to open member: %w", err)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	n, err := io.Copy(out, io.LimitReader(rc, limit+1))
	if err != nil {
		out.Close()
		return n, fmt.Errorf("failed to extract member: %w", err)
	}
	if n > limit {
		out.Close()
		return n, fmt.Errorf("%w: expanded past %d bytes", ErrMemberTooLarge, limit)
	}
	return n, out.Close()
}

// listMembers walks the extracted tree in lexical order.
func listMembers(root string) ([]archiveMember, error) {
	var members []archiveMember
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if isHidden(d.Name()) || d.Name() == "__MACOSX" {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			members = append(members, archiveMember{name: d.Name(), path: path})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk extracted archive: %w", err)
	}
	return members, nil
}

func skipMember(name string) bool {
	for _, part := range strings.Split(name, "/") {
		if part == "__MACOSX" || isHidden(part) {
			return true
		}
	}
	return false
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
