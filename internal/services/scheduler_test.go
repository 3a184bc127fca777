package services

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/docchannelbot/internal/models"
)

func TestParseScheduleTime(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tashkent")
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)

	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr error
	}{
		{name: "future", input: "02.03.2026 08:30", want: time.Date(2026, 3, 2, 8, 30, 0, 0, loc)},
		{name: "surrounding spaces", input: "  01.03.2026 12:01 ", want: time.Date(2026, 3, 1, 12, 1, 0, 0, loc)},
		{name: "now is not future", input: "01.03.2026 12:00", wantErr: ErrScheduleInPast},
		{name: "past", input: "28.02.2026 23:59", wantErr: ErrScheduleInPast},
		{name: "iso format", input: "2026-03-02 08:30", wantErr: ErrBadScheduleFormat},
		{name: "missing time", input: "02.03.2026", wantErr: ErrBadScheduleFormat},
		{name: "invalid day", input: "32.03.2026 08:30", wantErr: ErrBadScheduleFormat},
		{name: "empty", input: "", wantErr: ErrBadScheduleFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseScheduleTime(tt.input, loc, now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}

type recordedRuns struct {
	mu   sync.Mutex
	jobs []models.ScheduledJob
}

func (r *recordedRuns) run(_ context.Context, job models.ScheduledJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
}

func (r *recordedRuns) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

func TestScheduler_ScheduleRunsAndForgetsJob(t *testing.T) {
	store := newTestStore(t)
	runs := &recordedRuns{}
	s, err := NewScheduler(store, runs.run, time.UTC, discardLogger())
	require.NoError(t, err)
	ctx := context.Background()
	s.Start(ctx)
	t.Cleanup(func() { s.Shutdown() })

	path := writeFile(t, t.TempDir(), "reja.pdf", "x")
	job, err := s.Schedule(ctx, path, "reja.pdf", 55, time.Now().Add(1500*time.Millisecond))
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)

	pending, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, job.ID, pending[0].ID)
	assert.Equal(t, int64(55), pending[0].ChatID)

	require.Eventually(t, func() bool { return runs.count() == 1 }, 5*time.Second, 50*time.Millisecond)
	require.Eventually(t, func() bool {
		pending, err := s.List(ctx)
		return err == nil && len(pending) == 0
	}, 2*time.Second, 50*time.Millisecond)

	runs.mu.Lock()
	defer runs.mu.Unlock()
	assert.Equal(t, "reja.pdf", runs.jobs[0].OriginalFileName)
	assert.Equal(t, path, runs.jobs[0].LocalPath)
}

func TestScheduler_Restore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	due := models.ScheduledJob{
		ID:               "01HZZZZZZZZZZZZZZZZZZZZZZ1",
		LocalPath:        writeFile(t, dir, "due.pdf", "x"),
		OriginalFileName: "due.pdf",
		ChatID:           1,
		RunAt:            time.Now().Add(-time.Hour).UTC(),
	}
	future := models.ScheduledJob{
		ID:               "01HZZZZZZZZZZZZZZZZZZZZZZ2",
		LocalPath:        writeFile(t, dir, "future.pdf", "x"),
		OriginalFileName: "future.pdf",
		ChatID:           1,
		RunAt:            time.Now().Add(time.Hour).UTC(),
	}
	orphan := models.ScheduledJob{
		ID:               "01HZZZZZZZZZZZZZZZZZZZZZZ3",
		LocalPath:        filepath.Join(dir, "gone.pdf"),
		OriginalFileName: "gone.pdf",
		ChatID:           1,
		RunAt:            time.Now().Add(time.Hour).UTC(),
	}
	for _, job := range []models.ScheduledJob{due, future, orphan} {
		require.NoError(t, store.AddScheduledJob(ctx, job))
	}

	runs := &recordedRuns{}
	s, err := NewScheduler(store, runs.run, time.UTC, discardLogger())
	require.NoError(t, err)
	restored, err := s.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, restored)

	s.Start(ctx)
	t.Cleanup(func() { s.Shutdown() })

	require.Eventually(t, func() bool { return runs.count() == 1 }, 5*time.Second, 50*time.Millisecond)
	runs.mu.Lock()
	assert.Equal(t, due.ID, runs.jobs[0].ID)
	runs.mu.Unlock()

	require.Eventually(t, func() bool {
		pending, err := s.List(ctx)
		return err == nil && len(pending) == 1 && pending[0].ID == future.ID
	}, 2*time.Second, 50*time.Millisecond)
}

func TestScheduler_CancelledBeforeRunKeepsJob(t *testing.T) {
	store := newTestStore(t)
	runs := &recordedRuns{}
	s, err := NewScheduler(store, runs.run, time.UTC, discardLogger())
	require.NoError(t, err)

	ctx := context.Background()
	job := models.ScheduledJob{
		ID:               "01HZZZZZZZZZZZZZZZZZZZZZZ4",
		LocalPath:        writeFile(t, t.TempDir(), "reja.pdf", "x"),
		OriginalFileName: "reja.pdf",
		ChatID:           1,
		RunAt:            time.Now().Add(-time.Minute).UTC(),
	}
	require.NoError(t, store.AddScheduledJob(ctx, job))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	s.baseCtx = cancelled
	s.execute(job)

	assert.Equal(t, 0, runs.count())
	pending, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, job.ID, pending[0].ID)
}

func TestScheduler_InterruptedRun(t *testing.T) {
	tests := []struct {
		name       string
		removeFile bool
		wantKept   bool
	}{
		{name: "upload still on disk", removeFile: false, wantKept: true},
		{name: "upload consumed", removeFile: true, wantKept: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			ctx := context.Background()
			job := models.ScheduledJob{
				ID:               "01HZZZZZZZZZZZZZZZZZZZZZZ5",
				LocalPath:        writeFile(t, t.TempDir(), "reja.pdf", "x"),
				OriginalFileName: "reja.pdf",
				ChatID:           1,
				RunAt:            time.Now().Add(-time.Minute).UTC(),
			}
			require.NoError(t, store.AddScheduledJob(ctx, job))

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			run := func(_ context.Context, job models.ScheduledJob) {
				if tt.removeFile {
					require.NoError(t, os.Remove(job.LocalPath))
				}
				cancel()
			}
			s, err := NewScheduler(store, run, time.UTC, discardLogger())
			require.NoError(t, err)
			s.baseCtx = runCtx
			s.execute(job)

			pending, err := s.List(ctx)
			require.NoError(t, err)
			if tt.wantKept {
				require.Len(t, pending, 1)
				assert.Equal(t, job.ID, pending[0].ID)
			} else {
				assert.Empty(t, pending)
			}
		})
	}
}
