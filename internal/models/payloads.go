package models

import "time"

// PendingUpload is a downloaded document waiting for the admin to decide when
// it should be published. It lives only in the bot's session store.
type PendingUpload struct {
	LocalPath        string
	OriginalFileName string
}

// ScheduledJob is a deferred publish. It is persisted so a restart can
// re-register it with the scheduler.
type ScheduledJob struct {
	ID               string    `firestore:"id"`
	LocalPath        string    `firestore:"localPath"`
	OriginalFileName string    `firestore:"originalFileName"`
	ChatID           int64     `firestore:"chatId"`
	RunAt            time.Time `firestore:"runAt"`
}

// StampStatus records what the stamper did to a file.
type StampStatus string

const (
	StampApplied StampStatus = "applied"
	StampSkipped StampStatus = "skipped"
	StampFailed  StampStatus = "failed"
)

// PublishOutcome is the result of publishing one file. Warnings carry the
// non-fatal problems (stamping, mirroring, cleanup) that did not stop publishing.
type PublishOutcome struct {
	OriginalFileName string
	Entry            CatalogEntry
	Stamp            StampStatus
	StampErr         error
	Warnings         []string
}

// MemberFailure is one archive member that could not be published.
type MemberFailure struct {
	MemberName string
	Err        error
}

// UploadReport summarizes a top-level upload: a single file or every member
// of an archive.
type UploadReport struct {
	OriginalFileName string
	IsArchive        bool
	Published        []*PublishOutcome
	Failures         []MemberFailure
}

// StampWarnings counts published files whose stamping failed.
func (r *UploadReport) StampWarnings() int {
	n := 0
	for _, o := range r.Published {
		if o.Stamp == StampFailed {
			n++
		}
	}
	return n
}
