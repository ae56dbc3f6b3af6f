// Package models holds the persistence-level types shared by repositories
// and services.
package models

import "time"

// Visibility of a stored dataitem. Private items are never tag-indexed and
// never eligible for permanent storage.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// StorageRecord binds a dataitem id to its location in the temporal store.
// Written exactly once per id at ingestion; never mutated.
type StorageRecord struct {
	Seq         int64 // ingestion sequence, the pagination position key
	DataitemID  string
	Visibility  Visibility
	Bucket      string
	StorageKey  string
	Name        string // optional caller-supplied name (private uploads)
	Folder      string // optional caller-supplied folder (private uploads)
	ContentType string
	Size        int64
	CreatedAt   time.Time
}

// Submission states of a migration record.
const (
	SubmissionUnsubmitted = "unsubmitted"
	SubmissionSubmitted   = "submitted"
	SubmissionFailed      = "failed"
)

// MigrationRecord tracks the permanent-storage submission of one dataitem.
// State moves to submitted at most once; failed records stay retryable.
type MigrationRecord struct {
	DataitemID string
	State      string
	Receipt    []byte // raw bundler receipt JSON, set once submitted
	Size       int64  // envelope size at submission time
	UpdatedAt  time.Time
}
