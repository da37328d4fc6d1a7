// Package storage is the only writer of message records and local folders.
// It turns events observed on the message store into local message
// lifecycle transitions and hands pending local changes back for upload.
package storage

import (
	"context"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
)

// RecordStore persists local folders and message records.
// Lookups that find nothing return (nil, nil).
// Implementations must make each call atomic.
type RecordStore interface {
	GetLocalFolder(ctx context.Context, name string) (*models.LocalFolder, error)
	GetLocalFolders(ctx context.Context) ([]*models.LocalFolder, error)
	SaveLocalFolder(ctx context.Context, folder *models.LocalFolder) error
	DeleteLocalFolder(ctx context.Context, name string) error

	GetRecordByUID(ctx context.Context, folder string, uid uint32) (*models.MessageRecord, error)
	GetRecordByCorrelator(ctx context.Context, folder, correlator string) (*models.MessageRecord, error)
	GetRecordByMessageID(ctx context.Context, messageID string) (*models.MessageRecord, error)
	// SaveRecord inserts or updates a whole record by ID.
	SaveRecord(ctx context.Context, record *models.MessageRecord) error
	// UpdateReadStatus sets the read status of a record only while it is from,
	// and reports whether the record changed.
	UpdateReadStatus(ctx context.Context, id string, from, to models.ReadStatus) (bool, error)
	// UpdateDeleteStatus sets the delete status of a record only while it is
	// from, and reports whether the record changed.
	UpdateDeleteStatus(ctx context.Context, id string, from, to models.DeleteStatus) (bool, error)
	// MarkRecordPushed sets the push status to PUSHED and, when uid is not
	// zero, the UID. Read and delete statuses are left untouched.
	MarkRecordPushed(ctx context.Context, id string, uid uint32) error
	// ResetFolderUIDs forgets the UIDs of a folder's records, keeping them for re-correlation.
	ResetFolderUIDs(ctx context.Context, folder string) error
	// DeleteFolderRecords drops a folder's records except those still waiting to be pushed.
	DeleteFolderRecords(ctx context.Context, folder string) error

	// GetPendingFlagRecords returns records with a UID whose read or delete
	// report is requested. An empty folder means every folder.
	GetPendingFlagRecords(ctx context.Context, folder string) ([]*models.MessageRecord, error)
	// GetPushRequested returns records waiting to be pushed. An empty folder means every folder.
	GetPushRequested(ctx context.Context, folder string) ([]*models.MessageRecord, error)
}
