// Package syncer reconciles local folders with the message store using
// UIDVALIDITY, UIDNEXT and MODSEQ deltas.
package syncer

import (
	"context"
	"time"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
	"github.com/yplo6403/rcsjta-sub005/internal/storage"
)

// Transport is the message store session a sync runs on.
type Transport interface {
	ListStatus(ctx context.Context) ([]*models.RemoteFolder, error)
	SelectCondstore(ctx context.Context, folder string) (*models.RemoteFolder, error)
	FetchFlags(ctx context.Context, folder string, maxUID uint32, modseq uint64) ([]*models.FlagChange, error)
	FetchHeaders(ctx context.Context, folder string, from, to uint32) ([]*models.Message, error)
	FetchMessage(ctx context.Context, folder string, uid uint32) (*models.Message, error)
	AddFlags(ctx context.Context, uids []uint32, flag models.Flag) error
	RemoveFlags(ctx context.Context, uids []uint32, flag models.Flag) error
	Append(ctx context.Context, folder string, flags []models.Flag, date time.Time, payload []byte) (uint32, error)
}

// Storage is the local side of a sync. Only its implementation writes records.
type Storage interface {
	GetLocalFolder(ctx context.Context, name string) (*models.LocalFolder, error)
	GetLocalFolders(ctx context.Context) ([]*models.LocalFolder, error)
	PurgeFolder(ctx context.Context, name string) error
	RemoveFolder(ctx context.Context, name string) error
	SaveLocalFolder(ctx context.Context, folder *models.LocalFolder) error

	ApplyFlagChanges(ctx context.Context, changes []*models.FlagChange) error
	FilterNewMessages(ctx context.Context, messages []*models.Message) ([]uint32, error)
	CreateMessages(ctx context.Context, messages []*models.Message) error

	GetLocalFlagChanges(ctx context.Context, folder string) ([]*models.FlagChange, error)
	ConfirmLocalFlagChanges(ctx context.Context, changes []*models.FlagChange) error

	GetMessagesToPush(ctx context.Context, folder string) ([]*storage.PushMessage, error)
	MarkPushed(ctx context.Context, record *models.MessageRecord, uid uint32) error
}

// FolderFilter tells which remote folders belong to the CMS tree.
type FolderFilter interface {
	Manages(folder string) bool
}

var _ Storage = (*storage.Adapter)(nil)
