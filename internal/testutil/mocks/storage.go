package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
	"github.com/yplo6403/rcsjta-sub005/internal/storage"
	"github.com/yplo6403/rcsjta-sub005/internal/syncer"
)

// Storage is a mock of syncer.Storage.
type Storage struct {
	mock.Mock
}

var _ syncer.Storage = (*Storage)(nil)

func (m *Storage) GetLocalFolder(ctx context.Context, name string) (*models.LocalFolder, error) {
	args := m.Called(ctx, name)
	folder, _ := args.Get(0).(*models.LocalFolder)
	return folder, args.Error(1)
}

func (m *Storage) GetLocalFolders(ctx context.Context) ([]*models.LocalFolder, error) {
	args := m.Called(ctx)
	folders, _ := args.Get(0).([]*models.LocalFolder)
	return folders, args.Error(1)
}

func (m *Storage) PurgeFolder(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *Storage) RemoveFolder(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *Storage) SaveLocalFolder(ctx context.Context, folder *models.LocalFolder) error {
	return m.Called(ctx, folder).Error(0)
}

func (m *Storage) ApplyFlagChanges(ctx context.Context, changes []*models.FlagChange) error {
	return m.Called(ctx, changes).Error(0)
}

func (m *Storage) FilterNewMessages(ctx context.Context, messages []*models.Message) ([]uint32, error) {
	args := m.Called(ctx, messages)
	uids, _ := args.Get(0).([]uint32)
	return uids, args.Error(1)
}

func (m *Storage) CreateMessages(ctx context.Context, messages []*models.Message) error {
	return m.Called(ctx, messages).Error(0)
}

func (m *Storage) GetLocalFlagChanges(ctx context.Context, folder string) ([]*models.FlagChange, error) {
	args := m.Called(ctx, folder)
	changes, _ := args.Get(0).([]*models.FlagChange)
	return changes, args.Error(1)
}

func (m *Storage) ConfirmLocalFlagChanges(ctx context.Context, changes []*models.FlagChange) error {
	return m.Called(ctx, changes).Error(0)
}

func (m *Storage) GetMessagesToPush(ctx context.Context, folder string) ([]*storage.PushMessage, error) {
	args := m.Called(ctx, folder)
	messages, _ := args.Get(0).([]*storage.PushMessage)
	return messages, args.Error(1)
}

func (m *Storage) MarkPushed(ctx context.Context, record *models.MessageRecord, uid uint32) error {
	return m.Called(ctx, record, uid).Error(0)
}
