package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
	"github.com/yplo6403/rcsjta-sub005/internal/syncer"
)

// Transport is a mock of syncer.Transport.
type Transport struct {
	mock.Mock
}

var _ syncer.Transport = (*Transport)(nil)

func (m *Transport) ListStatus(ctx context.Context) ([]*models.RemoteFolder, error) {
	args := m.Called(ctx)
	folders, _ := args.Get(0).([]*models.RemoteFolder)
	return folders, args.Error(1)
}

func (m *Transport) SelectCondstore(ctx context.Context, folder string) (*models.RemoteFolder, error) {
	args := m.Called(ctx, folder)
	remote, _ := args.Get(0).(*models.RemoteFolder)
	return remote, args.Error(1)
}

func (m *Transport) FetchFlags(ctx context.Context, folder string, maxUID uint32, modseq uint64) ([]*models.FlagChange, error) {
	args := m.Called(ctx, folder, maxUID, modseq)
	changes, _ := args.Get(0).([]*models.FlagChange)
	return changes, args.Error(1)
}

func (m *Transport) FetchHeaders(ctx context.Context, folder string, from, to uint32) ([]*models.Message, error) {
	args := m.Called(ctx, folder, from, to)
	messages, _ := args.Get(0).([]*models.Message)
	return messages, args.Error(1)
}

func (m *Transport) FetchMessage(ctx context.Context, folder string, uid uint32) (*models.Message, error) {
	args := m.Called(ctx, folder, uid)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func (m *Transport) AddFlags(ctx context.Context, uids []uint32, flag models.Flag) error {
	args := m.Called(ctx, uids, flag)
	return args.Error(0)
}

func (m *Transport) RemoveFlags(ctx context.Context, uids []uint32, flag models.Flag) error {
	args := m.Called(ctx, uids, flag)
	return args.Error(0)
}

func (m *Transport) Append(ctx context.Context, folder string, flags []models.Flag, date time.Time, payload []byte) (uint32, error) {
	args := m.Called(ctx, folder, flags, date, payload)
	uid, _ := args.Get(0).(uint32)
	return uid, args.Error(1)
}
