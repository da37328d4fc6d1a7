package syncer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yplo6403/rcsjta-sub005/internal/imap"
	"github.com/yplo6403/rcsjta-sub005/internal/models"
	"github.com/yplo6403/rcsjta-sub005/internal/syncer"
	"github.com/yplo6403/rcsjta-sub005/internal/testutil/mocks"
)

const folder = "Default/tel:+33600000001"

var errNo = &imap.ProtocolError{Command: "FETCH", Status: "NO", Info: "No such message"}

func newProcessor(t *testing.T) (*syncer.Processor, *mocks.Transport, *mocks.Storage) {
	t.Helper()
	transport := &mocks.Transport{}
	store := &mocks.Storage{}
	t.Cleanup(func() {
		transport.AssertExpectations(t)
		store.AssertExpectations(t)
	})
	return syncer.NewProcessor(transport, store, logrus.New()), transport, store
}

func TestProcessor_UIDValidityChange(t *testing.T) {
	ctx := context.Background()
	p, transport, store := newProcessor(t)
	var events []string

	transport.On("SelectCondstore", ctx, folder).Return(&models.RemoteFolder{Name: folder, UIDNext: 3, UIDValidity: 1437039676, HighestModseq: 4}, nil)
	store.On("GetLocalFolder", ctx, folder).Return(&models.LocalFolder{Name: folder, MaxUID: 5, Modseq: 10, UIDValidity: 1437039675}, nil)
	store.On("PurgeFolder", ctx, folder).Run(func(mock.Arguments) { events = append(events, "purge") }).Return(nil)
	transport.On("FetchHeaders", ctx, folder, uint32(1), uint32(2)).Run(func(mock.Arguments) { events = append(events, "fetch-headers") }).Return([]*models.Message{}, nil)
	store.On("FilterNewMessages", ctx, []*models.Message{}).Return([]uint32(nil), nil)
	store.On("GetLocalFlagChanges", ctx, folder).Return([]*models.FlagChange(nil), nil)
	store.On("SaveLocalFolder", ctx, &models.LocalFolder{Name: folder, MaxUID: 2, Modseq: 4, UIDValidity: 1437039676}).Return(nil)

	require.NoError(t, p.SyncFolder(ctx, folder))
	assert.Equal(t, []string{"purge", "fetch-headers"}, events)
	transport.AssertNotCalled(t, "FetchFlags", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessor_MissingFolderIsRemoved(t *testing.T) {
	ctx := context.Background()
	p, transport, store := newProcessor(t)

	transport.On("SelectCondstore", ctx, folder).Return(nil, &imap.ProtocolError{Command: "SELECT", Status: "NO"})
	store.On("RemoveFolder", ctx, folder).Return(nil)

	require.NoError(t, p.SyncFolder(ctx, folder))
}

func TestProcessor_FailureKeepsCounters(t *testing.T) {
	ctx := context.Background()
	p, transport, store := newProcessor(t)

	transport.On("SelectCondstore", ctx, folder).Return(&models.RemoteFolder{Name: folder, UIDNext: 9, UIDValidity: 7, HighestModseq: 20}, nil)
	store.On("GetLocalFolder", ctx, folder).Return(&models.LocalFolder{Name: folder, MaxUID: 4, Modseq: 10, UIDValidity: 7}, nil)
	transport.On("FetchFlags", ctx, folder, uint32(4), uint64(10)).Return(nil, errors.New("connection reset by peer"))

	err := p.SyncFolder(ctx, folder)
	require.Error(t, err)
	assert.False(t, imap.IsNo(err))
	store.AssertNotCalled(t, "SaveLocalFolder", mock.Anything, mock.Anything)
}

func TestProcessor_FullPass(t *testing.T) {
	ctx := context.Background()
	p, transport, store := newProcessor(t)

	remoteChanges := []*models.FlagChange{models.NewFlagChange(folder, models.FlagSeen, models.FlagAdd, []uint32{1})}
	headers := []*models.Message{{Folder: folder, UID: 4}, {Folder: folder, UID: 3}}
	body := &models.Message{Folder: folder, UID: 4, Payload: []byte("body")}
	seen := models.NewFlagChange(folder, models.FlagSeen, models.FlagAdd, []uint32{1})
	deleted := models.NewFlagChange(folder, models.FlagDeleted, models.FlagAdd, []uint32{2})

	transport.On("SelectCondstore", ctx, folder).Return(&models.RemoteFolder{Name: folder, UIDNext: 5, UIDValidity: 7, HighestModseq: 12}, nil)
	store.On("GetLocalFolder", ctx, folder).Return(&models.LocalFolder{Name: folder, MaxUID: 2, Modseq: 10, UIDValidity: 7}, nil)
	transport.On("FetchFlags", ctx, folder, uint32(2), uint64(10)).Return(remoteChanges, nil)
	store.On("ApplyFlagChanges", ctx, remoteChanges).Return(nil)
	transport.On("FetchHeaders", ctx, folder, uint32(3), uint32(4)).Return(headers, nil)
	store.On("FilterNewMessages", ctx, headers).Return([]uint32{4, 3}, nil)
	transport.On("FetchMessage", ctx, folder, uint32(4)).Return(body, nil)
	transport.On("FetchMessage", ctx, folder, uint32(3)).Return(nil, errNo)
	store.On("CreateMessages", ctx, []*models.Message{body}).Return(nil)
	store.On("GetLocalFlagChanges", ctx, folder).Return([]*models.FlagChange{deleted, seen}, nil)
	transport.On("AddFlags", ctx, []uint32{2}, models.FlagDeleted).Return(errNo)
	transport.On("AddFlags", ctx, []uint32{1}, models.FlagSeen).Return(nil)
	store.On("ConfirmLocalFlagChanges", ctx, []*models.FlagChange{seen}).Return(nil)
	store.On("SaveLocalFolder", ctx, &models.LocalFolder{Name: folder, MaxUID: 4, Modseq: 12, UIDValidity: 7}).Return(nil)

	require.NoError(t, p.SyncFolder(ctx, folder))
}

func TestProcessor_UpToDateFolder(t *testing.T) {
	ctx := context.Background()
	p, transport, store := newProcessor(t)

	transport.On("SelectCondstore", ctx, folder).Return(&models.RemoteFolder{Name: folder, UIDNext: 5, UIDValidity: 7, HighestModseq: 12}, nil)
	store.On("GetLocalFolder", ctx, folder).Return(&models.LocalFolder{Name: folder, MaxUID: 4, Modseq: 12, UIDValidity: 7}, nil)
	store.On("GetLocalFlagChanges", ctx, folder).Return([]*models.FlagChange(nil), nil)
	store.On("SaveLocalFolder", ctx, &models.LocalFolder{Name: folder, MaxUID: 4, Modseq: 12, UIDValidity: 7}).Return(nil)

	require.NoError(t, p.SyncFolder(ctx, folder))
	transport.AssertNotCalled(t, "FetchFlags", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	transport.AssertNotCalled(t, "FetchHeaders", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
