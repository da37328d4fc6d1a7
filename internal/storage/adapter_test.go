package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
	"github.com/yplo6403/rcsjta-sub005/internal/storage"
	"github.com/yplo6403/rcsjta-sub005/internal/testutil"
	"github.com/yplo6403/rcsjta-sub005/internal/testutil/mocks"
)

const folder = "Default/tel:+33600000001"

func smsHeader(correlator string) []byte {
	return []byte("Message-Context: pager-message\r\nMessage-Correlator: " + correlator + "\r\nContent-Type: text/plain\r\n\r\n")
}

func smsPayload(correlator, text string) []byte {
	return append(smsHeader(correlator), []byte(text)...)
}

func uidPtr(uid uint32) *uint32 {
	return &uid
}

func newAdapter(t *testing.T) (*storage.Adapter, *testutil.MemoryStore, *mocks.MessageHandler) {
	t.Helper()
	store := testutil.NewMemoryStore()
	sms := &mocks.MessageHandler{}
	t.Cleanup(func() { sms.AssertExpectations(t) })
	return storage.NewAdapter(store, storage.Handlers{SMS: sms}, logrus.New()), store, sms
}

func seedRecord(t *testing.T, store *testutil.MemoryStore, rec models.MessageRecord) *models.MessageRecord {
	t.Helper()
	if rec.Folder == "" {
		rec.Folder = folder
	}
	if rec.Type == "" {
		rec.Type = models.MessageTypeSMS
	}
	if rec.ReadStatus == "" {
		rec.ReadStatus = models.ReadStatusUnread
	}
	if rec.DeleteStatus == "" {
		rec.DeleteStatus = models.DeleteStatusNotDeleted
	}
	if rec.PushStatus == "" {
		rec.PushStatus = models.PushStatusPushed
	}
	require.NoError(t, store.SaveRecord(context.Background(), &rec))
	return &rec
}

func TestAdapter_ApplyFlagChanges(t *testing.T) {
	ctx := context.Background()

	t.Run("delete is applied once and notified once", func(t *testing.T) {
		adapter, store, sms := newAdapter(t)
		seedRecord(t, store, models.MessageRecord{ID: "r1", UID: uidPtr(4), MessageID: "m1", Correlator: "c1"})
		sms.On("OnDeletedRemotely", ctx, mock.MatchedBy(func(r *models.MessageRecord) bool { return r.MessageID == "m1" })).Return(nil).Once()

		change := models.NewFlagChange(folder, models.FlagDeleted, models.FlagAdd, []uint32{4})
		require.NoError(t, adapter.ApplyFlagChanges(ctx, []*models.FlagChange{change}))
		first := store.Records()

		require.NoError(t, adapter.ApplyFlagChanges(ctx, []*models.FlagChange{change}))
		second := store.Records()

		require.Len(t, second, 1)
		assert.Equal(t, models.DeleteStatusDeleted, second[0].DeleteStatus)
		assert.Equal(t, first[0].DeleteStatus, second[0].DeleteStatus)
		assert.Equal(t, first[0].ReadStatus, second[0].ReadStatus)
	})

	t.Run("deleted dominates seen", func(t *testing.T) {
		adapter, store, sms := newAdapter(t)
		seedRecord(t, store, models.MessageRecord{ID: "r1", UID: uidPtr(2), MessageID: "m1", Correlator: "c1"})
		sms.On("OnDeletedRemotely", ctx, mock.Anything).Return(nil).Once()

		changes := []*models.FlagChange{
			models.NewFlagChange(folder, models.FlagDeleted, models.FlagAdd, []uint32{2}),
			models.NewFlagChange(folder, models.FlagSeen, models.FlagAdd, []uint32{2}),
		}
		require.NoError(t, adapter.ApplyFlagChanges(ctx, changes))

		rec, err := store.GetRecordByMessageID(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, models.DeleteStatusDeleted, rec.DeleteStatus)
		assert.Equal(t, models.ReadStatusRead, rec.ReadStatus)
		sms.AssertNotCalled(t, "OnReadRemotely", mock.Anything, mock.Anything)
	})

	t.Run("seen notifies the handler", func(t *testing.T) {
		adapter, store, sms := newAdapter(t)
		seedRecord(t, store, models.MessageRecord{ID: "r1", UID: uidPtr(2), MessageID: "m1", Correlator: "c1"})
		sms.On("OnReadRemotely", ctx, mock.Anything).Return(errors.New("provider busy")).Once()

		change := models.NewFlagChange(folder, models.FlagSeen, models.FlagAdd, []uint32{2})
		require.NoError(t, adapter.ApplyFlagChanges(ctx, []*models.FlagChange{change}))

		rec, _ := store.GetRecordByMessageID(ctx, "m1")
		assert.Equal(t, models.ReadStatusRead, rec.ReadStatus)
	})

	t.Run("pending local report settles without notification", func(t *testing.T) {
		adapter, store, _ := newAdapter(t)
		seedRecord(t, store, models.MessageRecord{ID: "r1", UID: uidPtr(2), MessageID: "m1", Correlator: "c1", ReadStatus: models.ReadStatusReadReportRequested})

		change := models.NewFlagChange(folder, models.FlagSeen, models.FlagAdd, []uint32{2})
		require.NoError(t, adapter.ApplyFlagChanges(ctx, []*models.FlagChange{change}))

		rec, _ := store.GetRecordByMessageID(ctx, "m1")
		assert.Equal(t, models.ReadStatusRead, rec.ReadStatus)
	})

	t.Run("unknown UIDs and other flags are skipped", func(t *testing.T) {
		adapter, store, _ := newAdapter(t)
		changes := []*models.FlagChange{
			models.NewFlagChange(folder, models.FlagDeleted, models.FlagAdd, []uint32{99}),
			models.NewFlagChange(folder, models.Flag(`\Flagged`), models.FlagAdd, []uint32{1}),
		}
		require.NoError(t, adapter.ApplyFlagChanges(ctx, changes))
		assert.Empty(t, store.Records())
	})
}

func TestAdapter_FilterNewMessages(t *testing.T) {
	ctx := context.Background()
	adapter, store, sms := newAdapter(t)

	seedRecord(t, store, models.MessageRecord{ID: "pushed", MessageID: "local-1", Correlator: "corr-local", PushStatus: models.PushStatusPushed})
	seedRecord(t, store, models.MessageRecord{ID: "known", UID: uidPtr(3), MessageID: "local-2", Correlator: "corr-known"})
	sms.On("OnReadRemotely", ctx, mock.MatchedBy(func(r *models.MessageRecord) bool { return r.MessageID == "local-2" })).Return(nil).Once()

	messages := []*models.Message{
		{Folder: folder, UID: 9, Header: smsHeader("corr-new")},
		{Folder: folder, UID: 8, Header: smsHeader("corr-gone"), Flags: []models.Flag{models.FlagDeleted}},
		{Folder: folder, UID: 7, Header: smsHeader("corr-local")},
		{Folder: folder, UID: 6, Header: []byte("Subject: not a cms message\r\n\r\n")},
		{Folder: folder, UID: 5, Header: []byte("Message-Context: pager-message\r\n\r\n")},
		{Folder: folder, UID: 3, Header: smsHeader("corr-known"), Flags: []models.Flag{models.FlagSeen}},
	}

	accepted, err := adapter.FilterNewMessages(ctx, messages)
	require.NoError(t, err)
	assert.Equal(t, []uint32{9}, accepted)

	correlated, err := store.GetRecordByMessageID(ctx, "local-1")
	require.NoError(t, err)
	require.True(t, correlated.HasUID())
	assert.Equal(t, uint32(7), *correlated.UID)
	assert.Equal(t, models.PushStatusPushed, correlated.PushStatus)

	known, _ := store.GetRecordByMessageID(ctx, "local-2")
	assert.Equal(t, models.ReadStatusRead, known.ReadStatus)
}

func TestAdapter_CreateMessages(t *testing.T) {
	ctx := context.Background()
	adapter, store, sms := newAdapter(t)

	sms.On("OnRemoteMessage", ctx, mock.MatchedBy(func(m *storage.RemoteMessage) bool { return m.Correlator == "c-9" })).Return("native-9", nil).Once()
	sms.On("OnRemoteMessage", ctx, mock.MatchedBy(func(m *storage.RemoteMessage) bool { return m.Correlator == "c-bad" })).Return("", errors.New("disk full")).Once()

	messages := []*models.Message{
		{Folder: folder, UID: 9, Flags: []models.Flag{models.FlagSeen}, Payload: smsPayload("c-9", "hi")},
		{Folder: folder, UID: 10, Payload: smsPayload("c-bad", "hi")},
		{Folder: folder, UID: 11, Payload: []byte("Subject: junk\r\n\r\nbody")},
	}
	require.NoError(t, adapter.CreateMessages(ctx, messages))
	// Creating again is a no-op for stored UIDs.
	require.NoError(t, adapter.CreateMessages(ctx, messages[:1]))

	records := store.Records()
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "native-9", rec.MessageID)
	assert.Equal(t, uint32(9), *rec.UID)
	assert.Equal(t, models.PushStatusPushed, rec.PushStatus)
	assert.Equal(t, models.ReadStatusRead, rec.ReadStatus)
	assert.Equal(t, models.DeleteStatusNotDeleted, rec.DeleteStatus)
	assert.Equal(t, "c-9", rec.Correlator)
}

func TestAdapter_LocalFlagChanges(t *testing.T) {
	ctx := context.Background()
	adapter, store, _ := newAdapter(t)

	seedRecord(t, store, models.MessageRecord{ID: "a", UID: uidPtr(1), MessageID: "m1", Correlator: "c1"})
	seedRecord(t, store, models.MessageRecord{ID: "b", UID: uidPtr(2), MessageID: "m2", Correlator: "c2"})
	seedRecord(t, store, models.MessageRecord{ID: "c", MessageID: "m3", Correlator: "c3", PushStatus: models.PushStatusPushRequested})

	require.NoError(t, adapter.MarkReadLocally(ctx, "m1"))
	require.NoError(t, adapter.MarkReadLocally(ctx, "m2"))
	require.NoError(t, adapter.MarkDeletedLocally(ctx, "m2"))
	require.NoError(t, adapter.MarkReadLocally(ctx, "m3"))
	assert.ErrorIs(t, adapter.MarkDeletedLocally(ctx, "nope"), storage.ErrRecordNotFound)

	changes, err := adapter.GetLocalFlagChanges(ctx, folder)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, models.FlagDeleted, changes[0].Flag)
	assert.Equal(t, []uint32{2}, changes[0].UIDs)
	assert.Equal(t, models.FlagSeen, changes[1].Flag)
	assert.Equal(t, []uint32{1, 2}, changes[1].UIDs)

	require.NoError(t, adapter.ConfirmLocalFlagChanges(ctx, changes))
	changes, err = adapter.GetLocalFlagChanges(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, changes)

	m2, _ := store.GetRecordByMessageID(ctx, "m2")
	assert.Equal(t, models.ReadStatusRead, m2.ReadStatus)
	assert.Equal(t, models.DeleteStatusDeleted, m2.DeleteStatus)

	m3, _ := store.GetRecordByMessageID(ctx, "m3")
	assert.Equal(t, models.ReadStatusReadReportRequested, m3.ReadStatus)
}

func TestAdapter_Push(t *testing.T) {
	ctx := context.Background()
	adapter, store, sms := newAdapter(t)

	rec, err := adapter.QueuePush(ctx, storage.PushRequest{Folder: folder, MessageID: "m1", Type: models.MessageTypeSMS, Correlator: "c1", Read: true})
	require.NoError(t, err)
	again, err := adapter.QueuePush(ctx, storage.PushRequest{Folder: folder, MessageID: "m1", Type: models.MessageTypeSMS, Correlator: "c1"})
	require.NoError(t, err)
	assert.Equal(t, rec.ID, again.ID)

	_, err = adapter.QueuePush(ctx, storage.PushRequest{Folder: folder, MessageID: "m2", Type: models.MessageTypeSMS})
	assert.ErrorIs(t, err, storage.ErrMissingCorrelator)

	date := time.Date(2015, 7, 15, 11, 21, 15, 0, time.UTC)
	sms.On("GetPushPayload", ctx, mock.Anything).Return(&models.OutboundMessage{Payload: smsPayload("c1", "hello"), Date: date}, nil).Once()

	toPush, err := adapter.GetMessagesToPush(ctx, "")
	require.NoError(t, err)
	require.Len(t, toPush, 1)
	assert.Equal(t, []models.Flag{models.FlagSeen}, toPush[0].Flags)
	assert.Equal(t, date, toPush[0].Date)

	require.NoError(t, adapter.MarkPushed(ctx, toPush[0].Record, 42))
	pushed, _ := store.GetRecordByMessageID(ctx, "m1")
	assert.Equal(t, models.PushStatusPushed, pushed.PushStatus)
	assert.Equal(t, uint32(42), *pushed.UID)
	assert.Equal(t, models.ReadStatusRead, pushed.ReadStatus)

	remaining, err := store.GetPushRequested(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestAdapter_LocalChangeDuringPush(t *testing.T) {
	ctx := context.Background()
	adapter, store, sms := newAdapter(t)

	_, err := adapter.QueuePush(ctx, storage.PushRequest{Folder: folder, MessageID: "m1", Type: models.MessageTypeSMS, Correlator: "c1"})
	require.NoError(t, err)
	sms.On("GetPushPayload", ctx, mock.Anything).Return(&models.OutboundMessage{Payload: smsPayload("c1", "hello")}, nil).Once()

	toPush, err := adapter.GetMessagesToPush(ctx, folder)
	require.NoError(t, err)
	require.Len(t, toPush, 1)
	assert.Empty(t, toPush[0].Flags)

	// The user reads and deletes the message while it is being appended.
	require.NoError(t, adapter.MarkReadLocally(ctx, "m1"))
	require.NoError(t, adapter.MarkDeletedLocally(ctx, "m1"))
	require.NoError(t, adapter.MarkPushed(ctx, toPush[0].Record, 5))

	rec, err := store.GetRecordByMessageID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, models.PushStatusPushed, rec.PushStatus)
	assert.Equal(t, uint32(5), *rec.UID)
	assert.Equal(t, models.ReadStatusReadReportRequested, rec.ReadStatus)
	assert.Equal(t, models.DeleteStatusDeletedReportRequested, rec.DeleteStatus)

	changes, err := adapter.GetLocalFlagChanges(ctx, folder)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, models.FlagDeleted, changes[0].Flag)
	assert.Equal(t, []uint32{5}, changes[0].UIDs)
	assert.Equal(t, models.FlagSeen, changes[1].Flag)
}

// interleavingStore runs hook once, right after the first record lookup by UID.
type interleavingStore struct {
	*testutil.MemoryStore
	hook func()
}

func (s *interleavingStore) GetRecordByUID(ctx context.Context, folder string, uid uint32) (*models.MessageRecord, error) {
	rec, err := s.MemoryStore.GetRecordByUID(ctx, folder, uid)
	if s.hook != nil {
		hook := s.hook
		s.hook = nil
		hook()
	}
	return rec, err
}

func TestAdapter_LocalChangeDuringConfirm(t *testing.T) {
	ctx := context.Background()
	memory := testutil.NewMemoryStore()
	store := &interleavingStore{MemoryStore: memory}
	adapter := storage.NewAdapter(store, storage.Handlers{SMS: &mocks.MessageHandler{}}, logrus.New())

	seedRecord(t, memory, models.MessageRecord{ID: "a", UID: uidPtr(1), MessageID: "m1", Correlator: "c1"})
	require.NoError(t, adapter.MarkReadLocally(ctx, "m1"))

	changes, err := adapter.GetLocalFlagChanges(ctx, folder)
	require.NoError(t, err)
	require.Len(t, changes, 1)

	// The user deletes the message while the read report is being stored.
	store.hook = func() {
		require.NoError(t, adapter.MarkDeletedLocally(ctx, "m1"))
	}
	require.NoError(t, adapter.ConfirmLocalFlagChanges(ctx, changes))

	rec, err := memory.GetRecordByMessageID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, models.ReadStatusRead, rec.ReadStatus)
	assert.Equal(t, models.DeleteStatusDeletedReportRequested, rec.DeleteStatus)

	pending, err := adapter.GetLocalFlagChanges(ctx, folder)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.FlagDeleted, pending[0].Flag)
	assert.Equal(t, []uint32{1}, pending[0].UIDs)
}

func TestAdapter_Folders(t *testing.T) {
	ctx := context.Background()
	adapter, store, _ := newAdapter(t)

	require.NoError(t, adapter.SaveLocalFolder(ctx, &models.LocalFolder{Name: folder, MaxUID: 4, Modseq: 10, UIDValidity: 1437039675}))
	seedRecord(t, store, models.MessageRecord{ID: "a", UID: uidPtr(1), MessageID: "m1", Correlator: "c1"})
	seedRecord(t, store, models.MessageRecord{ID: "b", MessageID: "m2", Correlator: "c2", PushStatus: models.PushStatusPushRequested})

	t.Run("purge keeps records without UIDs", func(t *testing.T) {
		require.NoError(t, adapter.PurgeFolder(ctx, folder))
		f, err := adapter.GetLocalFolder(ctx, folder)
		require.NoError(t, err)
		assert.Nil(t, f)

		rec, _ := store.GetRecordByMessageID(ctx, "m1")
		require.NotNil(t, rec)
		assert.False(t, rec.HasUID())
		assert.Equal(t, "c1", rec.Correlator)
	})

	t.Run("remove drops records except pending pushes", func(t *testing.T) {
		require.NoError(t, adapter.RemoveFolder(ctx, folder))
		records := store.Records()
		require.Len(t, records, 1)
		assert.Equal(t, "m2", records[0].MessageID)
	})
}
