package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yplo6403/rcsjta-sub005/internal/cms"
	"github.com/yplo6403/rcsjta-sub005/internal/models"
	"github.com/yplo6403/rcsjta-sub005/internal/storage"
)

type fakeMessages struct {
	queued  []cms.PushRequest
	read    []string
	deleted []string
	err     error
}

func (m *fakeMessages) QueuePush(_ context.Context, req cms.PushRequest) (*models.MessageRecord, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	m.queued = append(m.queued, req)
	return &models.MessageRecord{
		ID:         "rec-1",
		Folder:     "Default/" + req.Conversation,
		MessageID:  req.MessageID,
		PushStatus: models.PushStatusPushRequested,
	}, true, nil
}

func (m *fakeMessages) MarkReadLocally(_ context.Context, id string) (bool, error) {
	m.read = append(m.read, id)
	return false, m.err
}

func (m *fakeMessages) MarkDeletedLocally(_ context.Context, id string) (bool, error) {
	m.deleted = append(m.deleted, id)
	return true, m.err
}

func newMessagesMux(m Messages) *http.ServeMux {
	handler := NewMessagesHandler(m, nil, logrus.New())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/messages", handler.QueuePush)
	mux.HandleFunc("POST /api/v1/messages/{id}/read", handler.MarkRead)
	mux.HandleFunc("POST /api/v1/messages/{id}/deleted", handler.MarkDeleted)
	return mux
}

func TestMessagesHandler_QueuePush(t *testing.T) {
	fake := &fakeMessages{}
	handler := NewMessagesHandler(fake, nil, logrus.New())

	req := cms.PushRequest{
		Conversation: "tel:+33600000001",
		MessageID:    "sms-1",
		Type:         models.MessageTypeSMS,
		Correlator:   "c-1",
	}
	rr := postJSON(t, handler.QueuePush, "/api/v1/messages", req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp MessageResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, MessageResponse{
		ID:         "rec-1",
		Folder:     "Default/tel:+33600000001",
		MessageID:  "sms-1",
		PushStatus: "PUSH_REQUESTED",
		Scheduled:  true,
	}, resp)
	assert.Equal(t, []cms.PushRequest{req}, fake.queued)
}

func TestMessagesHandler_QueuePushRejects(t *testing.T) {
	t.Run("unknown type", func(t *testing.T) {
		fake := &fakeMessages{}
		rr := postJSON(t, NewMessagesHandler(fake, nil, logrus.New()).QueuePush, "/api/v1/messages", cms.PushRequest{
			Conversation: "tel:+33600000001", MessageID: "x", Type: "FAX", Correlator: "c",
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, fake.queued)
	})

	t.Run("no handler for type", func(t *testing.T) {
		fake := &fakeMessages{err: fmt.Errorf("MMS messages: %w", storage.ErrNoHandler)}
		rr := postJSON(t, NewMessagesHandler(fake, nil, logrus.New()).QueuePush, "/api/v1/messages", cms.PushRequest{
			Conversation: "tel:+33600000001", MessageID: "x", Type: models.MessageTypeMMS, Correlator: "c",
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("storage failure", func(t *testing.T) {
		fake := &fakeMessages{err: errors.New("connection refused")}
		rr := postJSON(t, NewMessagesHandler(fake, nil, logrus.New()).QueuePush, "/api/v1/messages", cms.PushRequest{
			Conversation: "tel:+33600000001", MessageID: "x", Type: models.MessageTypeSMS, Correlator: "c",
		})
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestMessagesHandler_MarkLocally(t *testing.T) {
	fake := &fakeMessages{}
	mux := newMessagesMux(fake)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/messages/sms-1/read", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"scheduled":false}`, rr.Body.String())

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/messages/sms-2/deleted", nil))
	assert.Equal(t, http.StatusAccepted, rr.Code)

	assert.Equal(t, []string{"sms-1"}, fake.read)
	assert.Equal(t, []string{"sms-2"}, fake.deleted)
}

func TestMessagesHandler_MarkUnknown(t *testing.T) {
	mux := newMessagesMux(&fakeMessages{err: fmt.Errorf("message x: %w", storage.ErrRecordNotFound)})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/messages/x/read", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

type fakeLocal struct {
	read []string
}

func (l *fakeLocal) MarkRead(_ context.Context, id string) (bool, error) {
	l.read = append(l.read, id)
	return false, nil
}

func (l *fakeLocal) MarkDeleted(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}

func TestMessagesHandler_MarkUpdatesLocalCopy(t *testing.T) {
	fake := &fakeMessages{}
	local := &fakeLocal{}
	handler := NewMessagesHandler(fake, local, logrus.New())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/messages/{id}/read", handler.MarkRead)
	mux.HandleFunc("POST /api/v1/messages/{id}/deleted", handler.MarkDeleted)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/messages/sms-1/read", nil))
	assert.Equal(t, http.StatusOK, rr.Code, "missing local copy is ignored")
	assert.Equal(t, []string{"sms-1"}, local.read)
	assert.Equal(t, []string{"sms-1"}, fake.read)

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/messages/sms-2/deleted", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Empty(t, fake.deleted)
}
