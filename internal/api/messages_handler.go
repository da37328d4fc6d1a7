package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/yplo6403/rcsjta-sub005/internal/cms"
	"github.com/yplo6403/rcsjta-sub005/internal/models"
	"github.com/yplo6403/rcsjta-sub005/internal/provider"
	"github.com/yplo6403/rcsjta-sub005/internal/storage"
)

// Messages records local message changes.
type Messages interface {
	QueuePush(ctx context.Context, req cms.PushRequest) (*models.MessageRecord, bool, error)
	MarkReadLocally(ctx context.Context, messageID string) (bool, error)
	MarkDeletedLocally(ctx context.Context, messageID string) (bool, error)
}

var (
	_ Messages    = (*cms.Service)(nil)
	_ LocalMarker = (*provider.Provider)(nil)
)

// LocalMarker updates the on-device copy of a message.
type LocalMarker interface {
	MarkRead(ctx context.Context, id string) (bool, error)
	MarkDeleted(ctx context.Context, id string) (bool, error)
}

// MessageResponse is the record created for a queued message.
type MessageResponse struct {
	ID         string `json:"id"`
	Folder     string `json:"folder"`
	MessageID  string `json:"message_id"`
	PushStatus string `json:"push_status"`
	Scheduled  bool   `json:"scheduled"`
}

// MessagesHandler serves /api/v1/messages.
type MessagesHandler struct {
	messages Messages
	local    LocalMarker
	log      logrus.FieldLogger
}

// NewMessagesHandler creates the handler. local may be nil when messages
// are kept by another application.
func NewMessagesHandler(messages Messages, local LocalMarker, log logrus.FieldLogger) *MessagesHandler {
	return &MessagesHandler{messages: messages, local: local, log: log.WithField("handler", "messages")}
}

// QueuePush registers a local message for upload.
func (h *MessagesHandler) QueuePush(w http.ResponseWriter, r *http.Request) {
	var req cms.PushRequest
	if !decodeJSON(w, r, h.log, &req) {
		return
	}

	record, scheduled, err := h.messages.QueuePush(r.Context(), req)
	if errors.Is(err, storage.ErrMissingCorrelator) || errors.Is(err, storage.ErrNoHandler) ||
		errors.Is(err, storage.ErrUnknownMessageType) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("message_id", req.MessageID).Error("Failed to queue message")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, http.StatusCreated, MessageResponse{
		ID:         record.ID,
		Folder:     record.Folder,
		MessageID:  record.MessageID,
		PushStatus: string(record.PushStatus),
		Scheduled:  scheduled,
	})
}

// MarkRead handles POST /api/v1/messages/{id}/read.
func (h *MessagesHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var local func(context.Context, string) (bool, error)
	if h.local != nil {
		local = h.local.MarkRead
	}
	h.markLocally(w, r, local, h.messages.MarkReadLocally)
}

// MarkDeleted handles POST /api/v1/messages/{id}/deleted.
func (h *MessagesHandler) MarkDeleted(w http.ResponseWriter, r *http.Request) {
	var local func(context.Context, string) (bool, error)
	if h.local != nil {
		local = h.local.MarkDeleted
	}
	h.markLocally(w, r, local, h.messages.MarkDeletedLocally)
}

func (h *MessagesHandler) markLocally(w http.ResponseWriter, r *http.Request, local, mark func(context.Context, string) (bool, error)) {
	messageID := r.PathValue("id")
	if messageID == "" {
		http.Error(w, "message id is required", http.StatusBadRequest)
		return
	}

	// A record may exist for a message stored elsewhere, so a missing local
	// copy is not an error.
	if local != nil {
		if _, err := local(r.Context(), messageID); err != nil {
			h.log.WithError(err).WithField("message_id", messageID).Error("Failed to update local message")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	scheduled, err := mark(r.Context(), messageID)
	if errors.Is(err, storage.ErrRecordNotFound) {
		http.Error(w, "Message not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("message_id", messageID).Error("Failed to update message")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, scheduleStatus(scheduled), ScheduleResponse{Scheduled: scheduled})
}
