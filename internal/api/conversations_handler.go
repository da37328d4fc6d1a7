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

// Outbox stores messages written on this device.
type Outbox interface {
	CreateOutgoing(ctx context.Context, out provider.OutgoingMessage) (*models.LocalMessage, error)
	Conversation(ctx context.Context, id string) ([]*models.LocalMessage, error)
}

var _ Outbox = (*provider.Provider)(nil)

// AttachmentRequest is an MMS part. Content is base64 in JSON.
type AttachmentRequest struct {
	FileName    string `json:"filename"`
	ContentType string `json:"content_type" validate:"required"`
	Content     []byte `json:"content" validate:"required"`
}

// SendRequest is a message to store locally and push to the CMS.
type SendRequest struct {
	Type        models.MessageType  `json:"type" validate:"required,oneof=SMS MMS CHAT_MESSAGE GROUP_STATE"`
	From        string              `json:"from"`
	To          []string            `json:"to"`
	Subject     string              `json:"subject"`
	Text        string              `json:"text"`
	Attachments []AttachmentRequest `json:"attachments" validate:"dive"`
}

// SendResponse is the stored message and whether its push was scheduled.
type SendResponse struct {
	Message   *models.LocalMessage `json:"message"`
	Scheduled bool                 `json:"scheduled"`
}

// ConversationsHandler serves /api/v1/conversations/{id}/messages.
type ConversationsHandler struct {
	outbox   Outbox
	messages Messages
	log      logrus.FieldLogger
}

func NewConversationsHandler(outbox Outbox, messages Messages, log logrus.FieldLogger) *ConversationsHandler {
	return &ConversationsHandler{outbox: outbox, messages: messages, log: log.WithField("handler", "conversations")}
}

// List handles GET /api/v1/conversations/{id}/messages.
func (h *ConversationsHandler) List(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	messages, err := h.outbox.Conversation(r.Context(), id)
	if err != nil {
		h.log.WithError(err).WithField("conversation", id).Error("Failed to list messages")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []*models.LocalMessage{}
	}

	writeJSON(w, h.log, http.StatusOK, messages)
}

// Send handles POST /api/v1/conversations/{id}/messages. The message is
// stored first, then registered for upload.
func (h *ConversationsHandler) Send(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "conversation id is required", http.StatusBadRequest)
		return
	}

	var req SendRequest
	if !decodeJSON(w, r, h.log, &req) {
		return
	}

	out := provider.OutgoingMessage{
		Conversation: id,
		Type:         req.Type,
		From:         req.From,
		To:           req.To,
		Subject:      req.Subject,
		Text:         req.Text,
	}
	for _, a := range req.Attachments {
		out.Attachments = append(out.Attachments, models.LocalAttachment{
			FileName:    a.FileName,
			ContentType: a.ContentType,
			Content:     a.Content,
			SizeBytes:   len(a.Content),
		})
	}

	log := h.log.WithField("conversation", id)

	local, err := h.outbox.CreateOutgoing(r.Context(), out)
	if errors.Is(err, storage.ErrUnknownMessageType) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		log.WithError(err).Error("Failed to store message")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	_, scheduled, err := h.messages.QueuePush(r.Context(), cms.PushRequest{
		Conversation: id,
		MessageID:    local.ID,
		Type:         local.Type,
		Correlator:   local.Correlator,
		Read:         local.Read,
	})
	if err != nil {
		log.WithError(err).WithField("message_id", local.ID).Error("Failed to queue message")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, http.StatusCreated, SendResponse{Message: local, Scheduled: scheduled})
}
