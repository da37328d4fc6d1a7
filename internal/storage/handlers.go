package storage

import (
	"context"
	"fmt"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
)

// MessageHandler bridges one message type to its local provider.
type MessageHandler interface {
	// OnRemoteMessage stores a message found on the message store and returns its local ID.
	OnRemoteMessage(ctx context.Context, msg *RemoteMessage) (string, error)
	// OnReadRemotely is called once when another device read the message.
	OnReadRemotely(ctx context.Context, record *models.MessageRecord) error
	// OnDeletedRemotely is called once when another device deleted the message.
	OnDeletedRemotely(ctx context.Context, record *models.MessageRecord) error
	// GetPushPayload returns the encoded message to upload.
	GetPushPayload(ctx context.Context, record *models.MessageRecord) (*models.OutboundMessage, error)
}

// Handlers holds one handler per message type.
type Handlers struct {
	SMS        MessageHandler
	MMS        MessageHandler
	Chat       MessageHandler
	GroupState MessageHandler
}

// For returns the handler of a message type.
func (h Handlers) For(t models.MessageType) (MessageHandler, error) {
	var handler MessageHandler
	switch t {
	case models.MessageTypeSMS:
		handler = h.SMS
	case models.MessageTypeMMS:
		handler = h.MMS
	case models.MessageTypeChat:
		handler = h.Chat
	case models.MessageTypeGroupState:
		handler = h.GroupState
	case models.MessageTypeUnknown:
		return nil, ErrUnknownMessageType
	default:
		return nil, fmt.Errorf("message type %q: %w", t, ErrUnknownMessageType)
	}
	if handler == nil {
		return nil, fmt.Errorf("%s messages: %w", t, ErrNoHandler)
	}
	return handler, nil
}
