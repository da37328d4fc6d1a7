// Package provider keeps the on-device copy of CMS messages in Postgres and
// serves as the message handler of every message type.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
	"github.com/yplo6403/rcsjta-sub005/internal/storage"
)

// ErrMessageNotFound is returned when a record points to no local message.
var ErrMessageNotFound = errors.New("local message not found")

// Event names sent to the EventSink.
const (
	EventReceived = "message_received"
	EventRead     = "message_read"
	EventDeleted  = "message_deleted"
)

// MessageStore persists local messages.
type MessageStore interface {
	SaveLocalMessage(ctx context.Context, msg *models.LocalMessage) error
	GetLocalMessage(ctx context.Context, id string) (*models.LocalMessage, error)
	ListLocalMessages(ctx context.Context, conversation string) ([]*models.LocalMessage, error)
	MarkLocalMessageRead(ctx context.Context, id string) (bool, error)
	MarkLocalMessageDeleted(ctx context.Context, id string) (bool, error)
}

// ConversationResolver maps a folder back to its contact or chat id.
type ConversationResolver interface {
	IDFor(folder string) (string, bool)
}

// EventSink is told about local message changes caused by the message store.
type EventSink interface {
	MessageChanged(event string, msg *models.LocalMessage)
}

// OutgoingMessage is a message written on this device.
type OutgoingMessage struct {
	Conversation string
	Type         models.MessageType
	From         string
	To           []string
	Subject      string
	Text         string
	Attachments  []models.LocalAttachment
}

type Provider struct {
	store    MessageStore
	resolver ConversationResolver
	sink     EventSink
	now      func() time.Time
	log      logrus.FieldLogger
}

var _ storage.MessageHandler = (*Provider)(nil)

// New creates a provider. sink may be nil.
func New(store MessageStore, resolver ConversationResolver, sink EventSink, log logrus.FieldLogger) *Provider {
	return &Provider{
		store:    store,
		resolver: resolver,
		sink:     sink,
		now:      time.Now,
		log:      log.WithField("component", "provider"),
	}
}

// Handlers registers the provider for every message type.
func (p *Provider) Handlers() storage.Handlers {
	return storage.Handlers{SMS: p, MMS: p, Chat: p, GroupState: p}
}

func (p *Provider) OnRemoteMessage(ctx context.Context, msg *storage.RemoteMessage) (string, error) {
	conversation, ok := p.resolver.IDFor(msg.Folder)
	if !ok {
		conversation = msg.Folder
	}

	direction := models.DirectionOutgoing
	if msg.Type == models.MessageTypeGroupState || sameAddress(msg.From, conversation) {
		direction = models.DirectionIncoming
	}

	sentAt := msg.Date
	if sentAt.IsZero() {
		sentAt = p.now().UTC()
	}

	local := &models.LocalMessage{
		ID:           uuid.NewString(),
		Type:         msg.Type,
		Conversation: conversation,
		Correlator:   msg.Correlator,
		Direction:    direction,
		From:         msg.From,
		To:           msg.To,
		Subject:      msg.Subject,
		Text:         msg.Text,
		Payload:      msg.Raw,
		SentAt:       sentAt,
		Read:         msg.Seen,
		Deleted:      msg.Deleted,
	}
	for _, a := range msg.Attachments {
		local.Attachments = append(local.Attachments, models.LocalAttachment{
			FileName:    a.FileName,
			ContentType: a.ContentType,
			ContentID:   a.ContentID,
			Content:     a.Content,
			SizeBytes:   len(a.Content),
		})
	}

	if err := p.store.SaveLocalMessage(ctx, local); err != nil {
		return "", err
	}
	p.notify(EventReceived, local)
	return local.ID, nil
}

func (p *Provider) OnReadRemotely(ctx context.Context, record *models.MessageRecord) error {
	return p.markRemotely(ctx, record, EventRead, p.store.MarkLocalMessageRead)
}

func (p *Provider) OnDeletedRemotely(ctx context.Context, record *models.MessageRecord) error {
	return p.markRemotely(ctx, record, EventDeleted, p.store.MarkLocalMessageDeleted)
}

func (p *Provider) markRemotely(ctx context.Context, record *models.MessageRecord, event string, mark func(context.Context, string) (bool, error)) error {
	found, err := mark(ctx, record.MessageID)
	if err != nil {
		return err
	}
	if !found {
		p.log.WithField("message_id", record.MessageID).Warn("No local message for record")
		return nil
	}
	p.notify(event, &models.LocalMessage{ID: record.MessageID, Type: record.Type, Correlator: record.Correlator})
	return nil
}

// GetPushPayload returns the stored payload, composing one for messages that have none.
func (p *Provider) GetPushPayload(ctx context.Context, record *models.MessageRecord) (*models.OutboundMessage, error) {
	msg, err := p.store.GetLocalMessage(ctx, record.MessageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fmt.Errorf("message %s: %w", record.MessageID, ErrMessageNotFound)
	}

	payload := msg.Payload
	if len(payload) == 0 {
		if payload, err = Compose(msg); err != nil {
			return nil, err
		}
	}
	return &models.OutboundMessage{Payload: payload, Date: msg.SentAt}, nil
}

// CreateOutgoing stores a message written on this device with a fresh
// correlation key and its encoded payload.
func (p *Provider) CreateOutgoing(ctx context.Context, out OutgoingMessage) (*models.LocalMessage, error) {
	to := out.To
	if len(to) == 0 && out.Type != models.MessageTypeGroupState {
		to = []string{out.Conversation}
	}

	local := &models.LocalMessage{
		ID:           uuid.NewString(),
		Type:         out.Type,
		Conversation: out.Conversation,
		Correlator:   newCorrelator(out.Type, out.Conversation),
		Direction:    models.DirectionOutgoing,
		From:         out.From,
		To:           to,
		Subject:      out.Subject,
		Text:         out.Text,
		SentAt:       p.now().UTC().Truncate(time.Second),
		Read:         true,
		Attachments:  out.Attachments,
	}

	payload, err := Compose(local)
	if err != nil {
		return nil, err
	}
	local.Payload = payload

	if err := p.store.SaveLocalMessage(ctx, local); err != nil {
		return nil, err
	}
	return local, nil
}

// Conversation returns the visible messages of a contact or group chat.
func (p *Provider) Conversation(ctx context.Context, id string) ([]*models.LocalMessage, error) {
	return p.store.ListLocalMessages(ctx, id)
}

// MarkRead records that the user read a message on this device.
func (p *Provider) MarkRead(ctx context.Context, id string) (bool, error) {
	return p.store.MarkLocalMessageRead(ctx, id)
}

// MarkDeleted records that the user deleted a message on this device.
func (p *Provider) MarkDeleted(ctx context.Context, id string) (bool, error) {
	return p.store.MarkLocalMessageDeleted(ctx, id)
}

func (p *Provider) notify(event string, msg *models.LocalMessage) {
	if p.sink != nil {
		p.sink.MessageChanged(event, msg)
	}
}

// newCorrelator returns the correlation key of a new message. A group
// state is keyed by its chat.
func newCorrelator(t models.MessageType, conversation string) string {
	if t == models.MessageTypeGroupState {
		return conversation
	}
	return uuid.NewString()
}

func sameAddress(a, b string) bool {
	norm := func(s string) string {
		s = strings.Trim(strings.TrimSpace(strings.ToLower(s)), "<>")
		s = strings.TrimPrefix(s, "tel:")
		return strings.TrimPrefix(s, "sip:")
	}
	return a != "" && norm(a) == norm(b)
}
