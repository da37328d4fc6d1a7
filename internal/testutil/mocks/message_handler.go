// Package mocks holds testify mocks of the CMS collaborator interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
	"github.com/yplo6403/rcsjta-sub005/internal/storage"
)

// MessageHandler is a mock of storage.MessageHandler.
type MessageHandler struct {
	mock.Mock
}

var _ storage.MessageHandler = (*MessageHandler)(nil)

func (m *MessageHandler) OnRemoteMessage(ctx context.Context, msg *storage.RemoteMessage) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func (m *MessageHandler) OnReadRemotely(ctx context.Context, record *models.MessageRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MessageHandler) OnDeletedRemotely(ctx context.Context, record *models.MessageRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MessageHandler) GetPushPayload(ctx context.Context, record *models.MessageRecord) (*models.OutboundMessage, error) {
	args := m.Called(ctx, record)
	out, _ := args.Get(0).(*models.OutboundMessage)
	return out, args.Error(1)
}
