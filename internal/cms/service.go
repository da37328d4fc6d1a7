// Package cms is the entry point of the message store sync: it owns the
// session controller, the scheduler and the local change entry points.
package cms

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yplo6403/rcsjta-sub005/internal/imap"
	"github.com/yplo6403/rcsjta-sub005/internal/models"
	"github.com/yplo6403/rcsjta-sub005/internal/scheduler"
	"github.com/yplo6403/rcsjta-sub005/internal/settings"
	"github.com/yplo6403/rcsjta-sub005/internal/storage"
	"github.com/yplo6403/rcsjta-sub005/internal/syncer"
)

var _ syncer.Transport = (*imap.Service)(nil)

// Options configures folder naming and sync pacing.
type Options struct {
	RootDirectory             string
	FolderSeparator           string
	SyncInterval              time.Duration
	DataConnectionMinInterval time.Duration
}

// Service wires the sync components together.
type Service struct {
	controller *imap.Controller
	adapter    *storage.Adapter
	scheduler  *scheduler.Scheduler
	namer      *settings.FolderNamer
	log        logrus.FieldLogger
}

func NewService(provider settings.Provider, store storage.RecordStore, handlers storage.Handlers, opts Options, log logrus.FieldLogger) *Service {
	namer := settings.NewFolderNamer(opts.RootDirectory, opts.FolderSeparator)
	controller := imap.NewController(provider, log)
	adapter := storage.NewAdapter(store, handlers, log)
	synchronizer := syncer.NewSynchronizer(adapter, namer, log)

	sched := scheduler.New(controllerConnector{controller}, synchronizer, namer, scheduler.Options{
		SyncInterval:              opts.SyncInterval,
		DataConnectionMinInterval: opts.DataConnectionMinInterval,
	}, log)

	return &Service{
		controller: controller,
		adapter:    adapter,
		scheduler:  sched,
		namer:      namer,
		log:        log.WithField("component", "cms"),
	}
}

// controllerConnector narrows the controller session to the syncer transport.
type controllerConnector struct {
	*imap.Controller
}

func (c controllerConnector) Acquire(ctx context.Context) (syncer.Transport, error) {
	svc, err := c.Controller.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *Service) Start(ctx context.Context) error {
	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	return nil
}

func (s *Service) Stop() {
	s.scheduler.Stop()
}

// Scheduler exposes scheduling and listener registration.
func (s *Service) Scheduler() *scheduler.Scheduler {
	return s.scheduler
}

// IsAvailable reports whether no operation holds the session.
func (s *Service) IsAvailable() bool {
	return s.controller.IsAvailable()
}

// FolderFor returns the folder of a contact or group chat.
func (s *Service) FolderFor(id string) string {
	return s.namer.FolderFor(id)
}

// PushRequest describes a local message of a conversation to upload.
type PushRequest struct {
	Conversation string             `json:"conversation" validate:"required"`
	MessageID    string             `json:"message_id" validate:"required"`
	Type         models.MessageType `json:"type" validate:"required,oneof=SMS MMS CHAT_MESSAGE GROUP_STATE"`
	Correlator   string             `json:"correlator" validate:"required"`
	Read         bool               `json:"read"`
}

// QueuePush records a local message for upload and schedules the push of
// its conversation. The returned bool tells whether a push was scheduled.
func (s *Service) QueuePush(ctx context.Context, req PushRequest) (*models.MessageRecord, bool, error) {
	record, err := s.adapter.QueuePush(ctx, storage.PushRequest{
		Folder:     s.namer.FolderFor(req.Conversation),
		MessageID:  req.MessageID,
		Type:       req.Type,
		Correlator: req.Correlator,
		Read:       req.Read,
	})
	if err != nil {
		return nil, false, err
	}
	return record, s.scheduler.SchedulePushMessages(req.Conversation), nil
}

// MarkReadLocally requests a read report and schedules a flag update.
func (s *Service) MarkReadLocally(ctx context.Context, messageID string) (bool, error) {
	if err := s.adapter.MarkReadLocally(ctx, messageID); err != nil {
		return false, err
	}
	return s.scheduler.ScheduleUpdateFlags(), nil
}

// MarkDeletedLocally requests a delete report and schedules a flag update.
func (s *Service) MarkDeletedLocally(ctx context.Context, messageID string) (bool, error) {
	if err := s.adapter.MarkDeletedLocally(ctx, messageID); err != nil {
		return false, err
	}
	return s.scheduler.ScheduleUpdateFlags(), nil
}
