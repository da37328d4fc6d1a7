package syncer

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yplo6403/rcsjta-sub005/internal/imap"
	"github.com/yplo6403/rcsjta-sub005/internal/models"
)

// Synchronizer runs the CMS operations scheduled by the scheduler.
// Each call works on the transport it is given and does not keep it.
type Synchronizer struct {
	store   Storage
	folders FolderFilter
	log     logrus.FieldLogger
}

func NewSynchronizer(store Storage, folders FolderFilter, log logrus.FieldLogger) *Synchronizer {
	return &Synchronizer{
		store:   store,
		folders: folders,
		log:     log.WithField("component", "synchronizer"),
	}
}

// Sync pushes pending messages, then synchronizes one folder, or every CMS
// folder when folder is empty.
func (s *Synchronizer) Sync(ctx context.Context, t Transport, folder string) error {
	if err := s.PushMessages(ctx, t, folder); err != nil {
		return err
	}
	if folder == "" {
		return s.SyncAll(ctx, t)
	}
	return NewProcessor(t, s.store, s.log).SyncFolder(ctx, folder)
}

// SyncAll lists the CMS folders, forgets local folders that vanished and
// synchronizes every folder that changed on either side.
func (s *Synchronizer) SyncAll(ctx context.Context, t Transport) error {
	remotes, err := t.ListStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to list folders: %w", err)
	}
	remoteByName := make(map[string]*models.RemoteFolder, len(remotes))
	var managed []*models.RemoteFolder
	for _, remote := range remotes {
		if !s.folders.Manages(remote.Name) {
			continue
		}
		remoteByName[remote.Name] = remote
		managed = append(managed, remote)
	}

	locals, err := s.store.GetLocalFolders(ctx)
	if err != nil {
		return fmt.Errorf("failed to get local folders: %w", err)
	}
	localByName := make(map[string]*models.LocalFolder, len(locals))
	for _, local := range locals {
		if _, ok := remoteByName[local.Name]; !ok {
			if err := s.store.RemoveFolder(ctx, local.Name); err != nil {
				return err
			}
			continue
		}
		localByName[local.Name] = local
	}

	pending, err := s.store.GetLocalFlagChanges(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to get local flag changes: %w", err)
	}
	dirty := make(map[string]bool)
	for _, change := range pending {
		dirty[change.Folder] = true
	}

	processor := NewProcessor(t, s.store, s.log)
	synced := 0
	for _, remote := range managed {
		if localByName[remote.Name].IsInSync(remote) && !dirty[remote.Name] {
			continue
		}
		if err := processor.SyncFolder(ctx, remote.Name); err != nil {
			return fmt.Errorf("failed to sync folder %s: %w", remote.Name, err)
		}
		synced++
	}
	s.log.WithFields(logrus.Fields{"folders": len(managed), "synced": synced}).Info("Synchronization completed")
	return nil
}

// PushMessages appends the messages waiting for upload, for one folder or
// every folder when folder is empty. A message the server rejects stays queued.
func (s *Synchronizer) PushMessages(ctx context.Context, t Transport, folder string) error {
	messages, err := s.store.GetMessagesToPush(ctx, folder)
	if err != nil {
		return fmt.Errorf("failed to get messages to push: %w", err)
	}

	for _, msg := range messages {
		log := s.log.WithFields(logrus.Fields{"folder": msg.Record.Folder, "message_id": msg.Record.MessageID})
		uid, err := t.Append(ctx, msg.Record.Folder, msg.Flags, msg.Date, msg.Payload)
		if imap.IsNo(err) {
			log.WithError(err).Warn("Server rejected message push")
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to push message %s: %w", msg.Record.MessageID, err)
		}
		if err := s.store.MarkPushed(ctx, msg.Record, uid); err != nil {
			return err
		}
		log.WithField("uid", uid).Debug("Message pushed")
	}
	return nil
}

// UpdateFlags uploads the pending read and delete reports of every folder.
func (s *Synchronizer) UpdateFlags(ctx context.Context, t Transport) error {
	changes, err := s.store.GetLocalFlagChanges(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to get local flag changes: %w", err)
	}

	byFolder := make(map[string][]*models.FlagChange)
	var order []string
	for _, change := range changes {
		if _, ok := byFolder[change.Folder]; !ok {
			order = append(order, change.Folder)
		}
		byFolder[change.Folder] = append(byFolder[change.Folder], change)
	}

	processor := NewProcessor(t, s.store, s.log)
	for _, folder := range order {
		if _, err := t.SelectCondstore(ctx, folder); err != nil {
			if imap.IsNo(err) {
				s.log.WithError(err).WithField("folder", folder).Warn("Skipping flag update for missing folder")
				continue
			}
			return fmt.Errorf("failed to select folder %s: %w", folder, err)
		}
		if err := processor.pushFlagChanges(ctx, byFolder[folder]); err != nil {
			return err
		}
	}
	return nil
}
