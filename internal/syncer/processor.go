package syncer

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yplo6403/rcsjta-sub005/internal/imap"
	"github.com/yplo6403/rcsjta-sub005/internal/models"
)

// bodyBatchSize bounds how many downloaded bodies are held before they are stored.
const bodyBatchSize = 10

// Processor runs one synchronization pass for one folder.
type Processor struct {
	transport Transport
	storage   Storage
	log       logrus.FieldLogger
}

func NewProcessor(transport Transport, storage Storage, log logrus.FieldLogger) *Processor {
	return &Processor{
		transport: transport,
		storage:   storage,
		log:       log.WithField("component", "sync-processor"),
	}
}

// SyncFolder brings one folder up to date. The local counters only advance
// once flags, new messages and local changes are all processed, so a failed
// pass is retried from the same point. A folder the server no longer has is
// removed locally.
func (p *Processor) SyncFolder(ctx context.Context, name string) error {
	log := p.log.WithField("folder", name)

	remote, err := p.transport.SelectCondstore(ctx, name)
	if imap.IsNo(err) {
		log.WithError(err).Info("Folder no longer exists remotely")
		return p.storage.RemoveFolder(ctx, name)
	}
	if err != nil {
		return fmt.Errorf("failed to select folder: %w", err)
	}

	local, err := p.storage.GetLocalFolder(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to get local folder: %w", err)
	}
	if local != nil && local.UIDValidity != remote.UIDValidity {
		log.WithFields(logrus.Fields{
			"local_uidvalidity":  local.UIDValidity,
			"remote_uidvalidity": remote.UIDValidity,
		}).Warn("UIDVALIDITY changed, purging local folder")
		if err := p.storage.PurgeFolder(ctx, name); err != nil {
			return err
		}
		local = nil
	}
	if local == nil {
		local = &models.LocalFolder{Name: name, UIDValidity: remote.UIDValidity}
	}

	if err := p.syncFlags(ctx, local, remote); err != nil {
		return err
	}
	if err := p.syncNewMessages(ctx, local, remote); err != nil {
		return err
	}
	if err := p.PushFlagChanges(ctx, name); err != nil {
		return err
	}

	next := &models.LocalFolder{
		Name:        name,
		MaxUID:      max(local.MaxUID, remote.LastUID()),
		Modseq:      max(local.Modseq, remote.HighestModseq),
		UIDValidity: remote.UIDValidity,
	}
	if err := p.storage.SaveLocalFolder(ctx, next); err != nil {
		return fmt.Errorf("failed to save local folder: %w", err)
	}
	log.WithFields(logrus.Fields{"max_uid": next.MaxUID, "modseq": next.Modseq}).Debug("Folder synchronized")
	return nil
}

func (p *Processor) syncFlags(ctx context.Context, local *models.LocalFolder, remote *models.RemoteFolder) error {
	if local.MaxUID == 0 || remote.HighestModseq <= local.Modseq {
		return nil
	}
	changes, err := p.transport.FetchFlags(ctx, local.Name, local.MaxUID, local.Modseq)
	if err != nil {
		return fmt.Errorf("failed to fetch flags: %w", err)
	}
	if err := p.storage.ApplyFlagChanges(ctx, changes); err != nil {
		return fmt.Errorf("failed to apply flag changes: %w", err)
	}
	return nil
}

func (p *Processor) syncNewMessages(ctx context.Context, local *models.LocalFolder, remote *models.RemoteFolder) error {
	from, to := local.MaxUID+1, remote.LastUID()
	if from > to {
		return nil
	}

	headers, err := p.transport.FetchHeaders(ctx, local.Name, from, to)
	if err != nil {
		return fmt.Errorf("failed to fetch headers: %w", err)
	}
	uids, err := p.storage.FilterNewMessages(ctx, headers)
	if err != nil {
		return fmt.Errorf("failed to filter new messages: %w", err)
	}

	batch := make([]*models.Message, 0, bodyBatchSize)
	for _, uid := range uids {
		msg, err := p.transport.FetchMessage(ctx, local.Name, uid)
		if imap.IsNo(err) || (err == nil && msg == nil) {
			p.log.WithFields(logrus.Fields{"folder": local.Name, "uid": uid}).Info("Message no longer exists remotely")
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to fetch message %d: %w", uid, err)
		}
		batch = append(batch, msg)
		if len(batch) == bodyBatchSize {
			if err := p.storage.CreateMessages(ctx, batch); err != nil {
				return fmt.Errorf("failed to create messages: %w", err)
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := p.storage.CreateMessages(ctx, batch); err != nil {
			return fmt.Errorf("failed to create messages: %w", err)
		}
	}
	return nil
}

// PushFlagChanges uploads the pending read and delete reports of the selected
// folder. A batch the server rejects with NO is skipped and stays pending.
func (p *Processor) PushFlagChanges(ctx context.Context, name string) error {
	changes, err := p.storage.GetLocalFlagChanges(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to get local flag changes: %w", err)
	}
	return p.pushFlagChanges(ctx, changes)
}

func (p *Processor) pushFlagChanges(ctx context.Context, changes []*models.FlagChange) error {
	var confirmed []*models.FlagChange
	for _, change := range changes {
		var err error
		if change.Operation == models.FlagRemove {
			err = p.transport.RemoveFlags(ctx, change.UIDs, change.Flag)
		} else {
			err = p.transport.AddFlags(ctx, change.UIDs, change.Flag)
		}
		if imap.IsNo(err) {
			p.log.WithError(err).WithFields(logrus.Fields{"folder": change.Folder, "flag": change.Flag}).Warn("Server rejected flag change")
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to push %s %s: %w", change.Operation, change.Flag, err)
		}
		confirmed = append(confirmed, change)
	}
	if len(confirmed) == 0 {
		return nil
	}
	if err := p.storage.ConfirmLocalFlagChanges(ctx, confirmed); err != nil {
		return fmt.Errorf("failed to confirm flag changes: %w", err)
	}
	return nil
}
