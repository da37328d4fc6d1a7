package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
)

// ErrRecordNotFound is returned by the local entry points for unknown message IDs.
var ErrRecordNotFound = errors.New("message record not found")

// PushRequest describes a local message to mirror on the message store.
type PushRequest struct {
	Folder     string
	MessageID  string
	Type       models.MessageType
	Correlator string
	Read       bool
}

// PushMessage is a record ready to be appended.
type PushMessage struct {
	Record  *models.MessageRecord
	Flags   []models.Flag
	Payload []byte
	Date    time.Time
}

// Adapter applies remote changes to local storage and collects local changes.
// Status transitions are conditional writes of a single column, so the local
// entry points may run while the worker holds an older copy of a record.
type Adapter struct {
	store    RecordStore
	handlers Handlers
	log      logrus.FieldLogger
}

func NewAdapter(store RecordStore, handlers Handlers, log logrus.FieldLogger) *Adapter {
	return &Adapter{
		store:    store,
		handlers: handlers,
		log:      log.WithField("component", "storage"),
	}
}

func (a *Adapter) GetLocalFolder(ctx context.Context, name string) (*models.LocalFolder, error) {
	return a.store.GetLocalFolder(ctx, name)
}

func (a *Adapter) GetLocalFolders(ctx context.Context) ([]*models.LocalFolder, error) {
	return a.store.GetLocalFolders(ctx)
}

// SaveLocalFolder records the counters reached by a completed sync pass.
func (a *Adapter) SaveLocalFolder(ctx context.Context, folder *models.LocalFolder) error {
	return a.store.SaveLocalFolder(ctx, folder)
}

// PurgeFolder drops the folder counters and the UIDs of its records after a
// UIDVALIDITY change. Records keep their correlators so the next header fetch
// matches them again instead of creating duplicates.
func (a *Adapter) PurgeFolder(ctx context.Context, name string) error {
	if err := a.store.DeleteLocalFolder(ctx, name); err != nil {
		return fmt.Errorf("failed to delete local folder: %w", err)
	}
	if err := a.store.ResetFolderUIDs(ctx, name); err != nil {
		return fmt.Errorf("failed to reset folder UIDs: %w", err)
	}
	a.log.WithField("folder", name).Info("Purged local folder")
	return nil
}

// RemoveFolder forgets a folder that no longer exists on the message store.
func (a *Adapter) RemoveFolder(ctx context.Context, name string) error {
	if err := a.store.DeleteFolderRecords(ctx, name); err != nil {
		return fmt.Errorf("failed to delete folder records: %w", err)
	}
	if err := a.store.DeleteLocalFolder(ctx, name); err != nil {
		return fmt.Errorf("failed to delete local folder: %w", err)
	}
	a.log.WithField("folder", name).Info("Removed stale local folder")
	return nil
}

// ApplyFlagChanges applies flags observed on the message store.
// Unknown UIDs are skipped. Applying the same change twice is a no-op.
func (a *Adapter) ApplyFlagChanges(ctx context.Context, changes []*models.FlagChange) error {
	for _, change := range changes {
		if !change.IsDelete() && !change.IsSeen() {
			continue
		}
		for _, uid := range change.UIDs {
			record, err := a.store.GetRecordByUID(ctx, change.Folder, uid)
			if err != nil {
				return fmt.Errorf("failed to get record: %w", err)
			}
			if record == nil {
				a.log.WithFields(logrus.Fields{"folder": change.Folder, "uid": uid}).Warn("No local record for remote flag change")
				continue
			}
			if change.IsDelete() {
				err = a.applyDeleted(ctx, record)
			} else {
				err = a.applySeen(ctx, record)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *Adapter) applyDeleted(ctx context.Context, record *models.MessageRecord) error {
	// A pending local delete settles without notification.
	settled, err := a.setDeleteStatus(ctx, record, models.DeleteStatusDeletedReportRequested, models.DeleteStatusDeleted)
	if err != nil || settled {
		return err
	}
	changed, err := a.setDeleteStatus(ctx, record, models.DeleteStatusNotDeleted, models.DeleteStatusDeleted)
	if err != nil || !changed {
		return err
	}
	a.notify(record, "deleted", func(h MessageHandler) error { return h.OnDeletedRemotely(ctx, record) })
	return nil
}

func (a *Adapter) applySeen(ctx context.Context, record *models.MessageRecord) error {
	settled, err := a.setReadStatus(ctx, record, models.ReadStatusReadReportRequested, models.ReadStatusRead)
	if err != nil || settled {
		return err
	}
	changed, err := a.setReadStatus(ctx, record, models.ReadStatusUnread, models.ReadStatusRead)
	if err != nil || !changed {
		return err
	}
	// A deleted message is not reported as read.
	if record.DeleteStatus == models.DeleteStatusDeleted {
		return nil
	}
	a.notify(record, "read", func(h MessageHandler) error { return h.OnReadRemotely(ctx, record) })
	return nil
}

// setReadStatus moves the stored read status from one value to another and
// mirrors it on record when the store accepted the change.
func (a *Adapter) setReadStatus(ctx context.Context, record *models.MessageRecord, from, to models.ReadStatus) (bool, error) {
	changed, err := a.store.UpdateReadStatus(ctx, record.ID, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to update read status: %w", err)
	}
	if changed {
		record.ReadStatus = to
	}
	return changed, nil
}

func (a *Adapter) setDeleteStatus(ctx context.Context, record *models.MessageRecord, from, to models.DeleteStatus) (bool, error) {
	changed, err := a.store.UpdateDeleteStatus(ctx, record.ID, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to update delete status: %w", err)
	}
	if changed {
		record.DeleteStatus = to
	}
	return changed, nil
}

func (a *Adapter) notify(record *models.MessageRecord, event string, call func(MessageHandler) error) {
	log := a.log.WithFields(logrus.Fields{"message_id": record.MessageID, "type": record.Type, "event": event})
	handler, err := a.handlers.For(record.Type)
	if err != nil {
		log.WithError(err).Warn("Cannot notify message handler")
		return
	}
	if err := call(handler); err != nil {
		log.WithError(err).Warn("Message handler failed")
	}
}

// FilterNewMessages returns the UIDs whose bodies must be downloaded.
// Messages already known by correlator get their UID and flags updated in
// place; messages deleted remotely and never seen locally are dropped.
func (a *Adapter) FilterNewMessages(ctx context.Context, messages []*models.Message) ([]uint32, error) {
	var accepted []uint32
	for _, msg := range messages {
		log := a.log.WithFields(logrus.Fields{"folder": msg.Folder, "uid": msg.UID})

		known, err := a.store.GetRecordByUID(ctx, msg.Folder, msg.UID)
		if err != nil {
			return nil, fmt.Errorf("failed to get record: %w", err)
		}
		if known != nil {
			if err := a.applyRemoteFlags(ctx, known, msg); err != nil {
				return nil, err
			}
			continue
		}

		cls, err := Classify(msg.Header)
		if err != nil {
			log.WithError(err).Warn("Skipping message with unusable headers")
			continue
		}

		record, err := a.store.GetRecordByCorrelator(ctx, msg.Folder, cls.Correlator)
		if err != nil {
			return nil, fmt.Errorf("failed to get record: %w", err)
		}
		if record != nil {
			if err := a.store.MarkRecordPushed(ctx, record.ID, msg.UID); err != nil {
				return nil, fmt.Errorf("failed to update record: %w", err)
			}
			uid := msg.UID
			record.UID = &uid
			record.PushStatus = models.PushStatusPushed
			if err := a.applyRemoteFlags(ctx, record, msg); err != nil {
				return nil, err
			}
			log.WithField("message_id", record.MessageID).Debug("Correlated remote message with local record")
			continue
		}

		if msg.HasFlag(models.FlagDeleted) {
			log.Debug("Dropping message deleted remotely")
			continue
		}
		accepted = append(accepted, msg.UID)
	}
	return accepted, nil
}

func (a *Adapter) applyRemoteFlags(ctx context.Context, record *models.MessageRecord, msg *models.Message) error {
	if msg.HasFlag(models.FlagDeleted) {
		if err := a.applyDeleted(ctx, record); err != nil {
			return err
		}
	}
	if msg.HasFlag(models.FlagSeen) {
		return a.applySeen(ctx, record)
	}
	return nil
}

// CreateMessages hands downloaded messages to their type handler and records
// them as PUSHED. A message that cannot be classified or stored is skipped.
func (a *Adapter) CreateMessages(ctx context.Context, messages []*models.Message) error {
	for _, msg := range messages {
		log := a.log.WithFields(logrus.Fields{"folder": msg.Folder, "uid": msg.UID})

		known, err := a.store.GetRecordByUID(ctx, msg.Folder, msg.UID)
		if err != nil {
			return fmt.Errorf("failed to get record: %w", err)
		}
		if known != nil {
			continue
		}

		raw := msg.Payload
		if len(raw) == 0 {
			raw = msg.Header
		}
		cls, err := Classify(raw)
		if err != nil {
			log.WithError(err).Warn("Skipping message with unusable headers")
			continue
		}
		handler, err := a.handlers.For(cls.Type)
		if err != nil {
			log.WithError(err).Warn("Skipping message without handler")
			continue
		}
		remote, err := DecodeMessage(msg, cls)
		if err != nil {
			log.WithError(err).Warn("Skipping undecodable message")
			continue
		}
		messageID, err := handler.OnRemoteMessage(ctx, remote)
		if err != nil {
			log.WithError(err).Warn("Message handler rejected remote message")
			continue
		}

		uid := msg.UID
		record := &models.MessageRecord{
			ID:           uuid.NewString(),
			Folder:       msg.Folder,
			UID:          &uid,
			MessageID:    messageID,
			Type:         cls.Type,
			Correlator:   cls.Correlator,
			ReadStatus:   models.ReadStatusUnread,
			DeleteStatus: models.DeleteStatusNotDeleted,
			PushStatus:   models.PushStatusPushed,
		}
		if remote.Seen {
			record.ReadStatus = models.ReadStatusRead
		}
		if remote.Deleted {
			record.DeleteStatus = models.DeleteStatusDeleted
		}
		if err := a.store.SaveRecord(ctx, record); err != nil {
			return fmt.Errorf("failed to save record: %w", err)
		}
	}
	return nil
}

// GetLocalFlagChanges batches the pending read and delete reports of a folder,
// or of every folder when folder is empty. Deleted batches come before Seen
// batches of the same folder.
func (a *Adapter) GetLocalFlagChanges(ctx context.Context, folder string) ([]*models.FlagChange, error) {
	records, err := a.store.GetPendingFlagRecords(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending flag records: %w", err)
	}

	type batch struct {
		deleted []uint32
		seen    []uint32
	}
	batches := make(map[string]*batch)
	var folders []string
	for _, record := range records {
		if !record.HasUID() {
			continue
		}
		b, ok := batches[record.Folder]
		if !ok {
			b = &batch{}
			batches[record.Folder] = b
			folders = append(folders, record.Folder)
		}
		if record.DeleteStatus == models.DeleteStatusDeletedReportRequested {
			b.deleted = append(b.deleted, *record.UID)
		}
		if record.ReadStatus == models.ReadStatusReadReportRequested {
			b.seen = append(b.seen, *record.UID)
		}
	}
	sort.Strings(folders)

	var changes []*models.FlagChange
	for _, name := range folders {
		b := batches[name]
		if len(b.deleted) > 0 {
			changes = append(changes, models.NewFlagChange(name, models.FlagDeleted, models.FlagAdd, b.deleted))
		}
		if len(b.seen) > 0 {
			changes = append(changes, models.NewFlagChange(name, models.FlagSeen, models.FlagAdd, b.seen))
		}
	}
	return changes, nil
}

// ConfirmLocalFlagChanges settles the records of changes the server accepted.
func (a *Adapter) ConfirmLocalFlagChanges(ctx context.Context, changes []*models.FlagChange) error {
	for _, change := range changes {
		for _, uid := range change.UIDs {
			record, err := a.store.GetRecordByUID(ctx, change.Folder, uid)
			if err != nil {
				return fmt.Errorf("failed to get record: %w", err)
			}
			if record == nil {
				continue
			}
			if change.IsDelete() {
				_, err = a.setDeleteStatus(ctx, record, models.DeleteStatusDeletedReportRequested, models.DeleteStatusDeleted)
			}
			if change.IsSeen() {
				_, err = a.setReadStatus(ctx, record, models.ReadStatusReadReportRequested, models.ReadStatusRead)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// GetMessagesToPush returns the records waiting for upload with their
// payload, for one folder or every folder when folder is empty.
func (a *Adapter) GetMessagesToPush(ctx context.Context, folder string) ([]*PushMessage, error) {
	records, err := a.store.GetPushRequested(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("failed to get records to push: %w", err)
	}

	var result []*PushMessage
	for _, record := range records {
		log := a.log.WithFields(logrus.Fields{"message_id": record.MessageID, "type": record.Type})
		handler, err := a.handlers.For(record.Type)
		if err != nil {
			log.WithError(err).Warn("Cannot push message")
			continue
		}
		outbound, err := handler.GetPushPayload(ctx, record)
		if err != nil || outbound == nil || len(outbound.Payload) == 0 {
			log.WithError(err).Warn("No payload to push")
			continue
		}
		result = append(result, &PushMessage{
			Record:  record,
			Flags:   record.Flags(),
			Payload: outbound.Payload,
			Date:    outbound.Date,
		})
	}
	return result, nil
}

// MarkPushed records a successful upload. A zero uid means the server did not
// report one; the record is then matched by correlator on the next header fetch.
// record is the copy the upload was built from: only the reports it carried
// as flags are settled, later local changes stay pending.
func (a *Adapter) MarkPushed(ctx context.Context, record *models.MessageRecord, uid uint32) error {
	if err := a.store.MarkRecordPushed(ctx, record.ID, uid); err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	if uid != 0 {
		record.UID = &uid
	}
	record.PushStatus = models.PushStatusPushed
	if record.ReadStatus == models.ReadStatusReadReportRequested {
		if _, err := a.setReadStatus(ctx, record, models.ReadStatusReadReportRequested, models.ReadStatusRead); err != nil {
			return err
		}
	}
	if record.DeleteStatus == models.DeleteStatusDeletedReportRequested {
		if _, err := a.setDeleteStatus(ctx, record, models.DeleteStatusDeletedReportRequested, models.DeleteStatusDeleted); err != nil {
			return err
		}
	}
	return nil
}

// QueuePush registers a local message for upload. Queuing the same message
// twice returns the existing record.
func (a *Adapter) QueuePush(ctx context.Context, req PushRequest) (*models.MessageRecord, error) {
	existing, err := a.store.GetRecordByMessageID(ctx, req.MessageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	if existing != nil {
		return existing, nil
	}
	if req.Correlator == "" {
		return nil, fmt.Errorf("message %s: %w", req.MessageID, ErrMissingCorrelator)
	}
	if _, err := a.handlers.For(req.Type); err != nil {
		return nil, err
	}

	record := &models.MessageRecord{
		ID:           uuid.NewString(),
		Folder:       req.Folder,
		MessageID:    req.MessageID,
		Type:         req.Type,
		Correlator:   req.Correlator,
		ReadStatus:   models.ReadStatusUnread,
		DeleteStatus: models.DeleteStatusNotDeleted,
		PushStatus:   models.PushStatusPushRequested,
	}
	if req.Read {
		record.ReadStatus = models.ReadStatusReadReportRequested
	}
	if err := a.store.SaveRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save record: %w", err)
	}
	return record, nil
}

// MarkReadLocally requests a read report for a message read on this device.
func (a *Adapter) MarkReadLocally(ctx context.Context, messageID string) error {
	record, err := a.localRecord(ctx, messageID)
	if err != nil {
		return err
	}
	_, err = a.setReadStatus(ctx, record, models.ReadStatusUnread, models.ReadStatusReadReportRequested)
	return err
}

// MarkDeletedLocally requests a delete report for a message deleted on this device.
func (a *Adapter) MarkDeletedLocally(ctx context.Context, messageID string) error {
	record, err := a.localRecord(ctx, messageID)
	if err != nil {
		return err
	}
	_, err = a.setDeleteStatus(ctx, record, models.DeleteStatusNotDeleted, models.DeleteStatusDeletedReportRequested)
	return err
}

func (a *Adapter) localRecord(ctx context.Context, messageID string) (*models.MessageRecord, error) {
	record, err := a.store.GetRecordByMessageID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("message %s: %w", messageID, ErrRecordNotFound)
	}
	return record, nil
}
