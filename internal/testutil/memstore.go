package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
)

// MemoryStore is an in-memory record store for adapter and sync tests.
// It returns copies so callers never alias stored state.
type MemoryStore struct {
	mu      sync.Mutex
	folders map[string]models.LocalFolder
	records map[string]models.MessageRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		folders: make(map[string]models.LocalFolder),
		records: make(map[string]models.MessageRecord),
	}
}

func (s *MemoryStore) GetLocalFolder(_ context.Context, name string) (*models.LocalFolder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.folders[name]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (s *MemoryStore) GetLocalFolders(_ context.Context) ([]*models.LocalFolder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]*models.LocalFolder, 0, len(s.folders))
	for _, f := range s.folders {
		f := f
		result = append(result, &f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *MemoryStore) SaveLocalFolder(_ context.Context, folder *models.LocalFolder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders[folder.Name] = *folder
	return nil
}

func (s *MemoryStore) DeleteLocalFolder(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.folders, name)
	return nil
}

func (s *MemoryStore) GetRecordByUID(_ context.Context, folder string, uid uint32) (*models.MessageRecord, error) {
	return s.find(func(r *models.MessageRecord) bool {
		return r.Folder == folder && r.UID != nil && *r.UID == uid
	}), nil
}

func (s *MemoryStore) GetRecordByCorrelator(_ context.Context, folder, correlator string) (*models.MessageRecord, error) {
	return s.find(func(r *models.MessageRecord) bool {
		return r.Folder == folder && r.Correlator == correlator
	}), nil
}

func (s *MemoryStore) GetRecordByMessageID(_ context.Context, messageID string) (*models.MessageRecord, error) {
	return s.find(func(r *models.MessageRecord) bool {
		return r.MessageID == messageID
	}), nil
}

func (s *MemoryStore) SaveRecord(_ context.Context, record *models.MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if existing, ok := s.records[record.ID]; ok {
		record.CreatedAt = existing.CreatedAt
	} else if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	s.records[record.ID] = copyRecord(record)
	return nil
}

func (s *MemoryStore) UpdateReadStatus(_ context.Context, id string, from, to models.ReadStatus) (bool, error) {
	return s.update(id, func(r *models.MessageRecord) bool {
		if r.ReadStatus != from {
			return false
		}
		r.ReadStatus = to
		return true
	}), nil
}

func (s *MemoryStore) UpdateDeleteStatus(_ context.Context, id string, from, to models.DeleteStatus) (bool, error) {
	return s.update(id, func(r *models.MessageRecord) bool {
		if r.DeleteStatus != from {
			return false
		}
		r.DeleteStatus = to
		return true
	}), nil
}

func (s *MemoryStore) MarkRecordPushed(_ context.Context, id string, uid uint32) error {
	s.update(id, func(r *models.MessageRecord) bool {
		r.PushStatus = models.PushStatusPushed
		if uid != 0 {
			u := uid
			r.UID = &u
		}
		return true
	})
	return nil
}

func (s *MemoryStore) update(id string, apply func(*models.MessageRecord) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || !apply(&r) {
		return false
	}
	r.UpdatedAt = time.Now()
	s.records[id] = r
	return true
}

func (s *MemoryStore) ResetFolderUIDs(_ context.Context, folder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.records {
		if r.Folder == folder {
			r.UID = nil
			s.records[id] = r
		}
	}
	return nil
}

func (s *MemoryStore) DeleteFolderRecords(_ context.Context, folder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.records {
		if r.Folder == folder && r.PushStatus != models.PushStatusPushRequested {
			delete(s.records, id)
		}
	}
	return nil
}

func (s *MemoryStore) GetPendingFlagRecords(_ context.Context, folder string) ([]*models.MessageRecord, error) {
	return s.filter(func(r *models.MessageRecord) bool {
		return (folder == "" || r.Folder == folder) && r.HasUID() &&
			(r.ReadStatus == models.ReadStatusReadReportRequested || r.DeleteStatus == models.DeleteStatusDeletedReportRequested)
	}), nil
}

func (s *MemoryStore) GetPushRequested(_ context.Context, folder string) ([]*models.MessageRecord, error) {
	return s.filter(func(r *models.MessageRecord) bool {
		return (folder == "" || r.Folder == folder) && r.PushStatus == models.PushStatusPushRequested
	}), nil
}

// Records returns every stored record ordered by creation.
func (s *MemoryStore) Records() []*models.MessageRecord {
	return s.filter(func(*models.MessageRecord) bool { return true })
}

func (s *MemoryStore) find(match func(*models.MessageRecord) bool) *models.MessageRecord {
	found := s.filter(match)
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

func (s *MemoryStore) filter(match func(*models.MessageRecord) bool) []*models.MessageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*models.MessageRecord
	for _, r := range s.records {
		c := copyRecord(&r)
		if match(&c) {
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func copyRecord(r *models.MessageRecord) models.MessageRecord {
	c := *r
	if r.UID != nil {
		uid := *r.UID
		c.UID = &uid
	}
	return c
}
