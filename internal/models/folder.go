package models

// RemoteFolder is a snapshot of a mailbox on the message store, as reported by
// LIST-STATUS or SELECT (CONDSTORE). It is immutable for the duration of one sync pass.
type RemoteFolder struct {
	Name          string `json:"name"`
	MessageCount  uint32 `json:"message_count"`
	UIDNext       uint32 `json:"uid_next"`
	UIDValidity   uint32 `json:"uid_validity"`
	HighestModseq uint64 `json:"highest_modseq"`
}

// LastUID returns the highest UID the server could have assigned so far.
func (f *RemoteFolder) LastUID() uint32 {
	if f.UIDNext == 0 {
		return 0
	}
	return f.UIDNext - 1
}

// LocalFolder is the persisted mirror of a RemoteFolder.
// MaxUID and Modseq only advance after a sync pass completed successfully.
type LocalFolder struct {
	Name        string `json:"name"`
	MaxUID      uint32 `json:"max_uid"`
	Modseq      uint64 `json:"modseq"`
	UIDValidity uint32 `json:"uid_validity"`
}

// IsInSync reports whether nothing changed on the server since the folder was last synced.
func (f *LocalFolder) IsInSync(remote *RemoteFolder) bool {
	if f == nil || remote == nil {
		return false
	}
	return f.UIDValidity == remote.UIDValidity &&
		f.MaxUID >= remote.LastUID() &&
		f.Modseq >= remote.HighestModseq
}
