package models

import "time"

type ReadStatus string

const (
	ReadStatusUnread              ReadStatus = "UNREAD"
	ReadStatusReadReportRequested ReadStatus = "READ_REPORT_REQUESTED"
	ReadStatusRead                ReadStatus = "READ"
)

type DeleteStatus string

const (
	DeleteStatusNotDeleted             DeleteStatus = "NOT_DELETED"
	DeleteStatusDeletedReportRequested DeleteStatus = "DELETED_REPORT_REQUESTED"
	DeleteStatusDeleted                DeleteStatus = "DELETED"
)

type PushStatus string

const (
	PushStatusPushRequested PushStatus = "PUSH_REQUESTED"
	PushStatusPushed        PushStatus = "PUSHED"
)

// MessageRecord correlates a local message with its copy on the message store.
// UID is nil until the message has been pushed or discovered remotely.
type MessageRecord struct {
	ID           string       `json:"id"`
	Folder       string       `json:"folder"`
	UID          *uint32      `json:"uid"`
	MessageID    string       `json:"message_id"`
	Type         MessageType  `json:"message_type"`
	Correlator   string       `json:"correlator"`
	ReadStatus   ReadStatus   `json:"read_status"`
	DeleteStatus DeleteStatus `json:"delete_status"`
	PushStatus   PushStatus   `json:"push_status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// HasUID reports whether the server assigned a UID to the record.
func (r *MessageRecord) HasUID() bool {
	return r.UID != nil && *r.UID != 0
}

// Flags returns the IMAP flags mirroring the record's read and delete state.
func (r *MessageRecord) Flags() []Flag {
	var flags []Flag
	if r.ReadStatus != ReadStatusUnread {
		flags = append(flags, FlagSeen)
	}
	if r.DeleteStatus != DeleteStatusNotDeleted {
		flags = append(flags, FlagDeleted)
	}
	return flags
}

// OutboundMessage is what a native provider hands over for a push.
type OutboundMessage struct {
	Payload []byte
	Date    time.Time
}
