package models

import "time"

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// LocalMessage is the on-device copy of a message, as held by the local provider.
// Conversation is the contact or chat id the folder is named after.
type LocalMessage struct {
	ID           string            `json:"id"`
	Type         MessageType       `json:"message_type"`
	Conversation string            `json:"conversation"`
	Correlator   string            `json:"correlator"`
	Direction    Direction         `json:"direction"`
	From         string            `json:"from"`
	To           []string          `json:"to"`
	Subject      string            `json:"subject,omitempty"`
	Text         string            `json:"text"`
	Payload      []byte            `json:"-"`
	SentAt       time.Time         `json:"sent_at"`
	Read         bool              `json:"read"`
	Deleted      bool              `json:"deleted"`
	Attachments  []LocalAttachment `json:"attachments,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

type LocalAttachment struct {
	FileName    string `json:"filename"`
	ContentType string `json:"content_type"`
	ContentID   string `json:"content_id,omitempty"`
	Content     []byte `json:"-"`
	SizeBytes   int    `json:"size_bytes"`
}
