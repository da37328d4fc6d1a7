package storage

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
)

// RemoteMessage is a downloaded message decoded for the type handlers.
type RemoteMessage struct {
	Folder      string
	UID         uint32
	Type        models.MessageType
	Correlator  string
	From        string
	To          []string
	Subject     string
	Date        time.Time
	Text        string
	Attachments []Attachment
	Seen        bool
	Deleted     bool
	Raw         []byte
}

// Attachment is a non-text part of a remote message.
type Attachment struct {
	FileName    string
	ContentType string
	ContentID   string
	Content     []byte
}

// DecodeMessage decodes a downloaded message. Body decoding errors are not
// fatal: the raw payload is kept for handlers that parse it themselves.
func DecodeMessage(msg *models.Message, cls *Classification) (*RemoteMessage, error) {
	if msg == nil || len(msg.Payload) == 0 {
		return nil, fmt.Errorf("message has no payload")
	}

	remote := &RemoteMessage{
		Folder:     msg.Folder,
		UID:        msg.UID,
		Type:       cls.Type,
		Correlator: cls.Correlator,
		Seen:       msg.HasFlag(models.FlagSeen),
		Deleted:    msg.HasFlag(models.FlagDeleted),
		Raw:        msg.Payload,
	}

	if from, err := cls.Header.AddressList("From"); err == nil && len(from) > 0 {
		remote.From = from[0].Address
	} else {
		remote.From = strings.TrimSpace(cls.Header.Get("From"))
	}
	if to, err := cls.Header.AddressList("To"); err == nil {
		for _, addr := range to {
			remote.To = append(remote.To, addr.Address)
		}
	}
	if date, err := cls.Header.Date(); err == nil {
		remote.Date = date
	}
	if subject, err := cls.Header.Subject(); err == nil {
		remote.Subject = subject
	}

	envelope, err := enmime.ReadEnvelope(bytes.NewReader(msg.Payload))
	if err != nil {
		return remote, nil
	}
	remote.Text = envelope.Text
	for _, parts := range [][]*enmime.Part{envelope.Attachments, envelope.Inlines, envelope.OtherParts} {
		for _, part := range parts {
			remote.Attachments = append(remote.Attachments, Attachment{
				FileName:    part.FileName,
				ContentType: part.ContentType,
				ContentID:   part.ContentID,
				Content:     part.Content,
			})
		}
	}
	return remote, nil
}
