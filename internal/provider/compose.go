package provider

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
	"github.com/yplo6403/rcsjta-sub005/internal/storage"
)

// Compose encodes a local message the way the message store expects it:
// the type header and correlation key header match what the classifier reads back.
func Compose(msg *models.LocalMessage) ([]byte, error) {
	var h mail.Header
	h.SetDate(msg.SentAt)
	if msg.From != "" {
		h.Set("From", msg.From)
	}
	if len(msg.To) > 0 {
		h.Set("To", strings.Join(msg.To, ", "))
	}
	if msg.Subject != "" {
		h.SetSubject(msg.Subject)
	}

	switch msg.Type {
	case models.MessageTypeSMS:
		h.Set("Message-Context", "pager-message")
		h.Set("Message-Correlator", msg.Correlator)
		h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	case models.MessageTypeMMS:
		h.Set("Message-Context", "multimedia-message")
		h.SetMessageID(msg.Correlator)
	case models.MessageTypeChat:
		h.SetContentType("message/cpim", nil)
		h.Set("Content-Transfer-Encoding", "8bit")
		h.Set("IMDN-Message-ID", msg.Correlator)
	case models.MessageTypeGroupState:
		h.SetContentType("application/group-state-object+xml", nil)
		h.Set("Content-Transfer-Encoding", "8bit")
		h.Set("Contribution-ID", msg.Correlator)
	default:
		return nil, fmt.Errorf("message type %q: %w", msg.Type, storage.ErrUnknownMessageType)
	}

	var buf bytes.Buffer
	if msg.Type == models.MessageTypeMMS && len(msg.Attachments) > 0 {
		if err := writeMultipart(&buf, h, msg); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	if !h.Has("Content-Type") {
		h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	}
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, msg.Text); err != nil {
		return nil, fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message writer: %w", err)
	}
	return buf.Bytes(), nil
}

func writeMultipart(buf *bytes.Buffer, h mail.Header, msg *models.LocalMessage) error {
	mw, err := mail.CreateWriter(buf, h)
	if err != nil {
		return fmt.Errorf("failed to create multipart writer: %w", err)
	}

	if msg.Text != "" {
		tw, err := mw.CreateInline()
		if err != nil {
			return fmt.Errorf("failed to create inline part: %w", err)
		}
		var th mail.InlineHeader
		th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		w, err := tw.CreatePart(th)
		if err != nil {
			return fmt.Errorf("failed to create text part: %w", err)
		}
		if _, err := io.WriteString(w, msg.Text); err != nil {
			return fmt.Errorf("failed to write text part: %w", err)
		}
		if err := w.Close(); err != nil {
			return err
		}
		if err := tw.Close(); err != nil {
			return err
		}
	}

	for _, a := range msg.Attachments {
		var ah mail.AttachmentHeader
		ah.SetContentType(a.ContentType, nil)
		if a.FileName != "" {
			ah.SetFilename(a.FileName)
		}
		if a.ContentID != "" {
			ah.Set("Content-Id", "<"+a.ContentID+">")
		}
		w, err := mw.CreateAttachment(ah)
		if err != nil {
			return fmt.Errorf("failed to create attachment %s: %w", a.FileName, err)
		}
		if _, err := w.Write(a.Content); err != nil {
			return fmt.Errorf("failed to write attachment %s: %w", a.FileName, err)
		}
		if err := w.Close(); err != nil {
			return err
		}
	}

	return mw.Close()
}
