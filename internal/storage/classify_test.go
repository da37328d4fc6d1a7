package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		typ        models.MessageType
		correlator string
		err        error
	}{
		{
			name:       "sms",
			header:     "From: +33600000001\r\nMessage-Context: pager-message\r\nMessage-Correlator: 1a2b3c\r\n\r\n",
			typ:        models.MessageTypeSMS,
			correlator: "1a2b3c",
		},
		{
			name:       "mms keys on Message-ID",
			header:     "Message-Context: Multimedia-Message\r\nMessage-ID: <mms-42@example.org>\r\n\r\n",
			typ:        models.MessageTypeMMS,
			correlator: "mms-42@example.org",
		},
		{
			name:       "chat",
			header:     "Content-Type: Message/CPIM\r\nIMDN-Message-ID: UFoF32HXf3\r\n\r\n",
			typ:        models.MessageTypeChat,
			correlator: "UFoF32HXf3",
		},
		{
			name:       "group state",
			header:     "Content-Type: Application/group-state-object+xml; charset=utf-8\r\nContribution-ID: contrib-1\r\n\r\n",
			typ:        models.MessageTypeGroupState,
			correlator: "contrib-1",
		},
		{
			name:       "header names are case-insensitive",
			header:     "message-context: pager-message\r\nmessage-correlator: abc\r\n\r\n",
			typ:        models.MessageTypeSMS,
			correlator: "abc",
		},
		{
			name:       "header block without trailing blank line",
			header:     "Message-Context: pager-message\r\nMessage-Correlator: xyz",
			typ:        models.MessageTypeSMS,
			correlator: "xyz",
		},
		{
			name:   "missing correlator",
			header: "Message-Context: pager-message\r\n\r\n",
			err:    ErrMissingCorrelator,
		},
		{
			name:   "plain email",
			header: "Subject: hello\r\nContent-Type: text/plain\r\n\r\n",
			err:    ErrUnknownMessageType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls, err := Classify([]byte(tt.header))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.typ, cls.Type)
			assert.Equal(t, tt.correlator, cls.Correlator)
		})
	}

	t.Run("empty header", func(t *testing.T) {
		_, err := Classify(nil)
		assert.Error(t, err)
	})
}

func TestDecodeMessage(t *testing.T) {
	raw := "From: <+33600000001@example.org>\r\n" +
		"To: <+33600000002@example.org>\r\n" +
		"Date: Wed, 15 Jul 2015 11:21:15 +0200\r\n" +
		"Message-Context: pager-message\r\n" +
		"Message-Correlator: c-1\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Hello from the store\r\n"
	msg := &models.Message{Folder: "Default/tel:+33600000001", UID: 3, Flags: []models.Flag{models.FlagSeen}, Payload: []byte(raw)}

	cls, err := Classify(msg.Payload)
	require.NoError(t, err)
	remote, err := DecodeMessage(msg, cls)
	require.NoError(t, err)

	assert.Equal(t, models.MessageTypeSMS, remote.Type)
	assert.Equal(t, "c-1", remote.Correlator)
	assert.Equal(t, "+33600000001@example.org", remote.From)
	assert.Equal(t, []string{"+33600000002@example.org"}, remote.To)
	assert.Equal(t, 2015, remote.Date.Year())
	assert.Contains(t, remote.Text, "Hello from the store")
	assert.True(t, remote.Seen)
	assert.False(t, remote.Deleted)
	assert.Equal(t, uint32(3), remote.UID)

	_, err = DecodeMessage(&models.Message{}, cls)
	assert.Error(t, err)
}

func TestHandlersFor(t *testing.T) {
	h := Handlers{}
	_, err := h.For(models.MessageTypeSMS)
	assert.Error(t, err)

	_, err = h.For(models.MessageTypeUnknown)
	assert.ErrorIs(t, err, ErrUnknownMessageType)

	_, err = h.For(models.MessageType("FAX"))
	assert.ErrorIs(t, err, ErrUnknownMessageType)
}
