package storage

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
)

var (
	// ErrUnknownMessageType is returned for headers matching no message type.
	ErrUnknownMessageType = errors.New("unknown message type")
	// ErrMissingCorrelator is returned when the correlation header of a type is absent.
	ErrMissingCorrelator = errors.New("missing correlation header")
	// ErrNoHandler is returned for a known type without a registered handler.
	ErrNoHandler = errors.New("no handler registered")
)

const (
	headerMessageContext    = "Message-Context"
	headerContentType       = "Content-Type"
	headerMessageCorrelator = "Message-Correlator"
	headerMessageID         = "Message-Id"
	headerIMDNMessageID     = "Imdn-Message-Id"
	headerContributionID    = "Contribution-Id"

	contextPager      = "pager-message"
	contextMultimedia = "multimedia-message"
	contentTypeCPIM   = "message/cpim"
	contentTypeGroup  = "application/group-state-object+xml"
)

// Classification is the message type and correlation key read from headers.
type Classification struct {
	Type       models.MessageType
	Correlator string
	Header     mail.Header
}

// Classify resolves the message type of a header block, or of a full
// message whose header ends at the first blank line.
func Classify(raw []byte) (*Classification, error) {
	header, err := readHeader(raw)
	if err != nil {
		return nil, err
	}

	typ := classifyHeader(header)
	var correlator string
	switch typ {
	case models.MessageTypeSMS:
		correlator = header.Get(headerMessageCorrelator)
	case models.MessageTypeMMS:
		correlator, err = header.MessageID()
		if err != nil || correlator == "" {
			correlator = strings.Trim(header.Get(headerMessageID), "<> ")
		}
	case models.MessageTypeChat:
		correlator = header.Get(headerIMDNMessageID)
	case models.MessageTypeGroupState:
		correlator = header.Get(headerContributionID)
	case models.MessageTypeUnknown:
		return nil, ErrUnknownMessageType
	}

	correlator = strings.TrimSpace(correlator)
	if correlator == "" {
		return nil, fmt.Errorf("%s message: %w", typ, ErrMissingCorrelator)
	}
	return &Classification{Type: typ, Correlator: correlator, Header: header}, nil
}

func classifyHeader(h mail.Header) models.MessageType {
	switch strings.ToLower(strings.TrimSpace(h.Get(headerMessageContext))) {
	case contextPager:
		return models.MessageTypeSMS
	case contextMultimedia:
		return models.MessageTypeMMS
	}

	mediaType, _, err := h.ContentType()
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(h.Get(headerContentType), ";", 2)[0]))
	}
	switch mediaType {
	case contentTypeCPIM:
		return models.MessageTypeChat
	case contentTypeGroup:
		return models.MessageTypeGroupState
	}
	return models.MessageTypeUnknown
}

func readHeader(raw []byte) (mail.Header, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return mail.Header{}, fmt.Errorf("empty header block")
	}
	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil && !errors.Is(err, io.EOF) {
		return mail.Header{}, fmt.Errorf("failed to parse header: %w", err)
	}
	return mail.Header{Header: message.Header{Header: h}}, nil
}
