package command

import (
	"fmt"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
)

const fetchHeadersCommand = "UID FETCH %s:%s (UID FLAGS MODSEQ RFC822.SIZE BODY.PEEK[HEADER])"

// FetchHeadersHandler fetches flags and the header block of a UID range.
type FetchHeadersHandler struct {
	folder   string
	messages []*models.Message
	last     *models.Message
}

func NewFetchHeadersHandler(folder string) *FetchHeadersHandler {
	return &FetchHeadersHandler{folder: folder}
}

// BuildCommand takes the first and last UID of the range.
func (h *FetchHeadersHandler) BuildCommand(params ...string) string {
	return fmt.Sprintf(fetchHeadersCommand, param(params, 0), param(params, 1))
}

func (h *FetchHeadersHandler) HandleLine(line string) bool {
	items, ok := parseFetchLine(line)
	if !ok {
		h.last = nil
		return false
	}
	msg := &models.Message{
		Folder: h.folder,
		UID:    items.uid,
		Flags:  toFlags(items.flags),
		Modseq: items.modseq,
		Size:   items.size,
	}
	h.messages = append(h.messages, msg)
	h.last = msg
	return true
}

// HandlePart attaches the header block to the message of the preceding line.
func (h *FetchHeadersHandler) HandlePart(part []byte) {
	if h.last == nil {
		return
	}
	h.last.Header = part
	h.last = nil
}

// Result returns the messages newest UID first.
func (h *FetchHeadersHandler) Result() []*models.Message {
	result := make([]*models.Message, len(h.messages))
	for i, msg := range h.messages {
		result[len(h.messages)-1-i] = msg
	}
	return result
}

func toFlags(flags []string) []models.Flag {
	if len(flags) == 0 {
		return nil
	}
	result := make([]models.Flag, 0, len(flags))
	for _, f := range flags {
		result = append(result, models.Flag(f))
	}
	return result
}
