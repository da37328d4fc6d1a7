package command

import (
	"fmt"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
)

const fetchMessageCommand = "UID FETCH %s (UID FLAGS MODSEQ RFC822.SIZE BODY.PEEK[])"

// FetchMessageHandler downloads one complete message.
type FetchMessageHandler struct {
	folder  string
	message *models.Message
	waiting bool
}

func NewFetchMessageHandler(folder string) *FetchMessageHandler {
	return &FetchMessageHandler{folder: folder}
}

func (h *FetchMessageHandler) BuildCommand(params ...string) string {
	return fmt.Sprintf(fetchMessageCommand, param(params, 0))
}

func (h *FetchMessageHandler) HandleLine(line string) bool {
	items, ok := parseFetchLine(line)
	if !ok {
		h.waiting = false
		return false
	}
	h.message = &models.Message{
		Folder: h.folder,
		UID:    items.uid,
		Flags:  toFlags(items.flags),
		Modseq: items.modseq,
		Size:   items.size,
	}
	h.waiting = true
	return true
}

func (h *FetchMessageHandler) HandlePart(part []byte) {
	if !h.waiting || h.message == nil {
		return
	}
	h.message.Payload = part
	h.waiting = false
}

// Result returns the fetched message, or nil when the server sent none.
func (h *FetchMessageHandler) Result() *models.Message {
	return h.message
}
