package command

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
)

const listStatusCommand = `LIST "" "*" RETURN (STATUS (MESSAGES UIDNEXT UIDVALIDITY HIGHESTMODSEQ))`

var (
	statusLinePattern = regexp.MustCompile(`^\* STATUS (?:"((?:[^"\\]|\\.)*)"|(\S+)) \((.*)\)$`)
	statusItemPattern = regexp.MustCompile(`(MESSAGES|UIDNEXT|UIDVALIDITY|HIGHESTMODSEQ) (\d+)`)
)

// ListStatusHandler lists every mailbox together with its STATUS counters.
type ListStatusHandler struct {
	folders []*models.RemoteFolder
}

func NewListStatusHandler() *ListStatusHandler {
	return &ListStatusHandler{}
}

func (h *ListStatusHandler) BuildCommand(_ ...string) string {
	return listStatusCommand
}

// HandleLine parses `* STATUS <mailbox> (...)` lines. LIST lines are ignored.
func (h *ListStatusHandler) HandleLine(line string) bool {
	m := statusLinePattern.FindStringSubmatch(line)
	if m == nil {
		return false
	}

	name := m[2]
	if name == "" {
		name = unquote(m[1])
	}
	folder := &models.RemoteFolder{Name: name}
	for _, item := range statusItemPattern.FindAllStringSubmatch(m[3], -1) {
		value, err := strconv.ParseUint(item[2], 10, 64)
		if err != nil {
			continue
		}
		switch item[1] {
		case "MESSAGES":
			folder.MessageCount = uint32(value)
		case "UIDNEXT":
			folder.UIDNext = uint32(value)
		case "UIDVALIDITY":
			folder.UIDValidity = uint32(value)
		case "HIGHESTMODSEQ":
			folder.HighestModseq = value
		}
	}
	h.folders = append(h.folders, folder)
	return true
}

func (h *ListStatusHandler) HandlePart(_ []byte) {}

// Result returns the folders in the order the server listed them.
func (h *ListStatusHandler) Result() []*models.RemoteFolder {
	return h.folders
}

func unquote(s string) string {
	return strings.NewReplacer(`\\`, `\`, `\"`, `"`).Replace(s)
}
