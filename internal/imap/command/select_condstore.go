package command

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
)

const selectCondstoreCommand = "SELECT %s (CONDSTORE)"

var (
	selectCodePattern   = regexp.MustCompile(`^\* OK \[(UIDVALIDITY|UIDNEXT|HIGHESTMODSEQ) (\d+)\]`)
	selectExistsPattern = regexp.MustCompile(`^\* (\d+) EXISTS`)
)

type remoteFolder struct {
	name          string
	messages      uint32
	uidNext       uint32
	uidValidity   uint32
	highestModseq uint64
}

// SelectCondstoreHandler selects a folder with CONDSTORE enabled and collects
// its UIDVALIDITY, UIDNEXT and HIGHESTMODSEQ.
type SelectCondstoreHandler struct {
	folder *remoteFolder
}

// NewSelectCondstoreHandler fails with ErrCapabilityMissing when the server
// does not advertise CONDSTORE.
func NewSelectCondstoreHandler(folder string, caps Capabilities) (*SelectCondstoreHandler, error) {
	h, err := New(TypeSelectCondstore, folder, caps)
	if err != nil {
		return nil, err
	}
	return h.(*SelectCondstoreHandler), nil
}

// BuildCommand takes the folder name as its only parameter; it defaults to the handler's folder.
func (h *SelectCondstoreHandler) BuildCommand(params ...string) string {
	name := param(params, 0)
	if name == "" {
		name = h.folder.name
	}
	return fmt.Sprintf(selectCondstoreCommand, quoteMailbox(name))
}

func (h *SelectCondstoreHandler) HandleLine(line string) bool {
	if m := selectExistsPattern.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseUint(m[1], 10, 32); err == nil {
			h.folder.messages = uint32(v)
			return true
		}
		return false
	}

	m := selectCodePattern.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	value, err := strconv.ParseUint(m[2], 10, 64)
	if err != nil {
		return false
	}
	switch m[1] {
	case "UIDVALIDITY":
		h.folder.uidValidity = uint32(value)
	case "UIDNEXT":
		h.folder.uidNext = uint32(value)
	case "HIGHESTMODSEQ":
		h.folder.highestModseq = value
	}
	return true
}

func (h *SelectCondstoreHandler) HandlePart(_ []byte) {}

func (h *SelectCondstoreHandler) Result() *models.RemoteFolder {
	return &models.RemoteFolder{
		Name:          h.folder.name,
		MessageCount:  h.folder.messages,
		UIDNext:       h.folder.uidNext,
		UIDValidity:   h.folder.uidValidity,
		HighestModseq: h.folder.highestModseq,
	}
}
