package command

import (
	"fmt"
	"sort"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
)

// fetchFlagsCommand takes the highest UID to inspect and the MODSEQ to start from.
const fetchFlagsCommand = "UID FETCH 1:%s (UID FLAGS) (CHANGEDSINCE %s)"

// FetchFlagsHandler collects the flags that changed since a MODSEQ and groups
// them into one ADD FlagChange per flag.
type FetchFlagsHandler struct {
	folder string
	byFlag map[models.Flag][]uint32
}

func NewFetchFlagsHandler(folder string) *FetchFlagsHandler {
	return &FetchFlagsHandler{folder: folder, byFlag: make(map[models.Flag][]uint32)}
}

func (h *FetchFlagsHandler) BuildCommand(params ...string) string {
	return fmt.Sprintf(fetchFlagsCommand, param(params, 0), param(params, 1))
}

func (h *FetchFlagsHandler) HandleLine(line string) bool {
	items, ok := parseFetchLine(line)
	if !ok {
		return false
	}
	for _, flag := range items.flags {
		f := models.Flag(flag)
		h.byFlag[f] = append(h.byFlag[f], items.uid)
	}
	return true
}

func (h *FetchFlagsHandler) HandlePart(_ []byte) {}

// Result returns one change per observed flag. Deleted comes first and Seen
// second so that deletion wins when both are applied in order; other flags
// follow in lexical order.
func (h *FetchFlagsHandler) Result() []*models.FlagChange {
	changes := make([]*models.FlagChange, 0, len(h.byFlag))
	for _, flag := range []models.Flag{models.FlagDeleted, models.FlagSeen} {
		if uids, ok := h.byFlag[flag]; ok {
			changes = append(changes, models.NewFlagChange(h.folder, flag, models.FlagAdd, uids))
		}
	}

	var others []models.Flag
	for flag := range h.byFlag {
		if flag != models.FlagDeleted && flag != models.FlagSeen {
			others = append(others, flag)
		}
	}
	sort.Slice(others, func(i, j int) bool { return others[i] < others[j] })
	for _, flag := range others {
		changes = append(changes, models.NewFlagChange(h.folder, flag, models.FlagAdd, h.byFlag[flag]))
	}
	return changes
}
