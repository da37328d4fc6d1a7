package models

import (
	"sort"

	"github.com/emersion/go-imap"
)

// Flag is an IMAP system or keyword flag, kept verbatim (for example `\Seen`).
type Flag string

const (
	FlagSeen    Flag = imap.SeenFlag
	FlagDeleted Flag = imap.DeletedFlag
)

// FlagOperation tells whether a FlagChange adds or removes its flag.
type FlagOperation int

const (
	FlagAdd FlagOperation = iota
	FlagRemove
)

func (o FlagOperation) String() string {
	if o == FlagRemove {
		return "REMOVE"
	}
	return "ADD"
}

// MessageType is the domain type a remote message resolves to.
// It is decided once, from the message headers, and matched exhaustively afterwards.
type MessageType string

const (
	MessageTypeUnknown    MessageType = ""
	MessageTypeSMS        MessageType = "SMS"
	MessageTypeMMS        MessageType = "MMS"
	MessageTypeChat       MessageType = "CHAT_MESSAGE"
	MessageTypeGroupState MessageType = "GROUP_STATE"
)

// Message is a message of a remote folder. Header and Payload are filled by
// the fetch that produced the message; Payload stays nil until the body is downloaded.
type Message struct {
	Folder  string
	UID     uint32
	Flags   []Flag
	Modseq  uint64
	Size    uint32
	Header  []byte
	Payload []byte
}

// HasFlag reports whether the message carries the given flag.
func (m *Message) HasFlag(flag Flag) bool {
	for _, f := range m.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// FlagChange is a batch of UIDs of one folder that gained or lost one flag.
type FlagChange struct {
	Folder    string
	UIDs      []uint32
	Flag      Flag
	Operation FlagOperation
}

// NewFlagChange builds a FlagChange with its UIDs sorted and deduplicated.
func NewFlagChange(folder string, flag Flag, op FlagOperation, uids []uint32) *FlagChange {
	set := make(map[uint32]struct{}, len(uids))
	sorted := make([]uint32, 0, len(uids))
	for _, uid := range uids {
		if _, dup := set[uid]; dup {
			continue
		}
		set[uid] = struct{}{}
		sorted = append(sorted, uid)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return &FlagChange{Folder: folder, UIDs: sorted, Flag: flag, Operation: op}
}

// IsDelete reports whether the change marks messages as deleted.
func (c *FlagChange) IsDelete() bool {
	return c.Flag == FlagDeleted && c.Operation == FlagAdd
}

// IsSeen reports whether the change marks messages as read.
func (c *FlagChange) IsSeen() bool {
	return c.Flag == FlagSeen && c.Operation == FlagAdd
}
