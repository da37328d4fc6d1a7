// Package command translates CMS operations into IMAP command lines and parses
// the untagged response lines the server sends back.
//
// Handlers do no I/O. The transport feeds them one response line at a time
// through HandleLine and, when HandleLine reports a match, the message parts
// (literals) that came with that line through HandlePart. Lines that do not
// match the expected pattern are skipped so that one malformed line never
// aborts a multi-line response.
package command

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrCapabilityMissing is returned when the server lacks a capability a handler needs.
var ErrCapabilityMissing = errors.New("required IMAP capability is missing")

// CapabilityCondstore is the RFC 7162 extension needed for incremental sync.
const CapabilityCondstore = "CONDSTORE"

// Handler drives one command's request/response cycle.
// Results are only valid once the tagged completion line has been received.
type Handler interface {
	// BuildCommand returns the command line (without tag) for the given parameters.
	BuildCommand(params ...string) string
	// HandleLine consumes one untagged response line and reports whether it matched.
	HandleLine(line string) bool
	// HandlePart consumes a message part that followed the last matched line.
	HandlePart(part []byte)
}

// Type identifies a handler family.
type Type int

const (
	TypeListStatus Type = iota
	TypeSelectCondstore
	TypeFetchFlags
	TypeFetchHeaders
	TypeFetchMessage
)

func (t Type) String() string {
	switch t {
	case TypeListStatus:
		return "LIST_STATUS"
	case TypeSelectCondstore:
		return "SELECT_CONDSTORE"
	case TypeFetchFlags:
		return "FETCH_FLAGS"
	case TypeFetchHeaders:
		return "FETCH_HEADERS"
	case TypeFetchMessage:
		return "FETCH_MESSAGE"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Capabilities is the server capability set, as returned by CAPABILITY.
type Capabilities map[string]bool

// Has reports whether the capability is advertised. Names compare case-insensitively.
func (c Capabilities) Has(name string) bool {
	for capability, ok := range c {
		if ok && strings.EqualFold(capability, name) {
			return true
		}
	}
	return false
}

// requiredCapability returns the capability a handler type needs, or "".
func requiredCapability(t Type) string {
	if t == TypeSelectCondstore {
		return CapabilityCondstore
	}
	return ""
}

// New looks up the handler for a command family. It fails before any
// network I/O when the server cannot run that command.
func New(t Type, folder string, caps Capabilities) (Handler, error) {
	if capability := requiredCapability(t); capability != "" && !caps.Has(capability) {
		return nil, fmt.Errorf("%s needs %s: %w", t, capability, ErrCapabilityMissing)
	}

	switch t {
	case TypeListStatus:
		return NewListStatusHandler(), nil
	case TypeSelectCondstore:
		return &SelectCondstoreHandler{folder: &remoteFolder{name: folder}}, nil
	case TypeFetchFlags:
		return NewFetchFlagsHandler(folder), nil
	case TypeFetchHeaders:
		return NewFetchHeadersHandler(folder), nil
	case TypeFetchMessage:
		return NewFetchMessageHandler(folder), nil
	default:
		return nil, fmt.Errorf("unknown command type %d", int(t))
	}
}

var (
	fetchLinePattern = regexp.MustCompile(`^\* \d+ FETCH \((.*)\)$`)
	uidItemPattern   = regexp.MustCompile(`(?:^|[ (])UID (\d+)`)
	flagsItemPattern = regexp.MustCompile(`(?:^|[ (])FLAGS \(([^)]*)\)`)
	modseqPattern    = regexp.MustCompile(`(?:^|[ (])MODSEQ \((\d+)\)`)
	sizeItemPattern  = regexp.MustCompile(`(?:^|[ (])RFC822\.SIZE (\d+)`)
)

// fetchItems holds the data items of one FETCH response line.
type fetchItems struct {
	uid    uint32
	flags  []string
	modseq uint64
	size   uint32
}

// parseFetchLine extracts UID, FLAGS, MODSEQ and RFC822.SIZE from a FETCH line.
// Items may come in any order; UID is mandatory.
func parseFetchLine(line string) (*fetchItems, bool) {
	m := fetchLinePattern.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	body := m[1]

	uidMatch := uidItemPattern.FindStringSubmatch(body)
	if uidMatch == nil {
		return nil, false
	}
	uid, err := strconv.ParseUint(uidMatch[1], 10, 32)
	if err != nil || uid == 0 {
		return nil, false
	}

	items := &fetchItems{uid: uint32(uid)}
	if f := flagsItemPattern.FindStringSubmatch(body); f != nil {
		items.flags = strings.Fields(f[1])
	}
	if ms := modseqPattern.FindStringSubmatch(body); ms != nil {
		if v, err := strconv.ParseUint(ms[1], 10, 64); err == nil {
			items.modseq = v
		}
	}
	if sz := sizeItemPattern.FindStringSubmatch(body); sz != nil {
		if v, err := strconv.ParseUint(sz[1], 10, 32); err == nil {
			items.size = uint32(v)
		}
	}
	return items, true
}

// quoteMailbox renders a mailbox name as an IMAP quoted string.
func quoteMailbox(name string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(name)
	return `"` + escaped + `"`
}

// param returns params[i] or "" when missing.
func param(params []string, i int) string {
	if i < len(params) {
		return params[i]
	}
	return ""
}
