package imap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/emersion/go-imap"
)

var (
	// ErrServiceUnavailable is returned by Acquire while another session is open.
	// It is the normal admission path, callers should not retry immediately.
	ErrServiceUnavailable = errors.New("IMAP service unavailable: a session is already open")
	// ErrSessionAborted is returned by Acquire when Terminate ran during login.
	ErrSessionAborted = errors.New("IMAP session aborted while opening")
	// ErrNotConnected is returned when a command is issued on a closed session.
	ErrNotConnected = errors.New("IMAP session is not connected")
)

// codeAppendUID is the UIDPLUS response code carried by a successful APPEND.
const codeAppendUID imap.StatusRespCode = "APPENDUID"

// ProtocolError is a tagged NO or BAD completion.
type ProtocolError struct {
	Command string
	Status  imap.StatusRespType
	Code    imap.StatusRespCode
	Info    string
}

func (e *ProtocolError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed: %s", e.Command, e.Status)
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Info != "" {
		b.WriteString(" ")
		b.WriteString(e.Info)
	}
	return b.String()
}

// IsNo reports whether err is a tagged NO, which the server uses for a
// mailbox or message that no longer exists.
func IsNo(err error) bool {
	var perr *ProtocolError
	return errors.As(err, &perr) && perr.Status == imap.StatusRespNo
}

// IsTryCreate reports whether err asks the client to create the mailbox and retry.
func IsTryCreate(err error) bool {
	var perr *ProtocolError
	return errors.As(err, &perr) && perr.Code == imap.CodeTryCreate
}

func statusError(command string, status *imap.StatusResp) error {
	return &ProtocolError{
		Command: command,
		Status:  status.Type,
		Code:    status.Code,
		Info:    status.Info,
	}
}
