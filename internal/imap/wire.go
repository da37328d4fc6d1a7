package imap

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/responses"
	"github.com/sirupsen/logrus"

	"github.com/yplo6403/rcsjta-sub005/internal/imap/command"
)

// rawCommand sends its text as-is after the tag.
type rawCommand string

func (c rawCommand) Command() *imap.Command {
	return &imap.Command{Name: string(c)}
}

// lineHandler feeds untagged responses to a command.Handler as canonical
// response lines, followed by the literals the line carried.
type lineHandler struct {
	handler command.Handler
	log     logrus.FieldLogger
}

func (h *lineHandler) Handle(resp imap.Resp) error {
	switch r := resp.(type) {
	case *imap.StatusResp:
		if r.Type == imap.StatusRespBye {
			return responses.ErrUnhandled
		}
		line, _, err := renderStatus(r)
		if err != nil {
			h.log.WithError(err).Warn("Skipping unreadable status response")
			return nil
		}
		h.handler.HandleLine(line)
		return nil
	case *imap.DataResp:
		if name, _, ok := imap.ParseNamedResp(r); ok && name == "CAPABILITY" {
			return responses.ErrUnhandled
		}
		line, parts, err := renderData(r)
		if err != nil {
			h.log.WithError(err).Warn("Skipping unreadable data response")
			return nil
		}
		if h.handler.HandleLine(line) {
			for _, part := range parts {
				h.handler.HandlePart(part)
			}
		} else {
			h.log.WithField("line", truncate(line, 120)).Debug("Unmatched response line")
		}
		return nil
	default:
		return responses.ErrUnhandled
	}
}

func renderStatus(r *imap.StatusResp) (string, [][]byte, error) {
	var b strings.Builder
	var parts [][]byte
	b.WriteString("* ")
	b.WriteString(string(r.Type))
	if r.Code != "" {
		b.WriteString(" [")
		b.WriteString(string(r.Code))
		if len(r.Arguments) > 0 {
			b.WriteByte(' ')
			if err := renderFields(&b, r.Arguments, &parts); err != nil {
				return "", nil, err
			}
		}
		b.WriteByte(']')
	}
	if r.Info != "" {
		b.WriteByte(' ')
		b.WriteString(r.Info)
	}
	return b.String(), parts, nil
}

func renderData(r *imap.DataResp) (string, [][]byte, error) {
	var b strings.Builder
	var parts [][]byte
	b.WriteString("* ")
	if err := renderFields(&b, r.Fields, &parts); err != nil {
		return "", nil, err
	}
	return b.String(), parts, nil
}

func renderFields(b *strings.Builder, fields []interface{}, parts *[][]byte) error {
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch v := field.(type) {
		case nil:
			b.WriteString("NIL")
		case string:
			b.WriteString(renderString(v))
		case imap.RawString:
			b.WriteString(string(v))
		case []interface{}:
			b.WriteByte('(')
			if err := renderFields(b, v, parts); err != nil {
				return err
			}
			b.WriteByte(')')
		case imap.Literal:
			data, err := io.ReadAll(v)
			if err != nil {
				return fmt.Errorf("failed to read literal: %w", err)
			}
			*parts = append(*parts, data)
			fmt.Fprintf(b, "{%d}", len(data))
		default:
			fmt.Fprint(b, v)
		}
	}
	return nil
}

// renderString writes atoms bare and quotes anything an atom cannot hold.
// The reader hands both forms back as plain strings.
func renderString(s string) string {
	if s != "" && !strings.ContainsAny(s, " \"(){%\r\n\t") {
		return s
	}
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
