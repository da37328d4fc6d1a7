package testutil

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// ScriptedReply is what the scripted server answers to one command.
// Untagged lines are written verbatim with CRLF appended; use Literal to embed
// message parts. Completion is the tagged status, for example "OK" or
// "NO [TRYCREATE] Mailbox does not exist".
type ScriptedReply struct {
	Untagged   []string
	Completion string
}

type scriptedRule struct {
	prefix string
	reply  func(line string) ScriptedReply
}

// ScriptedIMAPServer is a line-level IMAP server answering from a script.
// It accepts any LOGIN and records every command it receives (without tag),
// which the memory backend cannot do for CONDSTORE or LIST-STATUS flows.
type ScriptedIMAPServer struct {
	Address      string
	Capabilities []string

	listener net.Listener
	mu       sync.Mutex
	rules    []scriptedRule
	commands []string
	appended [][]byte
	conns    []net.Conn
	wg       sync.WaitGroup
}

var literalSuffix = regexp.MustCompile(`\{(\d+)\}$`)

// NewScriptedIMAPServer starts a scripted server on a random local port.
// It advertises CONDSTORE, UIDPLUS and LIST-STATUS unless Capabilities is changed.
func NewScriptedIMAPServer(t *testing.T) *ScriptedIMAPServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	s := &ScriptedIMAPServer{
		Address:      listener.Addr().String(),
		Capabilities: []string{"IMAP4rev1", "CONDSTORE", "UIDPLUS", "LIST-STATUS"},
		listener:     listener,
	}

	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)

	return s
}

// On registers a fixed reply for commands starting with prefix.
// Rules are matched in registration order.
func (s *ScriptedIMAPServer) On(prefix string, untagged []string, completion string) {
	s.OnFunc(prefix, func(string) ScriptedReply {
		return ScriptedReply{Untagged: untagged, Completion: completion}
	})
}

// OnFunc registers a computed reply for commands starting with prefix.
func (s *ScriptedIMAPServer) OnFunc(prefix string, reply func(line string) ScriptedReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, scriptedRule{prefix: prefix, reply: reply})
}

// Commands returns the commands received so far, excluding the session
// commands CAPABILITY, LOGIN and LOGOUT.
func (s *ScriptedIMAPServer) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Appended returns the message literals received by APPEND.
func (s *ScriptedIMAPServer) Appended() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.appended...)
}

// Close stops the server and drops open connections.
func (s *ScriptedIMAPServer) Close() {
	_ = s.listener.Close()
	s.mu.Lock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Literal renders a string as an IMAP literal for use in untagged lines.
func Literal(data string) string {
	return fmt.Sprintf("{%d}\r\n%s", len(data), data)
}

func (s *ScriptedIMAPServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() { _ = conn.Close() }()
			s.session(conn)
		}()
	}
}

func (s *ScriptedIMAPServer) session(conn net.Conn) {
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	write := func(lines ...string) bool {
		for _, l := range lines {
			if _, err := w.WriteString(l + "\r\n"); err != nil {
				return false
			}
		}
		return w.Flush() == nil
	}

	if !write("* OK scripted IMAP server ready") {
		return
	}

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")

		var literal []byte
		if m := literalSuffix.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[1])
			if !write("+ Ready for literal data") {
				return
			}
			literal = make([]byte, n)
			if _, err := io.ReadFull(r, literal); err != nil {
				return
			}
			rest, err := r.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimSpace(strings.TrimSuffix(line, m[0]) + strings.TrimRight(rest, "\r\n"))
		}

		tag, cmd, _ := strings.Cut(line, " ")
		upper := strings.ToUpper(cmd)

		switch {
		case upper == "CAPABILITY":
			write("* CAPABILITY "+strings.Join(s.Capabilities, " "), tag+" OK CAPABILITY completed")
			continue
		case strings.HasPrefix(upper, "LOGIN "):
			write(tag + " OK LOGIN completed")
			continue
		case upper == "LOGOUT":
			write("* BYE logging out", tag+" OK LOGOUT completed")
			return
		case upper == "NOOP":
			write(tag + " OK NOOP completed")
			continue
		}

		s.mu.Lock()
		s.commands = append(s.commands, cmd)
		if strings.HasPrefix(upper, "APPEND ") && literal != nil {
			s.appended = append(s.appended, literal)
		}
		var matched *scriptedRule
		for i := range s.rules {
			if strings.HasPrefix(cmd, s.rules[i].prefix) {
				matched = &s.rules[i]
				break
			}
		}
		s.mu.Unlock()

		var reply *ScriptedReply
		if matched != nil {
			rep := matched.reply(cmd)
			reply = &rep
		}

		if reply == nil {
			write(tag + " BAD unexpected command")
			continue
		}
		completion := reply.Completion
		if completion == "" {
			completion = "OK"
		}
		if !strings.Contains(completion, " ") {
			completion += " completed"
		}
		if !write(append(reply.Untagged, tag+" "+completion)...) {
			return
		}
	}
}
