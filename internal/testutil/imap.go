package testutil

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend/memory"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
)

// TestIMAPServer represents a test IMAP server instance.
type TestIMAPServer struct {
	Server   *server.Server
	Address  string
	Backend  *memory.Backend
	cleanup  func()
	username string
	password string
}

// NewTestIMAPServer creates a new test IMAP server with an in-memory backend.
// The memory backend creates a default user with username "username" and password "password".
// It has no CONDSTORE, so it only serves session, APPEND, CREATE and STORE paths.
func NewTestIMAPServer(t *testing.T) *TestIMAPServer {
	t.Helper()

	be := memory.New()

	s := server.New(be)
	s.AllowInsecureAuth = true

	// Start server on random port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	go func() {
		if err := s.Serve(listener); err != nil {
			t.Logf("IMAP server error: %v", err)
		}
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	return &TestIMAPServer{
		Server:   s,
		Address:  listener.Addr().String(),
		Backend:  be,
		cleanup:  func() { _ = s.Close() },
		username: "username",
		password: "password",
	}
}

// Close shuts down the test IMAP server.
func (s *TestIMAPServer) Close() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

// Settings returns CMS settings pointing at this server.
func (s *TestIMAPServer) Settings() *models.CMSSettings {
	return TestSettings(s.Address, s.username, s.password)
}

// Connect creates a new IMAP client connection to the test server.
func (s *TestIMAPServer) Connect(t *testing.T) (*imapclient.Client, func()) {
	t.Helper()

	client, err := imapclient.Dial(s.Address)
	if err != nil {
		t.Fatalf("Failed to connect to test server: %v", err)
	}

	if err := client.Login(s.username, s.password); err != nil {
		_ = client.Logout()
		t.Fatalf("Failed to login: %v", err)
	}

	return client, func() { _ = client.Logout() }
}

// FolderMessages returns the flags of every message in a folder, keyed by UID.
func (s *TestIMAPServer) FolderMessages(t *testing.T, folder string) map[uint32][]string {
	t.Helper()

	client, cleanup := s.Connect(t)
	defer cleanup()

	mbox, err := client.Select(folder, true)
	if err != nil {
		t.Fatalf("Failed to select folder: %v", err)
	}
	result := make(map[uint32][]string)
	if mbox.Messages == 0 {
		return result
	}

	seqset := new(imap.SeqSet)
	seqset.AddRange(1, mbox.Messages)
	ch := make(chan *imap.Message, mbox.Messages)
	if err := client.Fetch(seqset, []imap.FetchItem{imap.FetchUid, imap.FetchFlags}, ch); err != nil {
		t.Fatalf("Failed to fetch messages: %v", err)
	}
	for msg := range ch {
		result[msg.Uid] = msg.Flags
	}
	return result
}

// AppendMessage adds a raw message to a folder.
func (s *TestIMAPServer) AppendMessage(t *testing.T, folder, payload string, flags ...string) {
	t.Helper()

	client, cleanup := s.Connect(t)
	defer cleanup()

	if err := client.Append(folder, flags, time.Now(), strings.NewReader(payload)); err != nil {
		t.Fatalf("Failed to append message: %v", err)
	}
}

// TestSettings returns valid CMS settings for a plain-text test server.
func TestSettings(address, username, password string) *models.CMSSettings {
	return &models.CMSSettings{
		ServerAddress:          address,
		Username:               username,
		Password:               password,
		RootDirectory:          "Default",
		FolderSeparator:        "/",
		SyncInterval:           time.Hour,
		DataConnectionInterval: time.Minute,
		DialTimeout:            2 * time.Second,
	}
}
