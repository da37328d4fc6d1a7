package imap

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/commands"
	"github.com/emersion/go-imap/responses"
	"github.com/sirupsen/logrus"

	"github.com/yplo6403/rcsjta-sub005/internal/imap/command"
	"github.com/yplo6403/rcsjta-sub005/internal/models"
)

// Service runs CMS operations on one logged-in session.
// Commands are serialized: IMAP does not interleave over one socket.
type Service struct {
	mu     sync.Mutex
	client *client.Client
	caps   command.Capabilities
	log    logrus.FieldLogger
}

// NewService wraps an authenticated client and reads the server capabilities.
func NewService(c *client.Client, log logrus.FieldLogger) (*Service, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	caps, err := c.Capability()
	if err != nil {
		return nil, fmt.Errorf("failed to get capabilities: %w", err)
	}
	return &Service{
		client: c,
		caps:   command.Capabilities(caps),
		log:    log.WithField("component", "imap"),
	}, nil
}

// Capabilities returns the capability set read after login.
func (s *Service) Capabilities() command.Capabilities {
	return s.caps
}

// execute runs one command to its tagged completion. h may be nil.
func (s *Service) execute(ctx context.Context, name string, cmdr imap.Commander, h command.Handler) (*imap.StatusResp, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var handler responses.Handler
	if h != nil {
		handler = &lineHandler{handler: h, log: s.log}
	}

	start := time.Now()
	status, err := s.client.Execute(cmdr, handler)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s: %w", name, err)
	}
	if status == nil {
		return nil, fmt.Errorf("failed to execute %s: %w", name, ErrNotConnected)
	}
	s.log.WithFields(logrus.Fields{
		"command":  name,
		"status":   status.Type,
		"duration": time.Since(start),
	}).Debug("IMAP command completed")

	if status.Type != imap.StatusRespOk {
		return status, statusError(name, status)
	}
	return status, nil
}

func (s *Service) run(ctx context.Context, name string, h command.Handler, params ...string) error {
	_, err := s.execute(ctx, name, rawCommand(h.BuildCommand(params...)), h)
	return err
}

// ListStatus returns every mailbox with its STATUS counters.
func (s *Service) ListStatus(ctx context.Context) ([]*models.RemoteFolder, error) {
	h := command.NewListStatusHandler()
	if err := s.run(ctx, "LIST-STATUS", h); err != nil {
		return nil, err
	}
	return h.Result(), nil
}

// SelectCondstore selects a folder with CONDSTORE enabled.
// It fails with command.ErrCapabilityMissing before any I/O when the server lacks CONDSTORE.
func (s *Service) SelectCondstore(ctx context.Context, folder string) (*models.RemoteFolder, error) {
	h, err := command.NewSelectCondstoreHandler(folder, s.caps)
	if err != nil {
		return nil, err
	}
	if err := s.run(ctx, "SELECT", h, folder); err != nil {
		return nil, err
	}
	return h.Result(), nil
}

// FetchFlags returns the flag changes on UIDs 1..maxUID since modseq.
// The folder must be selected.
func (s *Service) FetchFlags(ctx context.Context, folder string, maxUID uint32, modseq uint64) ([]*models.FlagChange, error) {
	h := command.NewFetchFlagsHandler(folder)
	err := s.run(ctx, "FETCH FLAGS", h, formatUID(maxUID), strconv.FormatUint(modseq, 10))
	if err != nil {
		return nil, err
	}
	return h.Result(), nil
}

// FetchHeaders returns the messages with UIDs from..to, newest first.
// The folder must be selected.
func (s *Service) FetchHeaders(ctx context.Context, folder string, from, to uint32) ([]*models.Message, error) {
	h := command.NewFetchHeadersHandler(folder)
	if err := s.run(ctx, "FETCH HEADERS", h, formatUID(from), formatUID(to)); err != nil {
		return nil, err
	}
	return h.Result(), nil
}

// FetchMessage downloads one message. It returns (nil, nil) when the UID is gone.
// The folder must be selected.
func (s *Service) FetchMessage(ctx context.Context, folder string, uid uint32) (*models.Message, error) {
	h := command.NewFetchMessageHandler(folder)
	if err := s.run(ctx, "FETCH MESSAGE", h, formatUID(uid)); err != nil {
		return nil, err
	}
	return h.Result(), nil
}

// AddFlags sets a flag on UIDs of the selected folder.
func (s *Service) AddFlags(ctx context.Context, uids []uint32, flag models.Flag) error {
	return s.store(ctx, "+FLAGS.SILENT", uids, flag)
}

// RemoveFlags clears a flag on UIDs of the selected folder.
func (s *Service) RemoveFlags(ctx context.Context, uids []uint32, flag models.Flag) error {
	return s.store(ctx, "-FLAGS.SILENT", uids, flag)
}

func (s *Service) store(ctx context.Context, item string, uids []uint32, flag models.Flag) error {
	if len(uids) == 0 {
		return nil
	}
	set := new(imap.SeqSet)
	set.AddNum(uids...)
	line := fmt.Sprintf("UID STORE %s %s (%s)", set.String(), item, flag)
	_, err := s.execute(ctx, "STORE", rawCommand(line), nil)
	return err
}

// Append uploads a message and returns the UID the server assigned, or 0
// when the server does not report one (no UIDPLUS). A missing folder is
// created and the upload retried once.
func (s *Service) Append(ctx context.Context, folder string, flags []models.Flag, date time.Time, payload []byte) (uint32, error) {
	status, err := s.append(ctx, folder, flags, date, payload)
	if IsTryCreate(err) {
		s.log.WithField("folder", folder).Info("Creating folder before retrying APPEND")
		if _, err := s.execute(ctx, "CREATE", &commands.Create{Mailbox: folder}, nil); err != nil {
			return 0, err
		}
		status, err = s.append(ctx, folder, flags, date, payload)
	}
	if err != nil {
		return 0, err
	}
	return appendUID(status), nil
}

func (s *Service) append(ctx context.Context, folder string, flags []models.Flag, date time.Time, payload []byte) (*imap.StatusResp, error) {
	imapFlags := make([]string, 0, len(flags))
	for _, f := range flags {
		imapFlags = append(imapFlags, string(f))
	}
	cmd := &commands.Append{
		Mailbox: folder,
		Flags:   imapFlags,
		Date:    date,
		Message: bytes.NewBuffer(payload),
	}
	return s.execute(ctx, "APPEND", cmd, nil)
}

// appendUID reads the UID out of `[APPENDUID <uidvalidity> <uid>]`.
func appendUID(status *imap.StatusResp) uint32 {
	if status == nil || status.Code != codeAppendUID || len(status.Arguments) < 2 {
		return 0
	}
	uid, err := imap.ParseNumber(status.Arguments[1])
	if err != nil {
		return 0
	}
	return uid
}

// Logout ends the session and closes the connection.
func (s *Service) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.client.Logout(); err != nil {
		_ = s.client.Terminate()
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// terminate closes the socket without waiting for the command in flight.
func (s *Service) terminate() error {
	return s.client.Terminate()
}

func formatUID(uid uint32) string {
	return strconv.FormatUint(uint64(uid), 10)
}
