package imap

import (
	"context"
	"fmt"
	"sync"

	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
)

// SettingsProvider supplies the account used to open a session.
type SettingsProvider interface {
	Settings(ctx context.Context) (*models.CMSSettings, error)
}

// AvailabilityListener is notified once when the controller becomes available again.
type AvailabilityListener interface {
	ServiceAvailable()
}

// Controller guards the single message store session of the process.
// busy, opening, aborted, service and listeners are only touched under mu,
// and mu is never held across network I/O.
type Controller struct {
	settings SettingsProvider
	log      logrus.FieldLogger

	mu        sync.Mutex
	busy      bool
	opening   *client.Client
	aborted   bool
	service   *Service
	listeners []AvailabilityListener
}

// NewController creates a controller. It opens nothing until Acquire.
func NewController(settings SettingsProvider, log logrus.FieldLogger) *Controller {
	return &Controller{
		settings: settings,
		log:      log.WithField("component", "imap-controller"),
	}
}

// Acquire opens and logs in a new session. It fails with ErrServiceUnavailable
// while another session is open or opening, and with ErrSessionAborted when
// Terminate runs before the login completes. Cancelling ctx closes a
// connection whose login is still pending.
func (c *Controller) Acquire(ctx context.Context) (*Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, ErrServiceUnavailable
	}
	c.busy = true
	c.aborted = false
	c.mu.Unlock()

	svc, err := c.open(ctx)
	if err != nil {
		c.makeAvailable()
		return nil, err
	}
	return svc, nil
}

func (c *Controller) open(ctx context.Context) (*Service, error) {
	cfg, err := c.settings.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get CMS settings: %w", err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("CMS settings are not configured")
	}

	cl, err := ConnectToIMAP(cfg.ServerAddress, cfg.UseTLS, cfg.DialTimeout)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.aborted {
		c.mu.Unlock()
		_ = cl.Terminate()
		return nil, ErrSessionAborted
	}
	c.opening = cl
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = cl.Terminate() })
	svc, err := c.login(cl, cfg)
	cancelled := !stop()

	c.mu.Lock()
	c.opening = nil
	aborted := c.aborted
	if err == nil && !aborted && !cancelled {
		c.service = svc
	}
	c.mu.Unlock()

	switch {
	case aborted:
		_ = cl.Terminate()
		return nil, ErrSessionAborted
	case cancelled:
		_ = cl.Terminate()
		return nil, ctx.Err()
	case err != nil:
		return nil, err
	}
	c.log.WithField("server", cfg.ServerAddress).Debug("IMAP session opened")
	return svc, nil
}

func (c *Controller) login(cl *client.Client, cfg *models.CMSSettings) (*Service, error) {
	if err := Login(cl, cfg.Username, cfg.Password); err != nil {
		_ = cl.Terminate()
		return nil, err
	}
	svc, err := NewService(cl, c.log)
	if err != nil {
		_ = cl.Terminate()
		return nil, err
	}
	return svc, nil
}

// Release logs out and closes the open session, if any. The controller is
// available again afterwards even when logout fails. Safe to call repeatedly.
func (c *Controller) Release() error {
	c.mu.Lock()
	svc := c.service
	c.mu.Unlock()

	var err error
	if svc != nil {
		err = svc.Logout()
		if err != nil {
			c.log.WithError(err).Debug("Logout failed, connection closed")
		}
	}

	c.makeAvailable()
	return err
}

// makeAvailable clears the session and tells the listeners waiting for the
// busy to available transition.
func (c *Controller) makeAvailable() {
	c.mu.Lock()
	c.service = nil
	c.aborted = false
	wasBusy := c.busy
	c.busy = false
	var listeners []AvailabilityListener
	if wasBusy {
		listeners = c.listeners
		c.listeners = nil
	}
	c.mu.Unlock()

	for _, l := range listeners {
		l.ServiceAvailable()
	}
}

// Terminate closes the session socket without waiting for the command in
// flight; that command then fails with an I/O error and Release still has to
// run. A session still logging in is closed and its Acquire fails.
func (c *Controller) Terminate() {
	c.mu.Lock()
	svc, opening := c.service, c.opening
	if c.busy && svc == nil {
		c.aborted = true
	}
	c.mu.Unlock()

	switch {
	case svc != nil:
		if err := svc.terminate(); err != nil {
			c.log.WithError(err).Debug("Failed to close IMAP connection")
		}
	case opening != nil:
		_ = opening.Terminate()
	}
}

// IsAvailable reports whether Acquire would open a session.
func (c *Controller) IsAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.busy
}

// RegisterListener adds a listener for the next busy to available transition.
func (c *Controller) RegisterListener(l AvailabilityListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.listeners {
		if existing == l {
			return
		}
	}
	c.listeners = append(c.listeners, l)
}

func (c *Controller) UnregisterListener(l AvailabilityListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.listeners {
		if existing == l {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			return
		}
	}
}
