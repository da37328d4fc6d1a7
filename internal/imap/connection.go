package imap

import (
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"
)

const defaultDialTimeout = 5 * time.Second

// ConnectToIMAP connects to the message store.
// useTLS: true for production (TLS), false for tests (non-TLS).
// A zero timeout falls back to 5 seconds.
func ConnectToIMAP(server string, useTLS bool, timeout time.Duration) (*client.Client, error) {
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	dialer := &net.Dialer{
		Timeout: timeout,
	}

	if useTLS {
		c, err := client.DialWithDialerTLS(dialer, server, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to dial with TLS: %w", err)
		}
		return c, nil
	}

	// Non-TLS connection for testing
	c, err := client.DialWithDialer(dialer, server)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	return c, nil
}

// Login authenticates with the message store.
func Login(c *client.Client, username, password string) error {
	if err := c.Login(username, password); err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}

	return nil
}
