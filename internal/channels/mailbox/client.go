// Package mailbox is the channel adapter for generic IMAP/SMTP accounts. It
// fetches pages of messages over IMAP (page-counter cursor, newest first),
// sends over SMTP, and can run an IDLE listener that pushes new-message
// events to the websocket hub.
package mailbox

import (
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"
)

// dialTimeout bounds the initial TCP connect to the IMAP server.
const dialTimeout = 5 * time.Second

// Connect dials the IMAP server and logs in.
// useTLS: true for production, false for tests against a local server.
func Connect(server, username, password string, useTLS bool) (*client.Client, error) {
	dialer := &net.Dialer{
		Timeout: dialTimeout,
	}

	var c *client.Client
	var err error
	if useTLS {
		c, err = client.DialWithDialerTLS(dialer, server, nil)
	} else {
		c, err = client.DialWithDialer(dialer, server)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial IMAP server: %w", err)
	}

	if err := c.Login(username, password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("failed to login: %w", err)
	}

	return c, nil
}
