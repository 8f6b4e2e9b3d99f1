package mailbox

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/commsync/commsync/internal/models"
)

// Source pages backwards through one IMAP mailbox, newest first, using a
// page counter as its cursor. The counter only advances on a successful
// fetch, so a failed page is retried on the next load-more.
type Source struct {
	account  models.LinkedAccount
	password string
	folder   string
	useTLS   bool

	mu   sync.Mutex
	page int
}

// NewSource creates a Source for one linked IMAP account. password is the
// already-decrypted mailbox password.
func NewSource(account models.LinkedAccount, password string, useTLS bool) *Source {
	return &Source{
		account:  account,
		password: password,
		folder:   "INBOX",
		useTLS:   useTLS,
	}
}

// Channel implements channels.Source.
func (s *Source) Channel() models.Channel { return models.ChannelIMAP }

// AccountID implements channels.Source.
func (s *Source) AccountID() string { return s.account.ID }

// Cursor implements channels.CursorSource. The serialized form is the page
// counter, or empty before the first fetch.
func (s *Source) Cursor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == 0 {
		return ""
	}
	return strconv.Itoa(s.page)
}

// RestoreCursor implements channels.CursorSource.
func (s *Source) RestoreCursor(cursor string) {
	page, err := strconv.Atoi(cursor)
	if err != nil || page < 0 {
		return
	}
	s.mu.Lock()
	s.page = page
	s.mu.Unlock()
}

// FetchOlder fetches the next page of messages from the mailbox.
func (s *Source) FetchOlder(ctx context.Context, pageSize int) ([]*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	page := s.page
	s.mu.Unlock()

	c, err := Connect(s.account.Host, s.account.Username, s.password, s.useTLS)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Logout() }()

	if _, err := c.Select(s.folder, true); err != nil {
		return nil, fmt.Errorf("failed to select folder %s: %w", s.folder, err)
	}

	uids, err := SortedUIDs(c)
	if err != nil {
		return nil, err
	}

	start := page * pageSize
	if start >= len(uids) {
		// Cursor ran past the mailbox: no more messages.
		return nil, nil
	}
	end := start + pageSize
	if end > len(uids) {
		end = len(uids)
	}

	imapMsgs, err := FetchMessages(c, uids[start:end])
	if err != nil {
		return nil, err
	}

	msgs := make([]*models.Message, 0, len(imapMsgs))
	for _, im := range imapMsgs {
		msg, err := ParseMessage(im, s.account.ID, s.folder)
		if err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}

	s.mu.Lock()
	s.page = page + 1
	s.mu.Unlock()

	return msgs, nil
}
