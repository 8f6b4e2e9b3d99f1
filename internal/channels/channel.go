// Package channels defines the contracts every channel adapter implements
// and the cursor semantics the incremental loader relies on. Each adapter
// owns its cursor (Gmail: oldest-known-message date, IMAP/Twilio/BulkVS:
// page counters, JustCall: opaque last-message-id) and advances it only on
// a successful fetch.
package channels

import (
	"context"

	"github.com/commsync/commsync/internal/models"
)

// Source fetches progressively older pages of messages from one linked
// account on one channel.
type Source interface {
	// Channel returns the channel tag of this source.
	Channel() models.Channel

	// AccountID returns the linked-account identifier, or "" for the
	// user's primary Gmail account.
	AccountID() string

	// FetchOlder returns the next page of older messages and advances the
	// source's cursor. An empty slice with a nil error means the channel
	// has no more messages behind the cursor.
	FetchOlder(ctx context.Context, pageSize int) ([]*models.Message, error)
}

// CursorSource is a Source whose cursor can be exported and restored, so
// the fetch position survives a process restart. Cursor returns the opaque
// serialized form of the current position; RestoreCursor accepts a value
// previously returned by Cursor and treats anything unparseable as the
// initial position.
type CursorSource interface {
	Source

	Cursor() string
	RestoreCursor(cursor string)
}

// OutgoingMessage is a channel-agnostic send request.
type OutgoingMessage struct {
	To      []string
	Subject string
	Body    string
	HTML    bool
}

// Sender sends a message through one linked account. Adapters return the
// provider's record of the sent message so it can be merged into the store
// immediately.
type Sender interface {
	Channel() models.Channel
	AccountID() string
	Send(ctx context.Context, out OutgoingMessage) (*models.Message, error)
}
