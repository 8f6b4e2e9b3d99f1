// Package twiliosms is the channel adapter for Twilio SMS, built on the
// official twilio-go SDK. Its cursor is a page counter over the account's
// message log, newest first.
package twiliosms

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/commsync/commsync/internal/channels"
	"github.com/commsync/commsync/internal/models"
)

// twilioDateFormat is the RFC 2822 date format Twilio uses in message
// resources.
const twilioDateFormat = time.RFC1123Z

// Client wraps the Twilio REST client for one linked account. It implements
// both channels.Source and channels.Sender.
type Client struct {
	api     *twilio.RestClient
	account models.LinkedAccount

	mu   sync.Mutex
	page int
}

// New creates a Client for one linked Twilio account. authToken is the
// already-decrypted auth token; the account's Username holds the account
// SID and Identity the Twilio phone number.
func New(account models.LinkedAccount, authToken string) *Client {
	api := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: account.Username,
		Password: authToken,
	})
	return &Client{api: api, account: account}
}

// Channel implements channels.Source.
func (c *Client) Channel() models.Channel { return models.ChannelTwilio }

// AccountID implements channels.Source.
func (c *Client) AccountID() string { return c.account.ID }

// Cursor implements channels.CursorSource. The serialized form is the page
// counter, or empty before the first fetch.
func (c *Client) Cursor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.page == 0 {
		return ""
	}
	return strconv.Itoa(c.page)
}

// RestoreCursor implements channels.CursorSource.
func (c *Client) RestoreCursor(cursor string) {
	page, err := strconv.Atoi(cursor)
	if err != nil || page < 0 {
		return
	}
	c.mu.Lock()
	c.page = page
	c.mu.Unlock()
}

// FetchOlder fetches the next page of the account's message log.
func (c *Client) FetchOlder(ctx context.Context, pageSize int) ([]*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	page := c.page
	c.mu.Unlock()

	params := &twilioapi.ListMessageParams{}
	params.SetPageSize(pageSize)

	resp, err := c.api.Api.PageMessage(params, "", strconv.Itoa(page))
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	msgs := make([]*models.Message, 0, len(resp.Messages))
	for i := range resp.Messages {
		msgs = append(msgs, c.parseMessage(&resp.Messages[i]))
	}

	c.mu.Lock()
	c.page = page + 1
	c.mu.Unlock()

	return msgs, nil
}

// Send sends an SMS from the account's number to the first recipient.
func (c *Client) Send(ctx context.Context, out channels.OutgoingMessage) (*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(out.To) == 0 {
		return nil, fmt.Errorf("no recipients")
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetFrom(c.account.Identity)
	params.SetTo(out.To[0])
	params.SetBody(out.Body)

	sent, err := c.api.Api.CreateMessage(params)
	if err != nil {
		return nil, fmt.Errorf("failed to send SMS: %w", err)
	}

	return c.parseMessage(sent), nil
}

// parseMessage converts a Twilio message resource into the channel-agnostic
// model. The provider's direction string (inbound, outbound-api,
// outbound-reply, outbound-call) becomes a label the direction classifier
// trusts directly.
func (c *Client) parseMessage(m *twilioapi.ApiV2010Message) *models.Message {
	msg := &models.Message{
		Channel:   models.ChannelTwilio,
		AccountID: c.account.ID,
	}

	if m.Sid != nil {
		msg.ID = *m.Sid
	}
	if m.From != nil {
		msg.From = models.Party{Address: *m.From}
	}
	if m.To != nil {
		msg.To = []models.Party{{Address: *m.To}}
	}
	if m.Body != nil {
		msg.Body = *m.Body
	}
	if m.Direction != nil && *m.Direction != "" {
		msg.Labels = []string{*m.Direction}
	}
	if m.DateSent != nil {
		// Unparseable dates fall through to the Normalize default.
		if t, err := time.Parse(twilioDateFormat, *m.DateSent); err == nil {
			msg.SentAt = t
		}
	}

	msg.Normalize()
	return msg
}
