// Package gmail is the channel adapter for the user's primary Gmail account,
// built on the Gmail REST API. Its backward cursor is the date of the oldest
// message fetched so far: every load-more queries "before:" that date.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/commsync/commsync/internal/channels"
	"github.com/commsync/commsync/internal/models"
)

// Client wraps the Gmail service for one user. It implements both
// channels.Source and channels.Sender.
type Client struct {
	svc       *gmailapi.Service
	userEmail string

	mu     sync.Mutex
	oldest time.Time // zero until the first fetch
}

// New creates a Gmail client from an OAuth refresh token.
func New(ctx context.Context, clientID, clientSecret, refreshToken, userEmail string) (*Client, error) {
	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmailapi.GmailModifyScope},
	}
	token := &oauth2.Token{RefreshToken: refreshToken}

	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(config.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	return &Client{svc: svc, userEmail: userEmail}, nil
}

// Channel implements channels.Source.
func (c *Client) Channel() models.Channel { return models.ChannelGmail }

// AccountID implements channels.Source. The primary Gmail account carries no
// linked-account identifier.
func (c *Client) AccountID() string { return "" }

// Cursor implements channels.CursorSource. The serialized form is the
// oldest-seen date in RFC 3339, or empty before the first fetch.
func (c *Client) Cursor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.oldest.IsZero() {
		return ""
	}
	return c.oldest.Format(time.RFC3339)
}

// RestoreCursor implements channels.CursorSource. An unparseable value
// leaves the cursor at the initial position.
func (c *Client) RestoreCursor(cursor string) {
	t, err := time.Parse(time.RFC3339, cursor)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.oldest = t
	c.mu.Unlock()
}

// FetchOlder fetches the next page of messages older than the oldest one
// seen so far.
func (c *Client) FetchOlder(ctx context.Context, pageSize int) ([]*models.Message, error) {
	c.mu.Lock()
	oldest := c.oldest
	c.mu.Unlock()

	call := c.svc.Users.Messages.List("me").IncludeSpamTrash(false).MaxResults(int64(pageSize))
	if !oldest.IsZero() {
		// Gmail's before: operator is exclusive on whole days; the
		// duplicate overlap at day granularity is absorbed by the
		// identifier-keyed merge.
		call = call.Q(fmt.Sprintf("before:%s", oldest.Format("2006/01/02")))
	}

	page, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	msgs := make([]*models.Message, 0, len(page.Messages))
	newOldest := oldest
	for _, ref := range page.Messages {
		full, err := c.svc.Users.Messages.Get("me", ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to get message %s: %w", ref.Id, err)
		}
		msg := c.parseMessage(full)
		msgs = append(msgs, msg)
		if newOldest.IsZero() || msg.SentAt.Before(newOldest) {
			newOldest = msg.SentAt
		}
	}

	c.mu.Lock()
	c.oldest = newOldest
	c.mu.Unlock()

	return msgs, nil
}

// Send sends a message through the Gmail API and returns the local record.
func (c *Client) Send(ctx context.Context, out channels.OutgoingMessage) (*models.Message, error) {
	if len(out.To) == 0 {
		return nil, fmt.Errorf("no recipients")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", c.userEmail)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(out.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", out.Subject)
	if out.HTML {
		b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(out.Body)

	raw := base64.URLEncoding.EncodeToString([]byte(b.String()))
	sent, err := c.svc.Users.Messages.Send("me", &gmailapi.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	msg := &models.Message{
		ID:       sent.Id,
		ThreadID: sent.ThreadId,
		Channel:  models.ChannelGmail,
		From:     models.Party{Address: c.userEmail},
		Subject:  out.Subject,
		Body:     out.Body,
		SentAt:   time.Now(),
		Labels:   []string{"SENT"},
	}
	for _, rcpt := range out.To {
		msg.To = append(msg.To, models.Party{Address: rcpt})
	}
	return msg, nil
}

// parseMessage converts a Gmail API message into the channel-agnostic model,
// including the forwarded-email metadata headers when present.
func (c *Client) parseMessage(m *gmailapi.Message) *models.Message {
	msg := &models.Message{
		ID:       m.Id,
		ThreadID: m.ThreadId,
		Channel:  models.ChannelGmail,
		SentAt:   time.UnixMilli(m.InternalDate),
		Labels:   m.LabelIds,
	}

	if m.Payload != nil {
		for _, h := range m.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "from":
				msg.From = parseParty(h.Value)
			case "to", "cc":
				for _, part := range splitAddressList(h.Value) {
					msg.To = append(msg.To, parseParty(part))
				}
			case "subject":
				msg.Subject = h.Value
			case "x-forwarded-for", "x-forwarded-message-id":
				msg.Forwarded = true
			case "x-original-from":
				msg.Forwarded = true
				msg.OriginalFrom = addressOnly(h.Value)
			case "x-original-to":
				msg.Forwarded = true
				msg.OriginalRecipients = append(msg.OriginalRecipients, addressOnly(h.Value))
			}
		}
		msg.Body, msg.BodyHTML = extractBodies(m.Payload)
		collectAttachments(m.Payload, msg)
	}

	msg.Normalize()
	return msg
}

// extractBodies walks the payload tree for text/plain and text/html parts.
func extractBodies(part *gmailapi.MessagePart) (text, html string) {
	if part == nil {
		return "", ""
	}
	if part.Body != nil && part.Body.Data != "" {
		decoded, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err == nil {
			switch part.MimeType {
			case "text/plain":
				return string(decoded), ""
			case "text/html":
				return "", string(decoded)
			}
		}
	}
	for _, child := range part.Parts {
		t, h := extractBodies(child)
		if text == "" {
			text = t
		}
		if html == "" {
			html = h
		}
	}
	return text, html
}

// collectAttachments walks the payload tree for parts with filenames.
func collectAttachments(part *gmailapi.MessagePart, msg *models.Message) {
	if part == nil {
		return
	}
	if part.Filename != "" && part.Body != nil {
		msg.Attachments = append(msg.Attachments, models.Attachment{
			Name:      part.Filename,
			MimeType:  part.MimeType,
			SizeBytes: part.Body.Size,
			Locator:   part.Body.AttachmentId,
		})
	}
	for _, child := range part.Parts {
		collectAttachments(child, msg)
	}
}

// parseParty parses an RFC 5322 address like `Alice <alice@example.com>`.
// Malformed addresses fall back to the raw string; channel payloads are
// never trusted to be well-formed.
func parseParty(value string) models.Party {
	addr, err := mail.ParseAddress(strings.TrimSpace(value))
	if err != nil {
		return models.Party{Address: strings.TrimSpace(value)}
	}
	return models.Party{DisplayName: addr.Name, Address: addr.Address}
}

// addressOnly returns just the address portion of an RFC 5322 address.
func addressOnly(value string) string {
	return parseParty(value).Address
}

// splitAddressList splits a comma-separated header value. Commas inside
// quoted display names are rare enough in practice that the simple split
// matches observed behavior.
func splitAddressList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
