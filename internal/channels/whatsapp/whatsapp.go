// Package whatsapp is the channel adapter for the WhatsApp Business API.
// Addresses are JIDs: individual contacts end in @s.whatsapp.net, group
// chats in @g.us; the reconcile package keys on that distinction.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/commsync/commsync/internal/channels"
	"github.com/commsync/commsync/internal/models"
)

// Client talks to a WhatsApp Business API gateway for one linked account.
// It implements both channels.Source and channels.Sender. The cursor is a
// page counter over the gateway's message history, newest first.
type Client struct {
	httpClient *http.Client
	baseURL    string
	account    models.LinkedAccount
	apiToken   string

	mu   sync.Mutex
	page int
}

// wireMessage is the gateway's message shape.
type wireMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`       // JID
	To        string `json:"to"`         // JID
	ChatJID   string `json:"chat_jid"`   // group JID when the message is in a group
	PushName  string `json:"push_name"`  // sender display name
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"` // unix seconds
	FromMe    bool   `json:"from_me"`
}

// New creates a Client for one linked WhatsApp account. The account's Host
// is the gateway base URL and Identity the linked phone number; apiToken is
// the already-decrypted bearer token.
func New(account models.LinkedAccount, apiToken string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(account.Host, "/"),
		account:    account,
		apiToken:   apiToken,
	}
}

// Channel implements channels.Source.
func (c *Client) Channel() models.Channel { return models.ChannelWhatsApp }

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

// FetchOlder fetches the next page of message history from the gateway.
func (c *Client) FetchOlder(ctx context.Context, pageSize int) ([]*models.Message, error) {
	c.mu.Lock()
	page := c.page
	c.mu.Unlock()

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/messages?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("whatsapp gateway returned %d: %s", resp.StatusCode, string(data))
	}

	var payload struct {
		Messages []wireMessage `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	msgs := make([]*models.Message, 0, len(payload.Messages))
	for i := range payload.Messages {
		msgs = append(msgs, c.parseMessage(&payload.Messages[i]))
	}

	c.mu.Lock()
	c.page = page + 1
	c.mu.Unlock()

	return msgs, nil
}

// Send sends a message to the first recipient's JID (or bare number).
func (c *Client) Send(ctx context.Context, out channels.OutgoingMessage) (*models.Message, error) {
	if len(out.To) == 0 {
		return nil, fmt.Errorf("no recipients")
	}

	payload, err := json.Marshal(map[string]string{
		"to":   out.To[0],
		"body": out.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("whatsapp gateway returned %d: %s", resp.StatusCode, string(data))
	}

	var sent wireMessage
	if err := json.NewDecoder(resp.Body).Decode(&sent); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	sent.FromMe = true
	if sent.To == "" {
		sent.To = out.To[0]
	}
	return c.parseMessage(&sent), nil
}

// parseMessage converts a gateway message into the channel-agnostic model.
// Group messages keep the group JID as the counterparty address so the key
// normalizer can classify them.
func (c *Client) parseMessage(m *wireMessage) *models.Message {
	msg := &models.Message{
		ID:        m.ID,
		Channel:   models.ChannelWhatsApp,
		AccountID: c.account.ID,
		Body:      m.Body,
	}

	from := m.From
	to := m.To
	if m.ChatJID != "" {
		// In a group chat the conversation partner is the group itself.
		if m.FromMe {
			to = m.ChatJID
		} else {
			from = m.ChatJID
		}
		msg.ThreadID = m.ChatJID
	}

	if m.FromMe {
		msg.From = models.Party{Address: c.account.Identity}
		msg.Labels = []string{"OUTBOUND"}
	} else {
		msg.From = models.Party{DisplayName: m.PushName, Address: from}
		msg.Labels = []string{"INBOUND"}
	}
	if to != "" {
		msg.To = []models.Party{{Address: to}}
	}

	if m.Timestamp > 0 {
		msg.SentAt = time.Unix(m.Timestamp, 0)
	}

	msg.Normalize()
	return msg
}
