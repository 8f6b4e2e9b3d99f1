// Package justcall is the channel adapter for JustCall SMS. JustCall has no
// Go SDK, so this is a plain REST client over its v1 API. Its cursor is the
// opaque ID of the last message fetched, per linked account.
package justcall

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

const defaultBaseURL = "https://api.justcall.io/v1"

// justcallTimeFormat is the timestamp format of the texts API.
const justcallTimeFormat = "2006-01-02 15:04:05"

// Client talks to the JustCall API for one linked account. It implements
// both channels.Source and channels.Sender.
type Client struct {
	httpClient *http.Client
	baseURL    string
	account    models.LinkedAccount
	apiSecret  string

	mu        sync.Mutex
	lastSMSID string
}

// text is the wire shape of one SMS in the JustCall texts API.
type text struct {
	ID             int64  `json:"id"`
	ContactNumber  string `json:"contact_number"`
	ContactName    string `json:"contact_name"`
	JustCallNumber string `json:"justcall_number"`
	Body           string `json:"body"`
	Direction      string `json:"direction"` // "Incoming" or "Outgoing"
	SMSDate        string `json:"sms_date"`
}

type listResponse struct {
	Data []text `json:"data"`
}

// New creates a Client for one linked JustCall account. The account's
// Username holds the API key; apiSecret is the already-decrypted secret.
func New(account models.LinkedAccount, apiSecret string) *Client {
	baseURL := account.Host
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		account:    account,
		apiSecret:  apiSecret,
	}
}

// Channel implements channels.Source.
func (c *Client) Channel() models.Channel { return models.ChannelJustCall }

// AccountID implements channels.Source.
func (c *Client) AccountID() string { return c.account.ID }

// Cursor implements channels.CursorSource. The serialized form is the
// last-message-id, already opaque.
func (c *Client) Cursor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSMSID
}

// RestoreCursor implements channels.CursorSource.
func (c *Client) RestoreCursor(cursor string) {
	c.mu.Lock()
	c.lastSMSID = cursor
	c.mu.Unlock()
}

// FetchOlder fetches the next batch of texts behind the last-message-id
// cursor.
func (c *Client) FetchOlder(ctx context.Context, pageSize int) ([]*models.Message, error) {
	c.mu.Lock()
	cursor := c.lastSMSID
	c.mu.Unlock()

	query := url.Values{}
	query.Set("per_page", strconv.Itoa(pageSize))
	if cursor != "" {
		query.Set("last_sms_id_fetched", cursor)
	}

	var resp listResponse
	if err := c.doJSON(ctx, http.MethodGet, "/texts?"+query.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	msgs := make([]*models.Message, 0, len(resp.Data))
	newCursor := cursor
	for i := range resp.Data {
		msgs = append(msgs, c.parseText(&resp.Data[i]))
		newCursor = strconv.FormatInt(resp.Data[i].ID, 10)
	}

	c.mu.Lock()
	c.lastSMSID = newCursor
	c.mu.Unlock()

	return msgs, nil
}

// Send sends an SMS through the account's JustCall number.
func (c *Client) Send(ctx context.Context, out channels.OutgoingMessage) (*models.Message, error) {
	if len(out.To) == 0 {
		return nil, fmt.Errorf("no recipients")
	}

	payload := map[string]string{
		"justcall_number": c.account.Identity,
		"contact_number":  out.To[0],
		"body":            out.Body,
	}
	var resp struct {
		Data text `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/texts/new", payload, &resp); err != nil {
		return nil, err
	}

	msg := c.parseText(&resp.Data)
	if msg.ID == "0" || msg.ID == "" {
		// Some deployments return an empty body on send; synthesize a
		// local record so the conversation updates immediately.
		msg = &models.Message{
			ID:        fmt.Sprintf("sent-%d", time.Now().UnixNano()),
			Channel:   models.ChannelJustCall,
			AccountID: c.account.ID,
			From:      models.Party{Address: c.account.Identity},
			To:        []models.Party{{Address: out.To[0]}},
			Body:      out.Body,
			Labels:    []string{"OUTBOUND"},
		}
		msg.Normalize()
	}
	return msg, nil
}

// parseText converts a JustCall text into the channel-agnostic model.
// JustCall spells direction "Incoming"/"Outgoing"; the adapter maps it to
// the INBOUND/OUTBOUND labels the direction classifier trusts.
func (c *Client) parseText(t *text) *models.Message {
	msg := &models.Message{
		ID:        strconv.FormatInt(t.ID, 10),
		Channel:   models.ChannelJustCall,
		AccountID: c.account.ID,
		Body:      t.Body,
	}

	outgoing := strings.EqualFold(t.Direction, "Outgoing")
	if outgoing {
		msg.Labels = []string{"OUTBOUND"}
		msg.From = models.Party{Address: t.JustCallNumber}
		msg.To = []models.Party{{DisplayName: t.ContactName, Address: t.ContactNumber}}
	} else {
		msg.Labels = []string{"INBOUND"}
		msg.From = models.Party{DisplayName: t.ContactName, Address: t.ContactNumber}
		msg.To = []models.Party{{Address: t.JustCallNumber}}
	}

	if ts, err := time.Parse(justcallTimeFormat, t.SMSDate); err == nil {
		msg.SentAt = ts
	}

	msg.Normalize()
	return msg
}

// doJSON performs one authenticated API call, decoding the JSON response
// into out when it is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = strings.NewReader(string(encoded))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.account.Username+":"+c.apiSecret)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("justcall API returned %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
