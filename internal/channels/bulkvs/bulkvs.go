// Package bulkvs is the channel adapter for BulkVS SMS, a plain REST client
// with basic auth. It behaves like the Twilio adapter by analogy: page
// counter cursor, direction passed through as a label.
package bulkvs

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

	"github.com/commsync/commsync/internal/models"
)

const defaultBaseURL = "https://portal.bulkvs.com/api/v1.0"

// Client talks to the BulkVS API for one linked account and implements
// channels.Source.
type Client struct {
	httpClient *http.Client
	baseURL    string
	account    models.LinkedAccount
	apiSecret  string

	mu   sync.Mutex
	page int
}

type wireMessage struct {
	RefID     string `json:"RefId"`
	From      string `json:"From"`
	To        string `json:"To"`
	Message   string `json:"Message"`
	Direction string `json:"Direction"` // "inbound" or "outbound"
	Time      string `json:"Time"`      // RFC 3339
}

// New creates a Client for one linked BulkVS account. The account's
// Username holds the API username; apiSecret is the already-decrypted API
// password.
func New(account models.LinkedAccount, apiSecret string) *Client {
	baseURL := account.Host
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		account:    account,
		apiSecret:  apiSecret,
	}
}

// Channel implements channels.Source.
func (c *Client) Channel() models.Channel { return models.ChannelBulkVS }

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
	c.mu.Lock()
	page := c.page
	c.mu.Unlock()

	query := url.Values{}
	query.Set("Number", c.account.Identity)
	query.Set("Page", strconv.Itoa(page))
	query.Set("PageSize", strconv.Itoa(pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/messageList?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.account.Username, c.apiSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("bulkvs API returned %d: %s", resp.StatusCode, string(data))
	}

	var wire []wireMessage
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	msgs := make([]*models.Message, 0, len(wire))
	for i := range wire {
		msgs = append(msgs, c.parseMessage(&wire[i]))
	}

	c.mu.Lock()
	c.page = page + 1
	c.mu.Unlock()

	return msgs, nil
}

func (c *Client) parseMessage(m *wireMessage) *models.Message {
	msg := &models.Message{
		ID:        m.RefID,
		Channel:   models.ChannelBulkVS,
		AccountID: c.account.ID,
		From:      models.Party{Address: m.From},
		Body:      m.Message,
	}
	if m.To != "" {
		msg.To = []models.Party{{Address: m.To}}
	}
	if m.Direction != "" {
		msg.Labels = []string{m.Direction}
	}
	if t, err := time.Parse(time.RFC3339, m.Time); err == nil {
		msg.SentAt = t
	}

	msg.Normalize()
	return msg
}
