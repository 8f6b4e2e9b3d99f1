package models

import "time"

// Channel identifies one external communication provider.
type Channel string

const (
	ChannelGmail    Channel = "gmail"
	ChannelIMAP     Channel = "imap"
	ChannelTwilio   Channel = "twilio"
	ChannelJustCall Channel = "justcall"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelBulkVS   Channel = "bulkvs"
)

// IsSMSLike reports whether the channel is a phone-number-based SMS provider.
func (c Channel) IsSMSLike() bool {
	return c == ChannelTwilio || c == ChannelJustCall || c == ChannelBulkVS
}

// Party describes one sender or recipient of a message.
type Party struct {
	DisplayName string `json:"display_name,omitempty"`
	Address     string `json:"address"`
}

// Message is a channel-agnostic message record. IDs are channel-scoped and
// not globally unique across channels.
type Message struct {
	ID          string       `json:"id"`
	ThreadID    string       `json:"thread_id,omitempty"`
	From        Party        `json:"from"`
	To          []Party      `json:"to"`
	Subject     string       `json:"subject,omitempty"`
	Body        string       `json:"body"`
	BodyHTML    string       `json:"body_html,omitempty"`
	SentAt      time.Time    `json:"sent_at"`
	Labels      []string     `json:"labels"`
	Channel     Channel      `json:"channel"`
	AccountID   string       `json:"account_id,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`

	// Forwarded-email metadata, populated for Gmail messages that carry it.
	Forwarded          bool     `json:"forwarded,omitempty"`
	OriginalFrom       string   `json:"original_from,omitempty"`
	OriginalRecipients []string `json:"original_recipients,omitempty"`
}

// Attachment describes one message attachment.
type Attachment struct {
	Name      string `json:"name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
	Locator   string `json:"locator,omitempty"`
}

// Normalize fills in the defaults the data model guarantees: a zero
// timestamp becomes the current time and absent labels become ["INBOX"].
func (m *Message) Normalize() {
	if m.SentAt.IsZero() {
		m.SentAt = time.Now()
	}
	if len(m.Labels) == 0 {
		m.Labels = []string{"INBOX"}
	}
}

// RecipientAddresses returns the bare addresses of all recipients.
func (m *Message) RecipientAddresses() []string {
	addrs := make([]string, 0, len(m.To))
	for _, p := range m.To {
		addrs = append(addrs, p.Address)
	}
	return addrs
}
