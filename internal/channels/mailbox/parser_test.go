package mailbox

import (
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"

	"github.com/commsync/commsync/internal/channels"
	"github.com/commsync/commsync/internal/models"
)

func TestParseMessage(t *testing.T) {
	sent := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("envelope only", func(t *testing.T) {
		imapMsg := &imap.Message{
			Uid: 4711,
			Envelope: &imap.Envelope{
				Date:    sent,
				Subject: "Quarterly numbers",
				From: []*imap.Address{
					{PersonalName: "Bob", MailboxName: "bob", HostName: "acme.com"},
				},
				To: []*imap.Address{
					{MailboxName: "me", HostName: "example.com"},
				},
				Cc: []*imap.Address{
					{MailboxName: "carol", HostName: "other.com"},
				},
				MessageId: "<msg-1@acme.com>",
			},
		}

		msg, err := ParseMessage(imapMsg, "acct-1", "Inbox")
		if err != nil {
			t.Fatalf("ParseMessage failed: %v", err)
		}

		if msg.ID != "4711" {
			t.Errorf("Expected UID as ID, got %s", msg.ID)
		}
		if msg.Channel != models.ChannelIMAP || msg.AccountID != "acct-1" {
			t.Errorf("Unexpected channel attribution: %s / %s", msg.Channel, msg.AccountID)
		}
		if msg.From.Address != "bob@acme.com" || msg.From.DisplayName != "Bob" {
			t.Errorf("Unexpected sender: %+v", msg.From)
		}
		if len(msg.To) != 2 {
			t.Fatalf("Expected To and Cc merged into 2 recipients, got %d", len(msg.To))
		}
		if msg.To[1].Address != "carol@other.com" {
			t.Errorf("Expected Cc recipient last, got %s", msg.To[1].Address)
		}
		if msg.ThreadID != "<msg-1@acme.com>" {
			t.Errorf("Expected Message-ID as thread ID, got %s", msg.ThreadID)
		}
		if !msg.SentAt.Equal(sent) {
			t.Errorf("Expected envelope date, got %v", msg.SentAt)
		}
		if len(msg.Labels) != 1 || msg.Labels[0] != "INBOX" {
			t.Errorf("Expected uppercased folder label, got %v", msg.Labels)
		}
	})

	t.Run("nil message", func(t *testing.T) {
		if _, err := ParseMessage(nil, "acct-1", "INBOX"); err == nil {
			t.Error("Expected error for nil message")
		}
	})
}

func TestParseBody(t *testing.T) {
	raw := strings.Join([]string{
		"From: bob@acme.com",
		"To: me@example.com",
		"Subject: hello",
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"First line",
		"Second line",
	}, "\r\n")

	msg := &models.Message{}
	if err := parseBody(strings.NewReader(raw), msg); err != nil {
		t.Fatalf("parseBody failed: %v", err)
	}

	if !strings.Contains(msg.Body, "First line") {
		t.Errorf("Expected text body, got %q", msg.Body)
	}
	if !strings.Contains(msg.BodyHTML, "<br>") {
		t.Errorf("Plain-text-only mail should get a line-broken HTML fallback, got %q", msg.BodyHTML)
	}
}

func TestBuildRFC822(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	body := buildRFC822("me@example.com", channels.OutgoingMessage{
		To:      []string{"bob@acme.com"},
		Subject: "Lunch?",
		Body:    "Noon at the usual place?",
	}, now)

	for _, want := range []string{
		"From: me@example.com\r\n",
		"To: bob@acme.com\r\n",
		"Subject: Lunch?\r\n",
		"Content-Type: text/plain; charset=utf-8\r\n",
		"\r\n\r\nNoon at the usual place?",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected %q in message, got:\n%s", want, body)
		}
	}
}
