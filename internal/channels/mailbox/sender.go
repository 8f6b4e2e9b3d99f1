package mailbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"github.com/commsync/commsync/internal/channels"
	"github.com/commsync/commsync/internal/models"
)

// Sender sends mail through the SMTP server paired with a linked IMAP
// account.
type Sender struct {
	account  models.LinkedAccount
	password string
}

// NewSender creates a Sender for one linked IMAP account. password is the
// already-decrypted SMTP password.
func NewSender(account models.LinkedAccount, password string) *Sender {
	return &Sender{account: account, password: password}
}

// Channel implements channels.Sender.
func (s *Sender) Channel() models.Channel { return models.ChannelIMAP }

// AccountID implements channels.Sender.
func (s *Sender) AccountID() string { return s.account.ID }

// Send submits the message over SMTP with STARTTLS and PLAIN auth and
// returns the local record of the sent message.
func (s *Sender) Send(ctx context.Context, out channels.OutgoingMessage) (*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(out.To) == 0 {
		return nil, fmt.Errorf("no recipients")
	}

	from := s.account.Identity
	now := time.Now()
	body := buildRFC822(from, out, now)

	auth := sasl.NewPlainClient("", s.account.Username, s.password)
	if err := smtp.SendMail(s.account.SMTPHost, auth, from, out.To, strings.NewReader(body)); err != nil {
		return nil, fmt.Errorf("failed to send mail: %w", err)
	}

	msg := &models.Message{
		ID:        uuid.NewString(),
		Channel:   models.ChannelIMAP,
		AccountID: s.account.ID,
		From:      models.Party{Address: from},
		Subject:   out.Subject,
		Body:      out.Body,
		SentAt:    now,
		Labels:    []string{"SENT"},
	}
	for _, rcpt := range out.To {
		msg.To = append(msg.To, models.Party{Address: rcpt})
	}
	return msg, nil
}

// buildRFC822 assembles a minimal RFC-822 message.
func buildRFC822(from string, out channels.OutgoingMessage, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(out.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", out.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	if out.HTML {
		b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	} else {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(out.Body)
	return b.String()
}
