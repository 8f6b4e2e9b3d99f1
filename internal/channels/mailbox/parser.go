package mailbox

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"

	"github.com/commsync/commsync/internal/models"
)

// ParseMessage converts an IMAP message into the channel-agnostic message
// model. Body parsing failures are tolerated: the headers alone still make a
// usable message.
func ParseMessage(imapMsg *imap.Message, accountID, folderName string) (*models.Message, error) {
	if imapMsg == nil {
		return nil, fmt.Errorf("imap message is nil")
	}

	msg := &models.Message{
		ID:        strconv.FormatUint(uint64(imapMsg.Uid), 10),
		Channel:   models.ChannelIMAP,
		AccountID: accountID,
		Labels:    []string{strings.ToUpper(folderName)},
	}

	if imapMsg.Envelope != nil {
		env := imapMsg.Envelope
		if len(env.From) > 0 {
			msg.From = toParty(env.From[0])
		}
		for _, addr := range append(append([]*imap.Address{}, env.To...), env.Cc...) {
			if p := toParty(addr); p.Address != "" {
				msg.To = append(msg.To, p)
			}
		}
		msg.Subject = env.Subject
		if !env.Date.IsZero() {
			msg.SentAt = env.Date
		}
		if env.MessageId != "" {
			msg.ThreadID = env.MessageId
		}
	}

	if imapMsg.Body != nil && imapMsg.BodyStructure != nil {
		section := &imap.BodySectionName{}
		if bodyReader := imapMsg.GetBody(section); bodyReader != nil {
			if err := parseBody(bodyReader, msg); err != nil {
				// Keep the header-only message.
				_ = err
			}
		}
	}

	msg.Normalize()
	return msg, nil
}

// parseBody parses the message body using enmime.
func parseBody(bodyReader io.Reader, msg *models.Message) error {
	envelope, err := enmime.ReadEnvelope(bodyReader)
	if err != nil {
		return fmt.Errorf("failed to parse message body: %w", err)
	}

	msg.Body = envelope.Text
	htmlBody := envelope.HTML
	if htmlBody == "" && envelope.Text != "" {
		htmlBody = strings.ReplaceAll(envelope.Text, "\n", "<br>")
	}
	msg.BodyHTML = htmlBody

	for _, part := range envelope.Attachments {
		msg.Attachments = append(msg.Attachments, models.Attachment{
			Name:      part.FileName,
			MimeType:  part.ContentType,
			SizeBytes: int64(len(part.Content)),
			Locator:   part.ContentID,
		})
	}

	return nil
}

// toParty converts an IMAP address into a Party.
func toParty(address *imap.Address) models.Party {
	if address == nil || (address.MailboxName == "" && address.HostName == "") {
		return models.Party{}
	}
	return models.Party{
		DisplayName: address.PersonalName,
		Address:     fmt.Sprintf("%s@%s", address.MailboxName, address.HostName),
	}
}
