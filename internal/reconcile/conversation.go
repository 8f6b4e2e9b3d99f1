package reconcile

import (
	"sort"
	"strings"

	"github.com/commsync/commsync/internal/models"
)

// AssembleGroupConversation returns, in ascending chronological order, every
// message that involves the group: the sender or any recipient is in the
// group's email list, or (phone path) the digits-normalized sender or any
// recipient matches one of the group's phone numbers under the containment
// rule. A nil group yields an empty slice.
func AssembleGroupConversation(group *models.Group, msgs []*models.Message) []*models.Message {
	if group == nil {
		return nil
	}

	emails := make(map[string]struct{}, len(group.Emails))
	for _, e := range group.Emails {
		emails[strings.ToLower(e)] = struct{}{}
	}
	var phoneDigits []string
	for _, p := range group.PhoneNumbers {
		if d := DigitsOnly(p); d != "" {
			phoneDigits = append(phoneDigits, d)
		}
	}

	var out []*models.Message
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		if groupOwnsMessage(msg, emails, phoneDigits) {
			out = append(out, msg)
		}
	}
	sortAscending(out)
	return out
}

func groupOwnsMessage(msg *models.Message, emails map[string]struct{}, phoneDigits []string) bool {
	if _, ok := emails[strings.ToLower(msg.From.Address)]; ok {
		return true
	}
	for _, rcpt := range msg.To {
		if _, ok := emails[strings.ToLower(rcpt.Address)]; ok {
			return true
		}
	}

	senderDigits := DigitsOnly(msg.From.Address)
	for _, pd := range phoneDigits {
		if DigitsMatch(senderDigits, pd) {
			return true
		}
		for _, rcpt := range msg.To {
			if DigitsMatch(DigitsOnly(rcpt.Address), pd) {
				return true
			}
		}
	}
	return false
}

// AssembleContactConversation returns, in ascending chronological order, the
// messages that belong to the conversation with a single contact. A nil
// contact yields an empty slice; the caller surfaces the
// start-a-new-conversation state.
func AssembleContactConversation(contact *models.Contact, msgs []*models.Message, userEmail string) []*models.Message {
	if contact == nil {
		return nil
	}

	var out []*models.Message
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		if contactOwnsMessage(contact, msg, userEmail) {
			out = append(out, msg)
		}
	}
	sortAscending(out)
	return out
}

func contactOwnsMessage(contact *models.Contact, msg *models.Message, userEmail string) bool {
	switch msg.Channel {
	case models.ChannelGmail:
		return gmailBelongsToContact(contact, msg, userEmail)

	case models.ChannelIMAP:
		if msg.AccountID != contact.AccountID {
			return false
		}
		if strings.EqualFold(msg.From.Address, contact.Address) {
			return true
		}
		return anyRecipientEquals(msg, contact.Address)

	default:
		// Phone-based channels match on the contact's identity key so a
		// WhatsApp JID and a bare number resolve to the same conversation.
		key := contact.Key
		if key == "" {
			key = IdentityKey(contact.Address, contact.Channel)
		}
		if IdentityKey(msg.From.Address, msg.Channel) == key {
			return true
		}
		for _, rcpt := range msg.To {
			if IdentityKey(rcpt.Address, msg.Channel) == key {
				return true
			}
		}
		return false
	}
}

func gmailBelongsToContact(contact *models.Contact, msg *models.Message, userEmail string) bool {
	fromContact := strings.EqualFold(msg.From.Address, contact.Address)
	fromUser := userEmail != "" && strings.EqualFold(msg.From.Address, userEmail)

	if fromContact && anyRecipientEquals(msg, userEmail) {
		return true
	}
	if fromUser && anyRecipientEquals(msg, contact.Address) {
		return true
	}

	// Forwarded-email metadata extends membership: a message forwarded from
	// or originally addressed to the contact still belongs here.
	if msg.Forwarded {
		if strings.EqualFold(msg.OriginalFrom, contact.Address) {
			return true
		}
		for _, orig := range msg.OriginalRecipients {
			if strings.EqualFold(orig, contact.Address) {
				return true
			}
		}
	}

	// Subject-threading fallback: matching label-stripped subjects pull in
	// messages where either party is the contact.
	if contact.LastSubject != "" && msg.Subject != "" &&
		NormalizeSubject(contact.LastSubject) == NormalizeSubject(msg.Subject) {
		if fromContact || anyRecipientEquals(msg, contact.Address) {
			return true
		}
	}

	return false
}

func anyRecipientEquals(msg *models.Message, address string) bool {
	if address == "" {
		return false
	}
	for _, rcpt := range msg.To {
		if strings.EqualFold(rcpt.Address, address) {
			return true
		}
	}
	return false
}

// NormalizeSubject strips reply/forward prefixes ("Re:", "Fwd:", "Fw:",
// repeatedly), trims whitespace, and lowercases, so that subject-threading
// compares the underlying subject line only.
func NormalizeSubject(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		lower := strings.ToLower(s)
		stripped := false
		for _, prefix := range []string{"re:", "fwd:", "fw:"} {
			if strings.HasPrefix(lower, prefix) {
				s = strings.TrimSpace(s[len(prefix):])
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}
	return strings.ToLower(s)
}

// sortAscending orders messages by timestamp ascending; equal timestamps
// keep insertion order.
func sortAscending(msgs []*models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].SentAt.Before(msgs[j].SentAt)
	})
}
