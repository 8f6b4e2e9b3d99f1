package reconcile

import (
	"strings"

	"github.com/commsync/commsync/internal/models"
)

// IsFromUser decides whether a message was sent by the signed-in user
// (outbound) rather than received from a contact. It is a pure function over
// its inputs and never panics, whatever the provider payload looks like.
//
// No channel provides a single authoritative direction field consistently,
// so classification degrades through successively weaker signals. The
// priority order below is load-bearing: reordering it flips classification
// for real provider payloads.
//
//  1. gmail: the sender is the session user's primary email.
//  2. imap: the message belongs to the selected contact's linked account and
//     the sender is not the contact itself.
//  3. SMS-like channels (twilio, justcall, bulkvs):
//     a. an explicit directional label (OUTBOUND/INBOUND, including
//     provider variants like outbound-api) is trusted directly;
//     b. else the sender's digits are matched against every linked
//     account's number (outbound on match), then each recipient's
//     digits (inbound on match);
//     c. else the account referenced by the message's account ID is looked
//     up and its number compared against the sender;
//     d. last resort: the selected contact's digits matched against the
//     recipient list imply outbound (the contact is being messaged).
//  4. Any other channel: inbound.
//
// contact is the currently-selected contact and may be nil; rules 2 and 3d
// are skipped without it.
func IsFromUser(msg *models.Message, accounts []models.LinkedAccount, userEmail string, contact *models.Contact) bool {
	if msg == nil {
		return false
	}

	switch msg.Channel {
	case models.ChannelGmail:
		return userEmail != "" && strings.EqualFold(msg.From.Address, userEmail)

	case models.ChannelIMAP:
		if contact == nil {
			return false
		}
		if msg.AccountID == "" || msg.AccountID != contact.AccountID {
			return false
		}
		// Guard against mis-attributed echoes: a message on the right
		// account but sent by the contact is still inbound.
		return !strings.EqualFold(msg.From.Address, contact.Address)

	case models.ChannelTwilio, models.ChannelJustCall, models.ChannelBulkVS:
		return classifySMSDirection(msg, accounts, contact)

	default:
		return false
	}
}

func classifySMSDirection(msg *models.Message, accounts []models.LinkedAccount, contact *models.Contact) bool {
	// 3a. Explicit directional labels win outright, even over number
	// matching: a Twilio "outbound-api" message from a number we do not
	// recognize is still outbound.
	if outbound, ok := directionFromLabels(msg.Labels); ok {
		return outbound
	}

	senderDigits := DigitsOnly(msg.From.Address)

	// 3b. Match sender, then recipients, against every linked number.
	for _, acct := range accounts {
		if !acct.Channel.IsSMSLike() {
			continue
		}
		acctDigits := DigitsOnly(acct.Identity)
		if DigitsMatch(senderDigits, acctDigits) {
			return true
		}
	}
	for _, acct := range accounts {
		if !acct.Channel.IsSMSLike() {
			continue
		}
		acctDigits := DigitsOnly(acct.Identity)
		for _, rcpt := range msg.To {
			if DigitsMatch(DigitsOnly(rcpt.Address), acctDigits) {
				return false
			}
		}
	}

	// 3c. Fall back to the specific account the message references.
	if msg.AccountID != "" {
		for _, acct := range accounts {
			if acct.ID == msg.AccountID {
				if DigitsMatch(senderDigits, DigitsOnly(acct.Identity)) {
					return true
				}
				break
			}
		}
	}

	// 3d. If the selected contact appears in the recipient list, the
	// contact is being messaged, so the account is the sender.
	if contact != nil {
		contactDigits := DigitsOnly(contact.Address)
		for _, rcpt := range msg.To {
			if DigitsMatch(DigitsOnly(rcpt.Address), contactDigits) {
				return true
			}
		}
	}

	return false
}

// directionFromLabels scans for an explicit directional label. Providers
// spell these inconsistently (OUTBOUND, outbound-api, outbound-reply,
// inbound), so matching is a case-insensitive prefix check.
func directionFromLabels(labels []string) (outbound, ok bool) {
	for _, label := range labels {
		l := strings.ToLower(strings.TrimSpace(label))
		if strings.HasPrefix(l, "outbound") {
			return true, true
		}
		if strings.HasPrefix(l, "inbound") {
			return false, true
		}
	}
	return false, false
}
