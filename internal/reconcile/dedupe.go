package reconcile

import (
	"sort"
	"strings"

	"github.com/commsync/commsync/internal/models"
)

// ContactsFromMessages builds the raw contact candidate list from a message
// collection: one candidate per message counterparty, carrying that
// message's timestamp and subject. For outbound messages the counterparty
// is each recipient; for inbound messages it is the sender.
func ContactsFromMessages(msgs []*models.Message, accounts []models.LinkedAccount, userEmail string) []models.Contact {
	var candidates []models.Contact
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		if IsFromUser(msg, accounts, userEmail, nil) {
			for _, rcpt := range msg.To {
				candidates = append(candidates, candidateFrom(msg, rcpt))
			}
			continue
		}
		candidates = append(candidates, candidateFrom(msg, msg.From))
	}
	return candidates
}

func candidateFrom(msg *models.Message, party models.Party) models.Contact {
	name := party.DisplayName
	if name == "" {
		name = party.Address
	}
	return models.Contact{
		Key:           IdentityKey(party.Address, msg.Channel),
		DisplayName:   name,
		Address:       party.Address,
		Channel:       msg.Channel,
		AccountID:     msg.AccountID,
		LastMessageAt: msg.SentAt,
		LastSubject:   msg.Subject,
	}
}

// DeduplicateContacts collapses raw contact candidates into one survivor per
// identity key and returns them sorted by most-recent-message timestamp
// descending. Ties keep insertion order (stable sort).
//
// Rules:
//   - a candidate whose key already exists replaces the stored one only if
//     its LastMessageAt is strictly later (zero times sort as epoch);
//   - empty-key candidates are always unique, never merged;
//   - the signed-in user's own primary address is excluded unless the
//     candidate comes from a distinctly linked account, so the user's own
//     Gmail address does not show up as a contact.
//
// Each survivor carries an ordering score for search ranking, derived from
// the recency of its latest message.
func DeduplicateContacts(candidates []models.Contact, userEmail string) []models.Contact {
	survivors := make(map[string]int) // key -> index into out
	var out []models.Contact

	for _, cand := range candidates {
		if isOwnPrimaryAddress(cand, userEmail) {
			continue
		}
		if cand.Key == "" {
			out = append(out, cand)
			continue
		}
		idx, ok := survivors[cand.Key]
		if !ok {
			survivors[cand.Key] = len(out)
			out = append(out, cand)
			continue
		}
		if cand.LastMessageAt.After(out[idx].LastMessageAt) {
			out[idx] = cand
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	for i := range out {
		out[i].Score = contactScore(out[i])
	}
	return out
}

// contactScore is the search-ranking score of a deduplicated contact:
// seconds since epoch of its latest message, so a higher score means a
// fresher conversation. Contacts with no dated message score zero.
func contactScore(c models.Contact) float64 {
	if c.LastMessageAt.IsZero() || c.LastMessageAt.Unix() < 0 {
		return 0
	}
	return float64(c.LastMessageAt.Unix())
}

// isOwnPrimaryAddress reports whether the candidate is the user's own
// primary-channel address. Candidates from a linked account are kept: a
// user's address on a secondary mailbox is a legitimate contact surface.
func isOwnPrimaryAddress(cand models.Contact, userEmail string) bool {
	if userEmail == "" || cand.AccountID != "" {
		return false
	}
	return strings.EqualFold(cand.Address, userEmail)
}
