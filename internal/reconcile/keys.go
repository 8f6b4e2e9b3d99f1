// Package reconcile contains the multi-channel reconciliation core: identity
// key derivation, contact deduplication, message direction classification,
// and conversation assembly. All functions here are pure and total over
// malformed channel data; provider payloads are untrustworthy, so nothing in
// this package panics or returns an error for bad input.
package reconcile

import (
	"strings"

	"github.com/commsync/commsync/internal/models"
)

// GroupJIDSuffix is the WhatsApp group-chat domain suffix. This is an
// external contract of the provider, not documented beyond the literal
// string; if the provider changes it, group classification breaks.
const GroupJIDSuffix = "@g.us"

const (
	whatsappGroupKeyPrefix   = "whatsapp:group:"
	whatsappContactKeyPrefix = "whatsapp:contact:"
)

// IdentityKey derives the canonical identity key for an address on a
// channel. Keys decide which raw sender/recipient records merge into one
// Contact.
//
// An empty address yields an empty key; empty-key contacts are never merged
// with anything (see DeduplicateContacts).
func IdentityKey(address string, channel models.Channel) string {
	if address == "" {
		return ""
	}

	// Group JIDs keep their exact form, case included. A group chat must
	// never merge with an individual contact, even one with the same
	// display name.
	if strings.HasSuffix(address, GroupJIDSuffix) {
		return whatsappGroupKeyPrefix + address
	}

	if channel == models.ChannelWhatsApp {
		return whatsappContactKeyPrefix + DigitsOnly(address)
	}

	// Email-like addresses are case-insensitive.
	if strings.Contains(address, "@") {
		return strings.ToLower(address)
	}

	// SMS-style addresses keep their raw per-channel form. Phone-number
	// normalization happens in direction classification, not here, so the
	// key preserves exact provenance.
	return address
}

// DigitsOnly strips every non-digit character from s. "+1 (555) 123-4567"
// and "15551234567@s.whatsapp.net" both reduce to "15551234567".
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DigitsMatch reports whether two digit strings refer to the same number
// under the lossy containment rule: one must contain the other as a
// substring. This tolerates inconsistent country-code prefixing across
// providers. It can produce false positives for numbers that are literal
// substrings of one another; that is a known limitation, kept as-is.
func DigitsMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// IsGroupKey reports whether key identifies a WhatsApp group chat.
func IsGroupKey(key string) bool {
	return strings.HasPrefix(key, whatsappGroupKeyPrefix)
}
