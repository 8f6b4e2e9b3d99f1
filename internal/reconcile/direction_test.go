package reconcile

import (
	"testing"

	"github.com/commsync/commsync/internal/models"
)

func smsAccounts() []models.LinkedAccount {
	return []models.LinkedAccount{
		{ID: "tw-1", Channel: models.ChannelTwilio, Identity: "+15559990000"},
		{ID: "jc-1", Channel: models.ChannelJustCall, Identity: "+15558880000"},
	}
}

func TestIsFromUser(t *testing.T) {
	t.Run("gmail matches session user email", func(t *testing.T) {
		msg := &models.Message{
			Channel: models.ChannelGmail,
			From:    models.Party{Address: "Me@Example.com"},
		}
		if !IsFromUser(msg, nil, "me@example.com", nil) {
			t.Error("Expected gmail message from session user to be outbound")
		}

		msg.From.Address = "alice@example.com"
		if IsFromUser(msg, nil, "me@example.com", nil) {
			t.Error("Expected gmail message from contact to be inbound")
		}
	})

	t.Run("imap requires matching account and non-contact sender", func(t *testing.T) {
		contact := &models.Contact{Address: "alice@example.com", AccountID: "imap-1"}

		msg := &models.Message{
			Channel:   models.ChannelIMAP,
			AccountID: "imap-1",
			From:      models.Party{Address: "me@mailbox.example"},
		}
		if !IsFromUser(msg, nil, "", contact) {
			t.Error("Expected message on contact's account from non-contact to be outbound")
		}

		// Echo guard: right account, but the contact sent it.
		msg.From.Address = "Alice@Example.com"
		if IsFromUser(msg, nil, "", contact) {
			t.Error("Expected message sent by the contact to be inbound")
		}

		msg.From.Address = "me@mailbox.example"
		msg.AccountID = "imap-2"
		if IsFromUser(msg, nil, "", contact) {
			t.Error("Expected message on a different account to be inbound")
		}
	})

	t.Run("explicit label overrides number matching", func(t *testing.T) {
		// Sender matches no linked account; the label alone decides.
		msg := &models.Message{
			Channel: models.ChannelTwilio,
			From:    models.Party{Address: "+15551230000"},
			Labels:  []string{"outbound-api"},
		}
		if !IsFromUser(msg, smsAccounts(), "me@example.com", nil) {
			t.Error("Expected outbound-api label to classify as outbound")
		}

		msg.Labels = []string{"INBOUND"}
		if IsFromUser(msg, smsAccounts(), "me@example.com", nil) {
			t.Error("Expected INBOUND label to classify as inbound")
		}
	})

	t.Run("sender digits matching a linked number means outbound", func(t *testing.T) {
		msg := &models.Message{
			Channel: models.ChannelTwilio,
			From:    models.Party{Address: "(555) 999-0000"},
			To:      []models.Party{{Address: "+15551234567"}},
		}
		if !IsFromUser(msg, smsAccounts(), "", nil) {
			t.Error("Expected sender matching linked number to be outbound")
		}
	})

	t.Run("recipient digits matching a linked number means inbound", func(t *testing.T) {
		msg := &models.Message{
			Channel: models.ChannelJustCall,
			From:    models.Party{Address: "+15551234567"},
			To:      []models.Party{{Address: "15558880000"}},
		}
		if IsFromUser(msg, smsAccounts(), "", nil) {
			t.Error("Expected recipient matching linked number to be inbound")
		}
	})

	t.Run("falls back to the referenced account", func(t *testing.T) {
		accounts := []models.LinkedAccount{
			{ID: "tw-1", Channel: models.ChannelTwilio, Identity: ""},
			{ID: "tw-2", Channel: models.ChannelTwilio, Identity: "+15557770000"},
		}
		msg := &models.Message{
			Channel:   models.ChannelTwilio,
			AccountID: "tw-2",
			From:      models.Party{Address: "5557770000"},
		}
		if !IsFromUser(msg, accounts, "", nil) {
			t.Error("Expected referenced-account number match to be outbound")
		}
	})

	t.Run("last resort compares contact digits against recipients", func(t *testing.T) {
		contact := &models.Contact{Address: "+15551234567", Channel: models.ChannelTwilio}
		msg := &models.Message{
			Channel: models.ChannelTwilio,
			From:    models.Party{Address: "unknown"},
			To:      []models.Party{{Address: "5551234567"}},
		}
		if !IsFromUser(msg, nil, "", contact) {
			t.Error("Expected contact in recipient list to imply outbound")
		}
	})

	t.Run("total function over degenerate input", func(t *testing.T) {
		// No label, no matching digits, no resolvable account: inbound,
		// never a panic.
		msg := &models.Message{
			Channel:   models.ChannelTwilio,
			AccountID: "missing",
			From:      models.Party{Address: ""},
		}
		if IsFromUser(msg, nil, "", nil) {
			t.Error("Expected degenerate SMS message to default to inbound")
		}

		if IsFromUser(nil, nil, "", nil) {
			t.Error("Expected nil message to be inbound")
		}

		unknown := &models.Message{Channel: "carrier-pigeon", From: models.Party{Address: "x"}}
		if IsFromUser(unknown, smsAccounts(), "me@example.com", nil) {
			t.Error("Expected unknown channel to default to inbound")
		}
	})
}
