package db

import (
	"context"
	"errors"
	"testing"

	"github.com/commsync/commsync/internal/models"
	"github.com/commsync/commsync/internal/testutil"
)

func TestLinkedAccounts(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	userID, err := GetOrCreateUser(ctx, pool, "accounts@example.com")
	if err != nil {
		t.Fatalf("GetOrCreateUser failed: %v", err)
	}

	t.Run("create and get", func(t *testing.T) {
		account := &models.LinkedAccount{
			UserID:          userID,
			Channel:         models.ChannelIMAP,
			Label:           "Work mail",
			Identity:        "worker@example.com",
			Host:            "imap.example.com:993",
			SMTPHost:        "smtp.example.com:587",
			Username:        "worker@example.com",
			EncryptedSecret: []byte("sealed"),
		}

		if err := SaveLinkedAccount(ctx, pool, account); err != nil {
			t.Fatalf("SaveLinkedAccount failed: %v", err)
		}
		if account.ID == "" {
			t.Fatal("Expected generated account ID")
		}

		got, err := GetLinkedAccount(ctx, pool, userID, account.ID)
		if err != nil {
			t.Fatalf("GetLinkedAccount failed: %v", err)
		}
		if got.Identity != "worker@example.com" {
			t.Errorf("Expected identity worker@example.com, got %s", got.Identity)
		}
		if string(got.EncryptedSecret) != "sealed" {
			t.Error("Expected encrypted secret to round-trip")
		}
	})

	t.Run("update existing", func(t *testing.T) {
		account := &models.LinkedAccount{
			UserID:   userID,
			Channel:  models.ChannelTwilio,
			Identity: "+15551230001",
		}
		if err := SaveLinkedAccount(ctx, pool, account); err != nil {
			t.Fatalf("SaveLinkedAccount failed: %v", err)
		}

		account.Label = "Support line"
		if err := SaveLinkedAccount(ctx, pool, account); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		got, err := GetLinkedAccount(ctx, pool, userID, account.ID)
		if err != nil {
			t.Fatalf("GetLinkedAccount failed: %v", err)
		}
		if got.Label != "Support line" {
			t.Errorf("Expected updated label, got %q", got.Label)
		}
	})

	t.Run("list filters by channel", func(t *testing.T) {
		all, err := ListLinkedAccounts(ctx, pool, userID, "")
		if err != nil {
			t.Fatalf("ListLinkedAccounts failed: %v", err)
		}
		if len(all) < 2 {
			t.Fatalf("Expected at least 2 accounts, got %d", len(all))
		}

		sms, err := ListLinkedAccounts(ctx, pool, userID, models.ChannelTwilio)
		if err != nil {
			t.Fatalf("ListLinkedAccounts failed: %v", err)
		}
		for _, a := range sms {
			if a.Channel != models.ChannelTwilio {
				t.Errorf("Expected only twilio accounts, got %s", a.Channel)
			}
		}
	})

	t.Run("delete", func(t *testing.T) {
		account := &models.LinkedAccount{
			UserID:   userID,
			Channel:  models.ChannelJustCall,
			Identity: "+15551230002",
		}
		if err := SaveLinkedAccount(ctx, pool, account); err != nil {
			t.Fatalf("SaveLinkedAccount failed: %v", err)
		}

		if err := DeleteLinkedAccount(ctx, pool, userID, account.ID); err != nil {
			t.Fatalf("DeleteLinkedAccount failed: %v", err)
		}

		if _, err := GetLinkedAccount(ctx, pool, userID, account.ID); !errors.Is(err, ErrAccountNotFound) {
			t.Errorf("Expected ErrAccountNotFound, got %v", err)
		}
	})

	t.Run("not found for other user", func(t *testing.T) {
		otherID, err := GetOrCreateUser(ctx, pool, "other@example.com")
		if err != nil {
			t.Fatalf("GetOrCreateUser failed: %v", err)
		}

		account := &models.LinkedAccount{
			UserID:   userID,
			Channel:  models.ChannelIMAP,
			Identity: "private@example.com",
		}
		if err := SaveLinkedAccount(ctx, pool, account); err != nil {
			t.Fatalf("SaveLinkedAccount failed: %v", err)
		}

		if _, err := GetLinkedAccount(ctx, pool, otherID, account.ID); !errors.Is(err, ErrAccountNotFound) {
			t.Errorf("Expected ErrAccountNotFound for other user, got %v", err)
		}
	})
}
