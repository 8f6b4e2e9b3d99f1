package store

import (
	"testing"
	"time"

	"github.com/commsync/commsync/internal/models"
)

func msg(channel models.Channel, id, body string) *models.Message {
	return &models.Message{
		ID:      id,
		Channel: channel,
		From:    models.Party{Address: "someone@example.com"},
		Body:    body,
		SentAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMerge(t *testing.T) {
	t.Run("counts only new messages", func(t *testing.T) {
		s := New()

		added := s.Merge([]*models.Message{msg(models.ChannelGmail, "1", "a"), msg(models.ChannelGmail, "2", "b")})
		if added != 2 {
			t.Errorf("Expected 2 added, got %d", added)
		}

		added = s.Merge([]*models.Message{msg(models.ChannelGmail, "2", "b"), msg(models.ChannelGmail, "3", "c")})
		if added != 1 {
			t.Errorf("Expected 1 added, got %d", added)
		}
		if s.Len() != 3 {
			t.Errorf("Expected 3 messages, got %d", s.Len())
		}
	})

	t.Run("same ID on different channels stays distinct", func(t *testing.T) {
		s := New()
		s.Merge([]*models.Message{msg(models.ChannelGmail, "1", "mail"), msg(models.ChannelTwilio, "1", "sms")})
		if s.Len() != 2 {
			t.Errorf("Expected channel-scoped IDs to stay distinct, got %d messages", s.Len())
		}
	})

	t.Run("last write wins on duplicates", func(t *testing.T) {
		s := New()
		s.Merge([]*models.Message{msg(models.ChannelGmail, "1", "old")})
		s.Merge([]*models.Message{msg(models.ChannelGmail, "1", "new")})

		snap := s.Snapshot()
		if len(snap) != 1 || snap[0].Body != "new" {
			t.Errorf("Expected last write to win, got %+v", snap)
		}
	})

	t.Run("merge order does not affect final state", func(t *testing.T) {
		batchA := []*models.Message{msg(models.ChannelGmail, "1", "a"), msg(models.ChannelTwilio, "2", "b")}
		batchB := []*models.Message{msg(models.ChannelTwilio, "2", "b"), msg(models.ChannelWhatsApp, "3", "c")}

		ab := New()
		ab.Merge(batchA)
		ab.Merge(batchB)

		ba := New()
		ba.Merge(batchB)
		ba.Merge(batchA)

		if ab.Len() != ba.Len() {
			t.Fatalf("Expected equal sizes, got %d and %d", ab.Len(), ba.Len())
		}

		byKey := func(s *Store) map[string]string {
			out := make(map[string]string)
			for _, m := range s.Snapshot() {
				out[string(m.Channel)+"/"+m.ID] = m.Body
			}
			return out
		}
		a, b := byKey(ab), byKey(ba)
		for k, v := range a {
			if b[k] != v {
				t.Errorf("Mismatch for %s: %q vs %q", k, v, b[k])
			}
		}
	})

	t.Run("normalizes messages on merge", func(t *testing.T) {
		s := New()
		raw := &models.Message{ID: "1", Channel: models.ChannelJustCall, From: models.Party{Address: "+15550001111"}}
		s.Merge([]*models.Message{raw})

		snap := s.Snapshot()
		if snap[0].SentAt.IsZero() {
			t.Error("Expected zero timestamp to be defaulted")
		}
		if len(snap[0].Labels) != 1 || snap[0].Labels[0] != "INBOX" {
			t.Errorf("Expected default INBOX label, got %v", snap[0].Labels)
		}
	})

	t.Run("skips nil and unidentified messages", func(t *testing.T) {
		s := New()
		added := s.Merge([]*models.Message{nil, {Channel: models.ChannelGmail}})
		if added != 0 || s.Len() != 0 {
			t.Errorf("Expected nothing added, got %d", added)
		}
	})
}
