package bulkvs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/commsync/commsync/internal/models"
)

func TestFetchOlder(t *testing.T) {
	var pages []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "api-user" || pass != "api-pass" {
			t.Errorf("Unexpected basic auth %q / %q", user, pass)
		}
		if got := r.URL.Query().Get("Number"); got != "+15559990000" {
			t.Errorf("Unexpected Number parameter %q", got)
		}
		pages = append(pages, r.URL.Query().Get("Page"))

		_ = json.NewEncoder(w).Encode([]wireMessage{
			{
				RefID:     "bv-1",
				From:      "+15551234567",
				To:        "+15559990000",
				Message:   "Package delivered",
				Direction: "inbound",
				Time:      "2024-03-01T12:00:00Z",
			},
		})
	}))
	defer server.Close()

	account := models.LinkedAccount{
		ID:       "acct-bv",
		Channel:  models.ChannelBulkVS,
		Identity: "+15559990000",
		Host:     server.URL,
		Username: "api-user",
	}
	client := New(account, "api-pass")

	msgs, err := client.FetchOlder(context.Background(), 25)
	if err != nil {
		t.Fatalf("FetchOlder failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(msgs))
	}

	msg := msgs[0]
	if msg.ID != "bv-1" || msg.Channel != models.ChannelBulkVS {
		t.Errorf("Unexpected message identity: %s / %s", msg.ID, msg.Channel)
	}
	if msg.Labels[0] != "inbound" {
		t.Errorf("Direction should pass through as a label, got %v", msg.Labels)
	}
	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if !msg.SentAt.Equal(want) {
		t.Errorf("Expected timestamp %v, got %v", want, msg.SentAt)
	}

	if _, err := client.FetchOlder(context.Background(), 25); err != nil {
		t.Fatalf("Second FetchOlder failed: %v", err)
	}
	if len(pages) != 2 || pages[0] != "0" || pages[1] != "1" {
		t.Errorf("Expected page progression [0 1], got %v", pages)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	var page string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page = r.URL.Query().Get("Page")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	account := models.LinkedAccount{ID: "acct-bv", Identity: "+15559990000", Host: server.URL}
	client := New(account, "api-pass")
	client.RestoreCursor("5")

	if _, err := client.FetchOlder(context.Background(), 25); err != nil {
		t.Fatalf("FetchOlder failed: %v", err)
	}
	if page != "5" {
		t.Errorf("Expected restored page 5 in the request, got %q", page)
	}
	if client.Cursor() != "6" {
		t.Errorf("Expected exported cursor 6 after fetch, got %q", client.Cursor())
	}
}

func TestFetchOlderErrorKeepsPage(t *testing.T) {
	fail := true
	var pages []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages = append(pages, r.URL.Query().Get("Page"))
		if fail {
			http.Error(w, "maintenance", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	account := models.LinkedAccount{ID: "acct-bv", Identity: "+15559990000", Host: server.URL}
	client := New(account, "api-pass")

	if _, err := client.FetchOlder(context.Background(), 25); err == nil {
		t.Fatal("Expected error from failing fetch")
	}

	fail = false
	if _, err := client.FetchOlder(context.Background(), 25); err != nil {
		t.Fatalf("FetchOlder failed: %v", err)
	}
	if len(pages) != 2 || pages[1] != "0" {
		t.Errorf("Page should not advance after a failed fetch, got %v", pages)
	}
}
