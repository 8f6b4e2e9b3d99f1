package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commsync/commsync/internal/db"
	"github.com/commsync/commsync/internal/models"
	"github.com/commsync/commsync/internal/testutil"
)

func TestContactsHandler(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	encryptor := getTestEncryptor(t)
	workspaces := NewWorkspaceManager(pool, encryptor, getTestConfig())
	handler := NewContactsHandler(pool, workspaces)

	email := "contacts-api@example.com"
	userID, err := db.GetOrCreateUser(context.Background(), pool, email)
	require.NoError(t, err)

	ws := seedWorkspace(workspaces, userID, email, nil, nil, nil)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ws.Store.Merge([]*models.Message{
		{
			ID:      "g-1",
			Channel: models.ChannelGmail,
			From:    models.Party{DisplayName: "Bob", Address: "bob@acme.com"},
			To:      []models.Party{{Address: email}},
			Subject: "Quarterly numbers",
			SentAt:  base,
		},
		{
			ID:      "g-2",
			Channel: models.ChannelGmail,
			From:    models.Party{DisplayName: "Bob Smith", Address: "Bob@Acme.com"},
			To:      []models.Party{{Address: email}},
			Subject: "Re: Quarterly numbers",
			SentAt:  base.Add(time.Hour),
		},
		{
			ID:      "t-1",
			Channel: models.ChannelTwilio,
			From:    models.Party{Address: "+15551234567"},
			To:      []models.Party{{Address: "+15559990000"}},
			Body:    "On my way",
			Labels:  []string{"inbound"},
			SentAt:  base.Add(30 * time.Minute),
		},
	})

	t.Run("requires auth", func(t *testing.T) {
		VerifyAuthCheck(t, handler.GetContacts, http.MethodGet, "/api/v1/contacts")
	})

	t.Run("deduplicates and sorts by recency", func(t *testing.T) {
		req := createRequestWithUser(http.MethodGet, "/api/v1/contacts", email)
		rr := httptest.NewRecorder()

		handler.GetContacts(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		var contacts []models.Contact
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &contacts))
		require.Len(t, contacts, 2, "Bob's two address spellings should merge into one contact")

		assert.Equal(t, "bob@acme.com", contacts[0].Key)
		assert.Equal(t, "Bob Smith", contacts[0].DisplayName, "Later message should win the merge")
		assert.Equal(t, "Re: Quarterly numbers", contacts[0].LastSubject)

		assert.Equal(t, "+15551234567", contacts[1].Address)
	})
}
