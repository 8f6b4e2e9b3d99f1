package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commsync/commsync/internal/models"
	"github.com/commsync/commsync/internal/testutil"
)

func TestGroupsHandler(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	handler := NewGroupsHandler(pool)
	email := "groups-api@example.com"

	t.Run("requires auth", func(t *testing.T) {
		VerifyAuthCheck(t, handler.Handle, http.MethodGet, "/api/v1/groups")
	})

	var groupID string

	t.Run("create deduplicates members", func(t *testing.T) {
		req := createJSONRequestWithUser(t, http.MethodPost, "/api/v1/groups", email, groupRequest{
			Name:         "Sales Team",
			Emails:       []string{"Alice@acme.com", "alice@acme.com", "bob@acme.com"},
			PhoneNumbers: []string{"+15551234567", "+15551234567"},
		})
		rr := httptest.NewRecorder()

		handler.Handle(rr, req)
		require.Equal(t, http.StatusCreated, rr.Code)

		var group models.Group
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &group))
		assert.NotEmpty(t, group.ID)
		assert.Equal(t, []string{"alice@acme.com", "bob@acme.com"}, group.Emails)
		assert.Equal(t, []string{"+15551234567"}, group.PhoneNumbers)

		groupID = group.ID
	})

	t.Run("create rejects empty name", func(t *testing.T) {
		req := createJSONRequestWithUser(t, http.MethodPost, "/api/v1/groups", email, groupRequest{
			Name: "   ",
		})
		rr := httptest.NewRecorder()

		handler.Handle(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("list", func(t *testing.T) {
		req := createRequestWithUser(http.MethodGet, "/api/v1/groups", email)
		rr := httptest.NewRecorder()

		handler.Handle(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		var groups []models.Group
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &groups))
		require.Len(t, groups, 1)
		assert.Equal(t, "Sales Team", groups[0].Name)
	})

	t.Run("update", func(t *testing.T) {
		req := createJSONRequestWithUser(t, http.MethodPut, "/api/v1/groups?id="+groupID, email, groupRequest{
			Name:   "Sales Team EMEA",
			Emails: []string{"alice@acme.com"},
		})
		rr := httptest.NewRecorder()

		handler.Handle(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		var group models.Group
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &group))
		assert.Equal(t, "Sales Team EMEA", group.Name)
		assert.Equal(t, []string{"alice@acme.com"}, group.Emails)
	})

	t.Run("delete", func(t *testing.T) {
		req := createRequestWithUser(http.MethodDelete, "/api/v1/groups?id="+groupID, email)
		rr := httptest.NewRecorder()

		handler.Handle(rr, req)
		require.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("update missing group", func(t *testing.T) {
		req := createJSONRequestWithUser(t, http.MethodPut, "/api/v1/groups?id="+groupID, email, groupRequest{
			Name: "Ghost",
		})
		rr := httptest.NewRecorder()

		handler.Handle(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
