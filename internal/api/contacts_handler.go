package api

import (
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commsync/commsync/internal/models"
	"github.com/commsync/commsync/internal/reconcile"
)

// ContactsHandler serves the unified, deduplicated contact list built from
// the loaded messages.
type ContactsHandler struct {
	pool       *pgxpool.Pool
	workspaces *WorkspaceManager
}

// NewContactsHandler creates a new ContactsHandler instance.
func NewContactsHandler(pool *pgxpool.Pool, workspaces *WorkspaceManager) *ContactsHandler {
	return &ContactsHandler{pool: pool, workspaces: workspaces}
}

// GetContacts returns the deduplicated contact list, most recent activity
// first. The list is recomputed from the store on every request so it always
// reflects the currently loaded messages.
func (h *ContactsHandler) GetContacts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, email, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	ws, err := h.workspaces.Get(ctx, userID, email)
	if err != nil {
		log.Printf("ContactsHandler: Failed to get workspace: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	msgs := ws.Store.Snapshot()
	candidates := reconcile.ContactsFromMessages(msgs, ws.Accounts, email)
	contacts := reconcile.DeduplicateContacts(candidates, email)

	if contacts == nil {
		contacts = []models.Contact{}
	}

	if !WriteJSONResponse(w, contacts) {
		return
	}
}
