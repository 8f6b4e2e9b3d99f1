package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commsync/commsync/internal/db"
	"github.com/commsync/commsync/internal/models"
	"github.com/commsync/commsync/internal/reconcile"
)

// ConversationHandler assembles one conversation, either with a single
// deduplicated contact or with a user-defined group.
type ConversationHandler struct {
	pool       *pgxpool.Pool
	workspaces *WorkspaceManager
}

// NewConversationHandler creates a new ConversationHandler instance.
func NewConversationHandler(pool *pgxpool.Pool, workspaces *WorkspaceManager) *ConversationHandler {
	return &ConversationHandler{pool: pool, workspaces: workspaces}
}

// conversationMessage is one message in a conversation response, annotated
// with the direction relative to the user.
type conversationMessage struct {
	*models.Message
	IsFromUser bool `json:"is_from_user"`
}

// GetConversation returns the chronologically ordered conversation for
// ?contact=<identity key> or ?group=<group id>.
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, email, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	contactKey := r.URL.Query().Get("contact")
	groupID := r.URL.Query().Get("group")
	if (contactKey == "") == (groupID == "") {
		http.Error(w, "exactly one of contact or group is required", http.StatusBadRequest)
		return
	}

	ws, err := h.workspaces.Get(ctx, userID, email)
	if err != nil {
		log.Printf("ConversationHandler: Failed to get workspace: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	msgs := ws.Store.Snapshot()

	var (
		conversation []*models.Message
		contact      *models.Contact
	)

	if groupID != "" {
		group, err := db.GetGroup(ctx, h.pool, userID, groupID)
		if errors.Is(err, db.ErrGroupNotFound) {
			http.Error(w, "Group not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Printf("ConversationHandler: Failed to get group: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		conversation = reconcile.AssembleGroupConversation(group, msgs)
	} else {
		// An unknown contact key yields an empty conversation rather than
		// an error, so the client can offer to start a new one.
		contact = h.findContact(ws, msgs, email, contactKey)
		if contact != nil {
			conversation = reconcile.AssembleContactConversation(contact, msgs, email)
		}
	}

	response := make([]conversationMessage, 0, len(conversation))
	for _, msg := range conversation {
		response = append(response, conversationMessage{
			Message:    msg,
			IsFromUser: reconcile.IsFromUser(msg, ws.Accounts, email, contact),
		})
	}

	if !WriteJSONResponse(w, response) {
		return
	}
}

// findContact recomputes the deduplicated contact list and returns the
// contact with the given identity key, or nil.
func (h *ConversationHandler) findContact(ws *Workspace, msgs []*models.Message, email, key string) *models.Contact {
	candidates := reconcile.ContactsFromMessages(msgs, ws.Accounts, email)
	contacts := reconcile.DeduplicateContacts(candidates, email)
	for i := range contacts {
		if contacts[i].Key == key {
			return &contacts[i]
		}
	}
	return nil
}
