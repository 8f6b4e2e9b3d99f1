package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commsync/commsync/internal/channels"
	"github.com/commsync/commsync/internal/db"
	"github.com/commsync/commsync/internal/loader"
	"github.com/commsync/commsync/internal/models"
)

// MessagesHandler handles incremental loading and sending.
type MessagesHandler struct {
	pool       *pgxpool.Pool
	workspaces *WorkspaceManager
}

// NewMessagesHandler creates a new MessagesHandler instance.
func NewMessagesHandler(pool *pgxpool.Pool, workspaces *WorkspaceManager) *MessagesHandler {
	return &MessagesHandler{pool: pool, workspaces: workspaces}
}

// LoadMore triggers one concurrent fetch-older round across all of the
// user's channels. A round that is already running is reported as a
// conflict rather than queued.
func (h *MessagesHandler) LoadMore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, email, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	ws, err := h.workspaces.Get(ctx, userID, email)
	if err != nil {
		log.Printf("MessagesHandler: Failed to get workspace: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	result, err := ws.Loader.LoadMore(ctx)
	if errors.Is(err, loader.ErrLoadInProgress) {
		http.Error(w, "A load is already in progress", http.StatusConflict)
		return
	}
	if err != nil {
		log.Printf("MessagesHandler: Load failed: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if !WriteJSONResponse(w, result) {
		return
	}
}

// sendRequest is the payload for sending a message through one linked
// account.
type sendRequest struct {
	AccountID string   `json:"account_id"`
	To        []string `json:"to"`
	Subject   string   `json:"subject,omitempty"`
	Body      string   `json:"body"`
	HTML      bool     `json:"html,omitempty"`
}

// Send sends a message through the linked account named in the request and
// merges the provider's record of it into the store, so the conversation
// shows the sent message immediately.
func (h *MessagesHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, email, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	var req sendRequest
	if !DecodeJSONBody(w, r, &req) {
		return
	}

	if req.AccountID == "" || len(req.To) == 0 || req.Body == "" {
		http.Error(w, "account_id, to and body are required", http.StatusBadRequest)
		return
	}

	ws, err := h.workspaces.Get(ctx, userID, email)
	if err != nil {
		log.Printf("MessagesHandler: Failed to get workspace: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	sender, ok := ws.Sender(req.AccountID)
	if !ok {
		http.Error(w, "Account not found or does not support sending", http.StatusNotFound)
		return
	}

	sent, err := sender.Send(ctx, channels.OutgoingMessage{
		To:      req.To,
		Subject: req.Subject,
		Body:    req.Body,
		HTML:    req.HTML,
	})
	if err != nil {
		log.Printf("MessagesHandler: Send failed via %s account %s: %v", sender.Channel(), req.AccountID, err)
		http.Error(w, "Failed to send message", http.StatusBadGateway)
		return
	}

	ws.Store.Merge([]*models.Message{sent})

	if err := db.TouchLinkedAccountSync(ctx, h.pool, req.AccountID); err != nil {
		log.Printf("MessagesHandler: Failed to record sync time: %v", err)
	}

	w.WriteHeader(http.StatusCreated)
	if !WriteJSONResponse(w, sent) {
		return
	}
}
