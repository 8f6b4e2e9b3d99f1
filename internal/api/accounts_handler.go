package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commsync/commsync/internal/crypto"
	"github.com/commsync/commsync/internal/db"
	"github.com/commsync/commsync/internal/models"
)

// AccountsHandler handles linked-account CRUD requests.
type AccountsHandler struct {
	pool       *pgxpool.Pool
	encryptor  *crypto.Encryptor
	workspaces *WorkspaceManager
}

// NewAccountsHandler creates a new AccountsHandler instance.
func NewAccountsHandler(pool *pgxpool.Pool, encryptor *crypto.Encryptor, workspaces *WorkspaceManager) *AccountsHandler {
	return &AccountsHandler{
		pool:       pool,
		encryptor:  encryptor,
		workspaces: workspaces,
	}
}

// Handle dispatches on method for the /api/v1/accounts endpoint.
func (h *AccountsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	case http.MethodPut:
		h.update(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AccountsHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	accounts, err := db.ListLinkedAccounts(ctx, h.pool, userID, models.Channel(r.URL.Query().Get("channel")))
	if err != nil {
		log.Printf("AccountsHandler: Failed to list accounts: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	responses := make([]models.LinkedAccountResponse, 0, len(accounts))
	for _, account := range accounts {
		responses = append(responses, toAccountResponse(account))
	}

	if !WriteJSONResponse(w, responses) {
		return
	}
}

func (h *AccountsHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	var req models.LinkedAccountRequest
	if !DecodeJSONBody(w, r, &req) {
		return
	}

	if req.Channel == "" || strings.TrimSpace(req.Identity) == "" {
		http.Error(w, "channel and identity are required", http.StatusBadRequest)
		return
	}

	account := models.LinkedAccount{
		UserID:   userID,
		Channel:  req.Channel,
		Label:    req.Label,
		Identity: req.Identity,
		Host:     req.Host,
		SMTPHost: req.SMTPHost,
		Username: req.Username,
	}

	if req.Secret != "" {
		encrypted, err := h.encryptor.Encrypt(req.Secret)
		if err != nil {
			log.Printf("AccountsHandler: Failed to encrypt secret: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		account.EncryptedSecret = encrypted
	}

	if err := db.SaveLinkedAccount(ctx, h.pool, &account); err != nil {
		log.Printf("AccountsHandler: Failed to save account: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.workspaces.Invalidate(userID)

	w.WriteHeader(http.StatusCreated)
	if !WriteJSONResponse(w, toAccountResponse(account)) {
		return
	}
}

func (h *AccountsHandler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	accountID := r.URL.Query().Get("id")
	if accountID == "" {
		http.Error(w, "id query parameter is required", http.StatusBadRequest)
		return
	}

	account, err := db.GetLinkedAccount(ctx, h.pool, userID, accountID)
	if errors.Is(err, db.ErrAccountNotFound) {
		http.Error(w, "Account not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("AccountsHandler: Failed to get account: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var req models.LinkedAccountRequest
	if !DecodeJSONBody(w, r, &req) {
		return
	}

	if req.Channel != "" {
		account.Channel = req.Channel
	}
	if req.Identity != "" {
		account.Identity = req.Identity
	}
	account.Label = req.Label
	account.Host = req.Host
	account.SMTPHost = req.SMTPHost
	account.Username = req.Username

	// An empty secret in the request keeps the stored one.
	if req.Secret != "" {
		encrypted, err := h.encryptor.Encrypt(req.Secret)
		if err != nil {
			log.Printf("AccountsHandler: Failed to encrypt secret: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		account.EncryptedSecret = encrypted
	}

	if err := db.SaveLinkedAccount(ctx, h.pool, account); err != nil {
		log.Printf("AccountsHandler: Failed to update account: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.workspaces.Invalidate(userID)

	if !WriteJSONResponse(w, toAccountResponse(*account)) {
		return
	}
}

func (h *AccountsHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	accountID := r.URL.Query().Get("id")
	if accountID == "" {
		http.Error(w, "id query parameter is required", http.StatusBadRequest)
		return
	}

	err := db.DeleteLinkedAccount(ctx, h.pool, userID, accountID)
	if errors.Is(err, db.ErrAccountNotFound) {
		http.Error(w, "Account not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("AccountsHandler: Failed to delete account: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.workspaces.Invalidate(userID)

	w.WriteHeader(http.StatusNoContent)
}

func toAccountResponse(account models.LinkedAccount) models.LinkedAccountResponse {
	return models.LinkedAccountResponse{
		ID:         account.ID,
		Channel:    account.Channel,
		Label:      account.Label,
		Identity:   account.Identity,
		Host:       account.Host,
		SMTPHost:   account.SMTPHost,
		Username:   account.Username,
		SecretSet:  len(account.EncryptedSecret) > 0,
		LastSyncAt: account.LastSyncAt,
	}
}
