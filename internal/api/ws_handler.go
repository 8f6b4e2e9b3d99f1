package api

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commsync/commsync/internal/auth"
	"github.com/commsync/commsync/internal/channels/mailbox"
	"github.com/commsync/commsync/internal/crypto"
	"github.com/commsync/commsync/internal/db"
	"github.com/commsync/commsync/internal/models"
	ws "github.com/commsync/commsync/internal/websocket"
)

// WebSocketHandler handles the /api/v1/ws endpoint for real-time updates.
// For every connected user it keeps an IMAP IDLE listener running per IMAP
// account so new mail is pushed without polling.
type WebSocketHandler struct {
	pool        *pgxpool.Pool
	encryptor   *crypto.Encryptor
	hub         *ws.Hub
	mu          sync.Mutex
	idleCancels map[string]context.CancelFunc
}

// NewWebSocketHandler creates a new WebSocketHandler instance.
func NewWebSocketHandler(pool *pgxpool.Pool, encryptor *crypto.Encryptor, hub *ws.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		pool:        pool,
		encryptor:   encryptor,
		hub:         hub,
		idleCancels: make(map[string]context.CancelFunc),
	}
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// For now, allow all origins. This server is expected to be used
		// behind a reverse proxy in a trusted environment.
		return true
	},
}

// Handle upgrades the HTTP connection to a WebSocket and registers it with the Hub.
// Authentication is handled via query parameter (?token=...) since WebSocket connections
// cannot set custom headers in browsers. The token is validated using the same ValidateToken
// function used by the RequireAuth middleware.
func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Extract token from query parameter (WebSocket connections can't set headers).
	token := r.URL.Query().Get("token")
	if token == "" {
		// Fallback to Authorization header if query parameter is not provided.
		// This allows testing with tools that can set headers.
		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			fields := strings.Fields(authHeader)
			if len(fields) >= 2 && strings.EqualFold(fields[0], "Bearer") {
				token = strings.TrimSpace(strings.Join(fields[1:], " "))
			}
		}
	}

	if token == "" {
		log.Printf("WebSocketHandler: No token provided (neither query parameter nor Authorization header)")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userEmail, err := auth.ValidateToken(token)
	if err != nil {
		log.Printf("WebSocketHandler: Token validation failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, err := db.GetOrCreateUser(ctx, h.pool, userEmail)
	if err != nil {
		log.Printf("WebSocketHandler: Failed to get/create user: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocketHandler: failed to upgrade connection for user %s: %v", userID, err)
		return
	}

	client := h.hub.Register(userID, conn)
	if client == nil {
		log.Printf("WebSocketHandler: Connection rejected for user %s (max connections exceeded)", userID)
		return
	}

	// Ensure IDLE listeners are running for the user's IMAP accounts.
	h.ensureIdleListeners(userID)

	// Read loop to keep the connection open and detect disconnects.
	go h.readLoop(userID, client)
}

// ensureIdleListeners starts one IMAP IDLE listener per IMAP account for the
// user, if they are not already running.
func (h *WebSocketHandler) ensureIdleListeners(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.idleCancels[userID]; exists {
		return
	}

	idleCtx, cancel := context.WithCancel(context.Background())
	h.idleCancels[userID] = cancel

	accounts, err := db.ListLinkedAccounts(idleCtx, h.pool, userID, models.ChannelIMAP)
	if err != nil {
		log.Printf("WebSocketHandler: Failed to list IMAP accounts for user %s: %v", userID, err)
		return
	}

	for _, account := range accounts {
		password, err := h.encryptor.Decrypt(account.EncryptedSecret)
		if err != nil {
			log.Printf("WebSocketHandler: Failed to decrypt password for account %s: %v", account.ID, err)
			continue
		}

		useTLS := !strings.HasSuffix(account.Host, ":143")
		go mailbox.StartIdleListener(idleCtx, userID, account, password, useTLS, h.hub)
	}
}

// readLoop reads messages from the WebSocket until the connection is closed.
// When the connection closes, it unregisters the client and stops the IDLE
// listeners if there are no more active connections for the user.
func (h *WebSocketHandler) readLoop(userID string, client *ws.Client) {
	conn := client.Conn()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.hub.Unregister(userID, client)

	if h.hub.ActiveConnections(userID) == 0 {
		log.Printf("WebSocketHandler: No active connections remaining for user %s, stopping IDLE listeners", userID)
		h.mu.Lock()
		if cancel, exists := h.idleCancels[userID]; exists {
			cancel()
			delete(h.idleCancels, userID)
		}
		h.mu.Unlock()
	}
}
