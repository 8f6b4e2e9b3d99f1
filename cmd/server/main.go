package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"

	"github.com/commsync/commsync/internal/api"
	"github.com/commsync/commsync/internal/auth"
	"github.com/commsync/commsync/internal/config"
	"github.com/commsync/commsync/internal/crypto"
	"github.com/commsync/commsync/internal/db"
	ws "github.com/commsync/commsync/internal/websocket"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewConnection(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.CloseConnection(pool)

	log.Printf("Successfully connected to database")

	server := NewServer(cfg, pool)

	address := ":" + cfg.Port
	log.Printf("CommSync backend server starting on %s (environment: %s)", address, cfg.Environment)

	if err := http.ListenAndServe(address, server); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// NewServer creates and returns a new HTTP handler for the CommSync API server.
func NewServer(cfg *config.Config, dbPool *pgxpool.Pool) http.Handler {
	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKeyBase64)
	if err != nil {
		log.Fatalf("Failed to create encryptor: %v", err)
	}

	workspaces := api.NewWorkspaceManager(dbPool, encryptor, cfg)
	wsHub := ws.NewHub(10)

	authHandler := api.NewAuthHandler(dbPool)
	accountsHandler := api.NewAccountsHandler(dbPool, encryptor, workspaces)
	groupsHandler := api.NewGroupsHandler(dbPool)
	contactsHandler := api.NewContactsHandler(dbPool, workspaces)
	conversationHandler := api.NewConversationHandler(dbPool, workspaces)
	messagesHandler := api.NewMessagesHandler(dbPool, workspaces)
	wsHandler := api.NewWebSocketHandler(dbPool, encryptor, wsHub)

	mux := http.NewServeMux()

	mux.HandleFunc("/", handleRoot)

	mux.Handle("/api/v1/auth/status", auth.RequireAuth(http.HandlerFunc(authHandler.GetAuthStatus)))
	mux.Handle("/api/v1/accounts", auth.RequireAuth(http.HandlerFunc(accountsHandler.Handle)))
	mux.Handle("/api/v1/groups", auth.RequireAuth(http.HandlerFunc(groupsHandler.Handle)))
	mux.Handle("/api/v1/contacts", auth.RequireAuth(http.HandlerFunc(contactsHandler.GetContacts)))
	mux.Handle("/api/v1/conversation", auth.RequireAuth(http.HandlerFunc(conversationHandler.GetConversation)))
	mux.Handle("/api/v1/messages/load-more", auth.RequireAuth(http.HandlerFunc(messagesHandler.LoadMore)))
	mux.Handle("/api/v1/messages/send", auth.RequireAuth(http.HandlerFunc(messagesHandler.Send)))
	// WebSocket handler handles its own authentication via query parameter
	// (since browsers can't set headers on WebSocket connections).
	mux.Handle("/api/v1/ws", http.HandlerFunc(wsHandler.Handle))

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	return corsMiddleware.Handler(mux)
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "CommSync API is running")
}
