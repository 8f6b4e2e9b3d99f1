package api

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commsync/commsync/internal/channels"
	"github.com/commsync/commsync/internal/channels/bulkvs"
	"github.com/commsync/commsync/internal/channels/gmail"
	"github.com/commsync/commsync/internal/channels/justcall"
	"github.com/commsync/commsync/internal/channels/mailbox"
	"github.com/commsync/commsync/internal/channels/twiliosms"
	"github.com/commsync/commsync/internal/channels/whatsapp"
	"github.com/commsync/commsync/internal/config"
	"github.com/commsync/commsync/internal/crypto"
	"github.com/commsync/commsync/internal/db"
	"github.com/commsync/commsync/internal/loader"
	"github.com/commsync/commsync/internal/models"
	"github.com/commsync/commsync/internal/store"
)

// Workspace is the per-user runtime: the in-memory message store, the
// incremental loader over the user's linked accounts, and the senders keyed
// by linked-account ID.
type Workspace struct {
	UserEmail string
	Accounts  []models.LinkedAccount
	Store     *store.Store
	Loader    *loader.Loader

	senders map[string]channels.Sender
}

// Sender returns the sender for the given linked-account ID.
func (w *Workspace) Sender(accountID string) (channels.Sender, bool) {
	s, ok := w.senders[accountID]
	return s, ok
}

// WorkspaceManager builds and caches one Workspace per user. The cache is
// invalidated when the user's linked accounts change so sources are rebuilt
// with fresh credentials.
type WorkspaceManager struct {
	pool      *pgxpool.Pool
	encryptor *crypto.Encryptor
	cfg       *config.Config
	state     *db.LoadStateStore

	mu     sync.Mutex
	byUser map[string]*Workspace
}

// NewWorkspaceManager creates a WorkspaceManager.
func NewWorkspaceManager(pool *pgxpool.Pool, encryptor *crypto.Encryptor, cfg *config.Config) *WorkspaceManager {
	return &WorkspaceManager{
		pool:      pool,
		encryptor: encryptor,
		cfg:       cfg,
		state:     db.NewLoadStateStore(pool),
		byUser:    make(map[string]*Workspace),
	}
}

// Get returns the user's workspace, building it on first use.
func (m *WorkspaceManager) Get(ctx context.Context, userID, userEmail string) (*Workspace, error) {
	m.mu.Lock()
	if ws, ok := m.byUser[userID]; ok {
		m.mu.Unlock()
		return ws, nil
	}
	m.mu.Unlock()

	ws, err := m.build(ctx, userID, userEmail)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another request may have built the workspace in the meantime; keep the
	// first one so the store is shared.
	if existing, ok := m.byUser[userID]; ok {
		return existing, nil
	}
	m.byUser[userID] = ws
	return ws, nil
}

// Invalidate drops the cached workspace so the next request rebuilds it.
// Loaded messages are discarded along with it; the rebuilt sources resume
// from their persisted cursors.
func (m *WorkspaceManager) Invalidate(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byUser, userID)
}

// build constructs the workspace from the user's linked accounts. Accounts
// whose adapter cannot be constructed are skipped with a log line so one bad
// credential does not take down the whole inbox.
func (m *WorkspaceManager) build(ctx context.Context, userID, userEmail string) (*Workspace, error) {
	accounts, err := db.ListLinkedAccounts(ctx, m.pool, userID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load linked accounts: %w", err)
	}

	st := store.New()
	ws := &Workspace{
		UserEmail: userEmail,
		Accounts:  accounts,
		Store:     st,
		Loader:    loader.New(userID, st, m.state),
		senders:   make(map[string]channels.Sender),
	}

	var sources []channels.Source
	for _, account := range accounts {
		secret, err := m.decryptSecret(account)
		if err != nil {
			log.Printf("Workspace: failed to decrypt secret for account %s: %v", account.ID, err)
			continue
		}

		source, sender, err := m.buildAdapters(ctx, account, secret, userEmail)
		if err != nil {
			log.Printf("Workspace: failed to build %s adapter for account %s: %v", account.Channel, account.ID, err)
			continue
		}
		if source != nil {
			sources = append(sources, m.trackCursor(ctx, account.ID, source))
		}
		if sender != nil {
			ws.senders[account.ID] = sender
		}
	}

	ws.Loader.SetSources(sources)
	return ws, nil
}

// trackCursor restores the source's persisted cursor and wraps it so every
// successful fetch saves the new position. Sources without a restorable
// cursor pass through unchanged. The persistence key is the linked-account
// row ID even for the primary Gmail source, which reports no account ID.
func (m *WorkspaceManager) trackCursor(ctx context.Context, accountID string, source channels.Source) channels.Source {
	cs, ok := source.(channels.CursorSource)
	if !ok {
		return source
	}

	cursor, err := m.state.GetCursor(ctx, accountID)
	if err != nil {
		log.Printf("Workspace: failed to load cursor for account %s: %v", accountID, err)
	} else if cursor != "" {
		cs.RestoreCursor(cursor)
	}

	return &persistedSource{CursorSource: cs, cursors: m.state, accountKey: accountID}
}

// cursorStore is the persistence surface persistedSource needs.
type cursorStore interface {
	GetCursor(ctx context.Context, accountID string) (string, error)
	SetCursor(ctx context.Context, accountID, cursor string) error
}

// persistedSource saves the wrapped source's cursor after each successful
// fetch so the position survives a restart. Save failures are logged; the
// fetched messages are never dropped over them.
type persistedSource struct {
	channels.CursorSource
	cursors    cursorStore
	accountKey string
}

func (p *persistedSource) FetchOlder(ctx context.Context, pageSize int) ([]*models.Message, error) {
	msgs, err := p.CursorSource.FetchOlder(ctx, pageSize)
	if err != nil {
		return nil, err
	}
	if err := p.cursors.SetCursor(ctx, p.accountKey, p.CursorSource.Cursor()); err != nil {
		log.Printf("Workspace: failed to save cursor for account %s: %v", p.accountKey, err)
	}
	return msgs, nil
}

func (m *WorkspaceManager) decryptSecret(account models.LinkedAccount) (string, error) {
	if len(account.EncryptedSecret) == 0 {
		return "", nil
	}
	return m.encryptor.Decrypt(account.EncryptedSecret)
}

// buildAdapters constructs the fetch source and, where the channel supports
// sending, the sender for one linked account.
func (m *WorkspaceManager) buildAdapters(ctx context.Context, account models.LinkedAccount, secret, userEmail string) (channels.Source, channels.Sender, error) {
	switch account.Channel {
	case models.ChannelGmail:
		client, err := gmail.New(ctx, m.cfg.GoogleClientID, m.cfg.GoogleClientSecret, secret, userEmail)
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil

	case models.ChannelIMAP:
		useTLS := !strings.HasSuffix(account.Host, ":143")
		return mailbox.NewSource(account, secret, useTLS), mailbox.NewSender(account, secret), nil

	case models.ChannelTwilio:
		client := twiliosms.New(account, secret)
		return client, client, nil

	case models.ChannelJustCall:
		client := justcall.New(account, secret)
		return client, client, nil

	case models.ChannelWhatsApp:
		client := whatsapp.New(account, secret)
		return client, client, nil

	case models.ChannelBulkVS:
		// BulkVS is receive-only for now; their send API is not wired up.
		return bulkvs.New(account, secret), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown channel %q", account.Channel)
	}
}
