package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/commsync/commsync/internal/auth"
	"github.com/commsync/commsync/internal/channels"
	"github.com/commsync/commsync/internal/config"
	"github.com/commsync/commsync/internal/crypto"
	"github.com/commsync/commsync/internal/loader"
	"github.com/commsync/commsync/internal/models"
	"github.com/commsync/commsync/internal/store"
)

// getTestEncryptor creates a test encryptor with a deterministic key for testing.
func getTestEncryptor(t *testing.T) *crypto.Encryptor {
	t.Helper()

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	base64Key := base64.StdEncoding.EncodeToString(key)

	encryptor, err := crypto.NewEncryptor(base64Key)
	if err != nil {
		t.Fatalf("Failed to create encryptor: %v", err)
	}
	return encryptor
}

func getTestConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Port:        "8080",
		Timezone:    "UTC",
	}
}

// createRequestWithUser creates an HTTP request with user email in context.
func createRequestWithUser(method, url, email string) *http.Request {
	req := httptest.NewRequest(method, url, nil)
	ctx := context.WithValue(req.Context(), auth.UserEmailKey, email)
	return req.WithContext(ctx)
}

// createJSONRequestWithUser creates an HTTP request with a JSON body and user
// email in context.
func createJSONRequestWithUser(t *testing.T, method, url, email string, payload any) *http.Request {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}

	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	ctx := context.WithValue(req.Context(), auth.UserEmailKey, email)
	return req.WithContext(ctx)
}

// VerifyAuthCheck verifies that the handler returns 401 Unauthorized when no user is in context.
func VerifyAuthCheck(t *testing.T, handlerFunc http.HandlerFunc, method, url string) {
	t.Helper()
	req := httptest.NewRequest(method, url, nil)
	rr := httptest.NewRecorder()
	handlerFunc(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "Expected status 401 when no user email in context")
}

// memLoadState is an in-memory loader.StateStore and cursorStore for
// workspace tests.
type memLoadState struct {
	streaks map[string]int
	cursors map[string]string
}

func newMemLoadState() *memLoadState {
	return &memLoadState{
		streaks: make(map[string]int),
		cursors: make(map[string]string),
	}
}

func (m *memLoadState) GetEmptyStreak(_ context.Context, userID string) (int, error) {
	return m.streaks[userID], nil
}

func (m *memLoadState) SetEmptyStreak(_ context.Context, userID string, streak int) error {
	m.streaks[userID] = streak
	return nil
}

func (m *memLoadState) GetCursor(_ context.Context, accountID string) (string, error) {
	return m.cursors[accountID], nil
}

func (m *memLoadState) SetCursor(_ context.Context, accountID, cursor string) error {
	m.cursors[accountID] = cursor
	return nil
}

// fakeSource serves scripted message batches.
type fakeSource struct {
	channel   models.Channel
	accountID string
	batches   [][]*models.Message
	calls     int
}

func (f *fakeSource) Channel() models.Channel { return f.channel }
func (f *fakeSource) AccountID() string       { return f.accountID }

func (f *fakeSource) FetchOlder(_ context.Context, _ int) ([]*models.Message, error) {
	if f.calls >= len(f.batches) {
		return nil, nil
	}
	batch := f.batches[f.calls]
	f.calls++
	return batch, nil
}

// fakeCursorSource is a fakeSource with a restorable cursor. Each
// successful fetch moves the cursor to the call count.
type fakeCursorSource struct {
	fakeSource
	cursor string
	err    error
}

func (f *fakeCursorSource) Cursor() string              { return f.cursor }
func (f *fakeCursorSource) RestoreCursor(cursor string) { f.cursor = cursor }

func (f *fakeCursorSource) FetchOlder(ctx context.Context, pageSize int) ([]*models.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	msgs, err := f.fakeSource.FetchOlder(ctx, pageSize)
	if err == nil {
		f.cursor = strconv.Itoa(f.calls)
	}
	return msgs, err
}

// fakeSender records send requests and returns a canned message.
type fakeSender struct {
	channel   models.Channel
	accountID string
	sent      []channels.OutgoingMessage
	record    *models.Message
	err       error
}

func (f *fakeSender) Channel() models.Channel { return f.channel }
func (f *fakeSender) AccountID() string       { return f.accountID }

func (f *fakeSender) Send(_ context.Context, out channels.OutgoingMessage) (*models.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, out)
	return f.record, nil
}

// seedWorkspace installs a hand-built workspace for the user so handler tests
// can run against fake sources and senders instead of live channel adapters.
func seedWorkspace(m *WorkspaceManager, userID, email string, accounts []models.LinkedAccount, sources []channels.Source, senders map[string]channels.Sender) *Workspace {
	st := store.New()
	ws := &Workspace{
		UserEmail: email,
		Accounts:  accounts,
		Store:     st,
		Loader:    loader.New(userID, st, newMemLoadState()),
		senders:   senders,
	}
	if ws.senders == nil {
		ws.senders = make(map[string]channels.Sender)
	}
	ws.Loader.SetSources(sources)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byUser[userID] = ws
	return ws
}
