package main

import (
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/commsync/commsync/internal/config"
	"github.com/commsync/commsync/internal/testutil"
)

func getTestConfig() *config.Config {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	return &config.Config{
		Environment:         "test",
		EncryptionKeyBase64: base64.StdEncoding.EncodeToString(key),
		Port:                "8080",
		Timezone:            "UTC",
		AllowedOrigin:       "http://localhost:3000",
	}
}

func TestHandleRoot(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handleRoot(w, req)

	res := w.Result()
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			t.Fatalf("failed to close response body: %v", err)
		}
	}(res.Body)

	if res.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", res.StatusCode)
	}

	contentType := res.Header.Get("Content-Type")
	if contentType != "text/plain" {
		t.Errorf("expected Content-Type 'text/plain', got '%s'", contentType)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}

	expected := "CommSync API is running"
	if string(body) != expected {
		t.Errorf("expected body '%s', got '%s'", expected, string(body))
	}
}

func TestNewServer(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	server := NewServer(getTestConfig(), pool)
	if server == nil {
		t.Fatal("NewServer() returned nil")
	}

	t.Run("root responds", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()

		server.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
	})

	t.Run("api routes require auth", func(t *testing.T) {
		for _, path := range []string{
			"/api/v1/auth/status",
			"/api/v1/accounts",
			"/api/v1/groups",
			"/api/v1/contacts",
			"/api/v1/conversation",
			"/api/v1/messages/load-more",
			"/api/v1/messages/send",
		} {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			w := httptest.NewRecorder()

			server.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected 401 for %s without token, got %d", path, w.Code)
			}
		}
	})
}
