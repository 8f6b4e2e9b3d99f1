package models

import "time"

// LinkedAccount binds the application to one channel instance, e.g. one IMAP
// mailbox or one Twilio number. Credentials are opaque to everything except
// the channel adapter that uses them; they are stored encrypted.
type LinkedAccount struct {
	ID      string  `json:"id"`
	UserID  string  `json:"user_id"`
	Channel Channel `json:"channel"`
	Label   string  `json:"label"`

	// Identity is the channel-specific identifying address: the mailbox
	// username for IMAP, the phone number for SMS channels, the linked
	// number for WhatsApp.
	Identity string `json:"identity"`

	// Channel-specific connection settings. Which fields are used depends
	// on the channel.
	Host     string `json:"host,omitempty"`      // IMAP server, SMTP server, or API base URL
	SMTPHost string `json:"smtp_host,omitempty"` // IMAP accounts only
	Username string `json:"username,omitempty"`  // login / API key / account SID

	// EncryptedSecret is the AES-GCM-encrypted password, API secret, or
	// auth token. Never serialized.
	EncryptedSecret []byte `json:"-"`

	LastSyncAt time.Time `json:"last_sync_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LinkedAccountRequest is the request payload for creating or updating a
// linked account. The secret is accepted in plain text and encrypted before
// storage.
type LinkedAccountRequest struct {
	Channel  Channel `json:"channel"`
	Label    string  `json:"label"`
	Identity string  `json:"identity"`
	Host     string  `json:"host,omitempty"`
	SMTPHost string  `json:"smtp_host,omitempty"`
	Username string  `json:"username,omitempty"`
	Secret   string  `json:"secret,omitempty"`
}

// LinkedAccountResponse is the response payload for a linked account.
// Secrets are never included.
type LinkedAccountResponse struct {
	ID         string    `json:"id"`
	Channel    Channel   `json:"channel"`
	Label      string    `json:"label"`
	Identity   string    `json:"identity"`
	Host       string    `json:"host,omitempty"`
	SMTPHost   string    `json:"smtp_host,omitempty"`
	Username   string    `json:"username,omitempty"`
	SecretSet  bool      `json:"secret_set"`
	LastSyncAt time.Time `json:"last_sync_at"`
}

// User represents a CommSync user.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuthStatusResponse represents the authentication status of a user.
type AuthStatusResponse struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	Email           string `json:"email,omitempty"`
}
