package models

import "time"

// Contact is one deduplicated counterparty in the unified contact list.
// Key is the canonical identity key derived by the reconcile package.
type Contact struct {
	Key           string    `json:"key"`
	DisplayName   string    `json:"display_name"`
	Address       string    `json:"address"`
	Channel       Channel   `json:"channel"`
	AccountID     string    `json:"account_id,omitempty"`
	LastMessageAt time.Time `json:"last_message_at"`
	LastSubject   string    `json:"last_subject,omitempty"`
	Score         float64   `json:"score,omitempty"`
}

// Group is a user-defined set of addresses and phone numbers that are viewed
// as one conversation. Member lists have set semantics.
type Group struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Emails       []string  `json:"emails"`
	PhoneNumbers []string  `json:"phone_numbers"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
