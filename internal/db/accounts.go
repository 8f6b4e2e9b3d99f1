package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commsync/commsync/internal/models"
)

// ErrAccountNotFound is returned when a requested linked account cannot be found.
var ErrAccountNotFound = errors.New("linked account not found")

// SaveLinkedAccount inserts or updates a linked account. On insert the
// generated ID is written back to the account.
func SaveLinkedAccount(ctx context.Context, pool *pgxpool.Pool, account *models.LinkedAccount) error {
	if account.ID == "" {
		err := pool.QueryRow(ctx, `
			INSERT INTO linked_accounts (user_id, channel, label, identity, host, smtp_host, username, encrypted_secret)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`, account.UserID, account.Channel, account.Label, account.Identity,
			account.Host, account.SMTPHost, account.Username, account.EncryptedSecret,
		).Scan(&account.ID)
		if err != nil {
			return fmt.Errorf("failed to create linked account: %w", err)
		}
		return nil
	}

	tag, err := pool.Exec(ctx, `
		UPDATE linked_accounts
		SET channel = $1, label = $2, identity = $3, host = $4, smtp_host = $5,
			username = $6, encrypted_secret = $7, updated_at = NOW()
		WHERE id = $8 AND user_id = $9
	`, account.Channel, account.Label, account.Identity, account.Host,
		account.SMTPHost, account.Username, account.EncryptedSecret,
		account.ID, account.UserID)
	if err != nil {
		return fmt.Errorf("failed to update linked account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// GetLinkedAccount returns one linked account by ID, scoped to the user.
func GetLinkedAccount(ctx context.Context, pool *pgxpool.Pool, userID, accountID string) (*models.LinkedAccount, error) {
	var account models.LinkedAccount

	err := pool.QueryRow(ctx, `
		SELECT id, user_id, channel, label, identity, host, smtp_host, username,
			encrypted_secret, last_sync_at, created_at, updated_at
		FROM linked_accounts
		WHERE id = $1 AND user_id = $2
	`, accountID, userID).Scan(
		&account.ID,
		&account.UserID,
		&account.Channel,
		&account.Label,
		&account.Identity,
		&account.Host,
		&account.SMTPHost,
		&account.Username,
		&account.EncryptedSecret,
		&account.LastSyncAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get linked account: %w", err)
	}

	return &account, nil
}

// ListLinkedAccounts returns the user's linked accounts, optionally filtered
// by channel (empty channel means all).
func ListLinkedAccounts(ctx context.Context, pool *pgxpool.Pool, userID string, channel models.Channel) ([]models.LinkedAccount, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, user_id, channel, label, identity, host, smtp_host, username,
			encrypted_secret, last_sync_at, created_at, updated_at
		FROM linked_accounts
		WHERE user_id = $1 AND ($2 = '' OR channel = $2)
		ORDER BY created_at
	`, userID, string(channel))
	if err != nil {
		return nil, fmt.Errorf("failed to list linked accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.LinkedAccount
	for rows.Next() {
		var account models.LinkedAccount
		if err := rows.Scan(
			&account.ID,
			&account.UserID,
			&account.Channel,
			&account.Label,
			&account.Identity,
			&account.Host,
			&account.SMTPHost,
			&account.Username,
			&account.EncryptedSecret,
			&account.LastSyncAt,
			&account.CreatedAt,
			&account.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan linked account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating linked accounts: %w", err)
	}

	return accounts, nil
}

// DeleteLinkedAccount removes a linked account, scoped to the user.
func DeleteLinkedAccount(ctx context.Context, pool *pgxpool.Pool, userID, accountID string) error {
	tag, err := pool.Exec(ctx, `
		DELETE FROM linked_accounts WHERE id = $1 AND user_id = $2
	`, accountID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete linked account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// TouchLinkedAccountSync records a successful sync for the account.
func TouchLinkedAccountSync(ctx context.Context, pool *pgxpool.Pool, accountID string) error {
	if _, err := pool.Exec(ctx, `
		UPDATE linked_accounts SET last_sync_at = NOW(), updated_at = NOW() WHERE id = $1
	`, accountID); err != nil {
		return fmt.Errorf("failed to touch account sync time: %w", err)
	}
	return nil
}
