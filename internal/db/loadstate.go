package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LoadStateStore persists per-user incremental-load state so that the
// consecutive-empty-batch counter survives restarts.
type LoadStateStore struct {
	pool *pgxpool.Pool
}

// NewLoadStateStore creates a LoadStateStore backed by the given pool.
func NewLoadStateStore(pool *pgxpool.Pool) *LoadStateStore {
	return &LoadStateStore{pool: pool}
}

// GetEmptyStreak returns the user's consecutive empty load count.
// A user with no recorded state has a streak of zero.
func (s *LoadStateStore) GetEmptyStreak(ctx context.Context, userID string) (int, error) {
	var streak int
	err := s.pool.QueryRow(ctx, `
		SELECT empty_streak FROM load_state WHERE user_id = $1
	`, userID).Scan(&streak)

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get empty streak: %w", err)
	}

	return streak, nil
}

// SetEmptyStreak records the user's consecutive empty load count.
func (s *LoadStateStore) SetEmptyStreak(ctx context.Context, userID string, streak int) error {
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO load_state (user_id, empty_streak, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET empty_streak = EXCLUDED.empty_streak, updated_at = NOW()
	`, userID, streak); err != nil {
		return fmt.Errorf("failed to set empty streak: %w", err)
	}
	return nil
}

// GetCursor returns the persisted fetch cursor for one linked account,
// or empty string when none has been recorded.
func (s *LoadStateStore) GetCursor(ctx context.Context, accountID string) (string, error) {
	var cursor string
	err := s.pool.QueryRow(ctx, `
		SELECT cursor FROM account_cursors WHERE account_id = $1
	`, accountID).Scan(&cursor)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get account cursor: %w", err)
	}

	return cursor, nil
}

// SetCursor records the fetch cursor for one linked account.
func (s *LoadStateStore) SetCursor(ctx context.Context, accountID, cursor string) error {
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO account_cursors (account_id, cursor, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (account_id)
		DO UPDATE SET cursor = EXCLUDED.cursor, updated_at = NOW()
	`, accountID, cursor); err != nil {
		return fmt.Errorf("failed to set account cursor: %w", err)
	}
	return nil
}
