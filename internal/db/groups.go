package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commsync/commsync/internal/models"
)

// ErrGroupNotFound is returned when a requested contact group cannot be found.
var ErrGroupNotFound = errors.New("group not found")

// CreateGroup inserts a new contact group and writes the generated ID back.
func CreateGroup(ctx context.Context, pool *pgxpool.Pool, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}

	err := pool.QueryRow(ctx, `
		INSERT INTO groups (id, user_id, name, emails, phone_numbers)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, group.ID, group.UserID, group.Name, group.Emails, group.PhoneNumbers,
	).Scan(&group.CreatedAt, &group.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

// UpdateGroup replaces the group's name and member lists.
func UpdateGroup(ctx context.Context, pool *pgxpool.Pool, group *models.Group) error {
	tag, err := pool.Exec(ctx, `
		UPDATE groups
		SET name = $1, emails = $2, phone_numbers = $3, updated_at = NOW()
		WHERE id = $4 AND user_id = $5
	`, group.Name, group.Emails, group.PhoneNumbers, group.ID, group.UserID)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// GetGroup returns one contact group by ID, scoped to the user.
func GetGroup(ctx context.Context, pool *pgxpool.Pool, userID, groupID string) (*models.Group, error) {
	var group models.Group

	err := pool.QueryRow(ctx, `
		SELECT id, user_id, name, emails, phone_numbers, created_at, updated_at
		FROM groups
		WHERE id = $1 AND user_id = $2
	`, groupID, userID).Scan(
		&group.ID,
		&group.UserID,
		&group.Name,
		&group.Emails,
		&group.PhoneNumbers,
		&group.CreatedAt,
		&group.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	return &group, nil
}

// ListGroups returns all of the user's contact groups, newest first.
func ListGroups(ctx context.Context, pool *pgxpool.Pool, userID string) ([]models.Group, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, user_id, name, emails, phone_numbers, created_at, updated_at
		FROM groups
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var group models.Group
		if err := rows.Scan(
			&group.ID,
			&group.UserID,
			&group.Name,
			&group.Emails,
			&group.PhoneNumbers,
			&group.CreatedAt,
			&group.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}

	return groups, nil
}

// DeleteGroup removes a contact group, scoped to the user.
func DeleteGroup(ctx context.Context, pool *pgxpool.Pool, userID, groupID string) error {
	tag, err := pool.Exec(ctx, `
		DELETE FROM groups WHERE id = $1 AND user_id = $2
	`, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGroupNotFound
	}
	return nil
}
