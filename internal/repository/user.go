package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/boulderhaus/clubhouse/internal/model"
	"github.com/boulderhaus/clubhouse/internal/store"
)

// UserByID returns a single user or store.ErrNotFound.
func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.q.QueryRow(ctx,
		`SELECT id, name, email, is_member, is_coach, free_sessions,
		        intake_complete, max_difficulty, role_id
		 FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.IsMember, &u.IsCoach, &u.FreeSessions,
		&u.IntakeComplete, &u.MaxDifficulty, &u.RoleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// AdjustFreeSessions changes a user's free-session count by delta. The
// column's CHECK constraint rejects a drop below zero.
func (s *Store) AdjustFreeSessions(ctx context.Context, userID string, delta int) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE users SET free_sessions = free_sessions + $2 WHERE id = $1`,
		userID, delta)
	if err != nil {
		return fmt.Errorf("adjust free sessions: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetUserRole assigns or clears (nil) the user's single role.
func (s *Store) SetUserRole(ctx context.Context, userID string, roleID *string) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE users SET role_id = $2 WHERE id = $1`, userID, roleID)
	if err != nil {
		return fmt.Errorf("set user role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
