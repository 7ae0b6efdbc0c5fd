package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/boulderhaus/clubhouse/internal/model"
	"github.com/boulderhaus/clubhouse/internal/store"
)

// TagByID returns a tag with its whitelist, or store.ErrNotFound.
func (s *Store) TagByID(ctx context.Context, id string) (*model.Tag, error) {
	var t model.Tag
	err := s.q.QueryRow(ctx,
		`SELECT id, name, min_difficulty, join_policy, color FROM tags WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.Name, &t.MinDifficulty, &t.JoinPolicy, &t.Color)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get tag: %w", err)
	}

	rows, err := s.q.Query(ctx,
		`SELECT user_id FROM tag_whitelist WHERE tag_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("load tag whitelist: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan whitelist row: %w", err)
		}
		t.Whitelist = append(t.Whitelist, userID)
	}
	return &t, rows.Err()
}

// CreateTag inserts the tag and its whitelist.
func (s *Store) CreateTag(ctx context.Context, t *model.Tag) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO tags (id, name, min_difficulty, join_policy, color)
		 VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.Name, t.MinDifficulty, t.JoinPolicy, t.Color)
	if err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}
	return s.replaceWhitelist(ctx, t)
}

// UpdateTag rewrites the tag row and its whitelist.
func (s *Store) UpdateTag(ctx context.Context, t *model.Tag) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE tags SET name = $2, min_difficulty = $3, join_policy = $4, color = $5
		 WHERE id = $1`,
		t.ID, t.Name, t.MinDifficulty, t.JoinPolicy, t.Color)
	if err != nil {
		return fmt.Errorf("update tag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return s.replaceWhitelist(ctx, t)
}

func (s *Store) replaceWhitelist(ctx context.Context, t *model.Tag) error {
	if _, err := s.q.Exec(ctx,
		`DELETE FROM tag_whitelist WHERE tag_id = $1`, t.ID); err != nil {
		return fmt.Errorf("clear tag whitelist: %w", err)
	}
	for _, userID := range t.Whitelist {
		if _, err := s.q.Exec(ctx,
			`INSERT INTO tag_whitelist (tag_id, user_id) VALUES ($1, $2)`,
			t.ID, userID); err != nil {
			return fmt.Errorf("insert whitelist row: %w", err)
		}
	}
	return nil
}

// DeleteTag removes the tag; event links, grants and whitelist cascade.
func (s *Store) DeleteTag(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
