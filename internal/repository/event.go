package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/boulderhaus/clubhouse/internal/model"
	"github.com/boulderhaus/clubhouse/internal/store"
)

const eventColumns = `id, title, difficulty, starts_at, ends_at, max_attendees,
	upfront_cost::text, refund_cutoff, created_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var (
		e    model.Event
		cost string
	)
	err := row.Scan(&e.ID, &e.Title, &e.Difficulty, &e.StartsAt, &e.EndsAt,
		&e.MaxAttendees, &cost, &e.RefundCutoff, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	e.UpfrontCost, err = decimal.NewFromString(cost)
	if err != nil {
		return nil, fmt.Errorf("parse upfront cost: %w", err)
	}
	return &e, nil
}

// EventByID returns a single event with its tags, or store.ErrNotFound.
func (s *Store) EventByID(ctx context.Context, id string) (*model.Event, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		return nil, err
	}
	if err := s.attachTags(ctx, []*model.Event{e}); err != nil {
		return nil, err
	}
	return e, nil
}

// LockEvent loads the event like EventByID but takes an exclusive row-level
// lock, serializing concurrent state transitions on the event for the
// duration of the enclosing transaction.
func (s *Store) LockEvent(ctx context.Context, id string) (*model.Event, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id)
	e, err := scanEvent(row)
	if err != nil {
		return nil, err
	}
	if err := s.attachTags(ctx, []*model.Event{e}); err != nil {
		return nil, err
	}
	return e, nil
}

// EventsBetween returns events overlapping [from, to], sorted by start time
// ascending, with tags attached.
func (s *Store) EventsBetween(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE ends_at >= $1 AND starts_at <= $2
		 ORDER BY starts_at ASC`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var (
		events []model.Event
		refs   []*model.Event
	)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range events {
		refs = append(refs, &events[i])
	}
	if err := s.attachTags(ctx, refs); err != nil {
		return nil, err
	}
	return events, nil
}

// attachTags loads tags (with whitelists) for a batch of events in two
// queries rather than one per event.
func (s *Store) attachTags(ctx context.Context, events []*model.Event) error {
	if len(events) == 0 {
		return nil
	}
	ids := make([]string, len(events))
	byID := make(map[string]*model.Event, len(events))
	for i, e := range events {
		ids[i] = e.ID
		byID[e.ID] = e
		e.Tags = []model.Tag{}
	}

	rows, err := s.q.Query(ctx,
		`SELECT et.event_id, t.id, t.name, t.min_difficulty, t.join_policy, t.color
		 FROM event_tags et
		 JOIN tags t ON t.id = et.tag_id
		 WHERE et.event_id = ANY($1)
		 ORDER BY t.name ASC`,
		ids)
	if err != nil {
		return fmt.Errorf("load event tags: %w", err)
	}
	defer rows.Close()

	tagIDs := []string{}
	// Track where each tag landed so the whitelist pass can fill it in.
	placed := map[string][]*model.Tag{}
	for rows.Next() {
		var (
			eventID string
			t       model.Tag
		)
		if err := rows.Scan(&eventID, &t.ID, &t.Name, &t.MinDifficulty, &t.JoinPolicy, &t.Color); err != nil {
			return fmt.Errorf("scan event tag: %w", err)
		}
		e := byID[eventID]
		e.Tags = append(e.Tags, t)
		placed[t.ID] = append(placed[t.ID], &e.Tags[len(e.Tags)-1])
		if len(placed[t.ID]) == 1 {
			tagIDs = append(tagIDs, t.ID)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(tagIDs) == 0 {
		return nil
	}

	wl, err := s.q.Query(ctx,
		`SELECT tag_id, user_id FROM tag_whitelist WHERE tag_id = ANY($1)`,
		tagIDs)
	if err != nil {
		return fmt.Errorf("load tag whitelists: %w", err)
	}
	defer wl.Close()
	for wl.Next() {
		var tagID, userID string
		if err := wl.Scan(&tagID, &userID); err != nil {
			return fmt.Errorf("scan whitelist row: %w", err)
		}
		for _, t := range placed[tagID] {
			t.Whitelist = append(t.Whitelist, userID)
		}
	}
	return wl.Err()
}

// CreateEvent inserts the event and its tag links.
func (s *Store) CreateEvent(ctx context.Context, e *model.Event) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO events (id, title, difficulty, starts_at, ends_at,
		                     max_attendees, upfront_cost, refund_cutoff, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.Title, e.Difficulty, e.StartsAt, e.EndsAt,
		e.MaxAttendees, e.UpfrontCost.String(), e.RefundCutoff, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return s.replaceEventTags(ctx, e)
}

// UpdateEvent rewrites the event row and its tag links.
func (s *Store) UpdateEvent(ctx context.Context, e *model.Event) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE events
		 SET title = $2, difficulty = $3, starts_at = $4, ends_at = $5,
		     max_attendees = $6, upfront_cost = $7, refund_cutoff = $8
		 WHERE id = $1`,
		e.ID, e.Title, e.Difficulty, e.StartsAt, e.EndsAt,
		e.MaxAttendees, e.UpfrontCost.String(), e.RefundCutoff)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return s.replaceEventTags(ctx, e)
}

func (s *Store) replaceEventTags(ctx context.Context, e *model.Event) error {
	if _, err := s.q.Exec(ctx,
		`DELETE FROM event_tags WHERE event_id = $1`, e.ID); err != nil {
		return fmt.Errorf("clear event tags: %w", err)
	}
	for _, t := range e.Tags {
		if _, err := s.q.Exec(ctx,
			`INSERT INTO event_tags (event_id, tag_id) VALUES ($1, $2)`,
			e.ID, t.ID); err != nil {
			return fmt.Errorf("link event tag: %w", err)
		}
	}
	return nil
}

// DeleteEvent removes the event; links cascade.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
