package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/boulderhaus/clubhouse/internal/model"
	"github.com/boulderhaus/clubhouse/internal/store"
)

const attendanceColumns = `id, event_id, user_id, joined_at, left_at,
	is_attending, payment_entry_id`

func scanAttendance(row pgx.Row) (*model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	err := row.Scan(&rec.ID, &rec.EventID, &rec.UserID, &rec.JoinedAt,
		&rec.LeftAt, &rec.IsAttending, &rec.PaymentEntryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan attendance record: %w", err)
	}
	return &rec, nil
}

// ActiveAttendance returns the user's active record for the event, or
// store.ErrNotFound. The partial unique index guarantees at most one.
func (s *Store) ActiveAttendance(ctx context.Context, eventID, userID string) (*model.AttendanceRecord, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+attendanceColumns+`
		 FROM attendance_records
		 WHERE event_id = $1 AND user_id = $2 AND is_attending`,
		eventID, userID)
	return scanAttendance(row)
}

// ActiveAttendeeCount counts active records for the event.
func (s *Store) ActiveAttendeeCount(ctx context.Context, eventID string) (int, error) {
	var n int
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM attendance_records WHERE event_id = $1 AND is_attending`,
		eventID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count attendees: %w", err)
	}
	return n, nil
}

// ActiveCoachCount counts active attendees flagged as coaches.
func (s *Store) ActiveCoachCount(ctx context.Context, eventID string) (int, error) {
	var n int
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM attendance_records ar
		 JOIN users u ON u.id = ar.user_id
		 WHERE ar.event_id = $1 AND ar.is_attending AND u.is_coach`,
		eventID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count coaches: %w", err)
	}
	return n, nil
}

func (s *Store) attendanceRows(ctx context.Context, query, eventID string) ([]model.AttendanceRecord, error) {
	rows, err := s.q.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var recs []model.AttendanceRecord
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// ActiveAttendees returns the event's active records, oldest first.
func (s *Store) ActiveAttendees(ctx context.Context, eventID string) ([]model.AttendanceRecord, error) {
	return s.attendanceRows(ctx,
		`SELECT `+attendanceColumns+`
		 FROM attendance_records
		 WHERE event_id = $1 AND is_attending
		 ORDER BY joined_at ASC`, eventID)
}

// AttendanceHistory returns every record ever written for the event,
// including closed ones, oldest first.
func (s *Store) AttendanceHistory(ctx context.Context, eventID string) ([]model.AttendanceRecord, error) {
	return s.attendanceRows(ctx,
		`SELECT `+attendanceColumns+`
		 FROM attendance_records
		 WHERE event_id = $1
		 ORDER BY joined_at ASC`, eventID)
}

// InsertAttendance appends a new record to the log.
func (s *Store) InsertAttendance(ctx context.Context, rec *model.AttendanceRecord) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO attendance_records
		     (id, event_id, user_id, joined_at, left_at, is_attending, payment_entry_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.EventID, rec.UserID, rec.JoinedAt, rec.LeftAt,
		rec.IsAttending, rec.PaymentEntryID)
	if err != nil {
		return fmt.Errorf("insert attendance record: %w", err)
	}
	return nil
}

// CloseAttendance soft-closes a record: is_attending false, left_at set.
func (s *Store) CloseAttendance(ctx context.Context, recordID string, leftAt time.Time) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE attendance_records
		 SET is_attending = FALSE, left_at = $2
		 WHERE id = $1 AND is_attending`,
		recordID, leftAt)
	if err != nil {
		return fmt.Errorf("close attendance record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ClearAttendancePayment nulls the payment reference on a record.
func (s *Store) ClearAttendancePayment(ctx context.Context, recordID string) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE attendance_records SET payment_entry_id = NULL WHERE id = $1`,
		recordID)
	if err != nil {
		return fmt.Errorf("clear attendance payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
