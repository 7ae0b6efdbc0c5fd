// Package model defines the core domain types for the club backend.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// JoinPolicy controls who may see and join events carrying a tag.
type JoinPolicy string

const (
	// JoinPolicyNone places no restriction on the tag.
	JoinPolicyNone JoinPolicy = "none"
	// JoinPolicyWhitelist restricts the tag to users on its whitelist.
	JoinPolicyWhitelist JoinPolicy = "whitelist"
	// JoinPolicyRole restricts joining to users whose role manages the tag.
	JoinPolicyRole JoinPolicy = "role"
)

// Tag labels an event. Tags carry visibility and join policy and are the
// unit of scoped administrative delegation.
type Tag struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	MinDifficulty *int       `json:"min_difficulty,omitempty"`
	JoinPolicy    JoinPolicy `json:"join_policy"`
	Color         *string    `json:"color,omitempty"`
	// Whitelist is the set of user ids allowed past a whitelist policy.
	// Loaded alongside the tag; empty for other policies.
	Whitelist []string `json:"whitelist,omitempty"`
}

// Whitelisted reports whether userID is on the tag's whitelist.
func (t *Tag) Whitelisted(userID string) bool {
	for _, id := range t.Whitelist {
		if id == userID {
			return true
		}
	}
	return false
}

// Event represents a scheduled club event.
type Event struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Difficulty   int             `json:"difficulty"`
	StartsAt     time.Time       `json:"starts_at"`
	EndsAt       time.Time       `json:"ends_at"`
	MaxAttendees int             `json:"max_attendees"` // 0 = unlimited
	UpfrontCost  decimal.Decimal `json:"upfront_cost"`
	RefundCutoff *time.Time      `json:"refund_cutoff,omitempty"`
	Tags         []Tag           `json:"tags"`
	CreatedAt    time.Time       `json:"created_at"`
}

// HasCapacity reports whether one more attendee fits given the current
// active count.
func (e *Event) HasCapacity(active int) bool {
	return e.MaxAttendees == 0 || active < e.MaxAttendees
}

// Paid reports whether the event charges an upfront cost.
func (e *Event) Paid() bool {
	return e.UpfrontCost.IsPositive()
}

// RefundOpen reports whether a self-initiated leave at t still qualifies
// for the automatic refund. No cutoff means refunds never close.
func (e *Event) RefundOpen(t time.Time) bool {
	return e.RefundCutoff == nil || !t.After(*e.RefundCutoff)
}

// User is a club member or guest account.
type User struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	IsMember       bool    `json:"is_member"`
	IsCoach        bool    `json:"is_coach"`
	FreeSessions   int     `json:"free_sessions"`
	IntakeComplete bool    `json:"intake_complete"`
	MaxDifficulty  int     `json:"max_difficulty"`
	RoleID         *string `json:"role_id,omitempty"`
}

// Role groups permissions and managed-tag grants.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AttendanceRecord is one row of the append/soft-close attendance log.
// Multiple historical rows may exist per (event, user); at most one is
// active (IsAttending) at a time.
type AttendanceRecord struct {
	ID             string     `json:"id"`
	EventID        string     `json:"event_id"`
	UserID         string     `json:"user_id"`
	JoinedAt       time.Time  `json:"joined_at"`
	LeftAt         *time.Time `json:"left_at,omitempty"`
	IsAttending    bool       `json:"is_attending"`
	PaymentEntryID *string    `json:"payment_entry_id,omitempty"`
}

// WaitlistEntry queues a user for a full event, FIFO by JoinedAt.
type WaitlistEntry struct {
	EventID  string    `json:"event_id"`
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// LedgerEntry is one append-only financial transaction. A user's balance is
// the sum of their remaining entries.
type LedgerEntry struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	EventID     *string         `json:"event_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ─── Request / response payloads ─────────────────────────────────────────────

// EventRequest is the payload for creating or updating an event.
type EventRequest struct {
	Title        string     `json:"title" validate:"required"`
	Difficulty   int        `json:"difficulty" validate:"gte=0"`
	StartsAt     time.Time  `json:"starts_at" validate:"required"`
	EndsAt       time.Time  `json:"ends_at" validate:"required,gtfield=StartsAt"`
	MaxAttendees int        `json:"max_attendees" validate:"gte=0"`
	UpfrontCost  string     `json:"upfront_cost"`
	RefundCutoff *time.Time `json:"refund_cutoff"`
	TagIDs       []string   `json:"tag_ids"`
}

// TagRequest is the payload for creating or updating a tag.
type TagRequest struct {
	Name          string     `json:"name" validate:"required"`
	MinDifficulty *int       `json:"min_difficulty"`
	JoinPolicy    JoinPolicy `json:"join_policy" validate:"oneof=none whitelist role"`
	Color         *string    `json:"color"`
	Whitelist     []string   `json:"whitelist"`
}

// LedgerEntryRequest is the payload for an admin-created ledger entry.
type LedgerEntryRequest struct {
	UserID      string  `json:"user_id" validate:"required"`
	Amount      string  `json:"amount" validate:"required"`
	Description string  `json:"description" validate:"required"`
	EventID     *string `json:"event_id"`
}

// GrantRequest names a permission slug or tag to grant or revoke.
type GrantRequest struct {
	Slug  string `json:"slug,omitempty"`
	TagID string `json:"tag_id,omitempty"`
}

// MessageResponse is the standard JSON envelope for outcomes and denials.
type MessageResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}
