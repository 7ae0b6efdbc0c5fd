package service

import (
	"context"
	"errors"
	"strings"

	"github.com/boulderhaus/clubhouse/internal/model"
	"github.com/boulderhaus/clubhouse/internal/store"
)

// Permission slugs form a small closed set. Scoped slugs are never stored:
// they are synthesized at query time from the managed-tag set.
const (
	PermEventManage       = "event.manage"
	PermEventManageScoped = "event.manage.scoped"
	PermHistoryView       = "event.history.view"
	PermLedgerManage      = "ledger.manage"
	PermRBACManage        = "rbac.manage"
)

var knownSlugs = map[string]bool{
	PermEventManage:       true,
	PermEventManageScoped: true,
	PermHistoryView:       true,
	PermLedgerManage:      true,
	PermRBACManage:        true,
}

// ScopedSlug reports whether slug is a synthesized scoped capability.
func ScopedSlug(slug string) bool {
	return strings.HasSuffix(slug, ".scoped")
}

// KnownSlug reports whether slug belongs to the closed permission set.
func KnownSlug(slug string) bool {
	return knownSlugs[slug]
}

// Permissions resolves a user's effective capabilities from role grants,
// direct grants and the managed-tag scope.
type Permissions struct {
	st store.Store
}

// NewPermissions constructs the resolver over a pool-backed store.
func NewPermissions(st store.Store) *Permissions {
	return &Permissions{st: st}
}

// hasPermission resolves slug against any store binding (tx-bound inside
// Atomic). Absence of a matching grant resolves to false, never an error.
func hasPermission(ctx context.Context, st store.Store, userID, slug string) (bool, error) {
	if ScopedSlug(slug) {
		tags, err := managedTagIDs(ctx, st, userID)
		if err != nil {
			return false, err
		}
		return len(tags) > 0, nil
	}
	slugs, err := st.PermissionSlugs(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, Internal(err)
	}
	for _, s := range slugs {
		if s == slug {
			return true, nil
		}
	}
	return false, nil
}

func managedTagIDs(ctx context.Context, st store.Store, userID string) (map[string]bool, error) {
	ids, err := st.ManagedTagIDs(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return map[string]bool{}, nil
		}
		return nil, Internal(err)
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// canManageEvent decides scoped administrative access. Unscoped
// event.manage always wins. A scoped admin needs an overlap between their
// managed-tag set and the event's tags (existing event) or the candidate
// tags (creation). Creating an untagged event requires the unscoped grant.
func canManageEvent(ctx context.Context, st store.Store, userID string, event *model.Event, candidateTagIDs []string) (bool, error) {
	ok, err := hasPermission(ctx, st, userID, PermEventManage)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	managed, err := managedTagIDs(ctx, st, userID)
	if err != nil {
		return false, err
	}
	if len(managed) == 0 {
		return false, nil
	}

	if event != nil {
		for _, t := range event.Tags {
			if managed[t.ID] {
				return true, nil
			}
		}
		return false, nil
	}
	for _, id := range candidateTagIDs {
		if managed[id] {
			return true, nil
		}
	}
	return false, nil
}

// HasPermission reports whether the user holds slug via their role, a
// direct grant, or (for scoped slugs) a non-empty managed-tag set.
func (p *Permissions) HasPermission(ctx context.Context, userID, slug string) (bool, error) {
	return hasPermission(ctx, p.st, userID, slug)
}

// ManagedTags returns the user's effective managed-tag set: role-derived
// grants unioned with direct grants.
func (p *Permissions) ManagedTags(ctx context.Context, userID string) (map[string]bool, error) {
	return managedTagIDs(ctx, p.st, userID)
}

// CanManageEvent reports whether the user may administer the given event
// (eventID non-empty) or create one carrying candidateTagIDs.
func (p *Permissions) CanManageEvent(ctx context.Context, userID, eventID string, candidateTagIDs []string) (bool, error) {
	var event *model.Event
	if eventID != "" {
		e, err := p.st.EventByID(ctx, eventID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return false, NotFound("Event not found")
			}
			return false, Internal(err)
		}
		event = e
	}
	return canManageEvent(ctx, p.st, userID, event, candidateTagIDs)
}
