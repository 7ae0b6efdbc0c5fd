package service

import (
	"context"

	"github.com/boulderhaus/clubhouse/internal/store"
)

// Grants is the write boundary for roles, permissions and managed-tag
// delegation. Scoped slugs are rejected here, not silently dropped: they
// exist only as synthesized capabilities.
type Grants struct {
	runner store.TxRunner
}

// NewGrants constructs the service.
func NewGrants(runner store.TxRunner) *Grants {
	return &Grants{runner: runner}
}

func (g *Grants) checkSlug(slug string) error {
	if !KnownSlug(slug) {
		return Precondition("Unknown permission slug")
	}
	if ScopedSlug(slug) {
		return Precondition("Scoped permissions cannot be granted directly")
	}
	return nil
}

// GrantPermission adds a direct permission grant.
func (g *Grants) GrantPermission(ctx context.Context, userID, slug string) error {
	if err := g.checkSlug(slug); err != nil {
		return err
	}
	return g.runner.Atomic(ctx, func(st store.Store) error {
		if _, err := st.UserByID(ctx, userID); err != nil {
			return orNotFound(err, "User not found")
		}
		if err := st.GrantPermission(ctx, userID, slug); err != nil {
			return Internal(err)
		}
		return nil
	})
}

// RevokePermission removes a direct permission grant.
func (g *Grants) RevokePermission(ctx context.Context, userID, slug string) error {
	if err := g.checkSlug(slug); err != nil {
		return err
	}
	return g.runner.Atomic(ctx, func(st store.Store) error {
		if _, err := st.UserByID(ctx, userID); err != nil {
			return orNotFound(err, "User not found")
		}
		if err := st.RevokePermission(ctx, userID, slug); err != nil {
			return Internal(err)
		}
		return nil
	})
}

// GrantManagedTag delegates administrative authority over events carrying
// the tag.
func (g *Grants) GrantManagedTag(ctx context.Context, userID, tagID string) error {
	return g.runner.Atomic(ctx, func(st store.Store) error {
		if _, err := st.UserByID(ctx, userID); err != nil {
			return orNotFound(err, "User not found")
		}
		if _, err := st.TagByID(ctx, tagID); err != nil {
			return orNotFound(err, "Tag not found")
		}
		if err := st.GrantManagedTag(ctx, userID, tagID); err != nil {
			return Internal(err)
		}
		return nil
	})
}

// RevokeManagedTag removes the delegation.
func (g *Grants) RevokeManagedTag(ctx context.Context, userID, tagID string) error {
	return g.runner.Atomic(ctx, func(st store.Store) error {
		if _, err := st.UserByID(ctx, userID); err != nil {
			return orNotFound(err, "User not found")
		}
		if err := st.RevokeManagedTag(ctx, userID, tagID); err != nil {
			return Internal(err)
		}
		return nil
	})
}

// SetRole assigns or clears (nil) the user's single role.
func (g *Grants) SetRole(ctx context.Context, userID string, roleID *string) error {
	return g.runner.Atomic(ctx, func(st store.Store) error {
		if err := st.SetUserRole(ctx, userID, roleID); err != nil {
			return orNotFound(err, "User not found")
		}
		return nil
	})
}
