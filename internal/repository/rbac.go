package repository

import (
	"context"
	"fmt"
)

func (s *Store) stringColumn(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// PermissionSlugs returns the union of role-granted and directly granted
// permission slugs for the user.
func (s *Store) PermissionSlugs(ctx context.Context, userID string) ([]string, error) {
	slugs, err := s.stringColumn(ctx,
		`SELECT rp.permission_slug
		 FROM users u
		 JOIN role_permissions rp ON rp.role_id = u.role_id
		 WHERE u.id = $1
		 UNION
		 SELECT up.permission_slug
		 FROM user_permissions up
		 WHERE up.user_id = $1`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("load permission slugs: %w", err)
	}
	return slugs, nil
}

// ManagedTagIDs returns the union of role-derived and directly granted
// managed tags for the user.
func (s *Store) ManagedTagIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.stringColumn(ctx,
		`SELECT rmt.tag_id
		 FROM users u
		 JOIN role_managed_tags rmt ON rmt.role_id = u.role_id
		 WHERE u.id = $1
		 UNION
		 SELECT umt.tag_id
		 FROM user_managed_tags umt
		 WHERE umt.user_id = $1`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("load managed tags: %w", err)
	}
	return ids, nil
}

// RoleManagedTagIDs returns only the role-derived managed tags, used by the
// role join policy.
func (s *Store) RoleManagedTagIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.stringColumn(ctx,
		`SELECT rmt.tag_id
		 FROM users u
		 JOIN role_managed_tags rmt ON rmt.role_id = u.role_id
		 WHERE u.id = $1`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("load role managed tags: %w", err)
	}
	return ids, nil
}

// GrantPermission adds a direct permission grant; idempotent.
func (s *Store) GrantPermission(ctx context.Context, userID, slug string) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO user_permissions (user_id, permission_slug)
		 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, slug)
	if err != nil {
		return fmt.Errorf("grant permission: %w", err)
	}
	return nil
}

// RevokePermission removes a direct permission grant.
func (s *Store) RevokePermission(ctx context.Context, userID, slug string) error {
	_, err := s.q.Exec(ctx,
		`DELETE FROM user_permissions WHERE user_id = $1 AND permission_slug = $2`,
		userID, slug)
	if err != nil {
		return fmt.Errorf("revoke permission: %w", err)
	}
	return nil
}

// GrantManagedTag adds a direct managed-tag grant; idempotent.
func (s *Store) GrantManagedTag(ctx context.Context, userID, tagID string) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO user_managed_tags (user_id, tag_id)
		 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, tagID)
	if err != nil {
		return fmt.Errorf("grant managed tag: %w", err)
	}
	return nil
}

// RevokeManagedTag removes a direct managed-tag grant.
func (s *Store) RevokeManagedTag(ctx context.Context, userID, tagID string) error {
	_, err := s.q.Exec(ctx,
		`DELETE FROM user_managed_tags WHERE user_id = $1 AND tag_id = $2`,
		userID, tagID)
	if err != nil {
		return fmt.Errorf("revoke managed tag: %w", err)
	}
	return nil
}
