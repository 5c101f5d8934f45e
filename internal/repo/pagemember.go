package repo

import (
	"context"
	"errors"
	"fmt"

	"pagehub-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PageMemberRepository persists override rows: per-page, per-principal role
// assignments. Uniqueness on (page_id, user_id) and (page_id, group_id) is
// enforced by the schema, the user/group XOR by a check constraint.
type PageMemberRepository struct {
	pool *pgxpool.Pool
}

// NewPageMemberRepository creates a new PageMemberRepository instance.
func NewPageMemberRepository(pool *pgxpool.Pool) *PageMemberRepository {
	return &PageMemberRepository{pool: pool}
}

const pageMemberColumns = `
	id, page_id, user_id, group_id, role, cascade_to_children,
	inherited_from_space_role, created_at, updated_at
`

func scanPageMember(row pgx.Row) (*domain.PageMember, error) {
	var m domain.PageMember
	err := row.Scan(
		&m.ID, &m.PageID, &m.UserID, &m.GroupID, &m.Role, &m.CascadeToChildren,
		&m.InheritedFromSpaceRole, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindOverride does the point lookup by (page, principal). Returns
// (nil, nil) when no override exists; absence is a normal outcome here.
func (r *PageMemberRepository) FindOverride(ctx context.Context, pageID string, principal domain.Principal) (*domain.PageMember, error) {
	var column string
	switch principal.Kind() {
	case domain.PrincipalUser:
		column = "user_id"
	case domain.PrincipalGroup:
		column = "group_id"
	default:
		return nil, domain.ErrInvalidPrincipal
	}

	query := fmt.Sprintf(`SELECT %s FROM page_members WHERE page_id = $1 AND %s = $2`, pageMemberColumns, column)

	m, err := scanPageMember(queryEngine(ctx, r.pool).QueryRow(ctx, query, pageID, principal.ID()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query page override: %w", err)
	}
	return m, nil
}

// OverridesForUser returns every override applying to userID on any of the
// given pages: rows targeting the user directly plus rows targeting any
// group the user belongs to. The resolver separates direct from
// group-derived by inspecting UserID/GroupID.
func (r *PageMemberRepository) OverridesForUser(ctx context.Context, userID string, pageIDs []string) ([]domain.PageMember, error) {
	if len(pageIDs) == 0 {
		return nil, nil
	}

	db := queryEngine(ctx, r.pool)

	query := fmt.Sprintf(`
		SELECT %s
		FROM page_members
		WHERE user_id = $1 AND page_id = ANY($2)
		UNION ALL
		SELECT %s
		FROM page_members
		WHERE group_id IN (SELECT group_id FROM group_users WHERE user_id = $1)
		  AND page_id = ANY($2)
	`, pageMemberColumns, pageMemberColumns)

	rows, err := db.Query(ctx, query, userID, pageIDs)
	if err != nil {
		return nil, fmt.Errorf("query user overrides: %w", err)
	}
	defer rows.Close()

	var members []domain.PageMember
	for rows.Next() {
		m, err := scanPageMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page override: %w", err)
		}
		members = append(members, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user overrides: %w", err)
	}

	return members, nil
}

// Insert writes a new override row. Conflicts with the (page, principal)
// uniqueness surface as errors; callers decide between Insert and
// InsertIgnoreConflict.
func (r *PageMemberRepository) Insert(ctx context.Context, m *domain.PageMember) error {
	query := `
		INSERT INTO page_members (
			id, page_id, user_id, group_id, role, cascade_to_children,
			inherited_from_space_role
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := queryEngine(ctx, r.pool).QueryRow(ctx, query,
		m.ID, m.PageID, m.UserID, m.GroupID, m.Role, m.CascadeToChildren,
		m.InheritedFromSpaceRole,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert page override: %w", err)
	}

	return nil
}

// InsertIgnoreConflict writes an override row but leaves any existing row
// for the same (page, principal) untouched. Cascade materialization uses
// this so a pre-existing, more specific override on a descendant keeps
// winning over the propagated block.
func (r *PageMemberRepository) InsertIgnoreConflict(ctx context.Context, m *domain.PageMember) error {
	var conflictTarget string
	switch {
	case m.UserID != nil:
		conflictTarget = "(page_id, user_id)"
	case m.GroupID != nil:
		conflictTarget = "(page_id, group_id)"
	default:
		return domain.ErrInvalidPrincipal
	}

	query := fmt.Sprintf(`
		INSERT INTO page_members (
			id, page_id, user_id, group_id, role, cascade_to_children,
			inherited_from_space_role
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT %s DO NOTHING
	`, conflictTarget)

	_, err := queryEngine(ctx, r.pool).Exec(ctx, query,
		m.ID, m.PageID, m.UserID, m.GroupID, m.Role, m.CascadeToChildren,
		m.InheritedFromSpaceRole,
	)
	if err != nil {
		return fmt.Errorf("insert cascade override: %w", err)
	}

	return nil
}

// Update rewrites role, cascade flag, and the space-role snapshot of an
// existing override.
func (r *PageMemberRepository) Update(ctx context.Context, id string, role domain.PageRole, cascadeToChildren bool, inherited *domain.SpaceRole) error {
	query := `
		UPDATE page_members
		SET role = $2, cascade_to_children = $3, inherited_from_space_role = $4,
		    updated_at = NOW()
		WHERE id = $1
	`

	tag, err := queryEngine(ctx, r.pool).Exec(ctx, query, id, role, cascadeToChildren, inherited)
	if err != nil {
		return fmt.Errorf("update page override: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update page override %s: no row", id)
	}

	return nil
}

// Delete removes the override for (page, principal). Deleting an absent row
// is not an error: equivalence-collapse deletes unconditionally.
func (r *PageMemberRepository) Delete(ctx context.Context, pageID string, principal domain.Principal) error {
	var column string
	switch principal.Kind() {
	case domain.PrincipalUser:
		column = "user_id"
	case domain.PrincipalGroup:
		column = "group_id"
	default:
		return domain.ErrInvalidPrincipal
	}

	query := fmt.Sprintf(`DELETE FROM page_members WHERE page_id = $1 AND %s = $2`, column)

	if _, err := queryEngine(ctx, r.pool).Exec(ctx, query, pageID, principal.ID()); err != nil {
		return fmt.Errorf("delete page override: %w", err)
	}
	return nil
}

// ListOverrides returns the page's override rows joined with principal
// display data, paginated, with an optional ilike filter over user name,
// user email, and group name. Thin passthrough, not resolution logic.
func (r *PageMemberRepository) ListOverrides(ctx context.Context, pageID string, params domain.ListPageMembersParams) ([]domain.PageOverrideSummary, bool, error) {
	query := `
		SELECT pm.id, pm.page_id, pm.user_id, pm.group_id, pm.role,
		       pm.cascade_to_children, pm.inherited_from_space_role,
		       pm.created_at, pm.updated_at,
		       u.id, u.workspace_id, u.name, u.email, u.avatar_url,
		       g.id, g.workspace_id, g.name, g.is_default
		FROM page_members pm
		LEFT JOIN users u ON u.id = pm.user_id
		LEFT JOIN groups g ON g.id = pm.group_id
		WHERE pm.page_id = $1
	`
	args := []any{pageID}

	if params.Query != nil {
		query += ` AND (u.name ILIKE $2 OR u.email ILIKE $2 OR g.name ILIKE $2)`
		args = append(args, "%"+*params.Query+"%")
	}

	query += fmt.Sprintf(" ORDER BY pm.created_at ASC LIMIT %d OFFSET %d", params.Limit+1, params.Offset())

	rows, err := queryEngine(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("query page overrides: %w", err)
	}
	defer rows.Close()

	var items []domain.PageOverrideSummary
	for rows.Next() {
		var item domain.PageOverrideSummary
		var u nullableUser
		var g nullableGroup

		err := rows.Scan(
			&item.PageMember.ID, &item.PageID, &item.PageMember.UserID, &item.PageMember.GroupID,
			&item.Role, &item.CascadeToChildren, &item.InheritedFromSpaceRole,
			&item.CreatedAt, &item.UpdatedAt,
			&u.id, &u.workspaceID, &u.name, &u.email, &u.avatarURL,
			&g.id, &g.workspaceID, &g.name, &g.isDefault,
		)
		if err != nil {
			return nil, false, fmt.Errorf("scan override summary: %w", err)
		}

		item.User = u.toDomain()
		item.Group = g.toDomain()
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate page overrides: %w", err)
	}

	hasNext := len(items) > params.Limit
	if hasNext {
		items = items[:params.Limit]
	}

	return items, hasNext, nil
}

// ListMembers returns every space member of the page's space left-joined
// against any override each principal holds on that page. Backs the
// "who can do what here" listing.
func (r *PageMemberRepository) ListMembers(ctx context.Context, pageID, spaceID string, params domain.ListPageMembersParams) ([]domain.PageMemberSummary, bool, error) {
	query := `
		SELECT sm.role, sm.created_at,
		       u.id, u.workspace_id, u.name, u.email, u.avatar_url,
		       g.id, g.workspace_id, g.name, g.is_default,
		       pm.id, pm.page_id, pm.user_id, pm.group_id, pm.role,
		       pm.cascade_to_children, pm.inherited_from_space_role,
		       pm.created_at, pm.updated_at
		FROM space_members sm
		LEFT JOIN users u ON u.id = sm.user_id
		LEFT JOIN groups g ON g.id = sm.group_id
		LEFT JOIN page_members pm ON pm.page_id = $2
		  AND ((pm.user_id IS NOT NULL AND pm.user_id = sm.user_id)
		    OR (pm.group_id IS NOT NULL AND pm.group_id = sm.group_id))
		WHERE sm.space_id = $1
	`
	args := []any{spaceID, pageID}

	if params.Query != nil {
		query += ` AND (u.name ILIKE $3 OR u.email ILIKE $3 OR g.name ILIKE $3)`
		args = append(args, "%"+*params.Query+"%")
	}

	query += fmt.Sprintf(" ORDER BY sm.created_at ASC LIMIT %d OFFSET %d", params.Limit+1, params.Offset())

	rows, err := queryEngine(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("query page members: %w", err)
	}
	defer rows.Close()

	var items []domain.PageMemberSummary
	for rows.Next() {
		var item domain.PageMemberSummary
		var u nullableUser
		var g nullableGroup
		var ov nullablePageMember

		err := rows.Scan(
			&item.SpaceRole, &item.MemberSince,
			&u.id, &u.workspaceID, &u.name, &u.email, &u.avatarURL,
			&g.id, &g.workspaceID, &g.name, &g.isDefault,
			&ov.id, &ov.pageID, &ov.userID, &ov.groupID, &ov.role,
			&ov.cascadeToChildren, &ov.inheritedFromSpaceRole,
			&ov.createdAt, &ov.updatedAt,
		)
		if err != nil {
			return nil, false, fmt.Errorf("scan member summary: %w", err)
		}

		item.User = u.toDomain()
		item.Group = g.toDomain()
		item.Override = ov.toDomain()
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate page members: %w", err)
	}

	hasNext := len(items) > params.Limit
	if hasNext {
		items = items[:params.Limit]
	}

	return items, hasNext, nil
}
