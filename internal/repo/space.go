package repo

import (
	"context"
	"errors"
	"fmt"

	"pagehub-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SpaceMemberRepository reads space membership roles. Space roles are the
// inherited baseline the resolution engine compares overrides against.
type SpaceMemberRepository struct {
	pool *pgxpool.Pool
}

// NewSpaceMemberRepository creates a new SpaceMemberRepository instance.
func NewSpaceMemberRepository(pool *pgxpool.Pool) *SpaceMemberRepository {
	return &SpaceMemberRepository{pool: pool}
}

// UserSpaceRoles returns every space role the user carries in the space:
// their own membership plus one per group they belong to. The caller
// aggregates with HighestSpaceRole; an empty result means no access.
func (r *SpaceMemberRepository) UserSpaceRoles(ctx context.Context, userID, spaceID string) ([]domain.SpaceRole, error) {
	query := `
		SELECT role FROM space_members
		WHERE space_id = $1 AND user_id = $2
		UNION ALL
		SELECT sm.role FROM space_members sm
		INNER JOIN group_users gu ON gu.group_id = sm.group_id
		WHERE sm.space_id = $1 AND gu.user_id = $2
	`

	rows, err := queryEngine(ctx, r.pool).Query(ctx, query, spaceID, userID)
	if err != nil {
		return nil, fmt.Errorf("query user space roles: %w", err)
	}
	defer rows.Close()

	var roles []domain.SpaceRole
	for rows.Next() {
		var role domain.SpaceRole
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("scan space role: %w", err)
		}
		roles = append(roles, role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user space roles: %w", err)
	}

	return roles, nil
}

// GroupSpaceRole returns the group's own recorded membership role in the
// space, not an aggregate. ok is false when the group is not a member.
func (r *SpaceMemberRepository) GroupSpaceRole(ctx context.Context, groupID, spaceID string) (domain.SpaceRole, bool, error) {
	query := `SELECT role FROM space_members WHERE space_id = $1 AND group_id = $2`

	var role domain.SpaceRole
	err := queryEngine(ctx, r.pool).QueryRow(ctx, query, spaceID, groupID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("query group space role: %w", err)
	}

	return role, true, nil
}
