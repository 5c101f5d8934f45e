package repo

import (
	"context"
	"errors"
	"fmt"

	"pagehub-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrGroupNotFound indicates the group does not exist in the workspace.
	ErrGroupNotFound = errors.New("group not found in workspace")
)

// GroupRepository reads groups and group membership.
type GroupRepository struct {
	pool *pgxpool.Pool
}

// NewGroupRepository creates a new GroupRepository instance.
func NewGroupRepository(pool *pgxpool.Pool) *GroupRepository {
	return &GroupRepository{pool: pool}
}

// FindByID retrieves a group scoped to a workspace. IDOR protection: a
// group in another workspace reads as absent.
func (r *GroupRepository) FindByID(ctx context.Context, groupID, workspaceID string) (*domain.Group, error) {
	query := `
		SELECT id, workspace_id, name, is_default
		FROM groups
		WHERE id = $1 AND workspace_id = $2
	`

	var g domain.Group
	err := queryEngine(ctx, r.pool).QueryRow(ctx, query, groupID, workspaceID).Scan(
		&g.ID, &g.WorkspaceID, &g.Name, &g.IsDefault,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("query group: %w", err)
	}

	return &g, nil
}
