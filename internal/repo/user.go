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
	// ErrUserNotFound indicates the user does not exist in the workspace.
	ErrUserNotFound = errors.New("user not found in workspace")
)

// UserRepository reads workspace users.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// FindByID retrieves a user scoped to a workspace. Soft-deleted users read
// as absent.
func (r *UserRepository) FindByID(ctx context.Context, userID, workspaceID string) (*domain.User, error) {
	query := `
		SELECT id, workspace_id, name, email, avatar_url
		FROM users
		WHERE id = $1 AND workspace_id = $2 AND deleted_at IS NULL
	`

	var u domain.User
	err := queryEngine(ctx, r.pool).QueryRow(ctx, query, userID, workspaceID).Scan(
		&u.ID, &u.WorkspaceID, &u.Name, &u.Email, &u.AvatarURL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &u, nil
}
