package repo_test

import (
	"context"
	"os"
	"testing"

	"pagehub-api/internal/database"
	"pagehub-api/internal/domain"
	"pagehub-api/internal/repo"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPageMemberRepository_Integration exercises the override store and the
// recursive tree queries against a real database.
//
// Prerequisites:
//   - DATABASE_URL environment variable must be set
//   - Migrations must be applied
//
// Run with: go test -v ./internal/repo -run TestPageMemberRepository_Integration
func TestPageMemberRepository_Integration(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()

	pool, err := database.NewPool(ctx, os.Getenv("DATABASE_URL"))
	require.NoError(t, err, "failed to connect to database")
	defer pool.Close()

	const (
		workspaceID = "itest-ws-001"
		spaceID     = "itest-space-001"
		userID      = "itest-user-001"
		groupID     = "itest-group-001"
		rootID      = "itest-page-root"
		childID     = "itest-page-child"
		grandID     = "itest-page-grand"
	)

	cleanup := func() {
		_, _ = pool.Exec(ctx, `DELETE FROM page_members WHERE page_id IN ($1, $2, $3)`, rootID, childID, grandID)
		_, _ = pool.Exec(ctx, `DELETE FROM pages WHERE workspace_id = $1`, workspaceID)
		_, _ = pool.Exec(ctx, `DELETE FROM group_users WHERE group_id = $1`, groupID)
		_, _ = pool.Exec(ctx, `DELETE FROM spaces WHERE id = $1`, spaceID)
		_, _ = pool.Exec(ctx, `DELETE FROM groups WHERE id = $1`, groupID)
		_, _ = pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
		_, _ = pool.Exec(ctx, `DELETE FROM workspaces WHERE id = $1`, workspaceID)
	}
	cleanup()
	defer cleanup()

	seed(t, ctx, pool, workspaceID, spaceID, userID, groupID, rootID, childID, grandID)

	pageRepo := repo.NewPageRepository(pool)
	memberRepo := repo.NewPageMemberRepository(pool)

	t.Run("AncestorIDs walks nearest-first", func(t *testing.T) {
		ancestors, err := pageRepo.AncestorIDs(ctx, grandID)
		require.NoError(t, err)
		assert.Equal(t, []string{childID, rootID}, ancestors)
	})

	t.Run("DescendantIDs enumerates the whole subtree", func(t *testing.T) {
		descendants, err := pageRepo.DescendantIDs(ctx, rootID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{childID, grandID}, descendants)
	})

	t.Run("FindOverride returns nil when absent", func(t *testing.T) {
		principal := domain.UserPrincipal(userID)

		m, err := memberRepo.FindOverride(ctx, rootID, principal)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("Insert, Update, Delete round trip", func(t *testing.T) {
		principal := domain.UserPrincipal(userID)

		uid := userID
		inherited := domain.SpaceRoleWriter
		m := &domain.PageMember{
			ID:                     "itest-override-001",
			PageID:                 rootID,
			UserID:                 &uid,
			Role:                   domain.PageRoleReader,
			InheritedFromSpaceRole: &inherited,
		}
		require.NoError(t, memberRepo.Insert(ctx, m))
		assert.False(t, m.CreatedAt.IsZero(), "insert should return timestamps")

		found, err := memberRepo.FindOverride(ctx, rootID, principal)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, domain.PageRoleReader, found.Role)
		require.NotNil(t, found.InheritedFromSpaceRole)
		assert.Equal(t, domain.SpaceRoleWriter, *found.InheritedFromSpaceRole)

		require.NoError(t, memberRepo.Update(ctx, m.ID, domain.PageRoleBlocked, true, &inherited))

		found, err = memberRepo.FindOverride(ctx, rootID, principal)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, domain.PageRoleBlocked, found.Role)
		assert.True(t, found.CascadeToChildren)

		require.NoError(t, memberRepo.Delete(ctx, rootID, principal))

		found, err = memberRepo.FindOverride(ctx, rootID, principal)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("InsertIgnoreConflict preserves the existing row", func(t *testing.T) {
		principal := domain.UserPrincipal(userID)

		uid := userID
		existing := &domain.PageMember{
			ID:     "itest-override-002",
			PageID: childID,
			UserID: &uid,
			Role:   domain.PageRoleWriter,
		}
		require.NoError(t, memberRepo.Insert(ctx, existing))
		defer func() { _ = memberRepo.Delete(ctx, childID, principal) }()

		conflicting := &domain.PageMember{
			ID:                "itest-override-003",
			PageID:            childID,
			UserID:            &uid,
			Role:              domain.PageRoleBlocked,
			CascadeToChildren: true,
		}
		require.NoError(t, memberRepo.InsertIgnoreConflict(ctx, conflicting))

		found, err := memberRepo.FindOverride(ctx, childID, principal)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, existing.ID, found.ID)
		assert.Equal(t, domain.PageRoleWriter, found.Role)
	})

	t.Run("OverridesForUser collects direct and group rows", func(t *testing.T) {
		principal := domain.UserPrincipal(userID)
		groupPrincipal := domain.GroupPrincipal(groupID)

		uid := userID
		gid := groupID
		direct := &domain.PageMember{
			ID:     "itest-override-004",
			PageID: rootID,
			UserID: &uid,
			Role:   domain.PageRoleReader,
		}
		viaGroup := &domain.PageMember{
			ID:      "itest-override-005",
			PageID:  grandID,
			GroupID: &gid,
			Role:    domain.PageRoleWriter,
		}
		require.NoError(t, memberRepo.Insert(ctx, direct))
		require.NoError(t, memberRepo.Insert(ctx, viaGroup))
		defer func() {
			_ = memberRepo.Delete(ctx, rootID, principal)
			_ = memberRepo.Delete(ctx, grandID, groupPrincipal)
		}()

		rows, err := memberRepo.OverridesForUser(ctx, userID, []string{rootID, childID, grandID})
		require.NoError(t, err)
		require.Len(t, rows, 2)

		byID := map[string]domain.PageMember{}
		for _, row := range rows {
			byID[row.ID] = row
		}
		assert.Contains(t, byID, direct.ID)
		assert.Contains(t, byID, viaGroup.ID)
	})
}

func seed(t *testing.T, ctx context.Context, pool *pgxpool.Pool, workspaceID, spaceID, userID, groupID, rootID, childID, grandID string) {
	t.Helper()

	_, err := pool.Exec(ctx, `INSERT INTO workspaces (id, name) VALUES ($1, 'itest')`, workspaceID)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `INSERT INTO users (id, workspace_id, name, email) VALUES ($1, $2, 'Itest User', 'itest@example.com')`, userID, workspaceID)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `INSERT INTO groups (id, workspace_id, name) VALUES ($1, $2, 'itest group')`, groupID, workspaceID)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `INSERT INTO group_users (group_id, user_id) VALUES ($1, $2)`, groupID, userID)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `INSERT INTO spaces (id, workspace_id, name) VALUES ($1, $2, 'itest space')`, spaceID, workspaceID)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		INSERT INTO pages (id, space_id, workspace_id, parent_page_id, title) VALUES
		($1, $4, $5, NULL, 'root'),
		($2, $4, $5, $1, 'child'),
		($3, $4, $5, $2, 'grandchild')
	`, rootID, childID, grandID, spaceID, workspaceID)
	require.NoError(t, err)
}
