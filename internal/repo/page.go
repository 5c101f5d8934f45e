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
	// ErrPageNotFound indicates the page does not exist or is soft-deleted.
	ErrPageNotFound = errors.New("page not found")
)

// PageRepository reads the page forest. Pages are stored as id -> parent_page_id
// adjacency; both tree walks are recursive CTEs over that index, never
// in-memory pointer graphs.
type PageRepository struct {
	pool *pgxpool.Pool
}

// NewPageRepository creates a new PageRepository instance.
func NewPageRepository(pool *pgxpool.Pool) *PageRepository {
	return &PageRepository{pool: pool}
}

// FindByID retrieves a page by id. Soft-deleted pages are treated as absent.
func (r *PageRepository) FindByID(ctx context.Context, pageID string) (*domain.Page, error) {
	query := `
		SELECT id, space_id, workspace_id, parent_page_id, title, created_at, updated_at
		FROM pages
		WHERE id = $1 AND deleted_at IS NULL
	`

	var p domain.Page
	err := queryEngine(ctx, r.pool).QueryRow(ctx, query, pageID).Scan(
		&p.ID, &p.SpaceID, &p.WorkspaceID, &p.ParentPageID, &p.Title,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPageNotFound
		}
		return nil, fmt.Errorf("query page: %w", err)
	}

	return &p, nil
}

// AncestorIDs returns the ids of every ancestor of pageID, nearest first.
// The page itself is excluded. Resolution's cascade-block walk depends on
// this ordering: the nearest blocking ancestor wins.
func (r *PageRepository) AncestorIDs(ctx context.Context, pageID string) ([]string, error) {
	query := `
		WITH RECURSIVE page_ancestors AS (
			SELECT id, parent_page_id, 0 AS depth
			FROM pages
			WHERE id = $1 AND deleted_at IS NULL
			UNION ALL
			SELECT p.id, p.parent_page_id, pa.depth + 1
			FROM pages p
			INNER JOIN page_ancestors pa ON pa.parent_page_id = p.id
			WHERE p.deleted_at IS NULL
		)
		SELECT id
		FROM page_ancestors
		WHERE id != $1
		ORDER BY depth ASC
	`

	rows, err := queryEngine(ctx, r.pool).Query(ctx, query, pageID)
	if err != nil {
		return nil, fmt.Errorf("query page ancestors: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan ancestor id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate page ancestors: %w", err)
	}

	return ids, nil
}

// DescendantIDs returns the ids of every transitive descendant of pageID,
// unbounded depth. Cycle-free by construction: pages form a forest.
func (r *PageRepository) DescendantIDs(ctx context.Context, pageID string) ([]string, error) {
	query := `
		WITH RECURSIVE page_hierarchy AS (
			SELECT id
			FROM pages
			WHERE parent_page_id = $1 AND deleted_at IS NULL
			UNION ALL
			SELECT p.id
			FROM pages p
			INNER JOIN page_hierarchy ph ON p.parent_page_id = ph.id
			WHERE p.deleted_at IS NULL
		)
		SELECT id FROM page_hierarchy
	`

	rows, err := queryEngine(ctx, r.pool).Query(ctx, query, pageID)
	if err != nil {
		return nil, fmt.Errorf("query page descendants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan descendant id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate page descendants: %w", err)
	}

	return ids, nil
}
