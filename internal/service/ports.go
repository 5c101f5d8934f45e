package service

import (
	"context"

	"pagehub-api/internal/domain"
)

// The resolver and mutation service consume narrow store contracts rather
// than concrete repositories, so the permission algorithms can be exercised
// against in-memory fakes. The pgx-backed repositories in internal/repo
// satisfy all of them.

// PageStore reads the page forest.
type PageStore interface {
	FindByID(ctx context.Context, pageID string) (*domain.Page, error)
	// AncestorIDs returns ancestor ids nearest first, excluding the page itself.
	AncestorIDs(ctx context.Context, pageID string) ([]string, error)
	// DescendantIDs returns every transitive descendant id, unbounded depth.
	DescendantIDs(ctx context.Context, pageID string) ([]string, error)
}

// OverrideStore persists per-page, per-principal override rows.
type OverrideStore interface {
	FindOverride(ctx context.Context, pageID string, principal domain.Principal) (*domain.PageMember, error)
	// OverridesForUser returns every override applying to userID on any of the
	// given pages, direct or via group membership.
	OverridesForUser(ctx context.Context, userID string, pageIDs []string) ([]domain.PageMember, error)
	Insert(ctx context.Context, m *domain.PageMember) error
	// InsertIgnoreConflict leaves an existing (page, principal) row untouched.
	InsertIgnoreConflict(ctx context.Context, m *domain.PageMember) error
	Update(ctx context.Context, id string, role domain.PageRole, cascadeToChildren bool, inherited *domain.SpaceRole) error
	Delete(ctx context.Context, pageID string, principal domain.Principal) error
	ListOverrides(ctx context.Context, pageID string, params domain.ListPageMembersParams) ([]domain.PageOverrideSummary, bool, error)
	ListMembers(ctx context.Context, pageID, spaceID string, params domain.ListPageMembersParams) ([]domain.PageMemberSummary, bool, error)
}

// SpaceMemberStore reads space memberships.
type SpaceMemberStore interface {
	// UserSpaceRoles returns every space role the user holds in the space,
	// directly or through group membership. Empty means no membership.
	UserSpaceRoles(ctx context.Context, userID, spaceID string) ([]domain.SpaceRole, error)
	// GroupSpaceRole returns the group's own recorded role in the space.
	// The bool is false when the group is not a member.
	GroupSpaceRole(ctx context.Context, groupID, spaceID string) (domain.SpaceRole, bool, error)
}

// UserStore reads workspace users.
type UserStore interface {
	FindByID(ctx context.Context, userID, workspaceID string) (*domain.User, error)
}

// GroupStore reads workspace groups.
type GroupStore interface {
	FindByID(ctx context.Context, groupID, workspaceID string) (*domain.Group, error)
}

// TxRunner executes fn inside a single transaction. Every store call made
// with the ctx passed to fn joins that transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuditLogger records permission changes. Failures are logged, never
// propagated.
type AuditLogger interface {
	LogAction(ctx context.Context, workspaceID, actorID, action, resourceType string, resourceID *string, metadata map[string]interface{}, ipAddress, userAgent string) error
}
