package service_test

import (
	"context"
	"testing"

	"pagehub-api/internal/domain"
	"pagehub-api/internal/repo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture: space sp-1 holds a three-level tree root -> child -> grandchild.
func newTreeStore() *memStore {
	store := newMemStore()
	store.addPage("root", "sp-1", nil)
	store.addPage("child", "sp-1", strPtr("root"))
	store.addPage("grandchild", "sp-1", strPtr("child"))
	return store
}

func TestResolver_SpaceRoleFallback(t *testing.T) {
	store := newTreeStore()
	store.addUser("u-writer")
	store.addSpaceUser("sp-1", "u-writer", domain.SpaceRoleWriter)

	resolver, _ := newServices(store)

	eff, err := resolver.Resolve(context.Background(), "u-writer", "grandchild")
	require.NoError(t, err)
	assert.Equal(t, domain.PageRoleWriter, eff.Role)
	assert.Equal(t, domain.RoleSourceSpace, eff.Source)
}

func TestResolver_NoMembershipIsNotAnError(t *testing.T) {
	store := newTreeStore()
	store.addUser("u-outsider")

	resolver, _ := newServices(store)

	eff, err := resolver.Resolve(context.Background(), "u-outsider", "root")
	require.NoError(t, err)
	assert.Equal(t, domain.PageRoleNone, eff.Role)
	assert.Equal(t, domain.RoleSourceNone, eff.Source)
	assert.False(t, eff.HasAccess())
}

func TestResolver_PageNotFound(t *testing.T) {
	store := newTreeStore()
	resolver, _ := newServices(store)

	_, err := resolver.Resolve(context.Background(), "u-any", "missing")
	assert.ErrorIs(t, err, repo.ErrPageNotFound)
}

func TestResolver_SpaceAdminBypassesEverything(t *testing.T) {
	store := newTreeStore()
	store.addUser("u-admin")
	store.addSpaceUser("sp-1", "u-admin", domain.SpaceRoleAdmin)

	// Even an explicit cascade block on the exact page does not apply.
	store.overrides = append(store.overrides, &domain.PageMember{
		ID: "o-1", PageID: "root", UserID: strPtr("u-admin"),
		Role: domain.PageRoleBlocked, CascadeToChildren: true,
	})

	resolver, _ := newServices(store)

	for _, pageID := range []string{"root", "child", "grandchild"} {
		eff, err := resolver.Resolve(context.Background(), "u-admin", pageID)
		require.NoError(t, err)
		assert.Equal(t, domain.PageRoleAdmin, eff.Role, "page %s", pageID)
		assert.Equal(t, domain.RoleSourceSpaceAdmin, eff.Source)
	}
}

// Direct override beats a group override and an ancestor cascade block, even
// when both would imply a different role.
func TestResolver_DirectOverrideWinsOverGroupAndCascade(t *testing.T) {
	store := newTreeStore()
	store.addUser("u-1")
	store.addGroup("g-1", "u-1")
	store.addSpaceUser("sp-1", "u-1", domain.SpaceRoleWriter)

	store.overrides = append(store.overrides,
		// Ancestor cascade block for the user.
		&domain.PageMember{ID: "o-1", PageID: "root", UserID: strPtr("u-1"),
			Role: domain.PageRoleBlocked, CascadeToChildren: true},
		// Group override WRITER on the page itself.
		&domain.PageMember{ID: "o-2", PageID: "child", GroupID: strPtr("g-1"),
			Role: domain.PageRoleWriter},
		// Direct override READER on the page itself.
		&domain.PageMember{ID: "o-3", PageID: "child", UserID: strPtr("u-1"),
			Role: domain.PageRoleReader},
	)

	resolver, _ := newServices(store)

	eff, err := resolver.Resolve(context.Background(), "u-1", "child")
	require.NoError(t, err)
	assert.Equal(t, domain.PageRoleReader, eff.Role)
	assert.Equal(t, domain.RoleSourceDirect, eff.Source)
}

// A user in several groups takes the most permissive group override.
func TestResolver_GroupAggregationHighestWins(t *testing.T) {
	store := newTreeStore()
	store.addUser("u-1")
	store.addGroup("g-a", "u-1")
	store.addGroup("g-b", "u-1")
	store.addSpaceUser("sp-1", "u-1", domain.SpaceRoleReader)

	store.overrides = append(store.overrides,
		&domain.PageMember{ID: "o-1", PageID: "child", GroupID: strPtr("g-a"),
			Role: domain.PageRoleReader},
		&domain.PageMember{ID: "o-2", PageID: "child", GroupID: strPtr("g-b"),
			Role: domain.PageRoleWriter},
	)

	resolver, _ := newServices(store)

	eff, err := resolver.Resolve(context.Background(), "u-1", "child")
	require.NoError(t, err)
	assert.Equal(t, domain.PageRoleWriter, eff.Role)
	assert.Equal(t, domain.RoleSourceGroup, eff.Source)
}

func TestResolver_AncestorCascadeBlock(t *testing.T) {
	store := newTreeStore()
	store.addUser("u-1")
	store.addSpaceUser("sp-1", "u-1", domain.SpaceRoleWriter)

	store.overrides = append(store.overrides, &domain.PageMember{
		ID: "o-1", PageID: "root", UserID: strPtr("u-1"),
		Role: domain.PageRoleBlocked, CascadeToChildren: true,
	})

	resolver, _ := newServices(store)

	// No materialized rows on descendants; the ancestor walk alone blocks.
	eff, err := resolver.Resolve(context.Background(), "u-1", "grandchild")
	require.NoError(t, err)
	assert.Equal(t, domain.PageRoleBlocked, eff.Role)
	assert.Equal(t, domain.RoleSourceInherited, eff.Source)
	require.NotNil(t, eff.InheritedFromPageID)
	assert.Equal(t, "root", *eff.InheritedFromPageID)
}

func TestResolver_NearestBlockingAncestorWins(t *testing.T) {
	store := newTreeStore()
	store.addUser("u-1")
	store.addSpaceUser("sp-1", "u-1", domain.SpaceRoleWriter)

	store.overrides = append(store.overrides,
		&domain.PageMember{ID: "o-1", PageID: "root", UserID: strPtr("u-1"),
			Role: domain.PageRoleBlocked, CascadeToChildren: true},
		&domain.PageMember{ID: "o-2", PageID: "child", UserID: strPtr("u-1"),
			Role: domain.PageRoleBlocked, CascadeToChildren: true},
	)

	resolver, _ := newServices(store)

	eff, err := resolver.Resolve(context.Background(), "u-1", "grandchild")
	require.NoError(t, err)
	assert.Equal(t, domain.PageRoleBlocked, eff.Role)
	require.NotNil(t, eff.InheritedFromPageID)
	assert.Equal(t, "child", *eff.InheritedFromPageID)
}

// A non-cascading BLOCKED on an ancestor denies that ancestor only; it does
// not propagate down.
func TestResolver_NonCascadingBlockDoesNotPropagate(t *testing.T) {
	store := newTreeStore()
	store.addUser("u-1")
	store.addSpaceUser("sp-1", "u-1", domain.SpaceRoleReader)

	store.overrides = append(store.overrides, &domain.PageMember{
		ID: "o-1", PageID: "root", UserID: strPtr("u-1"),
		Role: domain.PageRoleBlocked, CascadeToChildren: false,
	})

	resolver, _ := newServices(store)

	eff, err := resolver.Resolve(context.Background(), "u-1", "child")
	require.NoError(t, err)
	assert.Equal(t, domain.PageRoleReader, eff.Role)
	assert.Equal(t, domain.RoleSourceSpace, eff.Source)
}

// Per ancestor the direct-beats-group rule applies: a granting direct
// override on the ancestor masks a blocking group row there.
func TestResolver_GrantingDirectOnAncestorMasksGroupBlock(t *testing.T) {
	store := newTreeStore()
	store.addUser("u-1")
	store.addGroup("g-1", "u-1")
	store.addSpaceUser("sp-1", "u-1", domain.SpaceRoleReader)

	store.overrides = append(store.overrides,
		&domain.PageMember{ID: "o-1", PageID: "root", GroupID: strPtr("g-1"),
			Role: domain.PageRoleBlocked, CascadeToChildren: true},
		&domain.PageMember{ID: "o-2", PageID: "root", UserID: strPtr("u-1"),
			Role: domain.PageRoleWriter},
	)

	resolver, _ := newServices(store)

	eff, err := resolver.Resolve(context.Background(), "u-1", "child")
	require.NoError(t, err)
	assert.Equal(t, domain.PageRoleReader, eff.Role)
	assert.Equal(t, domain.RoleSourceSpace, eff.Source)
}

// Group-derived space membership counts toward the space role fallback.
func TestResolver_SpaceRoleViaGroupMembership(t *testing.T) {
	store := newTreeStore()
	store.addUser("u-1")
	store.addGroup("g-1", "u-1")
	store.addSpaceUser("sp-1", "u-1", domain.SpaceRoleReader)
	store.addSpaceGroup("sp-1", "g-1", domain.SpaceRoleWriter)

	resolver, _ := newServices(store)

	eff, err := resolver.Resolve(context.Background(), "u-1", "root")
	require.NoError(t, err)
	assert.Equal(t, domain.PageRoleWriter, eff.Role)
	assert.Equal(t, domain.RoleSourceSpace, eff.Source)
}
