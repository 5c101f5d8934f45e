package service_test

import (
	"context"
	"fmt"
	"time"

	"pagehub-api/internal/domain"
	"pagehub-api/internal/observability/logger"
	"pagehub-api/internal/repo"
	"pagehub-api/internal/service"
)

// memStore is an in-memory implementation of every store contract the
// permission services consume. One instance backs all of them so a test
// fixture reads like a small workspace.
type memStore struct {
	workspaceID string

	pages  map[string]*domain.Page
	users  map[string]*domain.User
	groups map[string]*domain.Group

	// userID -> groupIDs
	groupUsers map[string][]string

	// spaceID -> principal space memberships
	spaceMembers []memSpaceMember

	overrides []*domain.PageMember

	auditActions []string
}

type memSpaceMember struct {
	spaceID string
	userID  string
	groupID string
	role    domain.SpaceRole
}

func newMemStore() *memStore {
	return &memStore{
		workspaceID: "ws-1",
		pages:       make(map[string]*domain.Page),
		users:       make(map[string]*domain.User),
		groups:      make(map[string]*domain.Group),
		groupUsers:  make(map[string][]string),
	}
}

// Fixture helpers.

func (m *memStore) addUser(id string) {
	m.users[id] = &domain.User{ID: id, WorkspaceID: m.workspaceID, Name: id, Email: id + "@example.com"}
}

func (m *memStore) addGroup(id string, userIDs ...string) {
	m.groups[id] = &domain.Group{ID: id, WorkspaceID: m.workspaceID, Name: id}
	for _, uid := range userIDs {
		m.groupUsers[uid] = append(m.groupUsers[uid], id)
	}
}

func (m *memStore) addPage(id, spaceID string, parentID *string) {
	m.pages[id] = &domain.Page{
		ID:           id,
		SpaceID:      spaceID,
		WorkspaceID:  m.workspaceID,
		ParentPageID: parentID,
		Title:        id,
	}
}

func (m *memStore) addSpaceUser(spaceID, userID string, role domain.SpaceRole) {
	m.spaceMembers = append(m.spaceMembers, memSpaceMember{spaceID: spaceID, userID: userID, role: role})
}

func (m *memStore) addSpaceGroup(spaceID, groupID string, role domain.SpaceRole) {
	m.spaceMembers = append(m.spaceMembers, memSpaceMember{spaceID: spaceID, groupID: groupID, role: role})
}

// PageStore.

func (m *memStore) FindByID(_ context.Context, pageID string) (*domain.Page, error) {
	p, ok := m.pages[pageID]
	if !ok {
		return nil, repo.ErrPageNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) AncestorIDs(_ context.Context, pageID string) ([]string, error) {
	var ids []string
	p := m.pages[pageID]
	for p != nil && p.ParentPageID != nil {
		p = m.pages[*p.ParentPageID]
		if p == nil {
			break
		}
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (m *memStore) DescendantIDs(_ context.Context, pageID string) ([]string, error) {
	var ids []string
	frontier := []string{pageID}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		for _, p := range m.pages {
			if p.ParentPageID != nil && *p.ParentPageID == next {
				ids = append(ids, p.ID)
				frontier = append(frontier, p.ID)
			}
		}
	}
	return ids, nil
}

// OverrideStore.

func (m *memStore) FindOverride(_ context.Context, pageID string, principal domain.Principal) (*domain.PageMember, error) {
	for _, o := range m.overrides {
		if o.PageID != pageID {
			continue
		}
		if principal.IsUser() && o.UserID != nil && *o.UserID == principal.ID() {
			cp := *o
			return &cp, nil
		}
		if principal.IsGroup() && o.GroupID != nil && *o.GroupID == principal.ID() {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) OverridesForUser(_ context.Context, userID string, pageIDs []string) ([]domain.PageMember, error) {
	wanted := make(map[string]bool, len(pageIDs))
	for _, id := range pageIDs {
		wanted[id] = true
	}
	inGroup := make(map[string]bool)
	for _, gid := range m.groupUsers[userID] {
		inGroup[gid] = true
	}

	var out []domain.PageMember
	for _, o := range m.overrides {
		if !wanted[o.PageID] {
			continue
		}
		if o.UserID != nil && *o.UserID == userID {
			out = append(out, *o)
		} else if o.GroupID != nil && inGroup[*o.GroupID] {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memStore) Insert(_ context.Context, pm *domain.PageMember) error {
	for _, o := range m.overrides {
		if o.PageID == pm.PageID && samePrincipal(o, pm) {
			return fmt.Errorf("duplicate override for page %s", pm.PageID)
		}
	}
	pm.CreatedAt = time.Now()
	pm.UpdatedAt = pm.CreatedAt
	cp := *pm
	m.overrides = append(m.overrides, &cp)
	return nil
}

func (m *memStore) InsertIgnoreConflict(_ context.Context, pm *domain.PageMember) error {
	for _, o := range m.overrides {
		if o.PageID == pm.PageID && samePrincipal(o, pm) {
			return nil
		}
	}
	cp := *pm
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.overrides = append(m.overrides, &cp)
	return nil
}

func (m *memStore) Update(_ context.Context, id string, role domain.PageRole, cascadeToChildren bool, inherited *domain.SpaceRole) error {
	for _, o := range m.overrides {
		if o.ID == id {
			o.Role = role
			o.CascadeToChildren = cascadeToChildren
			o.InheritedFromSpaceRole = inherited
			o.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("override %s: no row", id)
}

func (m *memStore) Delete(_ context.Context, pageID string, principal domain.Principal) error {
	kept := m.overrides[:0]
	for _, o := range m.overrides {
		match := o.PageID == pageID &&
			((principal.IsUser() && o.UserID != nil && *o.UserID == principal.ID()) ||
				(principal.IsGroup() && o.GroupID != nil && *o.GroupID == principal.ID()))
		if !match {
			kept = append(kept, o)
		}
	}
	m.overrides = kept
	return nil
}

func (m *memStore) ListOverrides(_ context.Context, pageID string, params domain.ListPageMembersParams) ([]domain.PageOverrideSummary, bool, error) {
	var items []domain.PageOverrideSummary
	for _, o := range m.overrides {
		if o.PageID != pageID {
			continue
		}
		item := domain.PageOverrideSummary{PageMember: *o}
		if o.UserID != nil {
			item.User = m.users[*o.UserID]
		}
		if o.GroupID != nil {
			item.Group = m.groups[*o.GroupID]
		}
		items = append(items, item)
	}
	start := params.Offset()
	if start > len(items) {
		start = len(items)
	}
	end := start + params.Limit
	hasNext := end < len(items)
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], hasNext, nil
}

func (m *memStore) ListMembers(_ context.Context, pageID, spaceID string, params domain.ListPageMembersParams) ([]domain.PageMemberSummary, bool, error) {
	var items []domain.PageMemberSummary
	for _, sm := range m.spaceMembers {
		if sm.spaceID != spaceID {
			continue
		}
		item := domain.PageMemberSummary{SpaceRole: sm.role}
		var principal domain.Principal
		if sm.userID != "" {
			item.User = m.users[sm.userID]
			principal = domain.UserPrincipal(sm.userID)
		} else {
			item.Group = m.groups[sm.groupID]
			principal = domain.GroupPrincipal(sm.groupID)
		}
		ov, _ := m.FindOverride(context.Background(), pageID, principal)
		item.Override = ov
		items = append(items, item)
	}
	return items, false, nil
}

func samePrincipal(a, b *domain.PageMember) bool {
	if a.UserID != nil && b.UserID != nil {
		return *a.UserID == *b.UserID
	}
	if a.GroupID != nil && b.GroupID != nil {
		return *a.GroupID == *b.GroupID
	}
	return false
}

// SpaceMemberStore.

func (m *memStore) UserSpaceRoles(_ context.Context, userID, spaceID string) ([]domain.SpaceRole, error) {
	inGroup := make(map[string]bool)
	for _, gid := range m.groupUsers[userID] {
		inGroup[gid] = true
	}
	var roles []domain.SpaceRole
	for _, sm := range m.spaceMembers {
		if sm.spaceID != spaceID {
			continue
		}
		if sm.userID == userID || (sm.groupID != "" && inGroup[sm.groupID]) {
			roles = append(roles, sm.role)
		}
	}
	return roles, nil
}

func (m *memStore) GroupSpaceRole(_ context.Context, groupID, spaceID string) (domain.SpaceRole, bool, error) {
	for _, sm := range m.spaceMembers {
		if sm.spaceID == spaceID && sm.groupID == groupID {
			return sm.role, true, nil
		}
	}
	return "", false, nil
}

// UserStore / GroupStore.

func (m *memStore) UserByID(ctx context.Context, userID, workspaceID string) (*domain.User, error) {
	u, ok := m.users[userID]
	if !ok || u.WorkspaceID != workspaceID {
		return nil, repo.ErrUserNotFound
	}
	return u, nil
}

func (m *memStore) GroupByID(ctx context.Context, groupID, workspaceID string) (*domain.Group, error) {
	g, ok := m.groups[groupID]
	if !ok || g.WorkspaceID != workspaceID {
		return nil, repo.ErrGroupNotFound
	}
	return g, nil
}

// userStore and groupStore adapt memStore to the two FindByID contracts,
// which would otherwise collide on the method name.
type userStore struct{ *memStore }

func (s userStore) FindByID(ctx context.Context, userID, workspaceID string) (*domain.User, error) {
	return s.UserByID(ctx, userID, workspaceID)
}

type groupStore struct{ *memStore }

func (s groupStore) FindByID(ctx context.Context, groupID, workspaceID string) (*domain.Group, error) {
	return s.GroupByID(ctx, groupID, workspaceID)
}

// TxRunner: the fakes mutate in place, so a transaction is just the call.
type noopTx struct{}

func (noopTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// AuditLogger capturing actions for assertions.

func (m *memStore) LogAction(_ context.Context, _, _, action, _ string, _ *string, _ map[string]interface{}, _, _ string) error {
	m.auditActions = append(m.auditActions, action)
	return nil
}

// newServices wires resolver and permission service over one memStore.
func newServices(store *memStore) (*service.ResolverService, *service.PermissionService) {
	log, _ := logger.New("test", "error")
	resolver := service.NewResolverService(store, store, store, log, nil)
	cascade := service.NewCascadePropagator(store, store, log, nil)
	perm := service.NewPermissionService(
		store, store, store, userStore{store}, groupStore{store},
		resolver, cascade, noopTx{}, store, log, nil,
	)
	return resolver, perm
}

func strPtr(s string) *string { return &s }
