package service

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"

	"pagehub-api/internal/domain"
	"pagehub-api/internal/observability/logger"
	"pagehub-api/internal/repo"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

var (
	ErrUnauthorized     = errors.New("user not authorized for this action")
	ErrElevationDenied  = errors.New("requested role exceeds the principal's space role")
	ErrPageNotFound     = repo.ErrPageNotFound
	ErrUserNotFound     = repo.ErrUserNotFound
	ErrGroupNotFound    = repo.ErrGroupNotFound
	ErrInvalidPrincipal = domain.ErrInvalidPrincipal
)

// generateID cria um ID cuid-like para novas linhas de override
func generateID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return "c" + strings.ToLower(base32.StdEncoding.EncodeToString(b)[:24])
}

// PermissionService is the only writer of override rows. It orchestrates one
// mutation end to end: authorization of the actor, principal validation,
// equivalence collapse, elevation guard, upsert, and cascade fan-out, all
// inside a single transaction.
type PermissionService struct {
	pageStore     PageStore
	overrideStore OverrideStore
	spaceStore    SpaceMemberStore
	userStore     UserStore
	groupStore    GroupStore
	resolver      *ResolverService
	cascade       *CascadePropagator
	tx            TxRunner
	audit         AuditLogger
	log           *logger.Logger
	mutations     metric.Int64Counter
}

func NewPermissionService(
	pageStore PageStore,
	overrideStore OverrideStore,
	spaceStore SpaceMemberStore,
	userStore UserStore,
	groupStore GroupStore,
	resolver *ResolverService,
	cascade *CascadePropagator,
	tx TxRunner,
	audit AuditLogger,
	log *logger.Logger,
	mutations metric.Int64Counter,
) *PermissionService {
	return &PermissionService{
		pageStore:     pageStore,
		overrideStore: overrideStore,
		spaceStore:    spaceStore,
		userStore:     userStore,
		groupStore:    groupStore,
		resolver:      resolver,
		cascade:       cascade,
		tx:            tx,
		audit:         audit,
		log:           log,
		mutations:     mutations,
	}
}

// loadPage fetches a page and pins it to the workspace. A page belonging to
// another workspace reads as absent, never as forbidden.
func (s *PermissionService) loadPage(ctx context.Context, workspaceID, pageID string) (*domain.Page, error) {
	page, err := s.pageStore.FindByID(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if page.WorkspaceID != workspaceID {
		return nil, ErrPageNotFound
	}
	return page, nil
}

// authorizeManage requires the actor to hold effective ADMIN on the page.
func (s *PermissionService) authorizeManage(ctx context.Context, actorID string, page *domain.Page) error {
	eff, err := s.resolver.ResolveForPage(ctx, actorID, page)
	if err != nil {
		return fmt.Errorf("resolve actor role: %w", err)
	}
	if eff.Role != domain.PageRoleAdmin {
		s.log.Warn(ctx, "permission change denied",
			logger.Module("permission"),
			logger.Action("authorization"),
			zap.String("actor_id", actorID),
			zap.String("page_id", page.ID),
			zap.String("actor_role", string(eff.Role)),
		)
		return ErrUnauthorized
	}
	return nil
}

// SetPagePermission applies one override change. Returns the resulting
// override row, or nil when the request collapsed to the inherited space
// role and the row was deleted.
func (s *PermissionService) SetPagePermission(ctx context.Context, workspaceID, pageID, actorID string, req *domain.SetPagePermissionRequest) (*domain.PageMember, error) {
	page, err := s.loadPage(ctx, workspaceID, pageID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeManage(ctx, actorID, page); err != nil {
		return nil, err
	}

	principal, err := domain.ParsePrincipal(req.UserID, req.GroupID)
	if err != nil {
		return nil, err
	}

	var member *domain.PageMember
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		member, err = s.applyOverride(ctx, workspaceID, page, principal, req.Role, req.CascadeToChildren)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.mutations != nil {
		s.mutations.Add(ctx, 1)
	}
	s.auditPermissionChange(ctx, workspaceID, actorID, page.ID, principal, req.Role, req.CascadeToChildren, member == nil)

	return member, nil
}

// applyOverride runs the transactional part of a mutation: comparison space
// role, equivalence collapse, elevation guard, upsert, cascade. Must be
// called with a transaction already on the context.
func (s *PermissionService) applyOverride(ctx context.Context, workspaceID string, page *domain.Page, principal domain.Principal, role domain.PageRole, cascadeToChildren bool) (*domain.PageMember, error) {
	spaceRole, hasSpaceRole, err := s.comparisonSpaceRole(ctx, workspaceID, page.SpaceID, principal)
	if err != nil {
		return nil, err
	}

	// An override restating the inherited space role is noise: delete any
	// existing row instead of persisting a snapshot that will drift.
	if hasSpaceRole && domain.IsEquivalentRole(role, spaceRole) {
		if err := s.overrideStore.Delete(ctx, page.ID, principal); err != nil {
			return nil, fmt.Errorf("collapse override: %w", err)
		}
		return nil, nil
	}

	// BLOCKED is always settable; anything else must not elevate above the
	// comparison space role.
	if !domain.CanAssignRole(spaceRole, hasSpaceRole, role) {
		return nil, ErrElevationDenied
	}

	// The cascade flag only means something on a block.
	if role != domain.PageRoleBlocked {
		cascadeToChildren = false
	}

	var inherited *domain.SpaceRole
	if hasSpaceRole {
		sr := spaceRole
		inherited = &sr
	}

	existing, err := s.overrideStore.FindOverride(ctx, page.ID, principal)
	if err != nil {
		return nil, err
	}

	var member *domain.PageMember
	if existing != nil {
		if err := s.overrideStore.Update(ctx, existing.ID, role, cascadeToChildren, inherited); err != nil {
			return nil, err
		}
		existing.Role = role
		existing.CascadeToChildren = cascadeToChildren
		existing.InheritedFromSpaceRole = inherited
		member = existing
	} else {
		member = &domain.PageMember{
			ID:                     generateID(),
			PageID:                 page.ID,
			UserID:                 principal.UserID(),
			GroupID:                principal.GroupID(),
			Role:                   role,
			CascadeToChildren:      cascadeToChildren,
			InheritedFromSpaceRole: inherited,
		}
		if err := s.overrideStore.Insert(ctx, member); err != nil {
			return nil, err
		}
	}

	if member.IsCascadeBlock() {
		if _, err := s.cascade.PropagateBlock(ctx, page.ID, principal, inherited); err != nil {
			return nil, fmt.Errorf("propagate block: %w", err)
		}
	}

	return member, nil
}

// comparisonSpaceRole computes the space role an override is measured
// against. For users it is the highest of every membership, own or via
// groups. For groups it is the group's own recorded role, never an
// aggregate. The bool is false when the principal holds no membership.
func (s *PermissionService) comparisonSpaceRole(ctx context.Context, workspaceID, spaceID string, principal domain.Principal) (domain.SpaceRole, bool, error) {
	switch principal.Kind() {
	case domain.PrincipalUser:
		if _, err := s.userStore.FindByID(ctx, principal.ID(), workspaceID); err != nil {
			return "", false, err
		}
		roles, err := s.spaceStore.UserSpaceRoles(ctx, principal.ID(), spaceID)
		if err != nil {
			return "", false, fmt.Errorf("space roles for user: %w", err)
		}
		role, ok := domain.HighestSpaceRole(roles)
		return role, ok, nil

	case domain.PrincipalGroup:
		if _, err := s.groupStore.FindByID(ctx, principal.ID(), workspaceID); err != nil {
			return "", false, err
		}
		role, ok, err := s.spaceStore.GroupSpaceRole(ctx, principal.ID(), spaceID)
		if err != nil {
			return "", false, fmt.Errorf("space role for group: %w", err)
		}
		return role, ok, nil

	default:
		return "", false, ErrInvalidPrincipal
	}
}

// BulkSetPagePermissions applies several entries to one page in request
// order. Each entry commits independently; one entry failing does not roll
// back the others, and the per-entry outcome is reported to the caller.
func (s *PermissionService) BulkSetPagePermissions(ctx context.Context, workspaceID, pageID, actorID string, req *domain.BulkSetPagePermissionsRequest) ([]domain.BulkSetResult, error) {
	page, err := s.loadPage(ctx, workspaceID, pageID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeManage(ctx, actorID, page); err != nil {
		return nil, err
	}

	results := make([]domain.BulkSetResult, 0, len(req.Permissions))
	for i := range req.Permissions {
		entry := req.Permissions[i]

		principal, err := domain.ParsePrincipal(entry.UserID, entry.GroupID)
		if err != nil {
			msg := err.Error()
			results = append(results, domain.BulkSetResult{OK: false, Error: &msg})
			continue
		}

		var member *domain.PageMember
		err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
			member, err = s.applyOverride(ctx, workspaceID, page, principal, entry.Role, entry.CascadeToChildren)
			return err
		})

		result := domain.BulkSetResult{Principal: principal.String(), OK: err == nil}
		if err != nil {
			msg := err.Error()
			result.Error = &msg
			s.log.Warn(ctx, "bulk permission entry failed",
				logger.Module("permission"),
				logger.Action("bulk_set"),
				zap.String("page_id", page.ID),
				zap.String("principal", principal.String()),
				zap.Error(err),
			)
		} else {
			if s.mutations != nil {
				s.mutations.Add(ctx, 1)
			}
			s.auditPermissionChange(ctx, workspaceID, actorID, page.ID, principal, entry.Role, entry.CascadeToChildren, member == nil)
		}
		results = append(results, result)
	}

	return results, nil
}

// GetEffectiveRole resolves userID's effective role on a page. Actors may
// always resolve themselves; resolving someone else requires effective
// ADMIN on the page.
func (s *PermissionService) GetEffectiveRole(ctx context.Context, workspaceID, pageID, userID, actorID string) (*domain.EffectiveRole, error) {
	page, err := s.loadPage(ctx, workspaceID, pageID)
	if err != nil {
		return nil, err
	}

	if userID != actorID {
		if err := s.authorizeManage(ctx, actorID, page); err != nil {
			return nil, err
		}
		if _, err := s.userStore.FindByID(ctx, userID, workspaceID); err != nil {
			return nil, err
		}
	}

	eff, err := s.resolver.ResolveForPage(ctx, userID, page)
	if err != nil {
		return nil, err
	}
	return &eff, nil
}

// ListOverrides returns the page's override rows with principal display
// data. Requires the actor to have any access to the page.
func (s *PermissionService) ListOverrides(ctx context.Context, workspaceID, pageID, actorID string, params domain.ListPageMembersParams) (*domain.PageOverrideListResponse, error) {
	page, err := s.loadPage(ctx, workspaceID, pageID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeView(ctx, actorID, page); err != nil {
		return nil, err
	}

	params.Normalize()

	items, hasNext, err := s.overrideStore.ListOverrides(ctx, page.ID, params)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}

	return &domain.PageOverrideListResponse{
		Data: items,
		Meta: domain.ListMeta{Page: params.Page, Limit: params.Limit, HasNextPage: hasNext},
	}, nil
}

// ListMembers returns every space member with any override they hold on the
// page. Requires the actor to have any access to the page.
func (s *PermissionService) ListMembers(ctx context.Context, workspaceID, pageID, actorID string, params domain.ListPageMembersParams) (*domain.PageMemberListResponse, error) {
	page, err := s.loadPage(ctx, workspaceID, pageID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeView(ctx, actorID, page); err != nil {
		return nil, err
	}

	params.Normalize()

	items, hasNext, err := s.overrideStore.ListMembers(ctx, page.ID, page.SpaceID, params)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	return &domain.PageMemberListResponse{
		Data: items,
		Meta: domain.ListMeta{Page: params.Page, Limit: params.Limit, HasNextPage: hasNext},
	}, nil
}

func (s *PermissionService) authorizeView(ctx context.Context, actorID string, page *domain.Page) error {
	eff, err := s.resolver.ResolveForPage(ctx, actorID, page)
	if err != nil {
		return fmt.Errorf("resolve actor role: %w", err)
	}
	if !eff.HasAccess() {
		return ErrUnauthorized
	}
	return nil
}

// auditPermissionChange records a committed mutation. Audit failures are
// logged and swallowed, never surfaced to the caller.
func (s *PermissionService) auditPermissionChange(ctx context.Context, workspaceID, actorID, pageID string, principal domain.Principal, role domain.PageRole, cascadeToChildren, collapsed bool) {
	action := repo.AuditActionPermissionSet
	switch {
	case collapsed:
		action = repo.AuditActionPermissionRemoved
	case role == domain.PageRoleBlocked && cascadeToChildren:
		action = repo.AuditActionPermissionCascade
	}

	metadata := map[string]interface{}{
		"principal":         principal.String(),
		"role":              string(role),
		"cascadeToChildren": cascadeToChildren,
	}

	if err := s.audit.LogAction(ctx, workspaceID, actorID, action, "page_permission", &pageID, metadata, "", ""); err != nil {
		s.log.Error(ctx, "failed to write audit entry",
			logger.Module("permission"),
			logger.Action("audit"),
			zap.String("page_id", pageID),
			zap.Error(err),
		)
	}
}
