package service

import (
	"context"
	"fmt"

	"pagehub-api/internal/domain"
	"pagehub-api/internal/observability/logger"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ResolverService computes the single effective role a principal holds on a
// page. Read-only and stateless per call; safe for any degree of concurrency.
type ResolverService struct {
	pageStore     PageStore
	overrideStore OverrideStore
	spaceStore    SpaceMemberStore
	log           *logger.Logger
	resolutions   metric.Int64Counter
}

func NewResolverService(pageStore PageStore, overrideStore OverrideStore, spaceStore SpaceMemberStore, log *logger.Logger, resolutions metric.Int64Counter) *ResolverService {
	return &ResolverService{
		pageStore:     pageStore,
		overrideStore: overrideStore,
		spaceStore:    spaceStore,
		log:           log,
		resolutions:   resolutions,
	}
}

// pageOverrides groups the override rows applying to one page: the user's
// direct row (at most one by uniqueness) and rows via group membership.
type pageOverrides struct {
	direct *domain.PageMember
	groups []domain.PageMember
}

// Resolve computes the effective role of userID on pageID.
//
// Precedence, first match wins:
//  1. space role ADMIN bypasses everything
//  2. direct override on the page itself
//  3. highest group-derived override on the page itself
//  4. nearest ancestor carrying a cascade block for the user
//  5. the user's space role, or no access when no membership exists
func (s *ResolverService) Resolve(ctx context.Context, userID, pageID string) (domain.EffectiveRole, error) {
	page, err := s.pageStore.FindByID(ctx, pageID)
	if err != nil {
		return domain.EffectiveRole{}, err
	}
	return s.ResolveForPage(ctx, userID, page)
}

// ResolveForPage is Resolve with the page already loaded. The mutation
// service uses it to avoid fetching the page twice per request.
func (s *ResolverService) ResolveForPage(ctx context.Context, userID string, page *domain.Page) (domain.EffectiveRole, error) {
	if s.resolutions != nil {
		s.resolutions.Add(ctx, 1)
	}

	spaceRoles, err := s.spaceStore.UserSpaceRoles(ctx, userID, page.SpaceID)
	if err != nil {
		return domain.EffectiveRole{}, fmt.Errorf("space roles for user: %w", err)
	}

	spaceRole, hasMembership := domain.HighestSpaceRole(spaceRoles)

	// Space admins bypass every page-level override, including blocks.
	if hasMembership && spaceRole == domain.SpaceRoleAdmin {
		return domain.EffectiveRole{
			Role:   domain.PageRoleAdmin,
			Source: domain.RoleSourceSpaceAdmin,
		}, nil
	}

	ancestorIDs, err := s.pageStore.AncestorIDs(ctx, page.ID)
	if err != nil {
		return domain.EffectiveRole{}, fmt.Errorf("page ancestors: %w", err)
	}

	// One store round-trip for the page and its whole ancestor chain.
	pageIDs := append([]string{page.ID}, ancestorIDs...)
	rows, err := s.overrideStore.OverridesForUser(ctx, userID, pageIDs)
	if err != nil {
		return domain.EffectiveRole{}, fmt.Errorf("overrides for user: %w", err)
	}

	byPage := make(map[string]*pageOverrides, len(pageIDs))
	for i := range rows {
		m := rows[i]
		po := byPage[m.PageID]
		if po == nil {
			po = &pageOverrides{}
			byPage[m.PageID] = po
		}
		if m.UserID != nil {
			po.direct = &rows[i]
		} else {
			po.groups = append(po.groups, m)
		}
	}

	// Direct override on the page itself wins outright, whatever its role.
	if po := byPage[page.ID]; po != nil {
		if po.direct != nil {
			return domain.EffectiveRole{
				Role:   po.direct.Role,
				Source: domain.RoleSourceDirect,
			}, nil
		}
		if len(po.groups) > 0 {
			roles := make([]domain.PageRole, 0, len(po.groups))
			for _, g := range po.groups {
				roles = append(roles, g.Role)
			}
			return domain.EffectiveRole{
				Role:   domain.HighestPageRole(roles),
				Source: domain.RoleSourceGroup,
			}, nil
		}
	}

	// No override on the page itself. Walk ancestors nearest first looking
	// for a cascade block; the same direct-beats-group rule applies per
	// ancestor, so a granting override there masks a blocking group row.
	for _, ancestorID := range ancestorIDs {
		po := byPage[ancestorID]
		if po == nil {
			continue
		}
		winner := applicableOverride(po)
		if winner != nil && winner.IsCascadeBlock() {
			id := ancestorID
			s.log.Debug(ctx, "cascade block inherited from ancestor",
				logger.Module("permission"),
				logger.Action("resolve"),
				zap.String("page_id", page.ID),
				zap.String("blocked_by_page_id", ancestorID),
				zap.String("user_id", userID),
			)
			return domain.EffectiveRole{
				Role:                domain.PageRoleBlocked,
				Source:              domain.RoleSourceInherited,
				InheritedFromPageID: &id,
			}, nil
		}
	}

	if hasMembership {
		return domain.EffectiveRole{
			Role:   spaceRole.PageRole(),
			Source: domain.RoleSourceSpace,
		}, nil
	}

	// No membership at all. Not an error, just no access.
	return domain.EffectiveRole{
		Role:   domain.PageRoleNone,
		Source: domain.RoleSourceNone,
	}, nil
}

// applicableOverride picks the override governing one ancestor: the direct
// row if present, else the highest-ranked group row. A blocked group winner
// counts as cascading when any of the blocked rows cascades.
func applicableOverride(po *pageOverrides) *domain.PageMember {
	if po.direct != nil {
		return po.direct
	}
	if len(po.groups) == 0 {
		return nil
	}

	winner := &po.groups[0]
	for i := 1; i < len(po.groups); i++ {
		if po.groups[i].Role.Rank() > winner.Role.Rank() {
			winner = &po.groups[i]
		}
	}
	if winner.Role == domain.PageRoleBlocked {
		for i := range po.groups {
			if po.groups[i].IsCascadeBlock() {
				return &po.groups[i]
			}
		}
	}
	return winner
}
