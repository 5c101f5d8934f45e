package service

import (
	"context"
	"fmt"

	"pagehub-api/internal/domain"
	"pagehub-api/internal/observability/logger"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// CascadePropagator materializes a subtree-wide block: one BLOCKED override
// row per descendant of the blocked page, for the same principal. Runs only
// inside an active mutation transaction; any failure rolls the whole
// mutation back, so a partial cascade is never observable.
type CascadePropagator struct {
	pageStore     PageStore
	overrideStore OverrideStore
	log           *logger.Logger
	rowsWritten   metric.Int64Counter
}

func NewCascadePropagator(pageStore PageStore, overrideStore OverrideStore, log *logger.Logger, rowsWritten metric.Int64Counter) *CascadePropagator {
	return &CascadePropagator{
		pageStore:     pageStore,
		overrideStore: overrideStore,
		log:           log,
		rowsWritten:   rowsWritten,
	}
}

// PropagateBlock writes a cascading BLOCKED override for principal onto every
// transitive descendant of pageID. Descendants that already carry an
// override for the same principal are left untouched: a more specific
// override keeps winning over the propagated block. Returns the number of
// descendants visited.
//
// Pages created under pageID after this ran carry no materialized row; the
// resolver's ancestor walk still blocks them.
func (p *CascadePropagator) PropagateBlock(ctx context.Context, pageID string, principal domain.Principal, inherited *domain.SpaceRole) (int, error) {
	descendantIDs, err := p.pageStore.DescendantIDs(ctx, pageID)
	if err != nil {
		return 0, fmt.Errorf("enumerate descendants: %w", err)
	}

	for _, id := range descendantIDs {
		m := &domain.PageMember{
			ID:                     generateID(),
			PageID:                 id,
			UserID:                 principal.UserID(),
			GroupID:                principal.GroupID(),
			Role:                   domain.PageRoleBlocked,
			CascadeToChildren:      true,
			InheritedFromSpaceRole: inherited,
		}
		if err := p.overrideStore.InsertIgnoreConflict(ctx, m); err != nil {
			return 0, fmt.Errorf("materialize block on page %s: %w", id, err)
		}
	}

	if p.rowsWritten != nil && len(descendantIDs) > 0 {
		p.rowsWritten.Add(ctx, int64(len(descendantIDs)))
	}

	p.log.Info(ctx, "cascade block propagated",
		logger.Module("permission"),
		logger.Action("cascade"),
		zap.String("page_id", pageID),
		zap.String("principal", principal.String()),
		zap.Int("descendants", len(descendantIDs)),
	)

	return len(descendantIDs), nil
}
