package repo

import (
	"pagehub-api/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
)

// Scan targets for left-joined principal display data. A row may carry a
// user, a group, or (for the member listing) an absent override; pgtype
// validity flags decide which side materializes.

type nullableUser struct {
	id          pgtype.Text
	workspaceID pgtype.Text
	name        pgtype.Text
	email       pgtype.Text
	avatarURL   pgtype.Text
}

func (n *nullableUser) toDomain() *domain.User {
	if !n.id.Valid {
		return nil
	}
	return &domain.User{
		ID:          n.id.String,
		WorkspaceID: n.workspaceID.String,
		Name:        n.name.String,
		Email:       n.email.String,
		AvatarURL:   toStrPtr(n.avatarURL),
	}
}

type nullableGroup struct {
	id          pgtype.Text
	workspaceID pgtype.Text
	name        pgtype.Text
	isDefault   pgtype.Bool
}

func (n *nullableGroup) toDomain() *domain.Group {
	if !n.id.Valid {
		return nil
	}
	return &domain.Group{
		ID:          n.id.String,
		WorkspaceID: n.workspaceID.String,
		Name:        n.name.String,
		IsDefault:   n.isDefault.Bool,
	}
}

type nullablePageMember struct {
	id                     pgtype.Text
	pageID                 pgtype.Text
	userID                 pgtype.Text
	groupID                pgtype.Text
	role                   pgtype.Text
	cascadeToChildren      pgtype.Bool
	inheritedFromSpaceRole pgtype.Text
	createdAt              pgtype.Timestamptz
	updatedAt              pgtype.Timestamptz
}

func (n *nullablePageMember) toDomain() *domain.PageMember {
	if !n.id.Valid {
		return nil
	}
	m := &domain.PageMember{
		ID:                n.id.String,
		PageID:            n.pageID.String,
		UserID:            toStrPtr(n.userID),
		GroupID:           toStrPtr(n.groupID),
		Role:              domain.PageRole(n.role.String),
		CascadeToChildren: n.cascadeToChildren.Bool,
		CreatedAt:         n.createdAt.Time,
		UpdatedAt:         n.updatedAt.Time,
	}
	if n.inheritedFromSpaceRole.Valid {
		sr := domain.SpaceRole(n.inheritedFromSpaceRole.String)
		m.InheritedFromSpaceRole = &sr
	}
	return m
}

func toStrPtr(t pgtype.Text) *string {
	if t.Valid {
		return &t.String
	}
	return nil
}
