package domain

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// PageMember is an override row: an explicit page-level role assignment for
// a principal that supersedes the inherited space role.
//
// Invariants enforced by schema: exactly one of UserID/GroupID is set, and
// at most one row exists per (page, user) and per (page, group).
type PageMember struct {
	ID      string  `json:"id" db:"id"`
	PageID  string  `json:"pageId" db:"page_id"`
	UserID  *string `json:"userId,omitempty" db:"user_id"`
	GroupID *string `json:"groupId,omitempty" db:"group_id"`

	Role              PageRole `json:"role" db:"role"`
	CascadeToChildren bool     `json:"cascadeToChildren" db:"cascade_to_children"`

	// InheritedFromSpaceRole snapshots the principal's space role at the
	// moment the override was written. Informational only; resolution always
	// recomputes the live space role.
	InheritedFromSpaceRole *SpaceRole `json:"inheritedFromSpaceRole,omitempty" db:"inherited_from_space_role"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Principal reconstructs the sum type from the storage columns.
func (m *PageMember) Principal() (Principal, error) {
	return ParsePrincipal(m.UserID, m.GroupID)
}

// IsCascadeBlock reports whether this override denies the whole subtree.
func (m *PageMember) IsCascadeBlock() bool {
	return m.Role == PageRoleBlocked && m.CascadeToChildren
}

// RoleSource attributes where an effective role came from, for audit and UI.
type RoleSource string

const (
	RoleSourceSpace      RoleSource = "space"
	RoleSourceSpaceAdmin RoleSource = "space_admin"
	RoleSourceDirect     RoleSource = "page_direct"
	RoleSourceGroup      RoleSource = "page_group"
	// RoleSourceInherited marks a BLOCKED role materialized or resolved from
	// a cascade block on an ancestor page.
	RoleSourceInherited RoleSource = "page_inherited"
	RoleSourceNone      RoleSource = "none"
)

// EffectiveRole is the outcome of resolution: the single role authorization
// checks consult, plus attribution.
type EffectiveRole struct {
	Role   PageRole   `json:"role"`
	Source RoleSource `json:"source"`

	// InheritedFromPageID is set when Source is page_inherited: the nearest
	// ancestor carrying the cascade block.
	InheritedFromPageID *string `json:"inheritedFromPageId,omitempty"`
}

// HasAccess reports whether the effective role grants any access at all.
func (e EffectiveRole) HasAccess() bool {
	return e.Role != PageRoleBlocked && e.Role != PageRoleNone
}

// SetPagePermissionRequest is the mutation DTO. Exactly one of UserID and
// GroupID must be set; ParsePrincipal enforces this past the validator.
type SetPagePermissionRequest struct {
	UserID            *string  `json:"userId,omitempty" validate:"omitempty,min=1"`
	GroupID           *string  `json:"groupId,omitempty" validate:"omitempty,min=1"`
	Role              PageRole `json:"role" validate:"required,oneof=blocked reader writer admin"`
	CascadeToChildren bool     `json:"cascadeToChildren"`
}

// Validate valida o SetPagePermissionRequest.
func (r *SetPagePermissionRequest) Validate() error {
	if r.UserID != nil {
		trimmed := strings.TrimSpace(*r.UserID)
		r.UserID = &trimmed
	}
	if r.GroupID != nil {
		trimmed := strings.TrimSpace(*r.GroupID)
		r.GroupID = &trimmed
	}

	validate := validator.New()
	return validate.Struct(r)
}

// BulkSetPagePermissionsRequest applies several permission entries to one
// page in request order.
type BulkSetPagePermissionsRequest struct {
	Permissions []SetPagePermissionRequest `json:"permissions" validate:"required,min=1,max=100,dive"`
}

// Validate valida o BulkSetPagePermissionsRequest.
func (r *BulkSetPagePermissionsRequest) Validate() error {
	for i := range r.Permissions {
		if err := r.Permissions[i].Validate(); err != nil {
			return err
		}
	}

	validate := validator.New()
	return validate.Struct(r)
}

// BulkSetResult reports the per-entry outcome of a bulk mutation.
type BulkSetResult struct {
	Principal string  `json:"principal"`
	OK        bool    `json:"ok"`
	Error     *string `json:"error,omitempty"`
}

// ListPageMembersParams drives the paginated listing endpoints.
type ListPageMembersParams struct {
	// Query filters on user name, user email, or group name (ilike).
	Query *string

	Page  int
	Limit int
}

// Normalize applies defaults and trims the text filter.
func (p *ListPageMembersParams) Normalize() {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 50
	}
	if p.Query != nil {
		q := strings.TrimSpace(*p.Query)
		if q == "" {
			p.Query = nil
		} else {
			p.Query = &q
		}
	}
}

// Offset converts page/limit into the SQL offset.
func (p *ListPageMembersParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// PrincipalInfo carries display data for rendering an override's subject.
type PrincipalInfo struct {
	User  *User  `json:"user,omitempty"`
	Group *Group `json:"group,omitempty"`
}

// PageOverrideSummary is one row of the override listing: the override
// joined with its principal's display data.
type PageOverrideSummary struct {
	PageMember
	PrincipalInfo
}

// PageMemberSummary is one row of the "who can do what here" listing: a
// space member left-joined against any override for the same principal on
// the page in question.
type PageMemberSummary struct {
	PrincipalInfo
	SpaceRole   SpaceRole  `json:"spaceRole"`
	MemberSince time.Time  `json:"memberSince"`
	Override    *PageMember `json:"override,omitempty"`
}

// ListMeta is the pagination envelope shared by the listing responses.
type ListMeta struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	HasNextPage bool `json:"hasNextPage"`
}

// PageOverrideListResponse is the paginated override listing.
type PageOverrideListResponse struct {
	Data []PageOverrideSummary `json:"data"`
	Meta ListMeta              `json:"meta"`
}

// PageMemberListResponse is the paginated space-member listing.
type PageMemberListResponse struct {
	Data []PageMemberSummary `json:"data"`
	Meta ListMeta            `json:"meta"`
}
