package domain

import (
	"database/sql/driver"
	"fmt"
)

// PageRole is the page-level access level (native PostgreSQL check constraint).
// Schema: page_members.role IN ('blocked', 'reader', 'writer', 'admin')
//
// BLOCKED is an explicit denial and sorts below every granting role.
type PageRole string

const (
	PageRoleBlocked PageRole = "blocked"
	PageRoleReader  PageRole = "reader"
	PageRoleWriter  PageRole = "writer"
	PageRoleAdmin   PageRole = "admin"

	// PageRoleNone is the resolution outcome for a user with no space
	// membership at all. It is never persisted and never participates in
	// rank comparisons.
	PageRoleNone PageRole = "none"
)

// SpaceRole is the space-level access level. A space membership can never
// itself be blocked, so the value domain is the granting subset of PageRole.
type SpaceRole string

const (
	SpaceRoleReader SpaceRole = "reader"
	SpaceRoleWriter SpaceRole = "writer"
	SpaceRoleAdmin  SpaceRole = "admin"
)

// roleRank is the process-wide immutable ordering shared by both enums.
// Strict total order: no ties, blocked lowest.
var roleRank = map[PageRole]int{
	PageRoleBlocked: 1,
	PageRoleReader:  2,
	PageRoleWriter:  3,
	PageRoleAdmin:   4,
}

// Rank returns the position of the role in the hierarchy. Unknown values
// (including PageRoleNone) rank at 0, below BLOCKED.
func (p PageRole) Rank() int {
	return roleRank[p]
}

// Rank returns the position of the space role in the shared hierarchy.
func (s SpaceRole) Rank() int {
	return roleRank[PageRole(s)]
}

// IsValid reports whether the value is a persistable page role.
func (p PageRole) IsValid() bool {
	switch p {
	case PageRoleBlocked, PageRoleReader, PageRoleWriter, PageRoleAdmin:
		return true
	}
	return false
}

// IsValid reports whether the value is a known space role.
func (s SpaceRole) IsValid() bool {
	switch s {
	case SpaceRoleReader, SpaceRoleWriter, SpaceRoleAdmin:
		return true
	}
	return false
}

// PageRole maps the space role into the page-role value domain.
func (s SpaceRole) PageRole() PageRole {
	return PageRole(s)
}

// HighestPageRole returns the max-rank role of a non-empty set.
// Deterministic: equal inputs always yield the same output.
func HighestPageRole(roles []PageRole) PageRole {
	highest := roles[0]
	for _, r := range roles[1:] {
		if r.Rank() > highest.Rank() {
			highest = r
		}
	}
	return highest
}

// HighestSpaceRole aggregates a user's space memberships (own plus every
// group membership) into the single applicable role. Returns false when the
// user holds no membership in the space.
func HighestSpaceRole(roles []SpaceRole) (SpaceRole, bool) {
	if len(roles) == 0 {
		return "", false
	}
	highest := roles[0]
	for _, r := range roles[1:] {
		if r.Rank() > highest.Rank() {
			highest = r
		}
	}
	return highest, true
}

// IsEquivalentRole reports whether a page override would merely restate the
// inherited space role. BLOCKED is never equivalent to any space role.
func IsEquivalentRole(pageRole PageRole, spaceRole SpaceRole) bool {
	if pageRole == PageRoleBlocked {
		return false
	}
	return pageRole.Rank() == spaceRole.Rank()
}

// CanAssignRole reports whether a page override with pageRole is legal for a
// principal whose comparison space role is spaceRole. BLOCKED is always
// settable; any other role must not elevate above the space role.
// hasSpaceRole is false when the principal holds no membership in the space,
// in which case only BLOCKED may be assigned.
func CanAssignRole(spaceRole SpaceRole, hasSpaceRole bool, pageRole PageRole) bool {
	if pageRole == PageRoleBlocked {
		return true
	}
	if !hasSpaceRole {
		return false
	}
	return pageRole.Rank() <= spaceRole.Rank()
}

// Scan implements sql.Scanner for reading the role column.
func (p *PageRole) Scan(src interface{}) error {
	if src == nil {
		return fmt.Errorf("page role cannot be null")
	}

	var str string
	switch v := src.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return fmt.Errorf("cannot scan %T into PageRole", src)
	}

	*p = PageRole(str)
	if !p.IsValid() {
		return fmt.Errorf("invalid PageRole value: %s", str)
	}
	return nil
}

// Value implements driver.Valuer for writing the role column.
func (p PageRole) Value() (driver.Value, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("invalid PageRole value: %s", string(p))
	}
	return string(p), nil
}

// Scan implements sql.Scanner for reading space member roles.
func (s *SpaceRole) Scan(src interface{}) error {
	if src == nil {
		return fmt.Errorf("space role cannot be null")
	}

	var str string
	switch v := src.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return fmt.Errorf("cannot scan %T into SpaceRole", src)
	}

	*s = SpaceRole(str)
	if !s.IsValid() {
		return fmt.Errorf("invalid SpaceRole value: %s", str)
	}
	return nil
}

// Value implements driver.Valuer for writing space member roles.
func (s SpaceRole) Value() (driver.Value, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid SpaceRole value: %s", string(s))
	}
	return string(s), nil
}
