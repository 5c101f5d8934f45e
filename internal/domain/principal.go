package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidPrincipal is returned when a request populates both or neither
// of userId/groupId. It is a contract violation, never retried.
var ErrInvalidPrincipal = errors.New("exactly one of userId or groupId must be provided")

// PrincipalKind discriminates the two subjects an override can target.
type PrincipalKind string

const (
	PrincipalUser  PrincipalKind = "user"
	PrincipalGroup PrincipalKind = "group"
)

// Principal is a closed sum type: an override targets either a user or a
// group, never both. The zero value is invalid; construct via UserPrincipal,
// GroupPrincipal, or ParsePrincipal so the exactly-one-of invariant is
// enforced at the boundary instead of by convention on two nullable fields.
type Principal struct {
	kind PrincipalKind
	id   string
}

// UserPrincipal builds a user-targeted principal.
func UserPrincipal(userID string) Principal {
	return Principal{kind: PrincipalUser, id: userID}
}

// GroupPrincipal builds a group-targeted principal.
func GroupPrincipal(groupID string) Principal {
	return Principal{kind: PrincipalGroup, id: groupID}
}

// ParsePrincipal validates the wire representation (two optional ids) into
// the sum type. Both set or neither set yields ErrInvalidPrincipal.
func ParsePrincipal(userID, groupID *string) (Principal, error) {
	hasUser := userID != nil && *userID != ""
	hasGroup := groupID != nil && *groupID != ""

	switch {
	case hasUser && hasGroup:
		return Principal{}, fmt.Errorf("%w: both were set", ErrInvalidPrincipal)
	case hasUser:
		return UserPrincipal(*userID), nil
	case hasGroup:
		return GroupPrincipal(*groupID), nil
	default:
		return Principal{}, fmt.Errorf("%w: neither was set", ErrInvalidPrincipal)
	}
}

// Kind returns the discriminant.
func (p Principal) Kind() PrincipalKind {
	return p.kind
}

// ID returns the user or group id, depending on Kind.
func (p Principal) ID() string {
	return p.id
}

// IsUser reports whether the principal targets an individual user.
func (p Principal) IsUser() bool {
	return p.kind == PrincipalUser
}

// IsGroup reports whether the principal targets a group.
func (p Principal) IsGroup() bool {
	return p.kind == PrincipalGroup
}

// UserID returns the id for user principals, nil otherwise. Used when
// splitting the sum type back into the two nullable storage columns.
func (p Principal) UserID() *string {
	if p.kind == PrincipalUser {
		id := p.id
		return &id
	}
	return nil
}

// GroupID returns the id for group principals, nil otherwise.
func (p Principal) GroupID() *string {
	if p.kind == PrincipalGroup {
		id := p.id
		return &id
	}
	return nil
}

// String implements fmt.Stringer for log fields.
func (p Principal) String() string {
	return string(p.kind) + ":" + p.id
}
