package domain

import "time"

// Page is a node in the space's page forest. ParentPageID is nil for roots;
// parent links never cross spaces.
type Page struct {
	ID           string     `json:"id" db:"id"`
	SpaceID      string     `json:"spaceId" db:"space_id"`
	WorkspaceID  string     `json:"workspaceId" db:"workspace_id"`
	ParentPageID *string    `json:"parentPageId,omitempty" db:"parent_page_id"`
	Title        string     `json:"title" db:"title"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" db:"updated_at"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty" db:"deleted_at"`
}

// SpaceMember is a membership row granting a space role to a user or group.
// Principal columns follow the same XOR constraint as page overrides.
type SpaceMember struct {
	ID        string    `json:"id" db:"id"`
	SpaceID   string    `json:"spaceId" db:"space_id"`
	UserID    *string   `json:"userId,omitempty" db:"user_id"`
	GroupID   *string   `json:"groupId,omitempty" db:"group_id"`
	Role      SpaceRole `json:"role" db:"role"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// User is the workspace-scoped account referenced by overrides and
// memberships. Only display fields needed by permission listings are carried.
type User struct {
	ID          string  `json:"id" db:"id"`
	WorkspaceID string  `json:"workspaceId" db:"workspace_id"`
	Name        string  `json:"name" db:"name"`
	Email       string  `json:"email" db:"email"`
	AvatarURL   *string `json:"avatarUrl,omitempty" db:"avatar_url"`
}

// Group is a named set of users inside a workspace.
type Group struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspaceId" db:"workspace_id"`
	Name        string `json:"name" db:"name"`
	IsDefault   bool   `json:"isDefault" db:"is_default"`
}
