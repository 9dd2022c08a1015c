// Package access derives user capabilities from role and admin flag and answers
// whether an identity may perform an action on a task or project.
package access

import "strings"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// ParseRole accepts the three known roles, case-insensitively.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleManager:
		return RoleManager, true
	case RoleUser:
		return RoleUser, true
	}

	return "", false
}

type Permissions struct {
	CanViewAllTasks    bool `json:"canViewAllTasks"`
	CanCreateTasks     bool `json:"canCreateTasks"`
	CanEditAllTasks    bool `json:"canEditAllTasks"`
	CanDeleteTasks     bool `json:"canDeleteTasks"`
	CanAssignTasks     bool `json:"canAssignTasks"`
	CanViewAllProjects bool `json:"canViewAllProjects"`
	CanCreateProjects  bool `json:"canCreateProjects"`
	CanAddTeamMember   bool `json:"canAddTeamMember"`
	CanEditAllProjects bool `json:"canEditAllProjects"`
	CanDeleteProjects  bool `json:"canDeleteProjects"`
	CanAssignProjects  bool `json:"canAssignProjects"`
}

// All returns the permission set with every capability granted.
func All() Permissions {
	return Permissions{
		CanViewAllTasks:    true,
		CanCreateTasks:     true,
		CanEditAllTasks:    true,
		CanDeleteTasks:     true,
		CanAssignTasks:     true,
		CanViewAllProjects: true,
		CanCreateProjects:  true,
		CanAddTeamMember:   true,
		CanEditAllProjects: true,
		CanDeleteProjects:  true,
		CanAssignProjects:  true,
	}
}

// Defaults returns the permission set a non-admin user of the given role starts with.
func Defaults(role Role) Permissions {
	switch role {
	case RoleManager:
		return Permissions{
			CanViewAllTasks: true,
			CanCreateTasks:  true,
			CanEditAllTasks: true,
			CanAssignTasks:  true,
		}
	default:
		return Permissions{CanCreateTasks: true}
	}
}

// Derive must be called whenever role or the admin flag is written.
// The admin flag wins over whatever role was requested, and the admin role is
// never handed out without it.
func Derive(role Role, isAdmin bool) (Role, Permissions) {
	if isAdmin {
		return RoleAdmin, All()
	}
	if _, ok := ParseRole(string(role)); !ok || role == RoleAdmin {
		role = RoleUser
	}

	return role, Defaults(role)
}

// Identity is the already-authenticated caller every manager operation receives.
type Identity struct {
	UserID      string
	Role        Role
	IsAdmin     bool
	Permissions Permissions
}

// NewIdentity builds an Identity from stored user fields. A stored permission set is
// never trusted for admins.
func NewIdentity(userID string, role Role, isAdmin bool, perms Permissions) Identity {
	if isAdmin {
		role, perms = Derive(role, true)
	}

	return Identity{
		UserID:      userID,
		Role:        role,
		IsAdmin:     isAdmin,
		Permissions: perms,
	}
}
