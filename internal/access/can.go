package access

import "slices"

type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionAssign Action = "assign"
)

// TaskScope is the part of a task the permission check needs.
type TaskScope struct {
	Team []string
}

// Can reports whether id may perform action on a task with the given scope.
//
// Admins short-circuit here, before any action branch. The delete branch itself only
// looks at canDeleteTasks.
func Can(id Identity, action Action, scope TaskScope) bool {
	if id.IsAdmin {
		return true
	}
	if action == ActionView {
		return true
	}

	member := slices.Contains(scope.Team, id.UserID)

	switch action {
	case ActionCreate:
		return id.Permissions.CanCreateTasks
	case ActionEdit:
		return id.Permissions.CanEditAllTasks || member
	case ActionDelete:
		return id.Permissions.CanDeleteTasks
	case ActionAssign:
		return id.Permissions.CanAssignTasks
	default:
		return false
	}
}

// CanManageProjects covers project create and delete: admins only.
func CanManageProjects(id Identity) bool {
	return id.IsAdmin
}

// CanUpdateProject covers project name/description/team edits.
func CanUpdateProject(id Identity) bool {
	if id.IsAdmin {
		return true
	}

	return id.Role == RoleManager && id.Permissions.CanAddTeamMember
}

// CanViewAllTasks decides whether task listings are scoped to the caller's teams.
func CanViewAllTasks(id Identity) bool {
	return id.IsAdmin || id.Permissions.CanViewAllTasks
}
