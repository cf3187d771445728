package rbac

type Role string
type Action string

const (
	RoleUser       Role = "user"
	RoleStaff      Role = "staff"
	RoleManager    Role = "manager"
	RoleSuperadmin Role = "superadmin"
)

const (
	ActionRead            Action = "read"
	ActionUpload          Action = "upload"
	ActionPublish         Action = "publish"
	ActionManageTemplates Action = "manage_templates"
	ActionManageRoles     Action = "manage_roles"
	ActionAdmin           Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleSuperadmin:
		return true
	case RoleManager:
		return action == ActionRead || action == ActionUpload || action == ActionPublish
	case RoleStaff:
		return action == ActionRead || action == ActionUpload
	case RoleUser:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleUser, RoleStaff, RoleManager, RoleSuperadmin:
		return Role(role)
	default:
		return RoleUser
	}
}

// Assignable reports whether the role endpoint may grant the given role.
// Only the two elevated roles are grantable; staff/user are the defaults
// applied at account creation.
func Assignable(role string) bool {
	return Role(role) == RoleManager || Role(role) == RoleSuperadmin
}
