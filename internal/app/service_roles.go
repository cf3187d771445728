package app

import (
	"context"
	"log"
	"net/http"
	"strings"

	"cardstack/api/internal/rbac"
)

// AssignRole grants a role to a user. Only superadmin callers may assign,
// and only the grantable roles are accepted. users.role is the single
// authoritative store; tokens issued after this call carry the new role.
func (s *Service) AssignRole(ctx context.Context, caller Session, uid, role string) error {
	if rbac.Normalize(caller.Role) != rbac.RoleSuperadmin {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}

	uid = strings.TrimSpace(uid)
	if uid == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "uid is required", nil)
	}
	if !rbac.Assignable(role) {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "role must be manager or superadmin", nil)
	}

	if err := s.store.UpdateUserRole(ctx, uid, role); err != nil {
		return err
	}

	// Notification is best-effort; the grant already happened.
	if s.email != nil && s.email.IsConfigured() {
		if user, err := s.store.GetUserByID(ctx, uid); err == nil && user.Email != "" {
			go func(to, name, role string) {
				if err := s.email.SendRoleGrantEmail(to, name, role); err != nil {
					log.Printf("app: role grant email to %s: %v", to, err)
				}
			}(user.Email, user.DisplayName, role)
		}
	}
	return nil
}
