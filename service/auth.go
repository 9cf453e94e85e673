package service

import (
	"fmt"

	"earnings/models"
)

// AdminRoles are the roles allowed to administer calculators
var AdminRoles = []models.Role{models.RoleAdmin, models.RoleSuperAdmin}

// RequireRole checks that caller is an active user holding one of roles
func RequireRole(caller *models.User, roles ...models.Role) error {
	if caller == nil {
		return fmt.Errorf("%w: missing caller", ErrUnauthorized)
	}
	if !caller.IsActive {
		return fmt.Errorf("%w: user %s is inactive", ErrForbidden, caller.ID)
	}
	for _, role := range roles {
		if caller.Role == role {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s is not allowed", ErrForbidden, caller.Role)
}

// RequireModelAccess checks that caller may act on model's calculator.
// Models reach only themselves, admins reach models sharing a group and
// super admins reach everyone.
func RequireModelAccess(caller *models.User, model *models.User) error {
	if caller == nil {
		return fmt.Errorf("%w: missing caller", ErrUnauthorized)
	}
	if !caller.IsActive {
		return fmt.Errorf("%w: user %s is inactive", ErrForbidden, caller.ID)
	}

	switch caller.Role {
	case models.RoleSuperAdmin:
		return nil
	case models.RoleAdmin:
		if caller.SharesGroupWith(model) {
			return nil
		}
		return fmt.Errorf("%w: model %s is outside your groups", ErrForbidden, model.ID)
	default:
		if caller.ID == model.ID {
			return nil
		}
		return fmt.Errorf("%w: cannot access another model's calculator", ErrForbidden)
	}
}
