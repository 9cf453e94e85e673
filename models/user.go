package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorization role stored on a user row
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleModel      Role = "modelo"
)

// IsAdmin reports whether the role may administer calculators
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User represents an application user. Ids are issued by the auth provider.
type User struct {
	ID        uuid.UUID   `db:"id" json:"id"`
	Email     string      `db:"email" json:"email"`
	Name      string      `db:"name" json:"name"`
	Role      Role        `db:"role" json:"role"`
	IsActive  bool        `db:"is_active" json:"is_active"`
	GroupIDs  []uuid.UUID `db:"-" json:"group_ids"` // Loaded from user_groups
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// InGroup reports whether the user belongs to the given group
func (u *User) InGroup(groupID uuid.UUID) bool {
	for _, id := range u.GroupIDs {
		if id == groupID {
			return true
		}
	}
	return false
}

// SharesGroupWith reports whether both users have at least one group in common
func (u *User) SharesGroupWith(other *User) bool {
	for _, id := range other.GroupIDs {
		if u.InGroup(id) {
			return true
		}
	}
	return false
}

// Group is an organizational unit that models and admins belong to
type Group struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
