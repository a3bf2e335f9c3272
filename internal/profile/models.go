package profile

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleOrganizer Role = "organizer"
)

func (r Role) String() string {
	return string(r)
}

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleOrganizer
}

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleOrganizer:
		return RoleOrganizer, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// RoleForCount assigns the role of a new identity from the number of
// profiles that existed before it signed up.
func RoleForCount(existing int) Role {
	if existing == 0 {
		return RoleAdmin
	}
	return RoleOrganizer
}

// Identity is the profile row of an authenticated user.
type Identity struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

func (i *Identity) Validate() error {
	if !i.Role.IsValid() {
		return fmt.Errorf("profile %s has invalid role %q", i.ID, i.Role)
	}
	return nil
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
