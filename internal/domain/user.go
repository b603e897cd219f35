package domain

import (
	"strings"
	"time"
)

// Role enumerates account privileges. There is no hierarchy between roles.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is an account that owns customers and can sign in.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	AvatarURL    *string
	CreatedAt    time.Time
}

// Identity returns the claim set produced by a successful credential check.
func (u *User) Identity() Identity {
	return Identity{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		AvatarURL: u.AvatarURL,
	}
}

// UserUpdate is a partial update of a user. A nil field is absent; a non-nil
// field is present even when it holds the current value.
type UserUpdate struct {
	Name     *string
	Role     *Role
	Password *string
}

// Normalize trims the update and drops fields that carry no value, the same way
// blank form inputs are ignored.
func (u UserUpdate) Normalize() UserUpdate {
	var out UserUpdate
	if u.Name != nil {
		if name := strings.TrimSpace(*u.Name); name != "" {
			out.Name = &name
		}
	}
	if u.Role != nil {
		if role := Role(strings.TrimSpace(string(*u.Role))); role != "" {
			out.Role = &role
		}
	}
	if u.Password != nil && *u.Password != "" {
		password := *u.Password
		out.Password = &password
	}
	return out
}

// IsEmpty reports whether no recognized field is present.
func (u UserUpdate) IsEmpty() bool {
	return u.Name == nil && u.Role == nil && u.Password == nil
}

// HasRole reports whether the update carries a role field.
func (u UserUpdate) HasRole() bool {
	return u.Role != nil
}

// UserFilter narrows administrative user listings.
type UserFilter struct {
	Role   *Role
	Limit  int
	Offset int
}
