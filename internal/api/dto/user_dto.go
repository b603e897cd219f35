package dto

import (
	"time"

	"github.com/spec-kit/crm-service/internal/domain"
)

// RegisterRequest payload for new users.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdateRequest is the body of PATCH /profile. Role is accepted only so
// the self-role guard can reject it.
type ProfileUpdateRequest struct {
	Name     *string `json:"name"`
	Role     *string `json:"role"`
	Password *string `json:"password"`
}

// AdminUserUpdateRequest is the body of PATCH /admin/users/:id.
type AdminUserUpdateRequest struct {
	Name     *string `json:"name"`
	Role     *string `json:"role"`
	Password *string `json:"password"`
}

// UserUpdate converts a partial-update payload to the domain form.
func UserUpdate(name, role, password *string) domain.UserUpdate {
	update := domain.UserUpdate{Name: name, Password: password}
	if role != nil {
		r := domain.Role(*role)
		update.Role = &r
	}
	return update
}

// ToDomain converts the payload.
func (r ProfileUpdateRequest) ToDomain() domain.UserUpdate {
	return UserUpdate(r.Name, r.Role, r.Password)
}

// ToDomain converts the payload.
func (r AdminUserUpdateRequest) ToDomain() domain.UserUpdate {
	return UserUpdate(r.Name, r.Role, r.Password)
}

// UserResponse is the public view of an account. It never carries the hash.
type UserResponse struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	AvatarURL *string     `json:"avatar_url"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
	}
}

// NewUserList maps a page of users.
func NewUserList(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, NewUserResponse(&users[i]))
	}
	return out
}

// SessionResponse describes the caller's active session.
type SessionResponse struct {
	UserID    int64       `json:"user_id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	AvatarURL *string     `json:"avatar_url"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// NewSessionResponse maps a session.
func NewSessionResponse(s *domain.Session) SessionResponse {
	return SessionResponse{
		UserID:    s.UserID,
		Name:      s.Name,
		Email:     s.Email,
		Role:      s.Role,
		AvatarURL: s.AvatarURL,
		ExpiresAt: s.ExpiresAt,
	}
}

// IdentityResponse is the user summary returned on login.
type IdentityResponse struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	AvatarURL *string     `json:"avatar_url"`
}

func NewIdentityResponse(id domain.Identity) IdentityResponse {
	return IdentityResponse{
		ID:        id.ID,
		Name:      id.Name,
		Email:     id.Email,
		Role:      id.Role,
		AvatarURL: id.AvatarURL,
	}
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
