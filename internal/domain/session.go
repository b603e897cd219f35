package domain

import "time"

// Identity is the minimal claim set derived from a verified user.
// It never carries the password hash.
type Identity struct {
	ID        int64
	Name      string
	Email     string
	Role      Role
	AvatarURL *string
}

// Session is an authenticated caller.
type Session struct {
	ID        string
	UserID    int64
	Name      string
	Email     string
	Role      Role
	AvatarURL *string
	ExpiresAt time.Time
}
