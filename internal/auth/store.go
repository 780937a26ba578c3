package auth

import (
	"context"
	"time"
)

// Staff roles. Any authenticated role may read; RequireRoles narrows writes.
const (
	RoleAdmin        = "admin"
	RoleDoctor       = "doctor"
	RoleNurse        = "nurse"
	RoleReceptionist = "receptionist"
)

const StatusActive = "active"

type User struct {
	ID           string     `json:"id" bson:"_id"`
	Username     string     `json:"username" bson:"username"`
	Email        string     `json:"email" bson:"email"`
	PasswordHash string     `json:"-" bson:"passwordHash"`
	Roles        []string   `json:"roles" bson:"roles"`
	Status       string     `json:"status" bson:"status"`
	LastLogin    *time.Time `json:"last_login,omitempty" bson:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"created_at" bson:"createdAt"`
	UpdatedAt    time.Time  `json:"updated_at" bson:"updatedAt"`
}

// UserStore persists staff accounts. Create returns ErrDuplicateUser when the
// username or email is taken.
type UserStore interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}
