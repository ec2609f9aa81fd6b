package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User roles.
const (
	RoleAdmin  = "admin"
	RoleReader = "reader"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string    `bun:",pk" json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Email        string    `bun:",nullzero" json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // Never expose password hash
	Role         string    `bun:",nullzero" json:"role"`
	IsActive     bool      `json:"isActive"`
}

// IsAdmin reports whether the user can manage the catalog and other users.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanAccessUser reports whether u may read or write data owned by userID.
func (u *User) CanAccessUser(userID string) bool {
	return u.ID == userID || u.IsAdmin()
}

// SignupOTP is a pending signup waiting for its one-time code to be
// verified. There is at most one per email.
type SignupOTP struct {
	bun.BaseModel `bun:"table:signup_otps,alias:so"`

	ID           int       `bun:",pk,autoincrement" json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	Email        string    `bun:",nullzero" json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CodeHash     string    `json:"-"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Attempts     int       `json:"attempts"`
}

// IsExpired reports whether the code can no longer be used at now.
func (o *SignupOTP) IsExpired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}
