package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStore defines persistence operations for users.
type UserStore interface {
	GetByLogin(ctx context.Context, login string) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	Create(ctx context.Context, user User) (User, error)
}

// User is an account owning replicated zones. VaultSalt is the master key
// derivation salt shared by all of the user's devices; the server never
// sees the passphrase it is used with.
type User struct {
	ID           uuid.UUID
	Login        string
	PasswordHash []byte
	PasswordSalt []byte
	VaultSalt    []byte
	KDF          []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// KDFParams are argon2id parameters for account password verifiers.
type KDFParams struct {
	Time   uint32 `json:"time"`
	MemKiB uint32 `json:"mem_kib"`
	Par    uint8  `json:"par"`
}

// Session is the result of a successful signup or login.
type Session struct {
	UserID       uuid.UUID
	AccessToken  string
	RefreshToken string
	VaultSalt    []byte
}
