package model

import (
	"context"
	"io"
	"net"

	"github.com/google/uuid"
)

// ContextManager stores the authenticated owner in a request context.
type ContextManager interface {
	WithOwner(ctx context.Context, owner uuid.UUID) context.Context
	Owner(ctx context.Context) (uuid.UUID, bool)
}

type SecurityLayer interface {
	Listen(protocol, addr string) (net.Listener, error)
}

type Server interface {
	Start(securityLayer SecurityLayer) error
	Stop(ctx context.Context) error
	Address() string
}

// TokenManager generates and validates access/refresh tokens.
type TokenManager interface {
	GenerateAccessToken(userID uuid.UUID) (string, error)
	GenerateRefreshToken(userID uuid.UUID) (token string, jti string, err error)
	ParseAccessToken(token string) (uuid.UUID, error)
	ParseRefreshToken(token string) (userID uuid.UUID, jti string, err error)
}

// SnapshotStorage keeps opaque zone snapshots in object storage.
type SnapshotStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}
