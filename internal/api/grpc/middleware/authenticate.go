package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dtroode/credsync/internal/logger"
	"github.com/dtroode/credsync/internal/model"
)

var (
	errMissingToken = errors.New("missing authorization token")
	errInvalidToken = errors.New("invalid authorization token")
)

// TokenResolver resolves the owner of a bearer token.
type TokenResolver interface {
	GetUserID(ctx context.Context, token string) (uuid.UUID, error)
}

// Authenticate validates bearer tokens and stores the owner in the context.
type Authenticate struct {
	tokens         TokenResolver
	contextManager model.ContextManager
	logger         *logger.Logger
}

func NewAuthenticate(tokens TokenResolver, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{tokens: tokens, contextManager: contextManager, logger: logger}
}

// AuthFunc is a go-grpc-middleware auth.AuthFunc.
func (m *Authenticate) AuthFunc(ctx context.Context) (context.Context, error) {
	userID, err := m.resolve(ctx, bearerToken(ctx))
	if err != nil {
		m.logger.Debug("Authenticate: rejected request",
			"error", err.Error())
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	return m.contextManager.WithOwner(ctx, userID), nil
}

func bearerToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return ""
	}
	scheme, token, found := strings.Cut(values[0], " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func (m *Authenticate) resolve(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, errMissingToken
	}

	userID, err := m.tokens.GetUserID(ctx, token)
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, errInvalidToken
	}

	return userID, nil
}
