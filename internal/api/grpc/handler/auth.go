package handler

import (
	"context"

	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dtroode/credsync/internal/api/grpc/wire"
	"github.com/dtroode/credsync/internal/logger"
	"github.com/dtroode/credsync/internal/model"
)

// AuthService defines account registration, login and token rotation.
type AuthService interface {
	Signup(ctx context.Context, login, password string) (model.Session, error)
	Login(ctx context.Context, login, password string) (model.Session, error)
	Refresh(ctx context.Context, refreshToken string) (model.Session, error)
}

// Auth handles credsync.v1.Auth.
type Auth struct {
	wire.UnimplementedAuthServer
	authService AuthService
	logger      *logger.Logger
}

// NewAuth creates a new Auth handler.
func NewAuth(authService AuthService, logger *logger.Logger) *Auth {
	return &Auth{
		authService: authService,
		logger:      logger,
	}
}

// Signup registers an account and returns its first session.
func (h *Auth) Signup(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	var req wire.Credentials
	if err := wire.Decode(in, &req); err != nil {
		return nil, handleError(err)
	}

	h.logger.Debug("Auth handler: processing signup",
		"login", req.Login)

	session, err := h.authService.Signup(ctx, req.Login, req.Password)
	if err != nil {
		h.logger.Error("Auth handler: signup failed",
			"login", req.Login,
			"error", err.Error())
		return nil, handleError(err)
	}

	h.logger.Info("Auth handler: signup completed",
		"login", req.Login,
		"user_id", session.UserID)

	return wire.Encode(wire.SessionFromModel(session))
}

// Login exchanges account credentials for a session.
func (h *Auth) Login(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	var req wire.Credentials
	if err := wire.Decode(in, &req); err != nil {
		return nil, handleError(err)
	}

	session, err := h.authService.Login(ctx, req.Login, req.Password)
	if err != nil {
		h.logger.Info("Auth handler: login failed",
			"login", req.Login,
			"error", err.Error())
		return nil, handleError(err)
	}

	return wire.Encode(wire.SessionFromModel(session))
}

// Refresh rotates a refresh token.
func (h *Auth) Refresh(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	var req wire.RefreshRequest
	if err := wire.Decode(in, &req); err != nil {
		return nil, handleError(err)
	}

	session, err := h.authService.Refresh(ctx, req.RefreshToken)
	if err != nil {
		h.logger.Info("Auth handler: refresh failed",
			"error", err.Error())
		return nil, handleError(err)
	}

	return wire.Encode(wire.SessionFromModel(session))
}
