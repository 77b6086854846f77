package handler

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/credsync/internal/api/grpc/wire"
	"github.com/dtroode/credsync/internal/mocks"
	"github.com/dtroode/credsync/internal/model"
	"github.com/dtroode/credsync/internal/testutil"
)

func TestAuth_Signup(t *testing.T) {
	ctx := context.Background()
	svc := mocks.NewAuthService(t)
	h := NewAuth(svc, testutil.MakeNoopLogger())

	session := model.Session{UserID: uuid.New(), AccessToken: "a", RefreshToken: "r", VaultSalt: []byte("salt")}
	svc.On("Signup", mock.Anything, "alice", "pw").Return(session, nil)

	out, err := h.Signup(ctx, encode(t, wire.Credentials{Login: "alice", Password: "pw"}))
	require.NoError(t, err)

	got := decode[wire.Session](t, out)
	assert.Equal(t, session, got.Model())
}

func TestAuth_Signup_Taken(t *testing.T) {
	ctx := context.Background()
	svc := mocks.NewAuthService(t)
	h := NewAuth(svc, testutil.MakeNoopLogger())

	svc.On("Signup", mock.Anything, "alice", "pw").Return(model.Session{}, model.ErrLoginTaken)

	_, err := h.Signup(ctx, encode(t, wire.Credentials{Login: "alice", Password: "pw"}))
	assert.Equal(t, codes.AlreadyExists, status.Code(err))
}

func TestAuth_Login(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		in     wire.Credentials
		svcErr error
		call   bool
		code   codes.Code
	}{
		{name: "ok", in: wire.Credentials{Login: "alice", Password: "pw"}, call: true, code: codes.OK},
		{name: "wrong password", in: wire.Credentials{Login: "alice", Password: "pw"}, svcErr: model.ErrInvalidCredentials, call: true, code: codes.Unauthenticated},
		{name: "empty password", in: wire.Credentials{Login: "alice"}, code: codes.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := mocks.NewAuthService(t)
			h := NewAuth(svc, testutil.MakeNoopLogger())
			if tt.call {
				svc.On("Login", mock.Anything, tt.in.Login, tt.in.Password).Return(model.Session{UserID: uuid.New()}, tt.svcErr)
			}

			_, err := h.Login(ctx, encode(t, tt.in))
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestAuth_Refresh(t *testing.T) {
	ctx := context.Background()
	svc := mocks.NewAuthService(t)
	h := NewAuth(svc, testutil.MakeNoopLogger())

	svc.On("Refresh", mock.Anything, "old").Return(model.Session{AccessToken: "a2", RefreshToken: "r2"}, nil).Once()
	svc.On("Refresh", mock.Anything, "stale").Return(model.Session{}, model.ErrTokenRevoked).Once()

	out, err := h.Refresh(ctx, encode(t, wire.RefreshRequest{RefreshToken: "old"}))
	require.NoError(t, err)
	assert.Equal(t, "r2", decode[wire.Session](t, out).RefreshToken)

	_, err = h.Refresh(ctx, encode(t, wire.RefreshRequest{RefreshToken: "stale"}))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = h.Refresh(ctx, encode(t, wire.RefreshRequest{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
