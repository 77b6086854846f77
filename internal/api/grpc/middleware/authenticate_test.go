package middleware

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dtroode/credsync/internal/mocks"
	"github.com/dtroode/credsync/internal/model"
	"github.com/dtroode/credsync/internal/testutil"
)

func TestAuthenticate_AuthFunc(t *testing.T) {
	t.Parallel()

	owner := uuid.New()

	tests := []struct {
		name       string
		header     string
		resolvedID uuid.UUID
		resolveErr error
		callsToken bool
		wantOK     bool
	}{
		{
			name: "missing authorization header",
		},
		{
			name:   "wrong scheme",
			header: "Basic dXNlcjpwYXNz",
		},
		{
			name:       "invalid token",
			header:     "Bearer invalid",
			resolveErr: model.ErrInvalidToken,
			callsToken: true,
		},
		{
			name:       "nil user id from token",
			header:     "Bearer token",
			resolvedID: uuid.Nil,
			callsToken: true,
		},
		{
			name:       "valid token",
			header:     "Bearer token",
			resolvedID: owner,
			callsToken: true,
			wantOK:     true,
		},
		{
			name:       "lower case scheme",
			header:     "bearer token",
			resolvedID: owner,
			callsToken: true,
			wantOK:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tokens := mocks.NewTokenResolver(t)
			if tt.callsToken {
				tokens.On("GetUserID", mock.Anything, mock.AnythingOfType("string")).Return(tt.resolvedID, tt.resolveErr)
			}

			cm := mocks.NewContextManager(t)
			if tt.wantOK {
				cm.On("WithOwner", mock.Anything, owner).Return(context.Background())
			}

			ctx := context.Background()
			if tt.header != "" {
				ctx = metadata.NewIncomingContext(ctx, metadata.Pairs("authorization", tt.header))
			}

			m := NewAuthenticate(tokens, cm, testutil.MakeNoopLogger())
			got, err := m.AuthFunc(ctx)

			if tt.wantOK {
				require.NoError(t, err)
				assert.NotNil(t, got)
				return
			}
			require.Error(t, err)
			assert.Nil(t, got)
			assert.Equal(t, codes.Unauthenticated, status.Code(err))
		})
	}
}
