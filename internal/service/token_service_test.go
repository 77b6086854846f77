package service

import (
	"context"
	"crypto/sha256"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	servermocks "github.com/dtroode/credsync/internal/mocks"
	"github.com/dtroode/credsync/internal/model"
	"github.com/dtroode/credsync/internal/testutil"
)

func TestTokenService_Issue(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	manager := servermocks.NewTokenManager(t)
	store := servermocks.NewRefreshTokenStore(t)

	manager.On("GenerateAccessToken", userID).Return("access", nil).Once()
	manager.On("GenerateRefreshToken", userID).Return("refresh", "jti-1", nil).Once()
	store.On("Create", ctx, mock.Anything).Return(nil).Maybe()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	access, refresh, err := svc.Issue(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "access", access)
	assert.Equal(t, "refresh", refresh)
}

func TestTokenService_Issue_ManagerError(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	manager := servermocks.NewTokenManager(t)
	store := servermocks.NewRefreshTokenStore(t)

	manager.On("GenerateAccessToken", userID).Return("", assert.AnError).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	_, _, err := svc.Issue(ctx, userID)
	require.Error(t, err)
}

func TestTokenService_Refresh_Rejected(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now()
	presented := "refresh"
	sum := sha256.Sum256([]byte(presented))
	other := sha256.Sum256([]byte("other"))

	live := model.RefreshToken{JTI: "jti", UserID: userID, TokenHash: sum[:], IssuedAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour)}
	revoked := live
	revoked.RevokedAt = &now
	expired := live
	expired.ExpiresAt = now.Add(-time.Minute)
	mismatched := live
	mismatched.TokenHash = other[:]

	tests := []struct {
		name    string
		stored  model.RefreshToken
		lookup  error
		revoke  error
		wantErr error
	}{
		{name: "revoked", stored: revoked, wantErr: model.ErrTokenRevoked},
		{name: "expired", stored: expired, wantErr: model.ErrTokenExpired},
		{name: "hash mismatch", stored: mismatched, wantErr: model.ErrTokenMismatch},
		{name: "unknown jti", lookup: model.ErrNotFound, wantErr: model.ErrInvalidToken},
		{name: "lost rotation race", stored: live, revoke: model.ErrTokenRevoked, wantErr: model.ErrTokenRevoked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := servermocks.NewTokenManager(t)
			store := servermocks.NewRefreshTokenStore(t)

			manager.On("ParseRefreshToken", presented).Return(userID, "jti", nil).Once()
			store.On("GetByJTI", ctx, "jti").Return(tt.stored, tt.lookup).Once()
			if tt.revoke != nil {
				store.On("RevokeByJTI", ctx, "jti").Return(tt.revoke).Once()
			}

			svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

			_, _, err := svc.Refresh(ctx, presented)
			require.ErrorIs(t, err, tt.wantErr)
			manager.AssertNotCalled(t, "GenerateAccessToken", mock.Anything)
			store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestTokenService_Refresh_BadToken(t *testing.T) {
	manager := servermocks.NewTokenManager(t)
	store := servermocks.NewRefreshTokenStore(t)
	manager.On("ParseRefreshToken", "garbage").Return(uuid.Nil, "", model.ErrInvalidToken).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	_, _, err := svc.Refresh(context.Background(), "garbage")
	require.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestTokenService_RevokeByToken(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	jti := "jti"
	presented := "refresh"
	manager := servermocks.NewTokenManager(t)
	store := servermocks.NewRefreshTokenStore(t)

	manager.On("ParseRefreshToken", presented).Return(userID, jti, nil).Once()
	store.On("RevokeByJTI", ctx, jti).Return(nil).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	require.NoError(t, svc.RevokeByToken(ctx, presented))
}

func TestTokenService_GetUserID(t *testing.T) {
	manager := servermocks.NewTokenManager(t)
	store := servermocks.NewRefreshTokenStore(t)

	u := uuid.New()
	manager.On("ParseAccessToken", "access").Return(u, nil).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	got, err := svc.GetUserID(context.Background(), "access")
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestTokenService_RevokeAllForUser(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	for _, storeErr := range []error{nil, assert.AnError} {
		store := servermocks.NewRefreshTokenStore(t)
		store.On("RevokeAllByUser", ctx, userID).Return(storeErr).Once()

		svc := NewTokenService(servermocks.NewTokenManager(t), store, testutil.MakeNoopLogger())
		assert.Equal(t, storeErr, svc.RevokeAllForUser(ctx, userID))
	}
}

func TestTokenService_Refresh_ChainsRotation(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	presented := "refresh-old"
	h := sha256.Sum256([]byte(presented))

	manager := servermocks.NewTokenManager(t)
	store := servermocks.NewRefreshTokenStore(t)

	manager.On("ParseRefreshToken", presented).Return(userID, "jti-old", nil).Once()
	store.On("GetByJTI", ctx, "jti-old").Return(model.RefreshToken{
		JTI:       "jti-old",
		UserID:    userID,
		TokenHash: h[:],
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil).Once()
	store.On("RevokeByJTI", ctx, "jti-old").Return(nil).Once()
	manager.On("GenerateAccessToken", userID).Return("access-new", nil).Once()
	manager.On("GenerateRefreshToken", userID).Return("refresh-new", "jti-new", nil).Once()
	store.On("Create", ctx, mock.MatchedBy(func(rt model.RefreshToken) bool {
		newHash := sha256.Sum256([]byte("refresh-new"))
		return rt.JTI == "jti-new" &&
			rt.RotatedFromJTI != nil && *rt.RotatedFromJTI == "jti-old" &&
			assert.ObjectsAreEqual(newHash[:], rt.TokenHash)
	})).Return(nil).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	_, refresh, err := svc.Refresh(ctx, presented)
	require.NoError(t, err)
	assert.Equal(t, "refresh-new", refresh)
}

func TestTokenService_RunPruner(t *testing.T) {
	store := servermocks.NewRefreshTokenStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	store.On("PruneExpired", mock.Anything, mock.AnythingOfType("time.Time")).Return(int64(2), nil)

	log, buf := testutil.MakeBufferLogger()
	svc := NewTokenService(servermocks.NewTokenManager(t), store, log)

	done := make(chan struct{})
	go func() {
		svc.RunPruner(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "pruned expired refresh tokens")
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
	assert.Contains(t, buf.String(), `"count":2`)
}

func TestTokenService_RunPruner_Disabled(t *testing.T) {
	store := servermocks.NewRefreshTokenStore(t)
	svc := NewTokenService(servermocks.NewTokenManager(t), store, testutil.MakeNoopLogger())

	svc.RunPruner(context.Background(), 0)
	store.AssertNotCalled(t, "PruneExpired", mock.Anything, mock.Anything)
}
