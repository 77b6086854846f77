package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/credsync/internal/model"
)

func TestJWT_AccessToken_Roundtrip(t *testing.T) {
	j := NewJWT("secret")
	u := uuid.New()

	access, err := j.GenerateAccessToken(u)
	require.NoError(t, err)
	got, err := j.ParseAccessToken(access)
	require.NoError(t, err)
	require.Equal(t, u, got)
}

func TestJWT_RefreshToken_Roundtrip(t *testing.T) {
	j := NewJWT("secret")
	u := uuid.New()

	refresh, jti, err := j.GenerateRefreshToken(u)
	require.NoError(t, err)
	require.NotEmpty(t, jti)

	gotUser, gotJTI, err := j.ParseRefreshToken(refresh)
	require.NoError(t, err)
	require.Equal(t, u, gotUser)
	require.Equal(t, jti, gotJTI)
}

func TestJWT_Rejects(t *testing.T) {
	u := uuid.New()
	j := NewJWT("secret")

	access, err := j.GenerateAccessToken(u)
	require.NoError(t, err)
	refresh, _, err := j.GenerateRefreshToken(u)
	require.NoError(t, err)

	expired := NewJWTWithTTL("secret", time.Minute, time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, err := expired.GenerateAccessToken(u)
	require.NoError(t, err)

	forged, err := NewJWT("other-secret").GenerateAccessToken(u)
	require.NoError(t, err)

	tests := []struct {
		name  string
		parse func() error
	}{
		{
			name: "access token used as refresh",
			parse: func() error {
				_, _, err := j.ParseRefreshToken(access)
				return err
			},
		},
		{
			name: "refresh token used as access",
			parse: func() error {
				_, err := j.ParseAccessToken(refresh)
				return err
			},
		},
		{
			name: "expired",
			parse: func() error {
				_, err := j.ParseAccessToken(stale)
				return err
			},
		},
		{
			name: "wrong secret",
			parse: func() error {
				_, err := j.ParseAccessToken(forged)
				return err
			},
		},
		{
			name: "garbage",
			parse: func() error {
				_, err := j.ParseAccessToken("not-a-token")
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.parse()
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrInvalidToken)
		})
	}
}
