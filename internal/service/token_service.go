package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/credsync/internal/logger"
	"github.com/dtroode/credsync/internal/model"
)

// refreshTTL bounds stored refresh tokens; it matches the token manager's
// refresh lifetime.
const refreshTTL = 30 * 24 * time.Hour

// TokenService issues, rotates and revokes token pairs on top of a
// TokenManager and a RefreshTokenStore.
type TokenService struct {
	manager model.TokenManager
	store   model.RefreshTokenStore
	logger  *logger.Logger
}

func NewTokenService(manager model.TokenManager, store model.RefreshTokenStore, logger *logger.Logger) *TokenService {
	return &TokenService{manager: manager, store: store, logger: logger}
}

func (s *TokenService) Issue(ctx context.Context, userID uuid.UUID) (accessToken string, refreshToken string, err error) {
	return s.issuePair(ctx, userID, nil)
}

// Refresh validates a presented refresh token, revokes it and returns a new
// pair chained to it.
func (s *TokenService) Refresh(ctx context.Context, presented string) (accessToken string, refreshToken string, err error) {
	userID, jti, err := s.manager.ParseRefreshToken(presented)
	if err != nil {
		return "", "", err
	}

	stored, err := s.store.GetByJTI(ctx, jti)
	if errors.Is(err, model.ErrNotFound) {
		return "", "", model.ErrInvalidToken
	}
	if err != nil {
		return "", "", err
	}

	if err := checkStored(stored, hashRefresh(presented), time.Now()); err != nil {
		s.logger.Warn("Token service: refresh rejected",
			"user_id", userID,
			"jti", jti,
			"error", err.Error())
		return "", "", err
	}

	if err := s.store.RevokeByJTI(ctx, jti); err != nil {
		return "", "", fmt.Errorf("revoke old refresh: %w", err)
	}

	return s.issuePair(ctx, userID, &stored.JTI)
}

func (s *TokenService) RevokeByToken(ctx context.Context, presented string) error {
	_, jti, err := s.manager.ParseRefreshToken(presented)
	if err != nil {
		return err
	}
	return s.store.RevokeByJTI(ctx, jti)
}

func (s *TokenService) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	return s.store.RevokeAllByUser(ctx, userID)
}

// RunPruner deletes expired refresh tokens every interval until ctx is done.
func (s *TokenService) RunPruner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.prune(ctx, now)
		}
	}
}

func (s *TokenService) prune(ctx context.Context, now time.Time) {
	n, err := s.store.PruneExpired(ctx, now)
	if err != nil {
		s.logger.Warn("Token service: prune failed", "error", err.Error())
		return
	}
	if n > 0 {
		s.logger.Info("Token service: pruned expired refresh tokens", "count", n)
	}
}

func (s *TokenService) GetUserID(_ context.Context, token string) (uuid.UUID, error) {
	return s.manager.ParseAccessToken(token)
}

func (s *TokenService) issuePair(ctx context.Context, userID uuid.UUID, rotatedFrom *string) (string, string, error) {
	access, err := s.manager.GenerateAccessToken(userID)
	if err != nil {
		return "", "", fmt.Errorf("issue access: %w", err)
	}

	refresh, jti, err := s.manager.GenerateRefreshToken(userID)
	if err != nil {
		return "", "", fmt.Errorf("issue refresh: %w", err)
	}

	now := time.Now()
	err = s.store.Create(ctx, model.RefreshToken{
		ID:             uuid.New(),
		JTI:            jti,
		UserID:         userID,
		TokenHash:      hashRefresh(refresh),
		IssuedAt:       now,
		ExpiresAt:      now.Add(refreshTTL),
		RotatedFromJTI: rotatedFrom,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return "", "", fmt.Errorf("persist refresh: %w", err)
	}

	s.logger.Debug("Token service: issued token pair",
		"user_id", userID,
		"jti", jti,
		"rotated", rotatedFrom != nil)

	return access, refresh, nil
}

func hashRefresh(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return h[:]
}

func checkStored(rt model.RefreshToken, presentedHash []byte, now time.Time) error {
	switch {
	case rt.RevokedAt != nil:
		return model.ErrTokenRevoked
	case now.After(rt.ExpiresAt):
		return model.ErrTokenExpired
	case subtle.ConstantTimeCompare(rt.TokenHash, presentedHash) != 1:
		return model.ErrTokenMismatch
	}
	return nil
}
