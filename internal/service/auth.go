package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"github.com/dtroode/credsync/internal/crypto"
	"github.com/dtroode/credsync/internal/logger"
	"github.com/dtroode/credsync/internal/model"
)

const (
	passwordSaltSize = 16
	passwordHashSize = 32
)

// Auth registers accounts and issues token pairs. Account passwords are
// kept as argon2id verifiers; the vault passphrase never reaches the server.
type Auth struct {
	userStore    model.UserStore
	tokenService *TokenService
	kdf          model.KDFParams
	logger       *logger.Logger
}

func NewAuth(
	userStore model.UserStore,
	refreshTokenStore model.RefreshTokenStore,
	tokenManager model.TokenManager,
	kdf model.KDFParams,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		userStore:    userStore,
		tokenService: NewTokenService(tokenManager, refreshTokenStore, logger),
		kdf:          kdf,
		logger:       logger,
	}
}

// Signup creates an account with a fresh vault salt and signs it in.
func (a *Auth) Signup(ctx context.Context, login, password string) (model.Session, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return model.Session{}, &model.ValidationError{Field: "login", Reason: "must not be empty"}
	}
	if password == "" {
		return model.Session{}, &model.ValidationError{Field: "password", Reason: "must not be empty"}
	}

	a.logger.Debug("Auth service: signup",
		"login", login)

	_, err := a.userStore.GetByLogin(ctx, login)
	if err == nil {
		return model.Session{}, model.ErrLoginTaken
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.Session{}, fmt.Errorf("failed to get user by login: %w", err)
	}

	passwordSalt, err := crypto.GenerateRandom(passwordSaltSize)
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to generate password salt: %w", err)
	}
	vaultSalt, err := crypto.GenerateRandom(crypto.SaltSize)
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to generate vault salt: %w", err)
	}
	kdf, err := json.Marshal(a.kdf)
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to marshal kdf params: %w", err)
	}

	now := time.Now()
	user, err := a.userStore.Create(ctx, model.User{
		ID:           uuid.New(),
		Login:        login,
		PasswordHash: hashPassword(password, passwordSalt, a.kdf),
		PasswordSalt: passwordSalt,
		VaultSalt:    vaultSalt,
		KDF:          kdf,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		a.logger.Error("Auth service: failed to create user",
			"login", login,
			"error", err.Error())
		if errors.Is(err, model.ErrLoginTaken) {
			return model.Session{}, err
		}
		return model.Session{}, fmt.Errorf("failed to create user: %w", err)
	}

	a.logger.Info("Auth service: user registered",
		"login", login,
		"user_id", user.ID)

	return a.openSession(ctx, user)
}

// Login checks the password against the stored verifier. Unknown logins and
// wrong passwords both yield model.ErrInvalidCredentials.
func (a *Auth) Login(ctx context.Context, login, password string) (model.Session, error) {
	login = strings.TrimSpace(login)

	user, err := a.userStore.GetByLogin(ctx, login)
	if errors.Is(err, model.ErrNotFound) {
		a.logger.Info("Auth service: login for unknown user",
			"login", login)
		return model.Session{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to get user by login: %w", err)
	}

	var kdf model.KDFParams
	if err := json.Unmarshal(user.KDF, &kdf); err != nil {
		return model.Session{}, fmt.Errorf("failed to unmarshal user kdf: %w", err)
	}

	candidate := hashPassword(password, user.PasswordSalt, kdf)
	if subtle.ConstantTimeCompare(candidate, user.PasswordHash) != 1 {
		a.logger.Info("Auth service: wrong password",
			"login", login)
		return model.Session{}, model.ErrInvalidCredentials
	}

	return a.openSession(ctx, user)
}

// Refresh rotates a refresh token.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (model.Session, error) {
	access, refresh, err := a.tokenService.Refresh(ctx, refreshToken)
	if err != nil {
		return model.Session{}, err
	}

	userID, err := a.tokenService.GetUserID(ctx, access)
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to read issued token: %w", err)
	}

	return model.Session{
		UserID:       userID,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// Authenticate resolves an access token to its owner.
func (a *Auth) Authenticate(ctx context.Context, accessToken string) (uuid.UUID, error) {
	return a.tokenService.GetUserID(ctx, accessToken)
}

func (a *Auth) openSession(ctx context.Context, user model.User) (model.Session, error) {
	access, refresh, err := a.tokenService.Issue(ctx, user.ID)
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to issue token: %w", err)
	}

	return model.Session{
		UserID:       user.ID,
		AccessToken:  access,
		RefreshToken: refresh,
		VaultSalt:    user.VaultSalt,
	}, nil
}

func hashPassword(password string, salt []byte, kdf model.KDFParams) []byte {
	return argon2.IDKey([]byte(password), salt, kdf.Time, kdf.MemKiB, kdf.Par, passwordHashSize)
}
