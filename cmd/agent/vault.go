package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/credsync/internal/api/grpc/client"
	"github.com/dtroode/credsync/internal/config"
	"github.com/dtroode/credsync/internal/keyring"
	"github.com/dtroode/credsync/internal/model"
	"github.com/dtroode/credsync/internal/replica"
	"github.com/dtroode/credsync/internal/repository/bolt"
)

// vault is an authenticated, unlocked device replica.
type vault struct {
	*replica.Coordinator
	secrets *keyring.Secrets
	conn    *client.Client
	store   *bolt.Store
	session model.Session
}

func openVault(ctx context.Context) (*vault, error) {
	agent := cfg.Agent
	secrets := keyring.New(agent.Login, keyring.ReadPassword, agent.RememberSecrets)

	conn, err := client.Dial(agent.ServerAddr, client.Options{
		Timeout:     agent.RPCTimeout,
		MaxAttempts: agent.RPCAttempts,
		TLS:         agent.TLS,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	v := &vault{secrets: secrets, conn: conn}
	if err := v.open(ctx, agent); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

func (v *vault) open(ctx context.Context, agent config.Agent) error {
	password, err := v.secrets.AccountPassword()
	if err != nil {
		return fmt.Errorf("failed to read account password: %w", err)
	}
	v.session, err = authenticate(ctx, v.conn, agent, password)
	if err != nil {
		return fmt.Errorf("failed to authenticate %s: %w", agent.Login, err)
	}

	v.store, err = bolt.Open(agent.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open device store %s: %w", agent.DBPath, err)
	}
	if err := claimStore(ctx, v.store, v.session.UserID); err != nil {
		return fmt.Errorf("device store belongs to another account: %w", err)
	}

	syncer := replica.NewSyncer(v.store, v.conn, v.session.UserID, agent.Zone, log)
	v.Coordinator = replica.NewCoordinator(v.store, syncer, replica.Options{
		AutoLock:     agent.AutoLock,
		SyncInterval: agent.SyncInterval,
	}, log)

	// A device without a verifier pulls inside Unlock, so its first
	// passphrase is checked against what other devices pushed.
	if err := v.unlock(ctx); err != nil {
		return fmt.Errorf("failed to unlock vault: %w", err)
	}

	if res, err := v.SyncNow(ctx); err != nil {
		log.Warn("initial sync failed, working offline", "retryable", model.IsRetryable(err), "error", err)
	} else {
		log.Debug("initial sync done", "pulled", res.Pulled, "pushed", res.Pushed, "conflicts", res.Conflicts)
	}
	return nil
}

func (v *vault) unlock(ctx context.Context) error {
	passphrase, err := v.secrets.Passphrase()
	if err != nil {
		return err
	}
	return v.Unlock(ctx, passphrase, v.session.VaultSalt)
}

func (v *vault) Close() {
	if v.Coordinator != nil {
		v.Lock()
	}
	if v.store != nil {
		_ = v.store.Close()
	}
	_ = v.conn.Close()
}

func authenticate(ctx context.Context, conn *client.Client, agent config.Agent, password string) (model.Session, error) {
	if agent.Signup {
		session, err := conn.Signup(ctx, agent.Login, password)
		if !errors.Is(err, model.ErrLoginTaken) {
			return session, err
		}
	}
	return conn.Login(ctx, agent.Login, password)
}

// claimStore binds the device store to owner on first use.
func claimStore(ctx context.Context, store *bolt.Store, owner uuid.UUID) error {
	stored, err := store.GetOwner(ctx)
	if errors.Is(err, model.ErrNotFound) {
		return store.SetOwner(ctx, owner)
	}
	if err != nil {
		return err
	}
	if stored != owner {
		return fmt.Errorf("store owner %s, session owner %s", stored, owner)
	}
	return nil
}
