package replica

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/dtroode/credsync/internal/crypto"
	"github.com/dtroode/credsync/internal/logger"
	"github.com/dtroode/credsync/internal/manifest"
	"github.com/dtroode/credsync/internal/model"
)

// VaultStore is a LocalStore that also keeps the device secrets needed to
// unlock: the derivation salt and a passphrase verifier.
type VaultStore interface {
	LocalStore
	GetSalt(ctx context.Context) ([]byte, error)
	SetSalt(ctx context.Context, salt []byte) error
	GetVerifier(ctx context.Context) ([]byte, error)
	SetVerifier(ctx context.Context, verifier []byte) error
}

// Options tunes the coordinator timers. Zero disables the timer.
type Options struct {
	AutoLock     time.Duration
	SyncInterval time.Duration
}

// Coordinator owns the unlocked state of a device: the master key, the
// decrypted credential cache, the auto-lock timer and the single in-flight
// sync.
type Coordinator struct {
	store  VaultStore
	syncer *Syncer
	codec  *crypto.Codec
	opts   Options
	logger *logger.Logger

	// syncing is held by every operation that writes the replica.
	syncing *semaphore.Weighted

	mu       sync.RWMutex
	master   *crypto.MasterKey
	cache    map[uuid.UUID]model.Credential
	timer    *time.Timer
	timerGen uint64
}

func NewCoordinator(store VaultStore, syncer *Syncer, opts Options, logger *logger.Logger) *Coordinator {
	return &Coordinator{
		store:   store,
		syncer:  syncer,
		codec:   crypto.NewCodec(),
		opts:    opts,
		logger:  logger,
		syncing: semaphore.NewWeighted(1),
	}
}

// Unlock derives the master key and decrypts every live credential into the
// cache. serverSalt is used only when the device has no salt of its own yet.
// A wrong passphrase returns model.ErrInvalidCredentials and leaves the
// vault locked.
func (c *Coordinator) Unlock(ctx context.Context, passphrase string, serverSalt []byte) error {
	salt, err := c.store.GetSalt(ctx)
	if errors.Is(err, model.ErrNotFound) {
		salt = serverSalt
	} else if err != nil {
		return fmt.Errorf("failed to read salt: %w", err)
	}

	master, salt, err := crypto.DeriveMasterKey(passphrase, salt)
	if err != nil {
		return err
	}

	if err := c.verify(ctx, master); err != nil {
		master.Destroy()
		return err
	}
	if err := c.store.SetSalt(ctx, salt); err != nil {
		master.Destroy()
		return fmt.Errorf("failed to store salt: %w", err)
	}

	cache, err := c.decryptAll(ctx, master)
	if err != nil {
		master.Destroy()
		return err
	}

	c.mu.Lock()
	if c.master != nil {
		c.master.Destroy()
	}
	c.master = master
	c.cache = cache
	c.armLocked()
	c.mu.Unlock()

	c.logger.Info("Coordinator: vault unlocked",
		"credentials", len(cache))
	return nil
}

// verify checks master against the stored verifier. A device without one
// first pulls the zone, so a new device checks the passphrase against the
// records other devices already pushed; a verifier is only created once
// master unwraps one of them or the zone is empty everywhere.
func (c *Coordinator) verify(ctx context.Context, master *crypto.MasterKey) error {
	verifier, err := c.store.GetVerifier(ctx)
	switch {
	case err == nil:
		check, err := master.UnwrapKey(verifier)
		if err != nil {
			return err
		}
		crypto.ClearBytes(check)
		return nil
	case !errors.Is(err, model.ErrNotFound):
		return fmt.Errorf("failed to read verifier: %w", err)
	}

	if err := c.pullForVerify(ctx); err != nil {
		return err
	}

	wrapped, err := c.anyWrappedKey(ctx)
	if err != nil {
		return err
	}
	if wrapped != nil {
		key, err := master.UnwrapKey(wrapped)
		if err != nil {
			return err
		}
		crypto.ClearBytes(key)
	}

	check, err := crypto.GenerateContentKey()
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(check)

	verifier, err = master.WrapKey(check)
	if err != nil {
		return err
	}
	if err := c.store.SetVerifier(ctx, verifier); err != nil {
		return fmt.Errorf("failed to store verifier: %w", err)
	}
	return nil
}

// pullForVerify syncs the replica while still locked. Pulling needs no key.
func (c *Coordinator) pullForVerify(ctx context.Context) error {
	if err := c.syncing.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.syncing.Release(1)

	res, err := c.syncer.Sync(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch records to check the passphrase: %w", err)
	}
	c.logger.Debug("Coordinator: pulled before first unlock",
		"pulled", res.Pulled)
	return nil
}

// anyWrappedKey returns the wrapped content key of some local record, or
// nil when there is none.
func (c *Coordinator) anyWrappedKey(ctx context.Context) ([]byte, error) {
	records, err := c.store.ListSyncRecords(ctx, c.syncer.owner, c.syncer.zone, model.ListOptions{IncludeTombstoned: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	for _, rec := range records {
		if len(rec.WrappedKey) > 0 {
			return rec.WrappedKey, nil
		}
	}
	return nil, nil
}

func (c *Coordinator) decryptAll(ctx context.Context, master *crypto.MasterKey) (map[uuid.UUID]model.Credential, error) {
	owner, zone := c.syncer.owner, c.syncer.zone

	metas, err := c.store.ListMetadata(ctx, owner, zone, model.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}

	cache := make(map[uuid.UUID]model.Credential, len(metas))
	for _, meta := range metas {
		rec, err := c.store.GetSyncRecord(ctx, owner, zone, meta.UUID)
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record %s: %w", meta.UUID, err)
		}
		if rec.Tombstone {
			continue
		}

		var secret model.Secret
		if err := c.codec.Decrypt(master, rec.WrappedKey, rec.EncItem, &secret); err != nil {
			if errors.Is(err, model.ErrLocked) {
				return nil, err
			}
			c.logger.Warn("Coordinator: skipping undecryptable credential",
				"id", meta.UUID,
				"error", err.Error())
			continue
		}
		cache[meta.UUID] = credentialFrom(meta, rec, secret)
	}
	return cache, nil
}

// Lock destroys the master key and the decrypted cache. Later crypto calls
// fail with model.ErrLocked.
func (c *Coordinator) Lock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lockLocked()
	c.logger.Info("Coordinator: vault locked")
}

func (c *Coordinator) lockLocked() {
	if c.master != nil {
		c.master.Destroy()
	}
	c.master = nil
	c.cache = nil
	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Coordinator) Zone() string { return c.syncer.Zone() }

// Locked reports whether the master key is absent.
func (c *Coordinator) Locked() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.master == nil
}

// armLocked replaces the auto-lock timer. A timer that fires after being
// replaced sees a different generation and does nothing.
func (c *Coordinator) armLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerGen++
	if c.opts.AutoLock <= 0 {
		return
	}

	gen := c.timerGen
	c.timer = time.AfterFunc(c.opts.AutoLock, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.timerGen != gen || c.master == nil {
			return
		}
		c.lockLocked()
		c.logger.Info("Coordinator: auto-lock fired")
	})
}

func (c *Coordinator) Get(id uuid.UUID) (model.Credential, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.master == nil {
		return model.Credential{}, model.ErrLocked
	}
	cred, ok := c.cache[id]
	if !ok {
		return model.Credential{}, model.ErrNotFound
	}
	return cred, nil
}

// List returns every live credential ordered by server and account.
func (c *Coordinator) List() ([]model.Credential, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.master == nil {
		return nil, model.ErrLocked
	}

	out := make([]model.Credential, 0, len(c.cache))
	for _, cred := range c.cache {
		out = append(out, cred)
	}
	slices.SortFunc(out, compareCredentials)
	return out, nil
}

// Search matches query against server and account.
func (c *Coordinator) Search(ctx context.Context, query string) ([]model.Credential, error) {
	if c.Locked() {
		return nil, model.ErrLocked
	}

	metas, err := c.store.SearchMetadata(ctx, c.syncer.owner, c.syncer.zone, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search metadata: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.master == nil {
		return nil, model.ErrLocked
	}
	var out []model.Credential
	for _, meta := range metas {
		if cred, ok := c.cache[meta.UUID]; ok {
			out = append(out, cred)
		}
	}
	slices.SortFunc(out, compareCredentials)
	return out, nil
}

// Add encrypts cred under a fresh content key, stores all three layers and
// pushes them. The returned credential carries its new ID.
func (c *Coordinator) Add(ctx context.Context, cred model.Credential) (model.Credential, error) {
	if err := c.syncing.Acquire(ctx, 1); err != nil {
		return model.Credential{}, err
	}
	defer c.syncing.Release(1)

	master, err := c.unlockedKey()
	if err != nil {
		return model.Credential{}, err
	}

	contentKey, err := crypto.GenerateContentKey()
	if err != nil {
		return model.Credential{}, err
	}
	defer crypto.ClearBytes(contentKey)

	wrapped, err := master.WrapKey(contentKey)
	if err != nil {
		return model.Credential{}, err
	}
	encItem, err := c.codec.Encrypt(cred.Secret, contentKey)
	if err != nil {
		return model.Credential{}, err
	}

	now := time.Now().UTC()
	cred.ID = uuid.New()
	applyCredentialDefaults(&cred)

	key := model.CryptoKey{
		UUID:        uuid.New(),
		KeyClass:    model.KeyClassSymmetric,
		KeyType:     model.KeyTypeAES256GCM,
		Data:        wrapped,
		AccessGroup: model.DefaultAccessGroup,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	meta := metadataFrom(cred, key.UUID)
	rec := model.SyncRecord{
		Zone:          c.syncer.zone,
		UUID:          cred.ID,
		ParentKeyUUID: key.UUID,
		WrappedKey:    wrapped,
		EncItem:       encItem,
		EncVersion:    crypto.EncVersion,
		ContextID:     model.DefaultContextID,
	}

	if err := c.writeLocal(ctx, key, meta, rec); err != nil {
		return model.Credential{}, err
	}

	c.remember(cred)
	c.pushNow(ctx)
	return c.current(ctx, cred), nil
}

// Update re-encrypts cred with its existing content key.
func (c *Coordinator) Update(ctx context.Context, cred model.Credential) (model.Credential, error) {
	if err := c.syncing.Acquire(ctx, 1); err != nil {
		return model.Credential{}, err
	}
	defer c.syncing.Release(1)

	master, err := c.unlockedKey()
	if err != nil {
		return model.Credential{}, err
	}

	key, meta, rec, err := c.loadLive(ctx, cred.ID)
	if err != nil {
		return model.Credential{}, err
	}

	contentKey, err := master.UnwrapKey(rec.WrappedKey)
	if err != nil {
		return model.Credential{}, err
	}
	defer crypto.ClearBytes(contentKey)

	encItem, err := c.codec.Encrypt(cred.Secret, contentKey)
	if err != nil {
		return model.Credential{}, err
	}

	applyCredentialDefaults(&cred)
	updated := metadataFrom(cred, meta.PasswordKeyUUID)
	updated.MetadataKeyUUID = meta.MetadataKeyUUID
	updated.AccessGroup = meta.AccessGroup
	updated.GenCount = meta.GenCount

	rec.EncItem = encItem
	key.UpdatedAt = time.Now().UTC()

	if err := c.writeLocal(ctx, key, updated, rec); err != nil {
		return model.Credential{}, err
	}

	cred.GenCount = meta.GenCount
	c.remember(cred)
	c.pushNow(ctx)
	return c.current(ctx, cred), nil
}

// Delete tombstones the credential in all three layers.
func (c *Coordinator) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.syncing.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.syncing.Release(1)

	if _, err := c.unlockedKey(); err != nil {
		return err
	}

	key, meta, rec, err := c.loadLive(ctx, id)
	if err != nil {
		return err
	}
	key.Tombstone = true
	key.UpdatedAt = time.Now().UTC()
	meta.Tombstone = true
	rec.Tombstone = true

	if err := c.writeLocal(ctx, key, meta, rec); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.cache, id)
	c.mu.Unlock()

	c.pushNow(ctx)
	return nil
}

// Import adds a credential from a normalized import record.
func (c *Coordinator) Import(ctx context.Context, rec model.ImportRecord) (model.Credential, error) {
	cred, err := credentialFromImport(rec)
	if err != nil {
		return model.Credential{}, err
	}
	return c.Add(ctx, cred)
}

// SyncNow runs a quick check immediately, waiting for any sync in flight.
func (c *Coordinator) SyncNow(ctx context.Context) (SyncResult, error) {
	if c.Locked() {
		return SyncResult{}, model.ErrLocked
	}
	if err := c.syncing.Acquire(ctx, 1); err != nil {
		return SyncResult{}, err
	}
	defer c.syncing.Release(1)

	return c.syncLocked(ctx)
}

// Run checks the replica every SyncInterval until ctx is done. Ticks are
// skipped while locked or while another sync holds the replica.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.opts.SyncInterval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(c.opts.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if c.Locked() {
			continue
		}
		if !c.syncing.TryAcquire(1) {
			c.logger.Debug("Coordinator: sync in flight, skipping tick")
			continue
		}

		result, err := c.syncLocked(ctx)
		c.syncing.Release(1)
		if err != nil {
			c.logger.Warn("Coordinator: background sync failed",
				"retryable", model.IsRetryable(err),
				"error", err.Error())
			continue
		}
		for _, e := range result.Errors {
			c.logger.Warn("Coordinator: sync item failed",
				"error", e.Error())
		}
	}
}

// syncLocked must be called with the syncing semaphore held.
func (c *Coordinator) syncLocked(ctx context.Context) (SyncResult, error) {
	result, err := c.syncer.QuickSyncCheck(ctx)
	if err != nil {
		return result, err
	}
	if result.Pulled == 0 {
		return result, nil
	}

	c.mu.RLock()
	master := c.master
	c.mu.RUnlock()
	if master == nil {
		return result, nil
	}

	cache, err := c.decryptAll(ctx, master)
	if errors.Is(err, model.ErrLocked) {
		c.logger.Debug("Coordinator: locked during sync, cache not refreshed")
		return result, nil
	}
	if err != nil {
		result.Errors = append(result.Errors, err)
		return result, nil
	}

	c.mu.Lock()
	if c.master == master {
		c.cache = cache
	}
	c.mu.Unlock()
	return result, nil
}

// unlockedKey returns the master key and restarts the auto-lock timer.
func (c *Coordinator) unlockedKey() (*crypto.MasterKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.master == nil {
		return nil, model.ErrLocked
	}
	c.armLocked()
	return c.master, nil
}

func (c *Coordinator) loadLive(ctx context.Context, id uuid.UUID) (model.CryptoKey, model.CredentialMetadata, model.SyncRecord, error) {
	owner, zone := c.syncer.owner, c.syncer.zone

	meta, err := c.store.GetMetadata(ctx, owner, zone, id)
	if err != nil {
		return model.CryptoKey{}, model.CredentialMetadata{}, model.SyncRecord{}, err
	}
	rec, err := c.store.GetSyncRecord(ctx, owner, zone, id)
	if err != nil {
		return model.CryptoKey{}, model.CredentialMetadata{}, model.SyncRecord{}, err
	}
	if meta.Tombstone || rec.Tombstone {
		return model.CryptoKey{}, model.CredentialMetadata{}, model.SyncRecord{}, model.ErrNotFound
	}
	key, err := c.store.GetKey(ctx, owner, zone, meta.PasswordKeyUUID)
	if err != nil {
		return model.CryptoKey{}, model.CredentialMetadata{}, model.SyncRecord{}, fmt.Errorf("failed to read key %s: %w", meta.PasswordKeyUUID, err)
	}
	return key, meta, rec, nil
}

func (c *Coordinator) writeLocal(ctx context.Context, key model.CryptoKey, meta model.CredentialMetadata, rec model.SyncRecord) error {
	owner, zone := c.syncer.owner, c.syncer.zone

	if err := c.store.UpsertKey(ctx, owner, zone, key); err != nil {
		return fmt.Errorf("failed to store key: %w", err)
	}
	if err := c.store.UpsertMetadata(ctx, owner, zone, meta); err != nil {
		return fmt.Errorf("failed to store metadata: %w", err)
	}
	if err := c.store.UpsertSyncRecord(ctx, owner, rec); err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	if err := c.store.MarkPending(ctx, owner, zone, meta.UUID); err != nil {
		return fmt.Errorf("failed to mark pending: %w", err)
	}
	if _, err := c.store.RefreshManifest(ctx, owner, zone, manifest.Digest); err != nil {
		return fmt.Errorf("failed to refresh local manifest: %w", err)
	}
	return nil
}

// pushNow sends pending edits. A failure leaves them pending for the next
// sync.
func (c *Coordinator) pushNow(ctx context.Context) {
	if _, err := c.syncer.PushPending(ctx); err != nil {
		c.logger.Warn("Coordinator: push deferred",
			"retryable", model.IsRetryable(err),
			"error", err.Error())
	}
}

func (c *Coordinator) remember(cred model.Credential) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache != nil {
		c.cache[cred.ID] = cred
	}
}

// current returns cred with the gencount stored after the push.
func (c *Coordinator) current(ctx context.Context, cred model.Credential) model.Credential {
	rec, err := c.store.GetSyncRecord(ctx, c.syncer.owner, c.syncer.zone, cred.ID)
	if err != nil {
		return cred
	}
	cred.GenCount = rec.GenCount
	c.remember(cred)
	return cred
}

func applyCredentialDefaults(cred *model.Credential) {
	if cred.Protocol == 0 {
		cred.Protocol = model.DefaultProtocol
	}
	if cred.Port == 0 {
		cred.Port = model.DefaultPort
	}
}

func metadataFrom(cred model.Credential, keyID uuid.UUID) model.CredentialMetadata {
	return model.CredentialMetadata{
		UUID:            cred.ID,
		Server:          cred.Server,
		Account:         cred.Account,
		Protocol:        cred.Protocol,
		Port:            cred.Port,
		Path:            cred.Path,
		Label:           cred.Label,
		PasswordKeyUUID: keyID,
		AccessGroup:     model.DefaultAccessGroup,
	}
}

func credentialFrom(meta model.CredentialMetadata, rec model.SyncRecord, secret model.Secret) model.Credential {
	return model.Credential{
		ID:       meta.UUID,
		Server:   meta.Server,
		Account:  meta.Account,
		Protocol: meta.Protocol,
		Port:     meta.Port,
		Path:     meta.Path,
		Label:    meta.Label,
		Secret:   secret,
		GenCount: rec.GenCount,
	}
}

func credentialFromImport(rec model.ImportRecord) (model.Credential, error) {
	raw := strings.TrimSpace(rec.URL)
	if raw == "" {
		return model.Credential{}, &model.ValidationError{Field: "url", Reason: "must not be empty"}
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return model.Credential{}, &model.ValidationError{Field: "url", Reason: fmt.Sprintf("cannot parse %q", rec.URL)}
	}

	cred := model.Credential{
		Server:  u.Hostname(),
		Account: rec.Username,
		Path:    u.Path,
		Label:   u.Hostname(),
		Secret: model.Secret{
			URL:      rec.URL,
			Username: rec.Username,
			Password: rec.Password,
			Notes:    rec.Notes,
		},
	}
	if p := u.Port(); p != "" {
		port, err := strconv.ParseInt(p, 10, 32)
		if err != nil {
			return model.Credential{}, &model.ValidationError{Field: "url", Reason: "bad port " + p}
		}
		cred.Port = int32(port)
	}
	return cred, nil
}

func compareCredentials(a, b model.Credential) int {
	if c := strings.Compare(a.Server, b.Server); c != 0 {
		return c
	}
	if c := strings.Compare(a.Account, b.Account); c != 0 {
		return c
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}
