package replica

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/dtroode/credsync/internal/logger"
	"github.com/dtroode/credsync/internal/manifest"
	"github.com/dtroode/credsync/internal/model"
)

// Remote is the server side of the protocol as seen by a device. The owner
// is implied by the session the remote was authenticated with.
type Remote interface {
	Push(ctx context.Context, req model.PushRequest) (model.PushResult, error)
	Pull(ctx context.Context, req model.PullRequest) (model.PullResult, error)
	Manifest(ctx context.Context, zone string) (model.SyncState, error)
}

// LocalStore is the device replica: the three layers plus the watermark
// and the set of credentials with unpushed edits.
type LocalStore interface {
	model.ReplicaStore
	SetWatermark(ctx context.Context, owner uuid.UUID, zone string, genCount int64) error
	MarkPending(ctx context.Context, owner uuid.UUID, zone string, id uuid.UUID) error
	ClearPending(ctx context.Context, owner uuid.UUID, zone string, ids ...uuid.UUID) error
	ListPending(ctx context.Context, owner uuid.UUID, zone string) ([]uuid.UUID, error)
}

// SyncResult summarises one synchronization. Per-item failures are
// collected in Errors instead of failing the whole run.
type SyncResult struct {
	Skipped   bool
	Pulled    int
	Pushed    int
	Conflicts int
	Errors    []error
	GenCount  int64
}

// Syncer runs the device side of the protocol for one (owner, zone).
type Syncer struct {
	store  LocalStore
	remote Remote
	owner  uuid.UUID
	zone   string
	logger *logger.Logger
}

func NewSyncer(store LocalStore, remote Remote, owner uuid.UUID, zone string, logger *logger.Logger) *Syncer {
	if zone == "" {
		zone = model.DefaultZone
	}
	return &Syncer{
		store:  store,
		remote: remote,
		owner:  owner,
		zone:   zone,
		logger: logger.With("owner", owner),
	}
}

// Zone returns the zone the syncer replicates.
func (s *Syncer) Zone() string { return s.zone }

// QuickSyncCheck compares the remote manifest with the local one and runs a
// full Sync only when they differ or local edits are waiting.
func (s *Syncer) QuickSyncCheck(ctx context.Context) (SyncResult, error) {
	remote, err := s.remote.Manifest(ctx, s.zone)
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to fetch manifest: %w", err)
	}

	local, err := s.localState(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	pending, err := s.store.ListPending(ctx, s.owner, s.zone)
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to list pending: %w", err)
	}

	if manifest.Equal(remote.Digest, local.Digest) && remote.GenCount == local.GenCount && len(pending) == 0 {
		s.logger.Debug("Syncer: replica in sync",
			"zone", s.zone,
			"gencount", local.GenCount)
		return SyncResult{Skipped: true, GenCount: local.GenCount}, nil
	}

	return s.Sync(ctx)
}

// Sync pulls everything newer than the watermark, applies it with the
// last-write-wins rule and then pushes pending local edits. Only a failed
// pull is returned as an error.
func (s *Syncer) Sync(ctx context.Context) (SyncResult, error) {
	var result SyncResult

	local, err := s.localState(ctx)
	if err != nil {
		return result, err
	}

	pulled, err := s.remote.Pull(ctx, model.PullRequest{
		Zone:              s.zone,
		SinceGenCount:     local.GenCount,
		IncludeTombstoned: true,
	})
	if err != nil {
		return result, fmt.Errorf("failed to pull: %w", err)
	}

	s.apply(ctx, pulled, &result)

	watermark := local.GenCount
	if len(result.Errors) == 0 && pulled.GenCount > watermark {
		if err := s.store.SetWatermark(ctx, s.owner, s.zone, pulled.GenCount); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to store watermark: %w", err))
		} else {
			watermark = pulled.GenCount
		}
	}

	pushed, err := s.push(ctx, watermark)
	result.Pushed = pushed
	if err != nil {
		result.Errors = append(result.Errors, err)
	}

	state, err := s.store.RefreshManifest(ctx, s.owner, s.zone, manifest.Digest)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("failed to refresh local manifest: %w", err))
	}
	result.GenCount = state.GenCount

	s.logger.Info("Syncer: sync finished",
		"zone", s.zone,
		"pulled", result.Pulled,
		"pushed", result.Pushed,
		"conflicts", result.Conflicts,
		"errors", len(result.Errors),
		"gencount", result.GenCount)

	return result, nil
}

// PushPending sends local edits without pulling first.
func (s *Syncer) PushPending(ctx context.Context) (int, error) {
	local, err := s.localState(ctx)
	if err != nil {
		return 0, err
	}
	return s.push(ctx, local.GenCount)
}

func (s *Syncer) localState(ctx context.Context) (model.SyncState, error) {
	state, err := s.store.GetSyncState(ctx, s.owner, s.zone)
	if errors.Is(err, model.ErrNotFound) {
		return model.SyncState{Owner: s.owner, Zone: s.zone}, nil
	}
	if err != nil {
		return model.SyncState{}, fmt.Errorf("failed to read local state: %w", err)
	}
	return state, nil
}

// apply writes pulled rows layer by layer. A row whose local copy has a
// gencount at least as high is skipped and counted as a conflict.
func (s *Syncer) apply(ctx context.Context, pulled model.PullResult, result *SyncResult) {
	overwritten := map[model.Layer]map[uuid.UUID]struct{}{
		model.LayerKeys:        {},
		model.LayerMetadata:    {},
		model.LayerSyncRecords: {},
	}

	record := func(err error, layer model.Layer, id uuid.UUID) {
		switch {
		case errors.Is(err, model.ErrConflictSkipped):
			result.Conflicts++
		case err != nil:
			result.Errors = append(result.Errors, fmt.Errorf("apply %s %s: %w", layer, id, err))
		default:
			result.Pulled++
			overwritten[layer][id] = struct{}{}
		}
	}

	for _, key := range pulled.Keys {
		record(s.applyKey(ctx, key), model.LayerKeys, key.UUID)
	}
	for _, meta := range pulled.Metadata {
		record(s.applyMetadata(ctx, meta), model.LayerMetadata, meta.UUID)
	}
	for _, rec := range pulled.SyncRecords {
		record(s.applySyncRecord(ctx, rec), model.LayerSyncRecords, rec.UUID)
	}

	if len(overwritten[model.LayerSyncRecords]) == 0 {
		return
	}

	pending, err := s.store.ListPending(ctx, s.owner, s.zone)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("failed to list pending: %w", err))
		return
	}
	var dropped []uuid.UUID
	for _, id := range pending {
		superseded, err := s.superseded(ctx, id, overwritten)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		if superseded {
			dropped = append(dropped, id)
		}
	}
	if len(dropped) > 0 {
		s.logger.Info("Syncer: local edits superseded by remote",
			"zone", s.zone,
			"count", len(dropped))
		if err := s.store.ClearPending(ctx, s.owner, s.zone, dropped...); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to clear pending: %w", err))
		}
	}
}

// superseded reports whether the pull replaced every layer of a pending
// credential: its metadata, its sync record and the key the metadata now
// points at. A credential with any local layer left keeps its pending mark.
func (s *Syncer) superseded(ctx context.Context, id uuid.UUID, overwritten map[model.Layer]map[uuid.UUID]struct{}) (bool, error) {
	if _, ok := overwritten[model.LayerSyncRecords][id]; !ok {
		return false, nil
	}
	if _, ok := overwritten[model.LayerMetadata][id]; !ok {
		return false, nil
	}
	meta, err := s.store.GetMetadata(ctx, s.owner, s.zone, id)
	if err != nil {
		return false, fmt.Errorf("failed to read pending metadata %s: %w", id, err)
	}
	if meta.PasswordKeyUUID == uuid.Nil {
		return true, nil
	}
	_, ok := overwritten[model.LayerKeys][meta.PasswordKeyUUID]
	return ok, nil
}

// stale reports whether an incoming row must be discarded.
func stale(local int64, err error, incoming int64) (bool, error) {
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return local >= incoming, nil
}

func (s *Syncer) applyKey(ctx context.Context, key model.CryptoKey) error {
	local, err := s.store.GetKey(ctx, s.owner, s.zone, key.UUID)
	skip, err := stale(local.GenCount, err, key.GenCount)
	if err != nil {
		return err
	}
	if skip {
		return model.ErrConflictSkipped
	}
	return s.store.UpsertKey(ctx, s.owner, s.zone, key)
}

func (s *Syncer) applyMetadata(ctx context.Context, meta model.CredentialMetadata) error {
	local, err := s.store.GetMetadata(ctx, s.owner, s.zone, meta.UUID)
	skip, err := stale(local.GenCount, err, meta.GenCount)
	if err != nil {
		return err
	}
	if skip {
		return model.ErrConflictSkipped
	}
	return s.store.UpsertMetadata(ctx, s.owner, s.zone, meta)
}

func (s *Syncer) applySyncRecord(ctx context.Context, rec model.SyncRecord) error {
	local, err := s.store.GetSyncRecord(ctx, s.owner, s.zone, rec.UUID)
	skip, err := stale(local.GenCount, err, rec.GenCount)
	if err != nil {
		return err
	}
	if skip {
		return model.ErrConflictSkipped
	}
	rec.Zone = s.zone
	return s.store.UpsertSyncRecord(ctx, s.owner, rec)
}

// push sends every pending credential and adopts the gencounts the server
// assigned. The watermark moves with the push only when the assigned
// gencounts directly follow it, i.e. no other device pushed in between.
func (s *Syncer) push(ctx context.Context, watermark int64) (int, error) {
	ids, err := s.store.ListPending(ctx, s.owner, s.zone)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	req, err := s.buildPush(ctx, ids)
	if err != nil {
		return 0, err
	}

	res, err := s.remote.Push(ctx, req)
	var partial *model.PartialBatchFailure
	if errors.As(err, &partial) && len(partial.Assigned) > 0 {
		return s.pushedPartially(ctx, watermark, partial)
	}
	if err != nil {
		s.logger.Warn("Syncer: push failed, edits stay pending",
			"zone", s.zone,
			"pending", len(ids),
			"error", err.Error())
		return 0, fmt.Errorf("failed to push: %w", err)
	}

	if err := s.adopt(ctx, res.Assigned); err != nil {
		return res.ItemsProcessed, err
	}
	if err := s.store.ClearPending(ctx, s.owner, s.zone, ids...); err != nil {
		return res.ItemsProcessed, fmt.Errorf("failed to clear pending: %w", err)
	}

	if follows(watermark, res.Assigned) {
		if err := s.store.SetWatermark(ctx, s.owner, s.zone, res.GenCount); err != nil {
			return res.ItemsProcessed, fmt.Errorf("failed to store watermark: %w", err)
		}
	}

	s.logger.Debug("Syncer: pushed pending edits",
		"zone", s.zone,
		"credentials", len(ids),
		"items", res.ItemsProcessed,
		"gencount", res.GenCount)

	return res.ItemsProcessed, nil
}

// pushedPartially handles a push the server aborted part way. The rows it
// stored keep their assigned gencounts locally, so pulling them back later
// is a no-op instead of an overwrite. Only credentials whose sync record was
// stored leave the pending set; keys and metadata travel before records, so
// those credentials were stored whole.
func (s *Syncer) pushedPartially(ctx context.Context, watermark int64, partial *model.PartialBatchFailure) (int, error) {
	s.logger.Warn("Syncer: push aborted part way, unstored edits stay pending",
		"zone", s.zone,
		"stored", partial.Processed,
		"layer", partial.Layer,
		"uuid", partial.UUID,
		"error", partial.Error())

	if err := s.adopt(ctx, partial.Assigned); err != nil {
		return partial.Processed, err
	}

	var stored []uuid.UUID
	var last int64
	for _, a := range partial.Assigned {
		if a.Layer == model.LayerSyncRecords {
			stored = append(stored, a.UUID)
		}
		last = max(last, a.GenCount)
	}
	if len(stored) > 0 {
		if err := s.store.ClearPending(ctx, s.owner, s.zone, stored...); err != nil {
			return partial.Processed, fmt.Errorf("failed to clear pending: %w", err)
		}
	}

	if follows(watermark, partial.Assigned) {
		if err := s.store.SetWatermark(ctx, s.owner, s.zone, last); err != nil {
			return partial.Processed, fmt.Errorf("failed to store watermark: %w", err)
		}
	}

	return partial.Processed, fmt.Errorf("failed to push: %w", partial)
}

func (s *Syncer) buildPush(ctx context.Context, ids []uuid.UUID) (model.PushRequest, error) {
	req := model.PushRequest{Zone: s.zone}
	seenKeys := map[uuid.UUID]struct{}{}

	for _, id := range ids {
		meta, err := s.store.GetMetadata(ctx, s.owner, s.zone, id)
		if err != nil {
			return req, fmt.Errorf("failed to read pending metadata %s: %w", id, err)
		}
		rec, err := s.store.GetSyncRecord(ctx, s.owner, s.zone, id)
		if err != nil {
			return req, fmt.Errorf("failed to read pending record %s: %w", id, err)
		}

		for _, keyID := range []uuid.UUID{meta.PasswordKeyUUID, rec.ParentKeyUUID} {
			if _, ok := seenKeys[keyID]; ok || keyID == uuid.Nil {
				continue
			}
			seenKeys[keyID] = struct{}{}
			key, err := s.store.GetKey(ctx, s.owner, s.zone, keyID)
			if err != nil {
				return req, fmt.Errorf("failed to read pending key %s: %w", keyID, err)
			}
			req.Keys = append(req.Keys, key)
		}

		req.Metadata = append(req.Metadata, meta)
		req.SyncRecords = append(req.SyncRecords, rec)
	}
	return req, nil
}

// adopt stores the server-assigned gencount on each pushed row so a later
// pull of the same rows is recognised as already applied.
func (s *Syncer) adopt(ctx context.Context, assigned []model.Assignment) error {
	for _, a := range assigned {
		var err error
		switch a.Layer {
		case model.LayerKeys:
			var key model.CryptoKey
			if key, err = s.store.GetKey(ctx, s.owner, s.zone, a.UUID); err == nil {
				key.GenCount = a.GenCount
				err = s.store.UpsertKey(ctx, s.owner, s.zone, key)
			}
		case model.LayerMetadata:
			var meta model.CredentialMetadata
			if meta, err = s.store.GetMetadata(ctx, s.owner, s.zone, a.UUID); err == nil {
				meta.GenCount = a.GenCount
				err = s.store.UpsertMetadata(ctx, s.owner, s.zone, meta)
			}
		case model.LayerSyncRecords:
			var rec model.SyncRecord
			if rec, err = s.store.GetSyncRecord(ctx, s.owner, s.zone, a.UUID); err == nil {
				rec.GenCount = a.GenCount
				err = s.store.UpsertSyncRecord(ctx, s.owner, rec)
			}
		}
		if err != nil {
			return fmt.Errorf("failed to adopt gencount for %s %s: %w", a.Layer, a.UUID, err)
		}
	}
	return nil
}

func follows(watermark int64, assigned []model.Assignment) bool {
	if len(assigned) == 0 {
		return false
	}
	gens := make([]int64, 0, len(assigned))
	for _, a := range assigned {
		gens = append(gens, a.GenCount)
	}
	slices.Sort(gens)
	for i, g := range gens {
		if g != watermark+int64(i)+1 {
			return false
		}
	}
	return true
}
